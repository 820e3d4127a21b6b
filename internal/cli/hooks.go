package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/graphlens/pkg/hooks"
)

// withHooks runs write between the project's pre-write and post-write
// hooks. Hook output is reported on stderr.
func (a *app) withHooks(cmd *cobra.Command, wc hooks.WriteContext, write func() error) error {
	wc.Command = cmd.Name()
	runner, err := hooks.RunHooks("", wc, a.noHooks)
	if err != nil {
		return err
	}
	if runner == nil {
		return write()
	}

	ctx := cmd.Context()
	defer func() {
		w := cmd.ErrOrStderr()
		for _, r := range runner.Results() {
			fmt.Fprintf(w, "  %s hook %s %s\n", StatusIcon(r.Success), r.Hook.Name, Subtle.Sprintf("(%s, %s)", r.Phase, r.Duration.Round(time.Millisecond)))
			if !r.Success && r.Stderr != "" {
				Subtle.Fprintf(w, "    %s\n", r.Stderr)
			}
		}
	}()

	if err := runner.RunPreWrite(ctx); err != nil {
		return err
	}
	if err := write(); err != nil {
		return err
	}
	return runner.RunPostWrite(ctx)
}
