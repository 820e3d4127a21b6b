package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/graphlens/internal/datasource"
	"github.com/vanderheijden86/graphlens/pkg/loader"
	"github.com/vanderheijden86/graphlens/pkg/timeline"
)

// ErrInvalidFixture is returned by validate when the fixture is rejected.
var ErrInvalidFixture = errors.New("fixture is invalid")

func (a *app) validateCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate [fixture]",
		Short: "Check a fixture for shape and integrity problems",
		Long: "Import a fixture and report every problem found. Errors (duplicate ids,\n" +
			"inverted validity ranges, non-finite positions) fail the command; dangling\n" +
			"edges are warnings unless --strict is given.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveFixture(args)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			Brand.Fprintf(w, "%s %s\n", Mark, path)

			var warnings []string
			g, err := datasource.Load(cmd.Context(), path, loader.ParseOptions{
				WarningHandler: func(msg string) { warnings = append(warnings, msg) },
			})
			if err != nil {
				for _, line := range problems(err) {
					fmt.Fprintf(w, "  %s %s\n", StatusIcon(false), line)
				}
				return ErrInvalidFixture
			}

			fmt.Fprintf(w, "  %s %d nodes · %d edges\n", StatusIcon(true), len(g.Nodes), len(g.Edges))
			if types := g.NodeTypes(); len(types) > 0 {
				fmt.Fprintf(w, "  %s node types: %s\n", StatusIcon(true), strings.Join(types, ", "))
			}
			if n := len(timeline.Points(g, timeline.PointOptions{})); n > 0 {
				fmt.Fprintf(w, "  %s %d timeline points\n", StatusIcon(true), n)
			} else {
				Subtle.Fprintln(w, "  · no timeline (nothing is time-bounded)")
			}
			for _, msg := range warnings {
				fmt.Fprintf(w, "  %s %s\n", WarnIcon(), msg)
			}

			if strict && len(warnings) > 0 {
				return fmt.Errorf("%w: %d warnings in strict mode", ErrInvalidFixture, len(warnings))
			}
			if len(warnings) == 0 {
				Good.Fprintln(w, "  valid")
			} else {
				Warn.Fprintf(w, "  valid with %d warnings\n", len(warnings))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Treat warnings as errors")
	return cmd
}

// problems flattens an import error into one line per joined cause.
func problems(err error) []string {
	var ie *loader.ImportError
	if !errors.As(err, &ie) {
		return []string{err.Error()}
	}
	prefix := ""
	if ie.Field != "" {
		prefix = ie.Field + ": "
	}
	if joined, ok := ie.Err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, prefix+e.Error())
		}
		return out
	}
	return []string{prefix + ie.Err.Error()}
}
