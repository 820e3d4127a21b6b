package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/graphlens/pkg/hooks"
	"github.com/vanderheijden86/graphlens/pkg/loader"
)

func (a *app) exportCmd() *cobra.Command {
	var (
		out    string
		schema bool
	)

	cmd := &cobra.Command{
		Use:   "export [fixture]",
		Short: "Write the normalised graph as fixture JSON",
		Long: "Re-encode a fixture (JSON or YAML) as canonical {\"graph\": ...} JSON, with\n" +
			"edge endpoints flattened to ids. --schema prints the fixture JSON schema instead.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if schema {
				return writeOut(cmd, out, loader.Schema())
			}
			_, g, err := a.load(cmd, args)
			if err != nil {
				return err
			}
			if out != "" {
				wc := hooks.WriteContext{
					Outputs:   []string{out},
					Nodes:     len(g.Nodes),
					Edges:     len(g.Edges),
					Timestamp: time.Now(),
				}
				if err := a.withHooks(cmd, wc, func() error { return loader.ExportFile(out, g) }); err != nil {
					return err
				}
				cmd.PrintErrf("  %s %s\n", StatusIcon(true), out)
				return nil
			}
			data, err := loader.Export(g)
			if err != nil {
				return err
			}
			return writeOut(cmd, "", data)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Write to this file instead of stdout")
	cmd.Flags().BoolVar(&schema, "schema", false, "Print the fixture JSON schema")
	return cmd
}

// writeOut writes data to path, or to stdout when path is empty.
func writeOut(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		w := cmd.OutOrStdout()
		if _, err := w.Write(data); err != nil {
			return err
		}
		if len(data) > 0 && data[len(data)-1] != '\n' {
			_, err := w.Write([]byte{'\n'})
			return err
		}
		return nil
	}
	return os.WriteFile(path, data, 0o644)
}
