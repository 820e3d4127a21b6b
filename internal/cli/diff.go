package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/graphlens/internal/datasource"
)

// ErrGraphsDiffer is returned by diff --exit-code when the graphs differ.
var ErrGraphsDiffer = errors.New("graphs differ")

func (a *app) diffCmd() *cobra.Command {
	var (
		fields   []string
		maxDiffs int
		exitCode bool
	)

	cmd := &cobra.Command{
		Use:   "diff A B",
		Short: "Compare two graphs by node and edge ID",
		Long: "Report nodes and edges present in only one source and fields that changed on\n" +
			"shared ones. Either side may be a fixture or a SQLite snapshot.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := datasource.DefaultDiffOptions()
			if len(fields) > 0 {
				opts.CompareFields = fields
			}
			opts.MaxDifferences = maxDiffs

			d, err := datasource.CompareSources(cmd.Context(), args[0], args[1], opts, a.parseOptions(cmd))
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if !d.HasDifferences() {
				fmt.Fprintf(w, "  %s %s\n", StatusIcon(true), d.Summary())
				return nil
			}

			Brand.Fprintf(w, "%s %s ↔ %s\n", Mark, d.SourceA, d.SourceB)
			Subtle.Fprintf(w, "  %d/%d vs %d/%d nodes/edges\n", d.NodesA, d.EdgesA, d.NodesB, d.EdgesB)
			for _, id := range d.MissingNodesInA {
				Good.Fprintf(w, "  + node %s\n", id)
			}
			for _, id := range d.MissingNodesInB {
				Bad.Fprintf(w, "  - node %s\n", id)
			}
			for _, id := range d.MissingEdgesInA {
				Good.Fprintf(w, "  + edge %s\n", id)
			}
			for _, id := range d.MissingEdgesInB {
				Bad.Fprintf(w, "  - edge %s\n", id)
			}
			if len(d.Changed) > 0 {
				rows := make([][]string, len(d.Changed))
				for i, c := range d.Changed {
					rows[i] = []string{c.Kind, c.ID, c.Field, c.A, c.B}
				}
				fmt.Fprintln(w)
				Table(w, []string{"KIND", "ID", "FIELD", "A", "B"}, rows)
			}

			if exitCode {
				return ErrGraphsDiffer
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&fields, "fields", nil, "Fields compared on shared elements: type,label,temporal,endpoints,properties")
	cmd.Flags().IntVar(&maxDiffs, "max", 100, "Maximum differences listed per category (0 = unlimited)")
	cmd.Flags().BoolVar(&exitCode, "exit-code", false, "Fail when the graphs differ")
	return cmd
}
