package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/graphlens/pkg/engine"
	"github.com/vanderheijden86/graphlens/pkg/timeline"
)

func (a *app) timelineCmd() *cobra.Command {
	var (
		ff      filterFlags
		cadence string
	)

	cmd := &cobra.Command{
		Use:   "timeline [fixture]",
		Short: "List timeline points with visible counts",
		Long: "Print every stop on the timeline: the validity bounds of nodes and edges, the\n" +
			"month after each one ends and metadata key events, with what is visible at\n" +
			"each under the given filters. --cadence monthly stops on every month instead.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, g, err := a.load(cmd, args)
			if err != nil {
				return err
			}
			st, err := ff.state()
			if err != nil {
				return err
			}

			opts := engine.OptionsFromConfig(a.cfg)
			if cadence != "" {
				opts.Cadence = timeline.Cadence(cadence)
			}
			switch opts.Cadence {
			case "", timeline.CadenceBounds, timeline.CadenceMonthly:
			default:
				return fmt.Errorf("unknown cadence %q (want bounds or monthly)", cadence)
			}
			points := timeline.Points(g, timeline.PointOptions{
				State:   st,
				Options: opts.Filter,
				Cadence: opts.Cadence,
			})
			w := cmd.OutOrStdout()
			if len(points) == 0 {
				Subtle.Fprintln(w, "  no timeline points (nothing has a validity range or key event)")
				return nil
			}

			rows := make([][]string, len(points))
			for i, p := range points {
				event := ""
				if p.Event != "" {
					event = Warn.Sprint("★ ") + p.Event
				}
				rows[i] = []string{
					strconv.Itoa(i + 1),
					p.Time.Format("2006-01-02"),
					p.Label,
					strconv.Itoa(p.NodeCount),
					strconv.Itoa(p.EdgeCount),
					strconv.Itoa(p.ChangeCount),
					event,
				}
			}
			Table(w, []string{"#", "DATE", "POINT", "NODES", "EDGES", "CHANGES", "EVENT"}, rows)
			return nil
		},
	}

	ff.register(cmd, false)
	cmd.Flags().StringVar(&cadence, "cadence", "", "Timeline stops: bounds or monthly (default from config)")
	return cmd
}
