package cli

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vanderheijden86/graphlens/pkg/engine"
	"github.com/vanderheijden86/graphlens/pkg/filter"
	"github.com/vanderheijden86/graphlens/pkg/hooks"
	"github.com/vanderheijden86/graphlens/pkg/layout"
	"github.com/vanderheijden86/graphlens/pkg/model"
	"github.com/vanderheijden86/graphlens/pkg/render"
	"github.com/vanderheijden86/graphlens/pkg/selection"
)

// DefaultSnapshotTicks bounds the solver steps run before a snapshot is
// drawn when the layout has not settled earlier.
const DefaultSnapshotTicks = 300

type snapshotOptions struct {
	filterFlags
	outputs    []string
	selectID   string
	title      string
	width      float64
	height     float64
	ticks      int
	layoutMode string
}

func (a *app) snapshotCmd() *cobra.Command {
	var o snapshotOptions

	cmd := &cobra.Command{
		Use:   "snapshot [fixture] --out FILE...",
		Short: "Render the filtered graph to SVG, PNG or SQLite",
		Long: "Filter the graph, settle the force layout and write one frame. The format\n" +
			"follows each --out extension: .svg, .png, .sqlite/.db.",
		Example: "  glens snapshot graph.json --at 2023-06 --select acme --out acme.svg --out acme.png",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(o.outputs) == 0 {
				return errors.New("at least one --out is required")
			}
			for _, p := range o.outputs {
				if _, err := render.FormatFor(p); err != nil {
					return err
				}
			}
			path, g, err := a.load(cmd, args)
			if err != nil {
				return err
			}
			if o.title == "" {
				o.title = g.Metadata.Description
			}
			if o.title == "" {
				o.title = filepath.Base(path)
			}

			sc, err := a.buildScene(cmd.Context(), g, o)
			if err != nil {
				return err
			}
			wc := hooks.WriteContext{
				Outputs:   o.outputs,
				Nodes:     len(sc.Nodes),
				Edges:     len(sc.Edges),
				Cursor:    sc.Cursor,
				Timestamp: time.Now(),
			}
			if err := a.withHooks(cmd, wc, func() error {
				return writeScene(cmd.Context(), g, sc, o.outputs)
			}); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, p := range o.outputs {
				fmt.Fprintf(w, "  %s %s\n", StatusIcon(true), p)
			}
			Subtle.Fprintf(w, "  %d nodes · %d edges\n", len(sc.Nodes), len(sc.Edges))
			return nil
		},
	}

	o.filterFlags.register(cmd, true)
	fs := cmd.Flags()
	fs.StringArrayVarP(&o.outputs, "out", "o", nil, "Output file; repeat for several formats")
	fs.StringVar(&o.selectID, "select", "", "Highlight this node and its neighbours")
	fs.StringVar(&o.title, "title", "", "Title drawn in the header (default: metadata description)")
	fs.Float64Var(&o.width, "width", 0, "Canvas width in pixels (default from config)")
	fs.Float64Var(&o.height, "height", 0, "Canvas height in pixels (default from config)")
	fs.IntVar(&o.ticks, "ticks", DefaultSnapshotTicks, "Maximum layout steps before drawing")
	fs.StringVar(&o.layoutMode, "layout", "", "Layout mode: force or preset (default from config)")
	return cmd
}

func (a *app) buildScene(ctx context.Context, g *model.Graph, o snapshotOptions) (render.Scene, error) {
	st, err := o.filterFlags.state()
	if err != nil {
		return render.Scene{}, err
	}

	opts := engine.OptionsFromConfig(a.cfg)
	if o.width > 0 {
		opts.Layout.Viewport.Width = o.width
	}
	if o.height > 0 {
		opts.Layout.Viewport.Height = o.height
	}
	mode := opts.Mode
	if o.layoutMode != "" {
		mode = engine.LayoutMode(o.layoutMode)
	}

	view := filter.Apply(g, st, opts.Filter)

	var (
		snap layout.Snapshot
		vp   layout.Viewport
	)
	switch mode {
	case engine.LayoutPreset:
		vp = opts.Layout.Viewport
		if vp.Width <= 0 || vp.Height <= 0 {
			vp = layout.DefaultConfig().Viewport
		}
		snap = layout.Preset(view, vp)
	case engine.LayoutForce, "":
		sim := layout.New(opts.Layout)
		sim.SetGraph(view)
		vp = sim.Config().Viewport
		snap = settle(ctx, sim, o.ticks)
	default:
		return render.Scene{}, fmt.Errorf("unknown layout mode %q (want force or preset)", mode)
	}

	sel := selection.Clear()
	if o.selectID != "" {
		if sel = selection.Select(o.selectID, view); !sel.Active() {
			return render.Scene{}, fmt.Errorf("node %q is not visible in this view", o.selectID)
		}
	}

	sc := render.NewScene(view, snap, vp)
	sc.Title = o.title
	sc.Cursor = st.Cursor
	sc.Emphasis = selection.Derive(sel, view)
	return sc, nil
}

// settle steps sim until it settles or ticks run out.
func settle(ctx context.Context, sim *layout.Simulation, ticks int) layout.Snapshot {
	snap := sim.Snapshot()
	if ticks <= 0 {
		return snap
	}
	n := 0
	for f := range sim.Frames(ctx) {
		snap = f
		n++
		if n >= ticks || sim.Settled() {
			break
		}
	}
	return snap
}

// writeScene writes image formats through render.SaveAll and SQLite
// snapshots alongside them.
func writeScene(ctx context.Context, g *model.Graph, sc render.Scene, outputs []string) error {
	var images, databases []string
	for _, p := range outputs {
		if f, _ := render.FormatFor(p); f == render.FormatSQLite {
			databases = append(databases, p)
		} else {
			images = append(images, p)
		}
	}

	eg, ctx := errgroup.WithContext(ctx)
	if len(images) > 0 {
		eg.Go(func() error { return render.SaveAll(ctx, sc, images...) })
	}
	for _, p := range databases {
		eg.Go(func() error {
			if err := render.SaveSQLite(ctx, p, g, sc); err != nil {
				return fmt.Errorf("%s: %w", p, err)
			}
			return nil
		})
	}
	return eg.Wait()
}
