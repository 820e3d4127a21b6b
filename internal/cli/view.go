package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vanderheijden86/graphlens/pkg/engine"
	"github.com/vanderheijden86/graphlens/pkg/model"
	"github.com/vanderheijden86/graphlens/pkg/ui"
)

// Plain output size when stdout is not a terminal.
const (
	plainWidth  = 100
	plainHeight = 30
)

func (a *app) viewCmd() *cobra.Command {
	var (
		watch      bool
		pickTypes  bool
		play       bool
		speed      float64
		layoutMode string
	)

	cmd := &cobra.Command{
		Use:   "view [fixture]",
		Short: "Explore a graph interactively",
		Long: "Open the terminal explorer on a fixture. Without an argument the fixture is\n" +
			"discovered in $GLENS_FIXTURES or the working directory.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, g, err := a.load(cmd, args)
			if err != nil {
				return err
			}

			opts := engine.OptionsFromConfig(a.cfg)
			opts.Parse = a.parseOptions(cmd)
			if layoutMode != "" {
				opts.Mode = engine.LayoutMode(layoutMode)
			}
			if watch || a.cfg.Watch.Enabled {
				opts.WatchPath = path
			}
			if speed <= 0 {
				speed = a.cfg.Timeline.DefaultSpeed
			}

			s, err := engine.Open(cmd.Context(), g, opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if pickTypes {
				types, err := pickNodeTypes(g)
				if err != nil {
					return err
				}
				if err := s.SetTypes(types...); err != nil {
					return err
				}
			}
			if play {
				if err := s.Play(speed); err != nil {
					Warn.Fprintf(cmd.ErrOrStderr(), "  %s %v\n", WarnIcon(), err)
				}
			}

			title := g.Metadata.Description
			if title == "" {
				title = filepath.Base(path)
			}

			out := cmd.OutOrStdout()
			if !isTerminal(out) {
				return printPlain(out, s, title)
			}

			m := ui.NewModel(s, ui.WithTitle(title), ui.WithSpeed(speed))
			if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
				return fmt.Errorf("run explorer: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reload the fixture when it changes on disk")
	cmd.Flags().BoolVar(&pickTypes, "pick-types", false, "Choose the visible node types before opening")
	cmd.Flags().BoolVar(&play, "play", false, "Start timeline playback immediately")
	cmd.Flags().Float64Var(&speed, "speed", 0, "Playback speed multiplier (default from config)")
	cmd.Flags().StringVar(&layoutMode, "layout", "", "Layout mode: force or preset (default from config)")
	return cmd
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// printPlain writes one frame of the explorer without styling, for pipes
// and CI logs.
func printPlain(w io.Writer, s *engine.Session, title string) error {
	f := s.Frame()
	canvas := ui.Canvas{Width: plainWidth, Height: plainHeight, Theme: ui.PlainTheme()}
	bar := ui.TimelineBar{
		Points:  s.Points(),
		Current: f.Point,
		Playing: s.Playing(),
		Speed:   s.Speed(),
		Width:   plainWidth,
		Theme:   ui.PlainTheme(),
	}
	_, err := fmt.Fprintf(w, "%s %s\n%s\n%s\n", Mark, title, canvas.Plain(f), bar.Status())
	return err
}

// pickNodeTypes asks which node types to show. Every type starts selected;
// an empty answer shows them all.
func pickNodeTypes(g *model.Graph) ([]string, error) {
	types := g.NodeTypes()
	if len(types) == 0 {
		return nil, nil
	}
	options := make([]huh.Option[string], len(types))
	for i, t := range types {
		options[i] = huh.NewOption(fmt.Sprintf("%s %s", ui.TypeIcon(t), t), t).Selected(true)
	}

	var selected []string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Node types").
				Description("space toggles, enter confirms").
				Options(options...).
				Value(&selected),
		),
	).WithTheme(huh.ThemeDracula())
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, errors.New("type selection cancelled")
		}
		return nil, err
	}
	return selected, nil
}
