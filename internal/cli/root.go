// Package cli implements the glens command line.
package cli

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vanderheijden86/graphlens/internal/datasource"
	"github.com/vanderheijden86/graphlens/pkg/config"
	"github.com/vanderheijden86/graphlens/pkg/debug"
	"github.com/vanderheijden86/graphlens/pkg/loader"
	"github.com/vanderheijden86/graphlens/pkg/metrics"
	"github.com/vanderheijden86/graphlens/pkg/model"
	"github.com/vanderheijden86/graphlens/pkg/version"
)

// MetricsEnvVar names a file that receives the Prometheus textfile dump
// when a command finishes.
const MetricsEnvVar = "GLENS_METRICS_FILE"

// app carries state shared by every subcommand. A fresh one is built per
// root command so tests do not leak flags into each other.
type app struct {
	configPath string
	debug      bool
	logPath    string
	noHooks    bool

	cfg config.Config
}

// NewRootCmd builds the glens command tree.
func NewRootCmd() *cobra.Command {
	a := &app{cfg: config.DefaultConfig()}

	root := &cobra.Command{
		Use:   "glens",
		Short: "glens — explore how a graph changes over time",
		Long: Brand.Sprint(Mark+" glens") + " — explore how a graph changes over time\n" +
			Subtle.Sprint("Filter by date, type and search, highlight neighbourhoods, render snapshots"),
		Version:            version.Version,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}
	root.SetVersionTemplate("glens {{ .Version }}\n")

	f := root.PersistentFlags()
	f.StringVar(&a.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/glens/config.yaml)")
	f.BoolVar(&a.debug, "debug", false, "Log debug output to stderr")
	f.StringVar(&a.logPath, "log", "", "Write JSON logs to this file (rotated)")
	f.BoolVar(&a.noHooks, "no-hooks", false, "Skip commands from .glens/hooks.yaml")

	root.AddCommand(
		a.viewCmd(),
		a.snapshotCmd(),
		a.exportCmd(),
		a.timelineCmd(),
		a.validateCmd(),
		a.diffCmd(),
	)
	return root
}

// Execute runs the root command against os.Args.
func Execute() error {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		Bad.Fprintf(root.ErrOrStderr(), "glens: %v\n", err)
		return err
	}
	return nil
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFrom(a.configPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if a.debug {
		debug.SetEnabled(true)
	}
	metrics.ResetAll()
	logPath := a.logPath
	if logPath == "" {
		logPath = a.cfg.LogPath
	}
	if logPath != "" {
		debug.Configure(debug.Options{LogPath: logPath})
	}
	debug.Named("cli").Debug("command start",
		zap.String("command", cmd.CommandPath()),
		zap.String("version", version.Version),
	)
	return nil
}

func (a *app) teardown(cmd *cobra.Command, _ []string) error {
	defer debug.Sync()
	if a.debug {
		printTimings(cmd)
	}
	if path := os.Getenv(MetricsEnvVar); path != "" {
		if err := metrics.WriteTextfile(path); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		debug.Log("cli: metrics written to %s", path)
	}
	return nil
}

// printTimings writes the operations timed during the command to stderr
// and to the debug log.
func printTimings(cmd *cobra.Command) {
	stats := metrics.Summary()
	if len(stats) == 0 {
		return
	}
	log := debug.Named("timing")
	rows := make([][]string, len(stats))
	for i, st := range stats {
		rows[i] = []string{
			st.Name,
			strconv.FormatInt(st.Count, 10),
			st.Avg.Round(time.Microsecond).String(),
			st.Max.Round(time.Microsecond).String(),
			st.Total.Round(time.Microsecond).String(),
		}
		log.Debug("op",
			zap.String("op", st.Name),
			zap.Int64("count", st.Count),
			zap.Duration("avg", st.Avg),
			zap.Duration("max", st.Max),
			zap.Duration("total", st.Total),
		)
	}
	w := cmd.ErrOrStderr()
	Brand.Fprintf(w, "%s timings\n", Mark)
	Table(w, []string{"OP", "COUNT", "AVG", "MAX", "TOTAL"}, rows)
}

// resolveFixture returns the fixture named on the command line, or the one
// discovered in the fixture directory.
func resolveFixture(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	dir, err := loader.GetFixtureDir("")
	if err != nil {
		return "", err
	}
	path, err := loader.FindFixture(dir)
	if err == nil {
		return path, nil
	}
	// A directory holding only snapshots still opens the newest one.
	if sources, derr := datasource.DiscoverSources(dir); derr == nil && len(sources) > 0 {
		return sources[0].Path, nil
	}
	return "", fmt.Errorf("%w (pass a fixture path or set %s)", err, loader.FixtureDirEnvVar)
}

// parseOptions prints import warnings to stderr.
func (a *app) parseOptions(cmd *cobra.Command) loader.ParseOptions {
	w := cmd.ErrOrStderr()
	return loader.ParseOptions{
		WarningHandler: func(msg string) {
			fmt.Fprintf(w, "  %s %s\n", WarnIcon(), Warn.Sprint(msg))
		},
	}
}

func (a *app) load(cmd *cobra.Command, args []string) (string, *model.Graph, error) {
	path, err := resolveFixture(args)
	if err != nil {
		return "", nil, err
	}
	start := time.Now()
	g, err := datasource.Load(cmd.Context(), path, a.parseOptions(cmd))
	if err != nil {
		return path, nil, err
	}
	debug.Named("cli").Debug("fixture loaded",
		zap.String("path", path),
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("edges", len(g.Edges)),
		zap.Duration("took", time.Since(start)),
	)
	return path, g, nil
}

// parseInstant accepts the date forms users type on the command line.
func parseInstant(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.DateOnly, "2006-01", "Jan 2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (want 2006-01-02, 2006-01, Jan 2006 or RFC 3339)", s)
}
