// Package hooks runs user commands around glens output. Hooks are
// configured in .glens/hooks.yaml and run before and after snapshot or
// export files are written.
package hooks

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Phase is the point in the write pipeline a hook runs at.
type Phase string

const (
	// PreWrite runs before any output is written. Failure cancels the write.
	PreWrite Phase = "pre-write"
	// PostWrite runs after every output is written. Failure is reported
	// but the files stay.
	PostWrite Phase = "post-write"
)

// OnError values.
const (
	OnErrorFail     = "fail"
	OnErrorContinue = "continue"
)

// DefaultTimeout bounds a hook that sets no timeout.
const DefaultTimeout = 30 * time.Second

// ConfigFile is the hooks file path relative to the project directory.
var ConfigFile = filepath.Join(".glens", "hooks.yaml")

// Hook is one configured command.
type Hook struct {
	Name    string            `yaml:"name" json:"name"`
	Command string            `yaml:"command" json:"command"` // run by the shell
	Timeout time.Duration     `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"` // values are ${VAR}-expanded
	OnError string            `yaml:"on_error,omitempty" json:"on_error,omitempty"`
}

// Config is the parsed hooks file.
type Config struct {
	Hooks ByPhase `yaml:"hooks" json:"hooks"`
}

// ByPhase groups hooks by phase, in run order.
type ByPhase struct {
	PreWrite  []Hook `yaml:"pre-write,omitempty" json:"pre-write,omitempty"`
	PostWrite []Hook `yaml:"post-write,omitempty" json:"post-write,omitempty"`
}

// WriteContext describes the write a hook runs around. It reaches the hook
// through GLENS_* environment variables.
type WriteContext struct {
	Command   string    // GLENS_COMMAND: snapshot or export
	Outputs   []string  // GLENS_OUTPUT (first) and GLENS_OUTPUTS (list-separated)
	Nodes     int       // GLENS_NODE_COUNT
	Edges     int       // GLENS_EDGE_COUNT
	Cursor    time.Time // GLENS_CURSOR, empty when temporal filtering is off
	Timestamp time.Time // GLENS_TIMESTAMP
}

// ToEnv renders the context as KEY=value pairs.
func (c WriteContext) ToEnv() []string {
	first := ""
	if len(c.Outputs) > 0 {
		first = c.Outputs[0]
	}
	cursor := ""
	if !c.Cursor.IsZero() {
		cursor = c.Cursor.UTC().Format(time.RFC3339)
	}
	return []string{
		"GLENS_COMMAND=" + c.Command,
		"GLENS_OUTPUT=" + first,
		"GLENS_OUTPUTS=" + strings.Join(c.Outputs, string(os.PathListSeparator)),
		"GLENS_NODE_COUNT=" + strconv.Itoa(c.Nodes),
		"GLENS_EDGE_COUNT=" + strconv.Itoa(c.Edges),
		"GLENS_CURSOR=" + cursor,
		"GLENS_TIMESTAMP=" + c.Timestamp.UTC().Format(time.RFC3339),
	}
}

// Loader reads the hooks file of a project directory.
type Loader struct {
	projectDir string
	config     *Config
	warnings   []string
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithProjectDir sets the directory holding .glens/ (default: working directory).
func WithProjectDir(dir string) LoaderOption {
	return func(l *Loader) {
		l.projectDir = dir
	}
}

// NewLoader creates a loader.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	if l.projectDir == "" {
		l.projectDir, _ = os.Getwd()
	}
	return l
}

// Path is the hooks file this loader reads.
func (l *Loader) Path() string {
	return filepath.Join(l.projectDir, ConfigFile)
}

// Load reads and normalises the hooks file. A missing file means no hooks.
func (l *Loader) Load() error {
	path := l.Path()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			l.config = &Config{}
			return nil
		}
		return fmt.Errorf("reading hooks config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	l.warnings = nil
	cfg.Hooks.PreWrite, l.warnings = normalize(cfg.Hooks.PreWrite, PreWrite, l.warnings)
	cfg.Hooks.PostWrite, l.warnings = normalize(cfg.Hooks.PostWrite, PostWrite, l.warnings)
	l.config = &cfg
	return nil
}

// normalize fills defaults and drops hooks without a command.
func normalize(hooks []Hook, phase Phase, warnings []string) ([]Hook, []string) {
	var out []Hook
	for i, h := range hooks {
		if strings.TrimSpace(h.Command) == "" {
			warnings = append(warnings, fmt.Sprintf("%s hook %d has empty command; skipping", phase, i+1))
			continue
		}
		if h.Timeout <= 0 {
			h.Timeout = DefaultTimeout
		}
		switch h.OnError {
		case "":
			// A failing pre-write hook cancels the write; post-write
			// failures only get reported.
			h.OnError = OnErrorContinue
			if phase == PreWrite {
				h.OnError = OnErrorFail
			}
		case OnErrorFail, OnErrorContinue:
		default:
			warnings = append(warnings, fmt.Sprintf("%s hook %d: unknown on_error %q; using %s", phase, i+1, h.OnError, OnErrorFail))
			h.OnError = OnErrorFail
		}
		if h.Name == "" {
			h.Name = fmt.Sprintf("%s-%d", phase, i+1)
		}
		out = append(out, h)
	}
	return out, warnings
}

// Config returns the loaded configuration, empty before Load.
func (l *Loader) Config() *Config {
	if l.config == nil {
		return &Config{}
	}
	return l.config
}

// HasHooks reports whether any phase has a hook.
func (l *Loader) HasHooks() bool {
	return l.config != nil && (len(l.config.Hooks.PreWrite) > 0 || len(l.config.Hooks.PostWrite) > 0)
}

// Hooks returns the hooks of one phase.
func (l *Loader) Hooks(phase Phase) []Hook {
	if l.config == nil {
		return nil
	}
	switch phase {
	case PreWrite:
		return l.config.Hooks.PreWrite
	case PostWrite:
		return l.config.Hooks.PostWrite
	default:
		return nil
	}
}

// Warnings returns problems found by the last Load.
func (l *Loader) Warnings() []string {
	return l.warnings
}

// UnmarshalYAML accepts timeouts as durations ("5s") or bare seconds ("30").
func (h *Hook) UnmarshalYAML(node *yaml.Node) error {
	type plain struct {
		Name    string            `yaml:"name"`
		Command string            `yaml:"command"`
		Timeout string            `yaml:"timeout,omitempty"`
		Env     map[string]string `yaml:"env,omitempty"`
		OnError string            `yaml:"on_error,omitempty"`
	}
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*h = Hook{Name: p.Name, Command: p.Command, Env: p.Env, OnError: p.OnError}

	if p.Timeout == "" {
		return nil
	}
	if d, err := time.ParseDuration(p.Timeout); err == nil {
		h.Timeout = d
		return nil
	}
	secs, err := strconv.ParseFloat(p.Timeout, 64)
	if err != nil {
		return fmt.Errorf("hook %q: invalid timeout %q", p.Name, p.Timeout)
	}
	h.Timeout = time.Duration(secs * float64(time.Second))
	return nil
}
