// Package config handles loading and saving glens configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/glens/config.yaml (or config.toml)
//   - State:   ~/.local/state/glens/ (log files, metrics textfiles)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// TimelineConfig controls playback cadence.
type TimelineConfig struct {
	BaseInterval time.Duration `yaml:"base_interval,omitempty" toml:"base_interval,omitempty"` // Interval at 1x speed
	DefaultSpeed float64       `yaml:"default_speed,omitempty" toml:"default_speed,omitempty"`
	Cadence      string        `yaml:"cadence,omitempty" toml:"cadence,omitempty"` // bounds, monthly
}

// LayoutConfig holds force-simulation parameters. Zero values fall back to
// the layout package defaults.
type LayoutConfig struct {
	Mode             string  `yaml:"mode,omitempty" toml:"mode,omitempty"` // force, preset
	Width            float64 `yaml:"width,omitempty" toml:"width,omitempty"`
	Height           float64 `yaml:"height,omitempty" toml:"height,omitempty"`
	Charge           float64 `yaml:"charge,omitempty" toml:"charge,omitempty"` // Negative repels
	LinkBase         float64 `yaml:"link_base,omitempty" toml:"link_base,omitempty"`
	LinkPerDegree    float64 `yaml:"link_per_degree,omitempty" toml:"link_per_degree,omitempty"`
	LinkMaxExtra     float64 `yaml:"link_max_extra,omitempty" toml:"link_max_extra,omitempty"`
	CollideRadius    float64 `yaml:"collide_radius,omitempty" toml:"collide_radius,omitempty"`
	PositionStrength float64 `yaml:"position_strength,omitempty" toml:"position_strength,omitempty"`
	AlphaDecay       float64 `yaml:"alpha_decay,omitempty" toml:"alpha_decay,omitempty"`
	Seed             int64   `yaml:"seed,omitempty" toml:"seed,omitempty"`
	FrameRate        int     `yaml:"frame_rate,omitempty" toml:"frame_rate,omitempty"`
	BarnesHutTheta   float64 `yaml:"barnes_hut_theta,omitempty" toml:"barnes_hut_theta,omitempty"`
	DisableBarnesHut bool    `yaml:"disable_barnes_hut,omitempty" toml:"disable_barnes_hut,omitempty"`
}

// FilterConfig controls search matching.
type FilterConfig struct {
	SearchFields    []string `yaml:"search_fields,omitempty" toml:"search_fields,omitempty"`
	SearchEdgeTypes bool     `yaml:"search_edge_types,omitempty" toml:"search_edge_types,omitempty"`
	Match           string   `yaml:"match,omitempty" toml:"match,omitempty"` // substring, fuzzy
}

// SelectionConfig controls click behaviour.
type SelectionConfig struct {
	SecondClick string `yaml:"second_click,omitempty" toml:"second_click,omitempty"` // clear, keep
}

// WatchConfig controls fixture hot reload.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	Debounce time.Duration `yaml:"debounce,omitempty" toml:"debounce,omitempty"`
}

// Config is the top-level configuration for glens.
type Config struct {
	Timeline  TimelineConfig  `yaml:"timeline,omitempty" toml:"timeline,omitempty"`
	Layout    LayoutConfig    `yaml:"layout,omitempty" toml:"layout,omitempty"`
	Filter    FilterConfig    `yaml:"filter,omitempty" toml:"filter,omitempty"`
	Selection SelectionConfig `yaml:"selection,omitempty" toml:"selection,omitempty"`
	Watch     WatchConfig     `yaml:"watch,omitempty" toml:"watch,omitempty"`
	LogPath   string          `yaml:"log_path,omitempty" toml:"log_path,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeline: TimelineConfig{
			BaseInterval: 2 * time.Second,
			DefaultSpeed: 1,
			Cadence:      "bounds",
		},
		Layout: LayoutConfig{
			Mode:      "force",
			Width:     960,
			Height:    640,
			FrameRate: 30,
		},
		Filter: FilterConfig{
			Match: "substring",
		},
		Selection: SelectionConfig{
			SecondClick: "clear",
		},
		Watch: WatchConfig{
			Debounce: 200 * time.Millisecond,
		},
	}
}

// ConfigDir returns the XDG config directory for glens.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "glens")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "glens")
}

// StateDir returns the XDG state directory for glens.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "glens")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", "glens")
}

// ConfigPath returns the config file path, preferring config.yaml and
// falling back to config.toml when only that exists.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	yamlPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(yamlPath); err != nil {
		tomlPath := filepath.Join(dir, "config.toml")
		if _, err := os.Stat(tomlPath); err == nil {
			return tomlPath
		}
	}
	return yamlPath
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path. The format follows the
// extension (.toml, otherwise YAML). Returns DefaultConfig if the file
// doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config: %w", err)
	}

	cfg.LogPath = expandHome(cfg.LogPath)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects values no component can honour.
func (c Config) Validate() error {
	switch c.Layout.Mode {
	case "", "force", "preset":
	default:
		return fmt.Errorf("layout.mode %q: want force or preset", c.Layout.Mode)
	}
	switch c.Filter.Match {
	case "", "substring", "fuzzy":
	default:
		return fmt.Errorf("filter.match %q: want substring or fuzzy", c.Filter.Match)
	}
	switch c.Selection.SecondClick {
	case "", "clear", "keep":
	default:
		return fmt.Errorf("selection.second_click %q: want clear or keep", c.Selection.SecondClick)
	}
	switch c.Timeline.Cadence {
	case "", "bounds", "monthly":
	default:
		return fmt.Errorf("timeline.cadence %q: want bounds or monthly", c.Timeline.Cadence)
	}
	if c.Timeline.BaseInterval < 0 {
		return fmt.Errorf("timeline.base_interval must not be negative")
	}
	if c.Timeline.DefaultSpeed < 0 {
		return fmt.Errorf("timeline.default_speed must not be negative")
	}
	return nil
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path, as TOML when the path ends
// in .toml and YAML otherwise.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	var data []byte
	var err error
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		var sb strings.Builder
		err = toml.NewEncoder(&sb).Encode(cfg)
		data = []byte(sb.String())
	} else {
		data, err = yaml.Marshal(cfg)
	}
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
