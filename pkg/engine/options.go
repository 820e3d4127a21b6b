package engine

import (
	"time"

	"github.com/vanderheijden86/graphlens/pkg/config"
	"github.com/vanderheijden86/graphlens/pkg/filter"
	"github.com/vanderheijden86/graphlens/pkg/layout"
	"github.com/vanderheijden86/graphlens/pkg/loader"
	"github.com/vanderheijden86/graphlens/pkg/selection"
	"github.com/vanderheijden86/graphlens/pkg/timeline"
)

// LayoutMode picks how node positions are produced.
type LayoutMode string

const (
	// LayoutForce runs the force simulation continuously.
	LayoutForce LayoutMode = "force"
	// LayoutPreset uses fixture positions and a grid for the rest.
	LayoutPreset LayoutMode = "preset"
)

// DefaultFrameInterval paces simulation ticks at roughly 30 per second.
const DefaultFrameInterval = time.Second / 30

// Options configures a Session. The zero value is usable.
type Options struct {
	Mode          LayoutMode
	Layout        layout.Config
	Filter        filter.Options
	Policy        selection.Policy
	FrameInterval time.Duration

	BaseInterval time.Duration
	Cadence      timeline.Cadence
	// Clock drives timeline playback; nil means the wall clock.
	Clock timeline.Clock

	// WatchPath enables hot reload of a fixture file when non-empty.
	WatchPath     string
	WatchDebounce time.Duration
	Parse         loader.ParseOptions
}

// OptionsFromConfig maps the user configuration onto session options.
// WatchPath is left for the caller, which knows the fixture path.
func OptionsFromConfig(cfg config.Config) Options {
	l := cfg.Layout
	opts := Options{
		Mode: LayoutMode(l.Mode),
		Layout: layout.Config{
			Viewport:         layout.Viewport{Width: l.Width, Height: l.Height},
			Charge:           l.Charge,
			Theta:            l.BarnesHutTheta,
			ExactRepulsion:   l.DisableBarnesHut,
			LinkBase:         l.LinkBase,
			LinkPerDegree:    l.LinkPerDegree,
			LinkMaxExtra:     l.LinkMaxExtra,
			CollideRadius:    l.CollideRadius,
			PositionStrength: l.PositionStrength,
			AlphaDecay:       l.AlphaDecay,
			Seed:             l.Seed,
		},
		Filter: filter.Options{
			SearchFields:    cfg.Filter.SearchFields,
			SearchEdgeTypes: cfg.Filter.SearchEdgeTypes,
			Match:           filter.MatchMode(cfg.Filter.Match),
		},
		Policy:        selection.ParsePolicy(cfg.Selection.SecondClick),
		BaseInterval:  cfg.Timeline.BaseInterval,
		Cadence:       timeline.Cadence(cfg.Timeline.Cadence),
		WatchDebounce: cfg.Watch.Debounce,
	}
	if l.FrameRate > 0 {
		opts.FrameInterval = time.Second / time.Duration(l.FrameRate)
	}
	return opts
}

func (o Options) withDefaults() Options {
	if o.Mode == "" {
		o.Mode = LayoutForce
	}
	if o.FrameInterval <= 0 {
		o.FrameInterval = DefaultFrameInterval
	}
	if o.BaseInterval <= 0 {
		o.BaseInterval = timeline.DefaultBaseInterval
	}
	if o.Clock == nil {
		o.Clock = timeline.RealClock{}
	}
	return o
}

// viewport returns the effective layout viewport.
func (o Options) viewport() layout.Viewport {
	vp := o.Layout.Viewport
	def := layout.DefaultConfig().Viewport
	if vp.Width <= 0 {
		vp.Width = def.Width
	}
	if vp.Height <= 0 {
		vp.Height = def.Height
	}
	return vp
}
