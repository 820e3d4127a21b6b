// Package layout assigns 2D positions to the nodes of a filtered view.
//
// Two modes exist. Simulation is a force-directed solver modelled on
// d3-force: velocities are nudged by repulsion, link springs, centering and
// collision, scaled by a cooling alpha. Preset places nodes at their
// caller-supplied positions and grids the rest.
package layout

import (
	"errors"
	"math"

	"github.com/vanderheijden86/graphlens/pkg/model"
)

var (
	// ErrAlreadyRunning is returned by Run when another Run loop owns the
	// simulation.
	ErrAlreadyRunning = errors.New("layout: simulation already running")
	// ErrUnknownNode is returned when pinning or dragging a node that is
	// not part of the current view.
	ErrUnknownNode = errors.New("layout: unknown node")
)

// Viewport is the drawing area the layout is centred in.
type Viewport struct {
	Width  float64
	Height float64
}

// Center returns the midpoint of the viewport.
func (v Viewport) Center() model.Position {
	return model.Position{X: v.Width / 2, Y: v.Height / 2}
}

// Config tunes the force simulation. The zero value of any field means
// "use the default".
type Config struct {
	Viewport Viewport

	// Charge is the many-body strength; negative values repel.
	Charge float64
	// Theta is the Barnes-Hut accuracy threshold.
	Theta float64
	// ExactRepulsion disables the Barnes-Hut approximation.
	ExactRepulsion bool

	// Link distance is LinkBase + min(LinkMaxExtra, maxDegree*LinkPerDegree).
	LinkBase      float64
	LinkPerDegree float64
	LinkMaxExtra  float64

	CollideRadius    float64
	PositionStrength float64

	AlphaMin      float64
	AlphaDecay    float64
	VelocityDecay float64
	// ReheatAlpha is the floor alpha is raised to when the view changes.
	ReheatAlpha float64
	// DragAlphaTarget keeps the simulation warm while a node is dragged.
	DragAlphaTarget float64

	Seed int64
}

// DefaultConfig returns the parameters the explorer pages were tuned with.
func DefaultConfig() Config {
	return Config{
		Viewport:         Viewport{Width: 960, Height: 640},
		Charge:           -400,
		Theta:            0.9,
		LinkBase:         100,
		LinkPerDegree:    5,
		LinkMaxExtra:     100,
		CollideRadius:    30,
		PositionStrength: 0.05,
		AlphaMin:         0.001,
		AlphaDecay:       1 - math.Pow(0.001, 1.0/300),
		VelocityDecay:    0.4,
		ReheatAlpha:      0.3,
		DragAlphaTarget:  0.3,
		Seed:             1,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Viewport.Width <= 0 {
		c.Viewport.Width = d.Viewport.Width
	}
	if c.Viewport.Height <= 0 {
		c.Viewport.Height = d.Viewport.Height
	}
	setDefault(&c.Charge, d.Charge)
	setDefault(&c.Theta, d.Theta)
	setDefault(&c.LinkBase, d.LinkBase)
	setDefault(&c.LinkPerDegree, d.LinkPerDegree)
	setDefault(&c.LinkMaxExtra, d.LinkMaxExtra)
	setDefault(&c.CollideRadius, d.CollideRadius)
	setDefault(&c.PositionStrength, d.PositionStrength)
	setDefault(&c.AlphaMin, d.AlphaMin)
	setDefault(&c.AlphaDecay, d.AlphaDecay)
	setDefault(&c.VelocityDecay, d.VelocityDecay)
	setDefault(&c.ReheatAlpha, d.ReheatAlpha)
	setDefault(&c.DragAlphaTarget, d.DragAlphaTarget)
	if c.Seed == 0 {
		c.Seed = d.Seed
	}
	return c
}

func setDefault(f *float64, def float64) {
	if *f == 0 {
		*f = def
	}
}

// LinkDistance returns the spring rest length for an edge whose busiest
// endpoint has the given degree.
func (c Config) LinkDistance(maxDegree int) float64 {
	return c.LinkBase + math.Min(c.LinkMaxExtra, float64(maxDegree)*c.LinkPerDegree)
}

// Placement is one node's position in a Snapshot.
type Placement struct {
	ID     string
	X, Y   float64
	Pinned bool
}

// Snapshot is the layout state after a tick, in view order.
type Snapshot struct {
	Placements []Placement
	Alpha      float64
	Tick       int
}

// Position looks up a node's placement.
func (s Snapshot) Position(id string) (model.Position, bool) {
	for _, p := range s.Placements {
		if p.ID == id {
			return model.Position{X: p.X, Y: p.Y}, true
		}
	}
	return model.Position{}, false
}

// Positions returns the placements keyed by node id.
func (s Snapshot) Positions() map[string]model.Position {
	out := make(map[string]model.Position, len(s.Placements))
	for _, p := range s.Placements {
		out[p.ID] = model.Position{X: p.X, Y: p.Y}
	}
	return out
}
