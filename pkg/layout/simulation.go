package layout

import (
	"context"
	"iter"
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/vanderheijden86/graphlens/pkg/debug"
	"github.com/vanderheijden86/graphlens/pkg/metrics"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

// body is the solver state of one node. It implements barneshut.Particle2.
type body struct {
	id     string
	pos    r2.Vec
	vel    r2.Vec
	fixed  *r2.Vec
	degree int
	links  int
}

func (b *body) Coord2() r2.Vec { return b.pos }
func (b *body) Mass() float64  { return 1 }

type spring struct {
	src, tgt *body
	distance float64
	strength float64
	bias     float64
}

// Simulation is a force-directed layout over the current view. All methods
// are safe for concurrent use; a Tick never observes a half-applied
// SetGraph.
type Simulation struct {
	mu          sync.Mutex
	cfg         Config
	rng         *rand.Rand
	bodies      []*body
	index       map[string]*body
	springs     []spring
	alpha       float64
	alphaTarget float64
	dragging    map[string]bool
	ticks       int
	spiral      int

	running atomic.Bool
}

// New creates an empty simulation. Call SetGraph to give it nodes.
func New(cfg Config) *Simulation {
	cfg = cfg.withDefaults()
	seed := uint64(cfg.Seed)
	return &Simulation{
		cfg:      cfg,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		index:    make(map[string]*body),
		dragging: make(map[string]bool),
		alpha:    1,
	}
}

// Config returns the effective configuration.
func (s *Simulation) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetGraph replaces the simulated node and edge set. Nodes present before
// and after keep their position and velocity. New nodes start at the mean
// of their already-placed neighbours, or on a spiral around the centre.
// Pins on removed nodes are dropped. Alpha is raised to at least
// ReheatAlpha.
func (s *Simulation) SetGraph(view model.View) {
	defer metrics.Timer(metrics.LayoutReseed)()

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.index
	bodies := make([]*body, 0, len(view.Nodes))
	index := make(map[string]*body, len(view.Nodes))
	for i := range view.Nodes {
		n := &view.Nodes[i]
		if _, dup := index[n.ID]; dup {
			continue
		}
		b, ok := prev[n.ID]
		if !ok {
			b = &body{id: n.ID, pos: r2.Vec{X: math.NaN(), Y: math.NaN()}}
			if n.Position != nil {
				b.pos = r2.Vec{X: n.Position.X, Y: n.Position.Y}
			}
		}
		b.degree, b.links = 0, 0
		bodies = append(bodies, b)
		index[n.ID] = b
	}
	for id := range s.dragging {
		if _, ok := index[id]; !ok {
			delete(s.dragging, id)
		}
	}
	if len(s.dragging) == 0 {
		s.alphaTarget = 0
	}

	// Degrees count distinct neighbours; link counts include parallel edges.
	g := simple.NewUndirectedGraph()
	ids := make(map[string]int64, len(bodies))
	for i, b := range bodies {
		ids[b.id] = int64(i)
		g.AddNode(simple.Node(int64(i)))
	}
	var edges []*model.Edge
	for i := range view.Edges {
		e := &view.Edges[i]
		src, ok1 := index[e.Source]
		tgt, ok2 := index[e.Target]
		if !ok1 || !ok2 || src == tgt {
			continue
		}
		src.links++
		tgt.links++
		g.SetEdge(g.NewEdge(simple.Node(ids[e.Source]), simple.Node(ids[e.Target])))
		edges = append(edges, e)
	}
	for _, b := range bodies {
		b.degree = g.From(ids[b.id]).Len()
	}

	springs := make([]spring, 0, len(edges))
	for _, e := range edges {
		src, tgt := index[e.Source], index[e.Target]
		springs = append(springs, spring{
			src:      src,
			tgt:      tgt,
			distance: s.cfg.LinkDistance(max(src.degree, tgt.degree)),
			strength: 1 / float64(min(src.links, tgt.links)),
			bias:     float64(src.links) / float64(src.links+tgt.links),
		})
	}

	s.bodies = bodies
	s.index = index
	s.springs = springs
	s.seedNew(g, ids)

	if s.alpha < s.cfg.ReheatAlpha {
		s.alpha = s.cfg.ReheatAlpha
		metrics.LayoutReheats.Inc()
	}
	debug.Log("layout: graph set nodes=%d springs=%d alpha=%.3f", len(bodies), len(springs), s.alpha)
}

// seedNew places bodies whose position is still unset. Callers hold mu.
func (s *Simulation) seedNew(g *simple.UndirectedGraph, ids map[string]int64) {
	center := s.center()
	for _, b := range s.bodies {
		if finite(b.pos) {
			continue
		}
		var sum r2.Vec
		placed := 0
		nbrs := g.From(ids[b.id])
		for nbrs.Next() {
			nb := s.bodies[nbrs.Node().ID()]
			if finite(nb.pos) {
				sum = r2.Add(sum, nb.pos)
				placed++
			}
		}
		if placed > 0 {
			b.pos = r2.Add(r2.Scale(1/float64(placed), sum), s.jitter(10))
			b.vel = r2.Vec{}
			continue
		}
		b.pos = r2.Add(center, phyllotaxis(s.spiral))
		b.vel = r2.Vec{}
		s.spiral++
	}
}

// phyllotaxis returns the i-th point of d3's initial sunflower spiral.
func phyllotaxis(i int) r2.Vec {
	const radius = 10
	angle := float64(i) * math.Pi * (3 - math.Sqrt(5))
	r := radius * math.Sqrt(0.5+float64(i))
	return r2.Vec{X: r * math.Cos(angle), Y: r * math.Sin(angle)}
}

func (s *Simulation) center() r2.Vec {
	c := s.cfg.Viewport.Center()
	return r2.Vec{X: c.X, Y: c.Y}
}

// jitter returns a small random offset in [-scale/2, scale/2).
func (s *Simulation) jitter(scale float64) r2.Vec {
	return r2.Vec{X: (s.rng.Float64() - 0.5) * scale, Y: (s.rng.Float64() - 0.5) * scale}
}

// Pin fixes a node at the given coordinates until Unpin.
func (s *Simulation) Pin(id string, x, y float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.index[id]
	if !ok {
		return ErrUnknownNode
	}
	b.fixed = &r2.Vec{X: x, Y: y}
	b.pos = *b.fixed
	b.vel = r2.Vec{}
	return nil
}

// Unpin releases a pinned node back to the solver.
func (s *Simulation) Unpin(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.index[id]
	if !ok {
		return ErrUnknownNode
	}
	b.fixed = nil
	return nil
}

// Drag pins a node under the pointer. The first Drag of a gesture keeps the
// simulation warm by raising alphaTarget.
func (s *Simulation) Drag(id string, x, y float64) error {
	if err := s.Pin(id, x, y); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dragging[id] {
		s.dragging[id] = true
		s.alphaTarget = s.cfg.DragAlphaTarget
		metrics.LayoutReheats.Inc()
	}
	return nil
}

// EndDrag finishes a drag gesture: the node is released and the simulation
// cools once no drag is in progress.
func (s *Simulation) EndDrag(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.index[id]
	if !ok {
		return ErrUnknownNode
	}
	b.fixed = nil
	delete(s.dragging, id)
	if len(s.dragging) == 0 {
		s.alphaTarget = 0
	}
	return nil
}

// Reheat raises alpha so the layout moves again.
func (s *Simulation) Reheat(alpha float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if alpha > s.alpha {
		s.alpha = alpha
		metrics.LayoutReheats.Inc()
	}
}

// Alpha returns the current cooling parameter.
func (s *Simulation) Alpha() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.alpha
}

// Settled reports whether the simulation has cooled below AlphaMin and
// nothing keeps it warm.
func (s *Simulation) Settled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settled()
}

func (s *Simulation) settled() bool {
	return s.alpha < s.cfg.AlphaMin && s.alphaTarget < s.cfg.AlphaMin
}

// Snapshot returns the current positions without stepping.
func (s *Simulation) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Simulation) snapshot() Snapshot {
	out := Snapshot{
		Placements: make([]Placement, len(s.bodies)),
		Alpha:      s.alpha,
		Tick:       s.ticks,
	}
	for i, b := range s.bodies {
		out.Placements[i] = Placement{ID: b.id, X: b.pos.X, Y: b.pos.Y, Pinned: b.fixed != nil}
	}
	return out
}

// Tick advances the solver by one step.
func (s *Simulation) Tick() Snapshot {
	defer metrics.Timer(metrics.LayoutTick)()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.alpha += (s.alphaTarget - s.alpha) * s.cfg.AlphaDecay
	s.ticks++

	s.separateCoincident()
	s.applyLinks()
	s.applyManyBody()
	s.applyPosition()
	s.applyCollide()

	decay := 1 - s.cfg.VelocityDecay
	for _, b := range s.bodies {
		if b.fixed != nil {
			b.pos, b.vel = *b.fixed, r2.Vec{}
			continue
		}
		b.vel = r2.Scale(decay, b.vel)
		b.pos = r2.Add(b.pos, b.vel)
	}
	s.applyCenter()
	s.resetNonFinite()

	return s.snapshot()
}

// Frames yields one Snapshot per solver step. The sequence ends when the
// consumer stops ranging or ctx is cancelled.
func (s *Simulation) Frames(ctx context.Context) iter.Seq[Snapshot] {
	return func(yield func(Snapshot) bool) {
		for ctx.Err() == nil {
			if !yield(s.Tick()) {
				return
			}
		}
	}
}

// Run ticks the simulation every interval and hands each frame to fn until
// ctx is cancelled. Settled simulations are not stepped. Only one Run may be
// active per Simulation.
func (s *Simulation) Run(ctx context.Context, interval time.Duration, fn func(Snapshot)) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if s.Settled() {
				continue
			}
			frame := s.Tick()
			if fn != nil {
				fn(frame)
			}
		}
	}
}

// Running reports whether a Run loop is active.
func (s *Simulation) Running() bool {
	return s.running.Load()
}

func finite(v r2.Vec) bool {
	return !math.IsNaN(v.X) && !math.IsNaN(v.Y) && !math.IsInf(v.X, 0) && !math.IsInf(v.Y, 0)
}
