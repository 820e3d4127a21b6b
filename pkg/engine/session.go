// Package engine ties the filter, layout, selection and timeline together
// into a Session: one explorer view over one graph, with a single owner for
// every goroutine it starts.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vanderheijden86/graphlens/pkg/debug"
	"github.com/vanderheijden86/graphlens/pkg/filter"
	"github.com/vanderheijden86/graphlens/pkg/layout"
	"github.com/vanderheijden86/graphlens/pkg/loader"
	"github.com/vanderheijden86/graphlens/pkg/metrics"
	"github.com/vanderheijden86/graphlens/pkg/model"
	"github.com/vanderheijden86/graphlens/pkg/render"
	"github.com/vanderheijden86/graphlens/pkg/selection"
	"github.com/vanderheijden86/graphlens/pkg/timeline"
	"github.com/vanderheijden86/graphlens/pkg/watcher"
)

// ErrClosed is returned by every mutating method after Close.
var ErrClosed = errors.New("engine: session closed")

// Frame is a consistent view of the session: the layout always covers
// exactly the nodes of View.
type Frame struct {
	Seq       uint64
	Cursor    time.Time
	Point     int // current timeline point, -1 before the first
	View      model.View
	Layout    layout.Snapshot
	Selection selection.State
	Emphasis  selection.Emphasis
	Filter    filter.State
}

// Scene converts the frame into something render can draw.
func (f Frame) Scene(title string, vp layout.Viewport) render.Scene {
	sc := render.NewScene(f.View, f.Layout, vp)
	sc.Title = title
	sc.Cursor = f.Cursor
	sc.Emphasis = f.Emphasis
	return sc
}

// Session owns the state of one explorer view. User input, timeline ticks
// and simulation ticks are serialised by mu: a cursor change is applied to
// the simulation before the simulation steps again.
type Session struct {
	id   string
	opts Options
	log  *zap.Logger

	mu          sync.Mutex
	original    *model.Graph
	graph       *model.Graph
	points      []timeline.Point
	state       filter.State
	view        model.View
	sel         selection.State
	snap        layout.Snapshot
	seq         uint64
	closed      bool
	refiltering bool
	dirty       bool

	applyFilter func(*model.Graph, filter.State, filter.Options) model.View

	sim         *layout.Simulation
	tl          *timeline.Controller
	unsubscribe func()
	watch       *watcher.Watcher
	cancel      context.CancelFunc
	loops       sync.WaitGroup
	closeOnce   sync.Once

	// sigMu guards sends on updates against the close in Close. It is
	// separate from mu because signal is called with mu held.
	sigMu     sync.Mutex
	sigClosed bool
	updates   chan struct{}
}

// Open validates g and starts a session over it: the cursor sits on the
// first timeline point, the simulation loop runs in force mode, and the
// fixture watcher runs when opts.WatchPath is set. Close releases all of it.
func Open(ctx context.Context, g *model.Graph, opts Options) (*Session, error) {
	return open(ctx, g, opts, filter.Apply)
}

func open(ctx context.Context, g *model.Graph, opts Options, apply func(*model.Graph, filter.State, filter.Options) model.View) (*Session, error) {
	if g == nil {
		return nil, errors.New("engine: nil graph")
	}
	if err := g.Validate().Err(); err != nil {
		return nil, fmt.Errorf("engine: invalid graph: %w", err)
	}
	opts = opts.withDefaults()

	id := uuid.NewString()
	s := &Session{
		id:          id,
		opts:        opts,
		log:         debug.With(zap.String("session", id)),
		original:    g,
		graph:       g,
		applyFilter: apply,
		sim:         layout.New(opts.Layout),
		updates:     make(chan struct{}, 1),
	}
	s.points = timeline.Points(g, s.pointOptions())
	s.tl = timeline.New(s.points,
		timeline.WithClock(opts.Clock),
		timeline.WithBaseInterval(opts.BaseInterval),
	)
	s.state.Cursor = s.tl.Cursor()
	s.unsubscribe = s.tl.Subscribe(s.onCursor)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if err := s.update(func() {}); err != nil {
		cancel()
		return nil, err
	}

	if opts.Mode == LayoutForce {
		s.loops.Add(1)
		go s.simLoop(runCtx)
	}

	if opts.WatchPath != "" {
		w, err := watcher.New(opts.WatchPath,
			watcher.WithDebounceDuration(opts.WatchDebounce),
			watcher.WithOnChange(func() {
				if err := s.ImportFile(opts.WatchPath); err != nil && !errors.Is(err, ErrClosed) {
					s.log.Warn("fixture reload rejected", zap.Error(err))
				}
			}),
			watcher.WithOnError(func(err error) {
				s.log.Warn("fixture watch", zap.Error(err))
			}),
		)
		if err == nil {
			err = w.Start(runCtx)
		}
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("engine: watch %s: %w", opts.WatchPath, err)
		}
		s.watch = w
	}

	s.log.Debug("session opened",
		zap.Int("nodes", len(g.Nodes)),
		zap.Int("edges", len(g.Edges)),
		zap.Int("points", len(s.points)),
		zap.String("mode", string(opts.Mode)))
	return s, nil
}

func (s *Session) pointOptions() timeline.PointOptions {
	return timeline.PointOptions{Options: s.opts.Filter, Cadence: s.opts.Cadence}
}

// ID returns the session's unique id.
func (s *Session) ID() string { return s.id }

// Updates receives after every change to the frame. A slow reader sees one
// pending signal for several changes; call Frame to read the latest state.
// The channel is closed by Close.
func (s *Session) Updates() <-chan struct{} { return s.updates }

func (s *Session) signal() {
	s.sigMu.Lock()
	defer s.sigMu.Unlock()
	if s.sigClosed {
		return
	}
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

// Frame returns the current state.
func (s *Session) Frame() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Frame{
		Seq:       s.seq,
		Cursor:    s.state.Cursor,
		Point:     timeline.CurrentPoint(s.points, s.state.Cursor),
		View:      s.view,
		Layout:    s.snap,
		Selection: s.sel,
		Emphasis:  selection.Derive(s.sel, s.view),
		Filter:    s.state,
	}
}

// Graph returns the full, unfiltered graph currently loaded.
func (s *Session) Graph() *model.Graph {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph
}

// Points returns the timeline points of the loaded graph.
func (s *Session) Points() []timeline.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]timeline.Point(nil), s.points...)
}

// Playing reports whether timeline playback is running.
func (s *Session) Playing() bool { return s.tl.Playing() }

// Speed returns the playback multiplier.
func (s *Session) Speed() float64 { return s.tl.Speed() }

// Connections lists the neighbours of the selected node.
func (s *Session) Connections() []selection.Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.sel.Active() {
		return nil
	}
	return selection.Connections(s.sel.Selected, s.view)
}

// update mutates the filter input and recomputes the view. A request that
// arrives while another goroutine is recomputing is folded into that run:
// the latest input wins and the stale view is never installed.
func (s *Session) update(mutate func()) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	mutate()
	s.dirty = true
	if s.refiltering {
		s.mu.Unlock()
		return nil
	}
	s.refiltering = true
	for s.dirty && !s.closed {
		s.dirty = false
		g, st := s.graph, s.state
		s.mu.Unlock()
		view := s.applyFilter(g, st, s.opts.Filter)
		s.mu.Lock()
		if s.dirty {
			metrics.RefiltersCoalesced.Inc()
			continue
		}
		s.install(view)
	}
	s.refiltering = false
	s.mu.Unlock()
	s.signal()
	return nil
}

// install makes view current. Callers hold mu.
func (s *Session) install(view model.View) {
	s.view = view
	if s.opts.Mode == LayoutPreset {
		s.snap = layout.Preset(view, s.opts.viewport())
	} else {
		s.sim.SetGraph(view)
		s.snap = s.sim.Snapshot()
	}
	s.sel = selection.Reconcile(s.sel, view)
	s.seq++
	metrics.VisibleNodes.Set(float64(len(view.Nodes)))
	metrics.VisibleEdges.Set(float64(len(view.Edges)))
}

// onCursor runs on the goroutine that moved the timeline cursor.
func (s *Session) onCursor(ev timeline.Event) {
	if err := s.update(func() { s.state.Cursor = ev.Cursor }); err != nil {
		return
	}
	s.log.Debug("cursor moved", zap.Time("cursor", ev.Cursor), zap.String("cause", string(ev.Cause)))
}

func (s *Session) simLoop(ctx context.Context) {
	defer s.loops.Done()
	ticker := time.NewTicker(s.opts.FrameInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		s.mu.Lock()
		if s.closed || s.refiltering || s.sim.Settled() {
			s.mu.Unlock()
			continue
		}
		s.snap = s.sim.Tick()
		s.seq++
		s.mu.Unlock()
		s.signal()
	}
}

// Click applies the click policy to id. An empty id is a click on the
// background and clears the selection.
func (s *Session) Click(id string) (selection.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return selection.State{}, ErrClosed
	}
	s.sel = selection.Toggle(s.sel, id, s.view, s.opts.Policy)
	s.seq++
	s.signal()
	return s.sel, nil
}

// Drag pins id under the pointer and keeps the simulation warm.
func (s *Session) Drag(id string, x, y float64) error {
	return s.withSim(func() error { return s.sim.Drag(id, x, y) })
}

// EndDrag releases a dragged node.
func (s *Session) EndDrag(id string) error {
	return s.withSim(func() error { return s.sim.EndDrag(id) })
}

func (s *Session) withSim(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.opts.Mode != LayoutForce {
		return nil
	}
	if err := fn(); err != nil {
		return err
	}
	s.snap = s.sim.Snapshot()
	s.seq++
	s.signal()
	return nil
}

// Seek moves the cursor to t.
func (s *Session) Seek(t time.Time) error {
	if s.isClosed() {
		return ErrClosed
	}
	s.tl.Seek(t)
	return nil
}

// Step advances the cursor to the next timeline point.
func (s *Session) Step() error {
	if s.isClosed() {
		return ErrClosed
	}
	return s.tl.Step()
}

// Play starts timeline playback.
func (s *Session) Play(speed float64) error {
	if s.isClosed() {
		return ErrClosed
	}
	return s.tl.Start(speed)
}

// Pause stops timeline playback.
func (s *Session) Pause() {
	s.tl.Stop()
}

// SetSpeed changes the playback multiplier.
func (s *Session) SetSpeed(speed float64) error {
	return s.tl.SetSpeed(speed)
}

// SetTypes restricts the visible node types; none means all.
func (s *Session) SetTypes(types ...string) error {
	return s.update(func() { s.state.EnabledTypes = set(types) })
}

// SetEdgeTypes restricts the visible edge types; none means all.
func (s *Session) SetEdgeTypes(types ...string) error {
	return s.update(func() { s.state.EnabledEdgeTypes = set(types) })
}

// Search sets the search term; empty clears it.
func (s *Session) Search(term string) error {
	return s.update(func() { s.state.SearchTerm = term })
}

// SetFilter replaces the type and search input. The cursor is owned by the
// timeline and is left alone.
func (s *Session) SetFilter(st filter.State) error {
	return s.update(func() {
		st.Cursor = s.state.Cursor
		s.state = st
	})
}

func set(items []string) map[string]bool {
	if len(items) == 0 {
		return nil
	}
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

// Import replaces the graph. An invalid graph is rejected and the current
// one stays loaded.
func (s *Session) Import(g *model.Graph) error {
	if g == nil {
		return errors.New("engine: nil graph")
	}
	if err := g.Validate().Err(); err != nil {
		return fmt.Errorf("engine: invalid graph: %w", err)
	}
	if s.isClosed() {
		return ErrClosed
	}
	points := timeline.Points(g, s.pointOptions())
	s.tl.SetPoints(points)
	return s.update(func() {
		s.graph = g
		s.points = points
		if s.state.Cursor.IsZero() {
			s.state.Cursor = s.tl.Cursor()
		}
	})
}

// ImportFile loads a fixture from disk and imports it.
func (s *Session) ImportFile(path string) error {
	g, err := loader.LoadFile(path, s.opts.Parse)
	if err != nil {
		return err
	}
	if err := s.Import(g); err != nil {
		return err
	}
	s.log.Info("fixture imported", zap.String("path", path), zap.Int("nodes", len(g.Nodes)))
	return nil
}

// Reset returns to the graph the session was opened with, with no filter,
// no selection, playback stopped and the cursor on the first point.
func (s *Session) Reset() error {
	if s.isClosed() {
		return ErrClosed
	}
	s.tl.Stop()
	s.mu.Lock()
	g := s.original
	s.mu.Unlock()

	points := timeline.Points(g, s.pointOptions())
	s.tl.SetPoints(points)
	var first time.Time
	if len(points) > 0 {
		first = points[0].Time
	}
	err := s.update(func() {
		s.graph = g
		s.points = points
		s.state = filter.State{Cursor: first}
		s.sel = selection.Clear()
	})
	if err != nil || first.IsZero() {
		return err
	}
	// Bring the controller's cursor along; the listener refilters at the
	// same instant.
	s.tl.Seek(first)
	return nil
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops playback, the simulation loop and the watcher, detaches from
// the timeline and closes the Updates channel. It waits for every goroutine
// the session started and is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.tl.Stop()
		s.tl.Wait()
		s.unsubscribe()
		if s.watch != nil {
			s.watch.Stop()
		}
		s.cancel()
		s.loops.Wait()

		s.sigMu.Lock()
		s.sigClosed = true
		close(s.updates)
		s.sigMu.Unlock()
		s.log.Debug("session closed")
	})
	return nil
}
