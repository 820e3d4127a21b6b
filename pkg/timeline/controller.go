// Package timeline drives the time cursor through an ordered list of
// points, either on demand (Step, Seek) or on a playback ticker.
package timeline

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vanderheijden86/graphlens/pkg/debug"
	"github.com/vanderheijden86/graphlens/pkg/metrics"
)

// DefaultBaseInterval is the playback interval at speed 1.
const DefaultBaseInterval = 2 * time.Second

var (
	// ErrNoPoints is returned when playing or stepping an empty timeline.
	ErrNoPoints = errors.New("timeline: no points")
	// ErrInvalidSpeed is returned for a speed that is not positive.
	ErrInvalidSpeed = errors.New("timeline: speed must be positive")
)

// Cause says what moved the cursor.
type Cause string

const (
	CauseTick Cause = "tick"
	CauseStep Cause = "step"
	CauseSeek Cause = "seek"
)

// Event is delivered to listeners on every cursor change.
type Event struct {
	Cursor time.Time
	// Index of the point at the cursor, or -1 when the cursor sits between
	// or outside points.
	Index int
	Cause Cause
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithBaseInterval sets the playback interval at speed 1.
func WithBaseInterval(d time.Duration) Option {
	return func(ctl *Controller) {
		if d > 0 {
			ctl.base = d
		}
	}
}

// Controller owns the cursor. Listeners run synchronously, in cursor
// order, on the goroutine that caused the change. They must not call back
// into the Controller.
type Controller struct {
	mu      sync.Mutex
	points  []Point
	cursor  time.Time
	speed   float64
	base    time.Duration
	clock   Clock
	playing bool
	gen     int
	stop    chan struct{}
	loops   sync.WaitGroup

	notifyMu  sync.Mutex
	listeners map[int]func(Event)
	nextID    int
}

// New returns a stopped controller with the cursor on the first point.
// Points are sorted by time.
func New(points []Point, opts ...Option) *Controller {
	c := &Controller{
		speed:     1,
		base:      DefaultBaseInterval,
		clock:     RealClock{},
		listeners: make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.points = sortPoints(points)
	if len(c.points) > 0 {
		c.cursor = c.points[0].Time
	}
	return c
}

func sortPoints(points []Point) []Point {
	out := append([]Point(nil), points...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.Before(out[j].Time) })
	return out
}

// Subscribe registers fn for cursor changes and returns its unsubscribe
// function.
func (c *Controller) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	var once sync.Once
	return func() {
		once.Do(func() {
			c.notifyMu.Lock()
			defer c.notifyMu.Unlock()
			delete(c.listeners, id)
		})
	}
}

// Listeners returns the number of registered listeners.
func (c *Controller) Listeners() int {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	return len(c.listeners)
}

// Points returns a copy of the ordered points.
func (c *Controller) Points() []Point {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Point(nil), c.points...)
}

// SetPoints replaces the point list. The cursor is kept; playback
// continues over the new points.
func (c *Controller) SetPoints(points []Point) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.points = sortPoints(points)
	if c.cursor.IsZero() && len(c.points) > 0 {
		c.cursor = c.points[0].Time
	}
}

// Cursor returns the current instant.
func (c *Controller) Cursor() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// Playing reports whether the playback loop is active.
func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Speed returns the playback multiplier.
func (c *Controller) Speed() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.speed
}

// Interval returns the tick interval at the current speed.
func (c *Controller) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval()
}

func (c *Controller) interval() time.Duration {
	return time.Duration(float64(c.base) / c.speed)
}

// Range returns the first and last point times.
func (c *Controller) Range() (first, last time.Time, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.points) == 0 {
		return time.Time{}, time.Time{}, false
	}
	return c.points[0].Time, c.points[len(c.points)-1].Time, true
}

// Start begins playback at speed. Starting while playing only changes the
// speed.
func (c *Controller) Start(speed float64) error {
	if speed <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, speed)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.points) == 0 {
		return ErrNoPoints
	}
	c.speed = speed
	if c.playing {
		return nil
	}
	c.playing = true
	c.gen++
	c.stop = make(chan struct{})
	c.loops.Add(1)
	go c.loop(c.gen, c.clock.NewTicker(c.interval()), c.stop)
	debug.Log("timeline: playing speed=%.2f interval=%s", speed, c.interval())
	return nil
}

// Stop halts playback. It does not wait for the loop to exit; use Wait.
// Stop on a stopped controller is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.playing {
		return
	}
	c.playing = false
	c.gen++
	close(c.stop)
	debug.Log("timeline: stopped at %s", c.cursor.Format(time.RFC3339))
}

// Wait blocks until every playback loop has exited.
func (c *Controller) Wait() {
	c.loops.Wait()
}

// SetSpeed changes the multiplier. A running loop picks it up after its
// next tick.
func (c *Controller) SetSpeed(speed float64) error {
	if speed <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidSpeed, speed)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.speed = speed
	return nil
}

// Step moves the cursor to the next point, wrapping after the last.
func (c *Controller) Step() error {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	ev, err := c.advance(CauseStep)
	if err != nil {
		return err
	}
	c.notify(ev)
	return nil
}

// Seek moves the cursor to t, which need not be a point.
func (c *Controller) Seek(t time.Time) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	c.mu.Lock()
	c.cursor = t
	ev := Event{Cursor: t, Index: c.indexAt(t), Cause: CauseSeek}
	c.mu.Unlock()
	c.notify(ev)
}

// advance applies the inclusive-find rule: i is the first point at or
// after the cursor, the next cursor is point (i+1) mod n. A cursor past the
// last point has i == -1 and lands on point 0.
func (c *Controller) advance(cause Cause) (Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.points)
	if n == 0 {
		return Event{}, ErrNoPoints
	}
	i := -1
	for k, p := range c.points {
		if !p.Time.Before(c.cursor) {
			i = k
			break
		}
	}
	next := (i + 1) % n
	c.cursor = c.points[next].Time
	return Event{Cursor: c.cursor, Index: next, Cause: cause}, nil
}

func (c *Controller) indexAt(t time.Time) int {
	for i, p := range c.points {
		if p.Time.Equal(t) {
			return i
		}
	}
	return -1
}

// notify calls listeners in subscription order. Callers hold notifyMu.
func (c *Controller) notify(ev Event) {
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		c.listeners[id](ev)
	}
}

func (c *Controller) loop(gen int, ticker Ticker, stop <-chan struct{}) {
	defer c.loops.Done()
	defer ticker.Stop()

	c.mu.Lock()
	current := c.interval()
	c.mu.Unlock()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
		}

		c.notifyMu.Lock()
		c.mu.Lock()
		stale := c.gen != gen
		want := c.interval()
		c.mu.Unlock()
		if stale {
			c.notifyMu.Unlock()
			return
		}
		stopTimer := metrics.Timer(metrics.TimelineTick)
		ev, err := c.advance(CauseTick)
		if err == nil {
			metrics.TimelineAdvances.Inc()
			c.notify(ev)
		}
		stopTimer()
		c.notifyMu.Unlock()

		if want != current {
			ticker.Reset(want)
			current = want
		}
	}
}
