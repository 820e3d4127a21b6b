// Package metrics instruments the glens hot paths: filtering, solver ticks,
// reseeding after a filter change, timeline ticks and rendering.
//
// Each operation has an Op that keeps running totals in memory and feeds
// the glens_operation_duration_seconds histogram (prometheus.go), so a run
// can be summarised on exit (Summary) or dumped to a node_exporter
// textfile. GLENS_METRICS=0 turns collection off.
//
//	func (s *Simulation) Tick() Snapshot {
//	    defer metrics.Timer(metrics.LayoutTick)()
//	    // ...
//	}
package metrics

import (
	"os"
	"sync/atomic"
	"time"
)

var enabled atomic.Bool

func init() {
	enabled.Store(os.Getenv("GLENS_METRICS") != "0")
}

// Enabled reports whether timings are collected.
func Enabled() bool {
	return enabled.Load()
}

// SetEnabled turns timing collection on or off.
func SetEnabled(e bool) {
	enabled.Store(e)
}

// Op accumulates the durations of one named operation.
type Op struct {
	name  string
	count atomic.Int64
	total atomic.Int64 // ns
	max   atomic.Int64 // ns
	min   atomic.Int64 // ns, 0 until the first sample
}

func newOp(name string) *Op {
	return &Op{name: name}
}

// Name is the label used for the operation in the histogram.
func (o *Op) Name() string { return o.name }

// Count returns the number of samples.
func (o *Op) Count() int64 { return o.count.Load() }

// Record adds one sample.
func (o *Op) Record(d time.Duration) {
	if !Enabled() {
		return
	}
	ns := d.Nanoseconds()
	o.count.Add(1)
	o.total.Add(ns)
	observe(o.name, d)

	for cur := o.max.Load(); ns > cur; cur = o.max.Load() {
		if o.max.CompareAndSwap(cur, ns) {
			break
		}
	}
	for cur := o.min.Load(); cur == 0 || ns < cur; cur = o.min.Load() {
		if o.min.CompareAndSwap(cur, ns) {
			break
		}
	}
}

// Reset clears the in-memory totals. The histogram keeps its samples.
func (o *Op) Reset() {
	o.count.Store(0)
	o.total.Store(0)
	o.max.Store(0)
	o.min.Store(0)
}

// OpStats is a point-in-time copy of an Op's totals.
type OpStats struct {
	Name  string        `json:"name"`
	Count int64         `json:"count"`
	Total time.Duration `json:"total"`
	Avg   time.Duration `json:"avg"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
}

// Stats copies the totals.
func (o *Op) Stats() OpStats {
	s := OpStats{
		Name:  o.name,
		Count: o.count.Load(),
		Total: time.Duration(o.total.Load()),
		Min:   time.Duration(o.min.Load()),
		Max:   time.Duration(o.max.Load()),
	}
	if s.Count > 0 {
		s.Avg = s.Total / time.Duration(s.Count)
	}
	return s
}

// Timer starts timing o; call the result to record the sample.
func Timer(o *Op) func() {
	if !Enabled() || o == nil {
		return func() {}
	}
	start := time.Now()
	return func() { o.Record(time.Since(start)) }
}

// Operations timed by the engine, UI and renderers.
var (
	FilterApply   = newOp("filter_apply")
	LayoutTick    = newOp("layout_tick")
	LayoutReseed  = newOp("layout_reseed")
	SelectionCalc = newOp("selection_compute")
	TimelineTick  = newOp("timeline_tick")
	FixtureImport = newOp("fixture_import")
	RenderSVG     = newOp("render_svg")
	RenderPNG     = newOp("render_png")
	UIRender      = newOp("ui_render")
)

var ops = []*Op{
	FilterApply, LayoutTick, LayoutReseed, SelectionCalc, TimelineTick,
	FixtureImport, RenderSVG, RenderPNG, UIRender,
}

// ResetAll clears every operation's totals.
func ResetAll() {
	for _, o := range ops {
		o.Reset()
	}
}

// Summary returns the totals of every operation that ran, in declaration
// order.
func Summary() []OpStats {
	var out []OpStats
	for _, o := range ops {
		if o.Count() > 0 {
			out = append(out, o.Stats())
		}
	}
	return out
}
