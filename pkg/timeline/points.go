package timeline

import (
	"sort"
	"time"

	"github.com/vanderheijden86/graphlens/pkg/filter"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

// Point is a stop on the timeline with the visible counts at that instant.
type Point struct {
	Time  time.Time
	Label string
	// Event is the key-event description attached to this instant, if any.
	Event       string
	NodeCount   int
	EdgeCount   int
	ChangeCount int
}

// Cadence picks where the timeline stops.
type Cadence string

const (
	// CadenceBounds stops at every validity bound and key event, plus the
	// first month in which an ended entity is gone.
	CadenceBounds Cadence = "bounds"
	// CadenceMonthly stops at the start of every month the graph spans.
	CadenceMonthly Cadence = "monthly"
)

// PointOptions restricts the counts to a filter; the cursor field of State
// is overwritten per point.
type PointOptions struct {
	State   filter.State
	Options filter.Options
	Cadence Cadence // empty means CadenceBounds
}

const labelLayout = "Jan 2006"

// Points derives the timeline from every validity bound in g plus the
// metadata key events, and counts what is visible at each.
//
// validTo is inclusive, so the instant itself still shows the entity. The
// timeline also stops at the start of the following month, where the entity
// has gone.
func Points(g *model.Graph, opts PointOptions) []Point {
	if g == nil {
		return nil
	}
	seen := make(map[time.Time]bool)
	var instants []time.Time
	add := func(t time.Time) {
		u := t.UTC()
		if !seen[u] {
			seen[u] = true
			instants = append(instants, u)
		}
	}
	addRange := func(r *model.TemporalRange) {
		if r == nil {
			return
		}
		if r.ValidFrom != nil {
			add(*r.ValidFrom)
		}
		if r.ValidTo != nil {
			add(*r.ValidTo)
			add(monthAfter(*r.ValidTo))
		}
	}
	for i := range g.Nodes {
		addRange(g.Nodes[i].Validity)
	}
	for i := range g.Edges {
		addRange(g.Edges[i].Validity)
	}
	events := keyEvents(g)
	for t := range events {
		add(t)
	}
	if len(instants) == 0 {
		return Count(g, nil, opts)
	}
	sort.Slice(instants, func(i, j int) bool { return instants[i].Before(instants[j]) })

	var points []Point
	if opts.Cadence == CadenceMonthly {
		points = MonthlyPoints(instants[0], instants[len(instants)-1])
		for i := range points {
			points[i].Event = eventInMonth(events, points[i].Time)
		}
	} else {
		points = make([]Point, len(instants))
		for i, t := range instants {
			points[i] = Point{Time: t, Label: t.Format(labelLayout), Event: events[t]}
		}
	}
	return Count(g, points, opts)
}

// monthAfter returns the first instant of the month following t.
func monthAfter(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

func eventInMonth(events map[time.Time]string, month time.Time) string {
	var (
		at   time.Time
		desc string
	)
	for t, d := range events {
		if t.Year() != month.Year() || t.Month() != month.Month() {
			continue
		}
		if desc == "" || t.Before(at) {
			at, desc = t, d
		}
	}
	return desc
}

func keyEvents(g *model.Graph) map[time.Time]string {
	out := make(map[time.Time]string)
	if g.Metadata == nil {
		return out
	}
	for _, ev := range g.Metadata.KeyEvents {
		t, err := ev.Time()
		if err != nil {
			continue
		}
		out[t.UTC()] = ev.Description
	}
	return out
}

// MonthlyPoints returns the first instant of every month from from to to,
// inclusive. Counts are zero until passed through Count.
func MonthlyPoints(from, to time.Time) []Point {
	start := time.Date(from.Year(), from.Month(), 1, 0, 0, 0, 0, from.Location())
	var out []Point
	for t := start; !t.After(to); t = t.AddDate(0, 1, 0) {
		out = append(out, Point{Time: t, Label: t.Format(labelLayout)})
	}
	return out
}

// Count fills NodeCount, EdgeCount and ChangeCount for each point. The
// change count is the number of nodes and edges that appeared or
// disappeared since the previous point; the first point counts everything
// visible.
func Count(g *model.Graph, points []Point, opts PointOptions) []Point {
	out := append([]Point(nil), points...)
	var prev map[string]bool
	for i := range out {
		st := opts.State
		st.Cursor = out[i].Time
		view := filter.Apply(g, st, opts.Options)
		out[i].NodeCount = len(view.Nodes)
		out[i].EdgeCount = len(view.Edges)

		cur := make(map[string]bool, len(view.Nodes)+len(view.Edges))
		for _, n := range view.Nodes {
			cur["n:"+n.ID] = true
		}
		for _, e := range view.Edges {
			cur["e:"+e.ID] = true
		}
		changes := 0
		for k := range cur {
			if !prev[k] {
				changes++
			}
		}
		for k := range prev {
			if !cur[k] {
				changes++
			}
		}
		out[i].ChangeCount = changes
		prev = cur
	}
	return out
}

// CurrentPoint returns the index of the point at cursor, or of the latest
// point before it. It returns -1 when cursor precedes every point.
func CurrentPoint(points []Point, cursor time.Time) int {
	idx := -1
	for i, p := range points {
		if p.Time.After(cursor) {
			break
		}
		idx = i
	}
	return idx
}

// EventInMonth returns the key event falling in the same calendar month as
// cursor, the way the explorer banner announces milestones.
func EventInMonth(g *model.Graph, cursor time.Time) (model.KeyEvent, bool) {
	if g == nil || g.Metadata == nil {
		return model.KeyEvent{}, false
	}
	c := cursor.UTC()
	for _, ev := range g.Metadata.KeyEvents {
		t, err := ev.Time()
		if err != nil {
			continue
		}
		t = t.UTC()
		if t.Year() == c.Year() && t.Month() == c.Month() {
			return ev, true
		}
	}
	return model.KeyEvent{}, false
}
