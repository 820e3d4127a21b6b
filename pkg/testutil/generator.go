// Package testutil provides graph fixture generators and assertion helpers
// for tests. Topology generators are deterministic; Graph draws arbitrary
// graphs for property tests.
package testutil

import (
	"fmt"
	"time"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/graphlens/pkg/model"
)

// BaseTime anchors every generated timestamp.
var BaseTime = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

// Month returns BaseTime shifted by n months.
func Month(n int) time.Time {
	return BaseTime.AddDate(0, n, 0)
}

// MonthPtr is Month as a pointer, for TemporalRange literals.
func MonthPtr(n int) *time.Time {
	t := Month(n)
	return &t
}

// Chain builds n0 -> n1 -> ... -> n{size-1}. Node i becomes valid at
// month i, so the chain grows by one node per month.
func Chain(size int) *model.Graph {
	g := &model.Graph{Metadata: &model.Metadata{SchemaVersion: "1.0", GraphType: "directed"}}
	for i := 0; i < size; i++ {
		g.Nodes = append(g.Nodes, model.Node{
			ID:       fmt.Sprintf("n%d", i),
			Type:     "step",
			Label:    fmt.Sprintf("Step %d", i),
			Validity: &model.TemporalRange{ValidFrom: MonthPtr(i)},
		})
		if i > 0 {
			g.Edges = append(g.Edges, model.Edge{
				ID:     fmt.Sprintf("e%d", i),
				Source: fmt.Sprintf("n%d", i-1),
				Target: fmt.Sprintf("n%d", i),
				Type:   "next",
			})
		}
	}
	return g
}

// Star builds a hub with spokes pointing at it. Spokes alternate between
// two node types so type filters have something to bite on.
func Star(spokes int) *model.Graph {
	g := &model.Graph{Metadata: &model.Metadata{SchemaVersion: "1.0", GraphType: "directed"}}
	g.Nodes = append(g.Nodes, model.Node{ID: "hub", Type: "hub", Label: "Hub"})
	for i := 1; i <= spokes; i++ {
		typ := "odd"
		if i%2 == 0 {
			typ = "even"
		}
		id := fmt.Sprintf("s%d", i)
		g.Nodes = append(g.Nodes, model.Node{ID: id, Type: typ, Label: fmt.Sprintf("Spoke %d", i)})
		g.Edges = append(g.Edges, model.Edge{ID: "e" + id, Source: id, Target: "hub", Type: "points_to"})
	}
	return g
}

// Complete builds a complete directed graph (one edge per unordered pair).
func Complete(size int) *model.Graph {
	g := &model.Graph{Metadata: &model.Metadata{}}
	for i := 0; i < size; i++ {
		g.Nodes = append(g.Nodes, model.Node{ID: fmt.Sprintf("n%d", i), Type: "n"})
	}
	for i := 0; i < size; i++ {
		for j := i + 1; j < size; j++ {
			g.Edges = append(g.Edges, model.Edge{
				ID:     fmt.Sprintf("e%d_%d", i, j),
				Source: fmt.Sprintf("n%d", i),
				Target: fmt.Sprintf("n%d", j),
				Type:   "link",
			})
		}
	}
	return g
}

// Scenario returns the two-node graph A (always valid), B (valid from
// month 1) with edge A->B.
func Scenario() *model.Graph {
	return &model.Graph{
		Nodes: []model.Node{
			{ID: "A", Type: "t", Label: "Alpha"},
			{ID: "B", Type: "t", Label: "Beta", Validity: &model.TemporalRange{ValidFrom: MonthPtr(1)}},
		},
		Edges:    []model.Edge{{ID: "A->B", Source: "A", Target: "B", Type: "rel"}},
		Metadata: &model.Metadata{SchemaVersion: "1.0"},
	}
}

var (
	nodeTypes = []string{"person", "organization", "drug", "trial"}
	edgeTypes = []string{"funds", "studies", "employs"}
	words     = []string{"alpha", "Beta", "gamma", "delta", "Omega", ""}
)

// rangeGen draws an optional temporal range within a 12-month window.
func rangeGen() *rapid.Generator[*model.TemporalRange] {
	return rapid.Custom(func(t *rapid.T) *model.TemporalRange {
		if !rapid.Bool().Draw(t, "hasRange") {
			return nil
		}
		r := &model.TemporalRange{}
		from := rapid.IntRange(-1, 11).Draw(t, "from")
		if from >= 0 {
			r.ValidFrom = MonthPtr(from)
		}
		to := rapid.IntRange(-1, 11).Draw(t, "to")
		if to >= 0 && to >= from {
			r.ValidTo = MonthPtr(to)
		}
		return r
	})
}

// Graph draws a graph with unique ids. Edges may reference ids that are
// missing from the node list, to exercise dangling-edge handling.
func Graph() *rapid.Generator[*model.Graph] {
	return rapid.Custom(func(t *rapid.T) *model.Graph {
		n := rapid.IntRange(0, 12).Draw(t, "nodes")
		g := &model.Graph{Metadata: &model.Metadata{}}
		for i := 0; i < n; i++ {
			g.Nodes = append(g.Nodes, model.Node{
				ID:       fmt.Sprintf("n%d", i),
				Type:     rapid.SampledFrom(nodeTypes).Draw(t, "type"),
				Label:    rapid.SampledFrom(words).Draw(t, "label"),
				Validity: rangeGen().Draw(t, "validity"),
			})
		}
		m := rapid.IntRange(0, 20).Draw(t, "edges")
		for i := 0; i < m; i++ {
			src := rapid.IntRange(0, n+1).Draw(t, "src")
			tgt := rapid.IntRange(0, n+1).Draw(t, "tgt")
			g.Edges = append(g.Edges, model.Edge{
				ID:       fmt.Sprintf("e%d", i),
				Source:   fmt.Sprintf("n%d", src),
				Target:   fmt.Sprintf("n%d", tgt),
				Type:     rapid.SampledFrom(edgeTypes).Draw(t, "edgeType"),
				Validity: rangeGen().Draw(t, "edgeValidity"),
			})
		}
		return g
	})
}

// Instant draws a cursor inside (and one month around) the generated window.
func Instant() *rapid.Generator[time.Time] {
	return rapid.Custom(func(t *rapid.T) time.Time {
		return Month(rapid.IntRange(-1, 12).Draw(t, "month"))
	})
}
