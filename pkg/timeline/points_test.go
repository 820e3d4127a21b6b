package timeline_test

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/graphlens/pkg/filter"
	"github.com/vanderheijden86/graphlens/pkg/model"
	"github.com/vanderheijden86/graphlens/pkg/testutil"
	"github.com/vanderheijden86/graphlens/pkg/timeline"
)

func TestPointsFromValidityBounds(t *testing.T) {
	points := timeline.Points(testutil.Chain(4), timeline.PointOptions{})
	if len(points) != 4 {
		t.Fatalf("expected 4 points, got %d", len(points))
	}

	wantNodes := []int{1, 2, 3, 4}
	wantEdges := []int{0, 1, 2, 3}
	wantChanges := []int{1, 2, 2, 2}
	for i, p := range points {
		if !p.Time.Equal(testutil.Month(i)) {
			t.Errorf("point %d at %v, want month %d", i, p.Time, i)
		}
		if p.NodeCount != wantNodes[i] || p.EdgeCount != wantEdges[i] || p.ChangeCount != wantChanges[i] {
			t.Errorf("point %d counts = %d/%d/%d, want %d/%d/%d", i,
				p.NodeCount, p.EdgeCount, p.ChangeCount, wantNodes[i], wantEdges[i], wantChanges[i])
		}
	}
	if points[0].Label != "Jan 2023" {
		t.Errorf("unexpected label %q", points[0].Label)
	}
}

func TestPointsCountDisappearances(t *testing.T) {
	g := testutil.Scenario()
	g.Nodes[1].Validity.ValidTo = testutil.MonthPtr(2)

	points := timeline.Points(g, timeline.PointOptions{})
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	tests := []struct {
		at                    time.Time
		nodes, edges, changes int
	}{
		{testutil.Month(1), 2, 1, 3},
		// validTo is inclusive: B and its edge are still there at month 2.
		{testutil.Month(2), 2, 1, 0},
		// The month after, B and the edge into it are gone.
		{testutil.Month(3), 1, 0, 2},
	}
	for i, tt := range tests {
		p := points[i]
		if !p.Time.Equal(tt.at) {
			t.Errorf("point %d at %v, want %v", i, p.Time, tt.at)
		}
		if p.NodeCount != tt.nodes || p.EdgeCount != tt.edges || p.ChangeCount != tt.changes {
			t.Errorf("point %d counts = %d/%d/%d, want %d/%d/%d", i,
				p.NodeCount, p.EdgeCount, p.ChangeCount, tt.nodes, tt.edges, tt.changes)
		}
	}
	if points[2].Label != "Apr 2023" {
		t.Errorf("expiry label = %q", points[2].Label)
	}
}

func TestPointsMonthlyCadence(t *testing.T) {
	g := testutil.Scenario()
	g.Nodes[1].Validity.ValidTo = testutil.MonthPtr(2)
	g.Metadata.KeyEvents = []model.KeyEvent{{Timestamp: "2023-03-15T00:00:00Z", Description: "Launch"}}

	points := timeline.Points(g, timeline.PointOptions{Cadence: timeline.CadenceMonthly})
	if len(points) != 3 {
		t.Fatalf("expected 3 monthly points, got %d", len(points))
	}
	for i, p := range points {
		if !p.Time.Equal(testutil.Month(i + 1)) {
			t.Errorf("point %d at %v, want month %d", i, p.Time, i+1)
		}
	}
	if points[1].Event != "Launch" || points[0].Event != "" {
		t.Errorf("events = %q, %q", points[0].Event, points[1].Event)
	}
	if points[2].NodeCount != 1 {
		t.Errorf("B should be gone by Apr 2023: %+v", points[2])
	}
}

// TestPointsReachEveryExpiry checks that each ended node is shown gone at
// some stop after its validTo, whatever the cadence.
func TestPointsReachEveryExpiry(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := testutil.Graph().Draw(t, "graph")
		cadence := rapid.SampledFrom([]timeline.Cadence{timeline.CadenceBounds, timeline.CadenceMonthly}).Draw(t, "cadence")
		points := timeline.Points(g, timeline.PointOptions{Cadence: cadence})

		for _, n := range g.Nodes {
			if n.Validity == nil || n.Validity.ValidTo == nil {
				continue
			}
			reached := false
			for _, p := range points {
				if p.Time.After(*n.Validity.ValidTo) && !filter.IsVisible(n.Validity, p.Time) {
					reached = true
					break
				}
			}
			if !reached {
				t.Fatalf("%s ends %v but no %s point shows it gone", n.ID, *n.Validity.ValidTo, cadence)
			}
		}
	})
}

func TestPointsRespectTypeFilter(t *testing.T) {
	g := testutil.Chain(3)
	g.Nodes[2].Type = "other"

	points := timeline.Points(g, timeline.PointOptions{State: filter.State{}.WithTypes("step")})
	last := points[len(points)-1]
	if last.NodeCount != 2 || last.EdgeCount != 1 {
		t.Errorf("type filter not applied: %+v", last)
	}
}

func TestPointsIncludeKeyEvents(t *testing.T) {
	g := testutil.Scenario()
	g.Metadata.KeyEvents = []model.KeyEvent{
		{Timestamp: "2023-03-01T00:00:00Z", Description: "Launch"},
		{Timestamp: "not a time", Description: "ignored"},
	}

	points := timeline.Points(g, timeline.PointOptions{})
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[1].Event != "Launch" || !points[1].Time.Equal(testutil.Month(2)) {
		t.Errorf("unexpected key event point %+v", points[1])
	}
}

func TestPointsEmptyGraph(t *testing.T) {
	if got := timeline.Points(nil, timeline.PointOptions{}); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
	if got := timeline.Points(testutil.Complete(3), timeline.PointOptions{}); len(got) != 0 {
		t.Errorf("graph without validity should have no points, got %d", len(got))
	}
}

func TestMonthlyPoints(t *testing.T) {
	from := testutil.Month(0).AddDate(0, 0, 10)
	points := timeline.MonthlyPoints(from, testutil.Month(2))
	if len(points) != 3 {
		t.Fatalf("expected 3 points, got %d", len(points))
	}
	for i, p := range points {
		if !p.Time.Equal(testutil.Month(i)) {
			t.Errorf("point %d at %v", i, p.Time)
		}
	}

	counted := timeline.Count(testutil.Chain(3), points, timeline.PointOptions{})
	if counted[2].NodeCount != 3 {
		t.Errorf("expected 3 nodes at month 2, got %d", counted[2].NodeCount)
	}
	if points[2].NodeCount != 0 {
		t.Error("Count must not modify its input")
	}
}

func TestCurrentPoint(t *testing.T) {
	points := months(0, 2, 4)
	tests := []struct {
		cursor time.Time
		want   int
	}{
		{testutil.Month(-1), -1},
		{testutil.Month(0), 0},
		{testutil.Month(1), 0},
		{testutil.Month(2), 1},
		{testutil.Month(9), 2},
	}
	for _, tt := range tests {
		if got := timeline.CurrentPoint(points, tt.cursor); got != tt.want {
			t.Errorf("CurrentPoint(%v) = %d, want %d", tt.cursor, got, tt.want)
		}
	}
}

func TestEventInMonth(t *testing.T) {
	g := testutil.Scenario()
	g.Metadata.KeyEvents = []model.KeyEvent{
		{Timestamp: "2023-02-18", Description: "Trial Launched"},
	}

	ev, ok := timeline.EventInMonth(g, testutil.Month(1))
	if !ok || ev.Description != "Trial Launched" {
		t.Errorf("expected the February event, got %+v, %v", ev, ok)
	}
	if _, ok := timeline.EventInMonth(g, testutil.Month(2)); ok {
		t.Error("no event in March")
	}
}
