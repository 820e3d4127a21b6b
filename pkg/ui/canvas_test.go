package ui

import (
	"math"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/graphlens/pkg/engine"
	"github.com/vanderheijden86/graphlens/pkg/layout"
	"github.com/vanderheijden86/graphlens/pkg/model"
	"github.com/vanderheijden86/graphlens/pkg/selection"
)

// lineFrame is A(Person) at x=0 and B(Company) at x=100 joined by one edge,
// plus an unconnected C placed between them on another row.
func lineFrame(selected string) engine.Frame {
	view := model.View{
		Nodes: []model.Node{
			{ID: "A", Type: "Person", Label: "Alpha"},
			{ID: "B", Type: "Company", Label: "Beta"},
			{ID: "C", Type: "Project", Label: "Gamma"},
		},
		Edges: []model.Edge{{ID: "ab", Source: "A", Target: "B", Type: "works_at"}},
	}
	snap := layout.Snapshot{Placements: []layout.Placement{
		{ID: "A", X: 0, Y: 0},
		{ID: "B", X: 100, Y: 0},
		{ID: "C", X: 50, Y: 40},
	}}
	sel := selection.Select(selected, view)
	return engine.Frame{View: view, Layout: snap, Selection: sel, Emphasis: selection.Derive(sel, view)}
}

func TestProject_StretchesBoundingBox(t *testing.T) {
	snap := layout.Snapshot{Placements: []layout.Placement{
		{ID: "a", X: -10, Y: -10},
		{ID: "b", X: 10, Y: 10},
		{ID: "nan", X: math.NaN(), Y: 3},
	}}
	pts := project(snap, 40, 11)

	if got := pts["a"]; got != (gridPoint{Col: 0, Row: 0}) {
		t.Errorf("a = %+v, want top-left", got)
	}
	b := pts["b"]
	if b.Row != 10 {
		t.Errorf("b.Row = %d, want 10", b.Row)
	}
	if b.Col >= 40-canvasLabelWidth/2 {
		t.Errorf("b.Col = %d leaves no room for its label", b.Col)
	}
	mid := pts["nan"]
	if mid.Row != 5 || mid.Col != b.Col/2 {
		t.Errorf("non-finite placement at %+v, want the middle", mid)
	}
}

func TestProject_SinglePointCentred(t *testing.T) {
	pts := project(layout.Snapshot{Placements: []layout.Placement{{ID: "x", X: 7, Y: 7}}}, 21, 9)
	if pts["x"].Row != 4 {
		t.Errorf("row = %d, want 4", pts["x"].Row)
	}
}

func TestProject_EmptyCanvas(t *testing.T) {
	if pts := project(lineFrame("").Layout, 0, 10); len(pts) != 0 {
		t.Errorf("got %d points for a zero-width canvas", len(pts))
	}
}

func TestCanvas_PlainDrawsNodesEdgesAndLabels(t *testing.T) {
	c := Canvas{Width: 40, Height: 5, Theme: PlainTheme()}
	lines := strings.Split(c.Plain(lineFrame("")), "\n")
	if len(lines) != 5 {
		t.Fatalf("got %d lines, want 5", len(lines))
	}
	top := lines[0]
	if !strings.HasPrefix(top, "●─Alpha─") {
		t.Errorf("top row %q should start with A, its label and the edge", top)
	}
	if !strings.HasSuffix(top, "■ Beta") {
		t.Errorf("top row %q should end with B and its label", top)
	}
	if !strings.Contains(lines[4], "◆ Gamma") {
		t.Errorf("bottom row %q should hold C", lines[4])
	}
}

func TestCanvas_EmphasisClasses(t *testing.T) {
	c := Canvas{Width: 40, Height: 5, Theme: PlainTheme()}
	g := c.grid(lineFrame("A"))
	pts := project(lineFrame("A").Layout, 40, 5)

	at := func(id string) cell { p := pts[id]; return g[p.Row][p.Col] }
	if got := at("A").cls; got != clsNodeFocus {
		t.Errorf("selected node class = %d, want highlighted", got)
	}
	if got := at("B").cls; got != clsNodeFocus {
		t.Errorf("neighbour class = %d, want highlighted", got)
	}
	if got := at("C").cls; got != clsNodeDim {
		t.Errorf("unrelated node class = %d, want dimmed", got)
	}
	edge := g[pts["A"].Row][pts["A"].Col+10]
	if edge.cls != clsEdgeFocus || edge.ch != "─" {
		t.Errorf("edge cell = %+v, want a highlighted horizontal segment", edge)
	}
}

func TestCanvas_FocusDrawnOnTop(t *testing.T) {
	view := model.View{Nodes: []model.Node{
		{ID: "under", Type: "Person", Label: "U"},
		{ID: "over", Type: "Company", Label: "O"},
	}}
	snap := layout.Snapshot{Placements: []layout.Placement{
		{ID: "under", X: 5, Y: 5},
		{ID: "over", X: 5, Y: 5},
	}}
	f := engine.Frame{View: view, Layout: snap}

	for _, focus := range []string{"under", "over"} {
		c := Canvas{Width: 20, Height: 3, Focus: focus, Theme: PlainTheme()}
		g := c.grid(f)
		p := project(snap, 20, 3)[focus]
		want := TypeIcon(view.Nodes[0].Type)
		if focus == "over" {
			want = TypeIcon(view.Nodes[1].Type)
		}
		if got := g[p.Row][p.Col]; got.ch != want || got.cls != clsCursor {
			t.Errorf("focus %s: cell = %+v, want %s as cursor", focus, got, want)
		}
	}
}

func TestCanvas_WideLabelsKeepRowWidth(t *testing.T) {
	view := model.View{Nodes: []model.Node{
		{ID: "a", Type: "Person", Label: "漢字のラベルがとても長い"},
		{ID: "b", Type: "Person", Label: "東京"},
	}}
	snap := layout.Snapshot{Placements: []layout.Placement{{ID: "a", X: 0, Y: 0}, {ID: "b", X: 1, Y: 0}}}
	c := Canvas{Width: 24, Height: 2, Theme: PlainTheme()}

	for i, line := range strings.Split(c.Plain(engine.Frame{View: view, Layout: snap}), "\n") {
		if w := runewidth.StringWidth(line); w > 24 {
			t.Errorf("line %d is %d cells wide: %q", i, w, line)
		}
	}
}

func TestCanvas_RenderKeepsText(t *testing.T) {
	c := Canvas{Width: 40, Height: 5, Theme: PlainTheme()}
	out := c.Render(lineFrame("A"))
	for _, want := range []string{"Alpha", "Beta", "Gamma"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered canvas missing %q", want)
		}
	}
	if n := strings.Count(out, "\n"); n != 4 {
		t.Errorf("rendered %d line breaks, want 4", n)
	}
}

func TestLineGlyph(t *testing.T) {
	tests := []struct {
		dc, dr int
		want   string
	}{
		{10, 0, "─"},
		{-10, 1, "─"},
		{0, 5, "│"},
		{1, -6, "│"},
		{4, 4, "╲"},
		{-4, -3, "╲"},
		{4, -4, "╱"},
		{-3, 4, "╱"},
	}
	for _, tc := range tests {
		if got := lineGlyph(tc.dc, tc.dr); got != tc.want {
			t.Errorf("lineGlyph(%d, %d) = %s, want %s", tc.dc, tc.dr, got, tc.want)
		}
	}
}
