package selection_test

import (
	"testing"

	"github.com/vanderheijden86/graphlens/pkg/selection"
)

func TestDeriveWithoutSelection(t *testing.T) {
	em := selection.Derive(selection.Clear(), abc())

	for id, s := range em.Nodes {
		if s.Opacity != 1 || s.Highlighted {
			t.Errorf("node %s: expected uniform full opacity, got %+v", id, s)
		}
	}
	for id, s := range em.Edges {
		if s.Opacity != 0.6 || s.Width != 1.5 || s.Color != selection.DefaultColor {
			t.Errorf("edge %s: expected default edge style, got %+v", id, s)
		}
	}
}

func TestDeriveWithSelection(t *testing.T) {
	view := abc()
	em := selection.Derive(selection.Select("A", view), view)

	tests := []struct {
		id      string
		opacity float64
	}{
		{"A", 1}, {"B", 1}, {"C", 1}, {"D", 0.2},
	}
	for _, tt := range tests {
		if got := em.Node(tt.id).Opacity; got != tt.opacity {
			t.Errorf("node %s opacity = %v, want %v", tt.id, got, tt.opacity)
		}
	}

	hi := em.Edge("A->B")
	if hi.Opacity != 1 || hi.Width != 2.5 || hi.Color != selection.HighlightColor || !hi.Highlighted {
		t.Errorf("highlighted edge style %+v", hi)
	}
	dim := em.Edge("D->B")
	if dim.Opacity != 0.1 || dim.Width != 1.5 || dim.Color != selection.DefaultColor {
		t.Errorf("dimmed edge style %+v", dim)
	}
}

func TestEmphasisFallsBackToDefaults(t *testing.T) {
	var em selection.Emphasis
	if em.Node("x").Opacity != 1 {
		t.Error("unknown node should render at full opacity")
	}
	if em.Edge("x").Opacity != 0.6 {
		t.Error("unknown edge should render at the default edge opacity")
	}
}
