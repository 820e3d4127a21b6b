package filter

import (
	"reflect"
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/graphlens/pkg/model"
	"github.com/vanderheijden86/graphlens/pkg/testutil"
)

// TestApply_Scenario covers A (always) and B (from t1) with A->B.
func TestApply_Scenario(t *testing.T) {
	g := testutil.Scenario()

	before := Apply(g, State{Cursor: testutil.Month(0)}, Options{})
	testutil.AssertNodeIDs(t, before, "A")
	testutil.AssertEdgeIDs(t, before)

	at := Apply(g, State{Cursor: testutil.Month(1)}, Options{})
	testutil.AssertNodeIDs(t, at, "A", "B")
	testutil.AssertEdgeIDs(t, at, "A->B")
}

func TestApply_ZeroCursorShowsEverything(t *testing.T) {
	g := testutil.Chain(5)
	v := Apply(g, State{}, Options{})
	if len(v.Nodes) != 5 || len(v.Edges) != 4 {
		t.Errorf("got %d nodes %d edges, want 5/4", len(v.Nodes), len(v.Edges))
	}
}

func TestApply_NilGraph(t *testing.T) {
	v := Apply(nil, State{}, Options{})
	if len(v.Nodes) != 0 || len(v.Edges) != 0 {
		t.Errorf("expected empty view, got %+v", v)
	}
}

func TestApply_TypeFilterDropsEdges(t *testing.T) {
	g := testutil.Star(4)
	v := Apply(g, State{}.WithTypes("hub", "even"), Options{})
	testutil.AssertNodeIDs(t, v, "hub", "s2", "s4")
	testutil.AssertEdgeIDs(t, v, "es2", "es4")
}

func TestApply_EdgeTypeFilter(t *testing.T) {
	g := testutil.Scenario()
	v := Apply(g, State{EnabledEdgeTypes: map[string]bool{"other": true}}, Options{})
	testutil.AssertNodeIDs(t, v, "A", "B")
	testutil.AssertEdgeIDs(t, v)
}

func TestApply_EdgeValidity(t *testing.T) {
	g := testutil.Scenario()
	g.Edges[0].Validity = &model.TemporalRange{ValidTo: testutil.MonthPtr(2)}
	testutil.AssertEdgeIDs(t, Apply(g, State{Cursor: testutil.Month(2)}, Options{}), "A->B")
	testutil.AssertEdgeIDs(t, Apply(g, State{Cursor: testutil.Month(3)}, Options{}))
}

func TestApply_Search(t *testing.T) {
	g := &model.Graph{
		Nodes: []model.Node{
			{ID: "1", Type: "drug", Label: "Aspirin"},
			{ID: "2", Type: "drug", Label: "Ibuprofen", Properties: map[string]any{"description": "NSAID for PAIN"}},
			{ID: "3", Type: "trial", Label: "Trial X"},
		},
		Edges: []model.Edge{
			{ID: "e1", Source: "3", Target: "1", Type: "studies"},
			{ID: "e2", Source: "3", Target: "2", Type: "studies"},
		},
	}

	tests := []struct {
		name  string
		term  string
		opts  Options
		nodes []string
	}{
		{"label case-insensitive", "aspi", Options{}, []string{"1"}},
		{"description", "pain", Options{}, []string{"2"}},
		{"no match", "zzz", Options{}, nil},
		{"whitespace only is empty", "   ", Options{}, []string{"1", "2", "3"}},
		{"restricted fields", "pain", Options{SearchFields: []string{"label"}}, nil},
		{"id field", "3", Options{SearchFields: []string{"id"}}, []string{"3"}},
		{"edge types off", "stud", Options{}, nil},
		{"edge types on", "stud", Options{SearchEdgeTypes: true}, []string{"1", "2", "3"}},
		{"fuzzy", "asp", Options{Match: MatchFuzzy}, []string{"1"}},
		{"fuzzy subsequence", "ibfn", Options{Match: MatchFuzzy}, []string{"2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Apply(g, State{SearchTerm: tt.term}, tt.opts)
			testutil.AssertNodeIDs(t, v, tt.nodes...)
			testutil.AssertNoDanglingEdges(t, v)
		})
	}
}

func TestApply_SearchSkipsDisabledEdgeTypes(t *testing.T) {
	g := &model.Graph{
		Nodes: []model.Node{
			{ID: "1", Type: "drug", Label: "Aspirin"},
			{ID: "2", Type: "trial", Label: "Trial X"},
			{ID: "3", Type: "site", Label: "Clinic"},
		},
		Edges: []model.Edge{
			{ID: "e1", Source: "2", Target: "1", Type: "studies"},
			{ID: "e2", Source: "2", Target: "3", Type: "hosted_at"},
		},
	}
	opts := Options{SearchEdgeTypes: true}

	st := State{SearchTerm: "stud", EnabledEdgeTypes: map[string]bool{"hosted_at": true}}
	v := Apply(g, st, opts)
	testutil.AssertNodeIDs(t, v)
	testutil.AssertEdgeIDs(t, v)

	st.EnabledEdgeTypes["studies"] = true
	v = Apply(g, st, opts)
	testutil.AssertNodeIDs(t, v, "1", "2")
	testutil.AssertEdgeIDs(t, v, "e1")
}

func TestApply_DanglingEdgeDropped(t *testing.T) {
	g := &model.Graph{
		Nodes: []model.Node{{ID: "A"}},
		Edges: []model.Edge{{ID: "e", Source: "A", Target: "ghost"}},
	}
	v := Apply(g, State{}, Options{})
	testutil.AssertEdgeIDs(t, v)
}

func TestApply_DoesNotMutateGraph(t *testing.T) {
	g := testutil.Chain(4)
	before := len(g.Nodes)
	v := Apply(g, State{Cursor: testutil.Month(1)}, Options{})
	v.Nodes[0].Label = "changed"
	if len(g.Nodes) != before || g.Nodes[0].Label == "changed" {
		t.Error("filter output aliases the input graph")
	}
}

// ============================================================================
// Properties
// ============================================================================

func drawState(t *rapid.T) State {
	st := State{Cursor: testutil.Instant().Draw(t, "cursor")}
	if rapid.Bool().Draw(t, "typeFilter") {
		st = st.WithTypes(rapid.SliceOfDistinct(rapid.SampledFrom([]string{"person", "organization", "drug", "trial"}), rapid.ID[string]).Draw(t, "types")...)
	}
	st.SearchTerm = rapid.SampledFrom([]string{"", "a", "ga", "OME", "x"}).Draw(t, "term")
	return st
}

func TestProperty_NoDanglingEdges(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := testutil.Graph().Draw(t, "graph")
		st := drawState(t)
		opts := Options{SearchEdgeTypes: rapid.Bool().Draw(t, "edgeSearch")}
		testutil.AssertNoDanglingEdges(t, Apply(g, st, opts))
	})
}

func TestProperty_Stable(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := testutil.Graph().Draw(t, "graph")
		st := drawState(t)
		a := Apply(g, st, Options{})
		b := Apply(g, st, Options{})
		if !reflect.DeepEqual(a, b) {
			t.Fatalf("filter not deterministic:\n%v\n%v", a, b)
		}
	})
}

// TestProperty_PreservesOrder checks the output is a subsequence of the input.
func TestProperty_PreservesOrder(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := testutil.Graph().Draw(t, "graph")
		v := Apply(g, drawState(t), Options{})
		idx := g.NodeIndex()
		last := -1
		for _, n := range v.Nodes {
			if idx[n.ID] <= last {
				t.Fatalf("node %s out of order", n.ID)
			}
			last = idx[n.ID]
		}
	})
}

func TestProperty_Visibility(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		g := testutil.Graph().Draw(t, "graph")
		st := drawState(t)
		v := Apply(g, st, Options{})
		for _, n := range v.Nodes {
			if !IsVisible(n.Validity, st.Cursor) {
				t.Fatalf("node %s not visible at cursor", n.ID)
			}
		}
		for _, e := range v.Edges {
			if !IsVisible(e.Validity, st.Cursor) {
				t.Fatalf("edge %s not visible at cursor", e.ID)
			}
		}
	})
}
