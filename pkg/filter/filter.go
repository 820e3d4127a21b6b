// Package filter derives the visible subset of a graph from the time cursor
// and the user's type and search selections.
package filter

import (
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"github.com/vanderheijden86/graphlens/pkg/metrics"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

// MatchMode selects how the search term is compared with field text.
type MatchMode string

const (
	MatchSubstring MatchMode = "substring"
	MatchFuzzy     MatchMode = "fuzzy"
)

// DefaultSearchFields are searched when Options.SearchFields is empty.
var DefaultSearchFields = []string{"label", "name", "description"}

// State is the transient, UI-owned filter input.
type State struct {
	// Cursor is the instant the graph is viewed at. The zero time disables
	// temporal filtering.
	Cursor           time.Time
	EnabledTypes     map[string]bool // empty means all node types
	EnabledEdgeTypes map[string]bool // empty means all edge types
	SearchTerm       string
}

// WithTypes returns a copy of s with the given node types enabled.
func (s State) WithTypes(types ...string) State {
	s.EnabledTypes = make(map[string]bool, len(types))
	for _, t := range types {
		s.EnabledTypes[t] = true
	}
	return s
}

// Options configures matching. The zero value searches DefaultSearchFields
// with case-insensitive substring matching.
type Options struct {
	SearchFields []string
	// SearchEdgeTypes lets a node match when the type of one of its visible
	// incident edges contains the search term.
	SearchEdgeTypes bool
	Match           MatchMode
}

// Apply filters g by st. Output order follows the input order, and every
// output edge has both endpoints in the output node set.
func Apply(g *model.Graph, st State, opts Options) model.View {
	defer metrics.Timer(metrics.FilterApply)()
	if g == nil {
		return model.View{}
	}

	temporal := !st.Cursor.IsZero()
	visible := func(r *model.TemporalRange) bool {
		return !temporal || IsVisible(r, st.Cursor)
	}

	term := strings.ToLower(strings.TrimSpace(st.SearchTerm))
	var edgeTypeHit map[string]bool
	if term != "" && opts.SearchEdgeTypes {
		edgeTypeHit = make(map[string]bool)
		for i := range g.Edges {
			e := &g.Edges[i]
			if !visible(e.Validity) || !edgeTypeEnabled(st, e.Type) {
				continue
			}
			if matches(opts.Match, term, e.Type) {
				edgeTypeHit[e.Source] = true
				edgeTypeHit[e.Target] = true
			}
		}
	}

	fields := opts.SearchFields
	if len(fields) == 0 {
		fields = DefaultSearchFields
	}

	view := model.View{Nodes: make([]model.Node, 0, len(g.Nodes))}
	kept := make(map[string]bool, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if !visible(n.Validity) {
			continue
		}
		if len(st.EnabledTypes) > 0 && !st.EnabledTypes[n.Type] {
			continue
		}
		if term != "" && !edgeTypeHit[n.ID] && !nodeMatches(n, fields, opts.Match, term) {
			continue
		}
		kept[n.ID] = true
		view.Nodes = append(view.Nodes, *n)
	}

	view.Edges = make([]model.Edge, 0, len(g.Edges))
	for i := range g.Edges {
		e := &g.Edges[i]
		if !visible(e.Validity) {
			continue
		}
		if !kept[e.Source] || !kept[e.Target] {
			continue
		}
		if !edgeTypeEnabled(st, e.Type) {
			continue
		}
		view.Edges = append(view.Edges, *e)
	}
	return view
}

func edgeTypeEnabled(st State, typ string) bool {
	return len(st.EnabledEdgeTypes) == 0 || st.EnabledEdgeTypes[typ]
}

func nodeMatches(n *model.Node, fields []string, mode MatchMode, term string) bool {
	for _, f := range fields {
		if s, ok := n.Field(f); ok && matches(mode, term, s) {
			return true
		}
	}
	return false
}

// matches compares a lower-cased term with text.
func matches(mode MatchMode, term, text string) bool {
	text = strings.ToLower(text)
	if mode == MatchFuzzy {
		return len(fuzzy.Find(term, []string{text})) > 0
	}
	return strings.Contains(text, term)
}
