// Package selection computes the neighbourhood highlighted around a
// clicked node and the emphasis styling derived from it.
package selection

import (
	"github.com/vanderheijden86/graphlens/pkg/metrics"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

// State is the current selection. The zero value is "nothing selected".
type State struct {
	Selected         string
	HighlightedNodes map[string]bool
	HighlightedEdges map[string]bool
}

// Active reports whether a node is selected.
func (s State) Active() bool {
	return s.Selected != ""
}

// Clear returns the empty selection.
func Clear() State {
	return State{}
}

// Select highlights id, every edge touching it and the opposite endpoint of
// each such edge. An id that is not in the view yields the cleared state.
func Select(id string, view model.View) State {
	defer metrics.Timer(metrics.SelectionCalc)()

	if id == "" || !view.NodeIDs()[id] {
		return Clear()
	}
	st := State{
		Selected:         id,
		HighlightedNodes: map[string]bool{id: true},
		HighlightedEdges: make(map[string]bool),
	}
	for i := range view.Edges {
		e := &view.Edges[i]
		switch id {
		case e.Source:
			st.HighlightedEdges[e.ID] = true
			st.HighlightedNodes[e.Target] = true
		case e.Target:
			st.HighlightedEdges[e.ID] = true
			st.HighlightedNodes[e.Source] = true
		}
	}
	return st
}

// Policy decides what clicking the already-selected node does.
type Policy int

const (
	// SecondClickClears deselects on a repeated click.
	SecondClickClears Policy = iota
	// SecondClickKeeps leaves the selection as it is.
	SecondClickKeeps
)

// ParsePolicy maps the config spelling to a Policy. Unknown values clear.
func ParsePolicy(s string) Policy {
	if s == "keep" {
		return SecondClickKeeps
	}
	return SecondClickClears
}

// Toggle applies a click on id. Clicking empty space (id == "") clears.
func Toggle(cur State, id string, view model.View, p Policy) State {
	if id == "" {
		return Clear()
	}
	if id == cur.Selected {
		if p == SecondClickKeeps {
			return Select(id, view)
		}
		return Clear()
	}
	return Select(id, view)
}

// Reconcile recomputes cur against a new view. The selection is dropped
// when its node was filtered out.
func Reconcile(cur State, view model.View) State {
	if !cur.Active() {
		return cur
	}
	return Select(cur.Selected, view)
}

// Direction of a connection relative to the selected node.
type Direction string

const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
)

// Connection is one row of the selected node's relationship list.
type Connection struct {
	EdgeID       string
	Relationship string
	Direction    Direction
	Node         model.Node
}

// Connections lists the neighbours of id in view edge order. A self-loop
// appears once, as outgoing.
func Connections(id string, view model.View) []Connection {
	nodes := make(map[string]*model.Node, len(view.Nodes))
	for i := range view.Nodes {
		nodes[view.Nodes[i].ID] = &view.Nodes[i]
	}
	if _, ok := nodes[id]; !ok {
		return nil
	}
	var out []Connection
	for i := range view.Edges {
		e := &view.Edges[i]
		var other string
		var dir Direction
		switch id {
		case e.Source:
			other, dir = e.Target, Outgoing
		case e.Target:
			other, dir = e.Source, Incoming
		default:
			continue
		}
		n, ok := nodes[other]
		if !ok {
			continue
		}
		out = append(out, Connection{EdgeID: e.ID, Relationship: e.Type, Direction: dir, Node: *n})
	}
	return out
}
