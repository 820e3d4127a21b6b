package selection

import "github.com/vanderheijden86/graphlens/pkg/model"

// Colors used for edge emphasis.
const (
	HighlightColor = "#ff0000"
	DefaultColor   = "#999999"
)

// NodeStyle is the emphasis overlay for one node.
type NodeStyle struct {
	Opacity     float64
	Highlighted bool
}

// EdgeStyle is the emphasis overlay for one edge.
type EdgeStyle struct {
	Opacity     float64
	Width       float64
	Color       string
	Highlighted bool
}

// Emphasis maps node and edge ids to their overlay. It never alters
// positions or the underlying graph.
type Emphasis struct {
	Nodes map[string]NodeStyle
	Edges map[string]EdgeStyle
}

var (
	plainNode = NodeStyle{Opacity: 1}
	plainEdge = EdgeStyle{Opacity: 0.6, Width: 1.5, Color: DefaultColor}
	focusNode = NodeStyle{Opacity: 1, Highlighted: true}
	dimNode   = NodeStyle{Opacity: 0.2}
	focusEdge = EdgeStyle{Opacity: 1, Width: 2.5, Color: HighlightColor, Highlighted: true}
	dimEdge   = EdgeStyle{Opacity: 0.1, Width: 1.5, Color: DefaultColor}
)

// Derive computes the emphasis for every element of view under st.
func Derive(st State, view model.View) Emphasis {
	em := Emphasis{
		Nodes: make(map[string]NodeStyle, len(view.Nodes)),
		Edges: make(map[string]EdgeStyle, len(view.Edges)),
	}
	for i := range view.Nodes {
		id := view.Nodes[i].ID
		switch {
		case !st.Active():
			em.Nodes[id] = plainNode
		case st.HighlightedNodes[id]:
			em.Nodes[id] = focusNode
		default:
			em.Nodes[id] = dimNode
		}
	}
	for i := range view.Edges {
		id := view.Edges[i].ID
		switch {
		case !st.Active():
			em.Edges[id] = plainEdge
		case st.HighlightedEdges[id]:
			em.Edges[id] = focusEdge
		default:
			em.Edges[id] = dimEdge
		}
	}
	return em
}

// Node returns the style for id, or the unselected default.
func (e Emphasis) Node(id string) NodeStyle {
	if s, ok := e.Nodes[id]; ok {
		return s
	}
	return plainNode
}

// Edge returns the style for id, or the unselected default.
func (e Emphasis) Edge(id string) EdgeStyle {
	if s, ok := e.Edges[id]; ok {
		return s
	}
	return plainEdge
}
