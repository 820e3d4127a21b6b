// Package render draws a filtered, laid-out graph with its selection
// emphasis to static SVG and PNG files, and snapshots it into SQLite.
package render

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/graphlens/pkg/layout"
	"github.com/vanderheijden86/graphlens/pkg/model"
	"github.com/vanderheijden86/graphlens/pkg/selection"
)

const (
	padding      = 36.0
	headerHeight = 56.0
	labelWidth   = 18
)

// Scene is everything a surface needs to draw one frame.
type Scene struct {
	Title     string
	Cursor    time.Time // zero when temporal filtering is off
	Width     int
	Height    int
	Nodes     []model.Node
	Edges     []model.Edge
	Positions map[string]model.Position
	Styles    StyleTable
	Emphasis  selection.Emphasis
}

// NewScene builds a scene from a view and a layout frame, with default
// styles, the viewport size and no selection.
func NewScene(view model.View, snap layout.Snapshot, vp layout.Viewport) Scene {
	return Scene{
		Width:     int(vp.Width),
		Height:    int(vp.Height),
		Nodes:     view.Nodes,
		Edges:     view.Edges,
		Positions: snap.Positions(),
		Styles:    DefaultStyles(),
		Emphasis:  selection.Derive(selection.Clear(), view),
	}
}

func (s Scene) withDefaults() Scene {
	if s.Width <= 0 {
		s.Width = int(layout.DefaultConfig().Viewport.Width)
	}
	if s.Height <= 0 {
		s.Height = int(layout.DefaultConfig().Viewport.Height)
	}
	if s.Styles == nil {
		s.Styles = DefaultStyles()
	}
	if s.Title == "" {
		s.Title = "Graph snapshot"
	}
	return s
}

func (s Scene) subtitle() string {
	at := "all time"
	if !s.Cursor.IsZero() {
		at = s.Cursor.Format("Jan 2006")
	}
	return fmt.Sprintf("%s  nodes: %d  edges: %d", at, len(s.Nodes), len(s.Edges))
}

// placedNode and placedEdge are scene elements in canvas coordinates.
type placedNode struct {
	ID     string
	Label  string
	X, Y   float64
	Radius float64
	Style  Style
	Em     selection.NodeStyle
}

type placedEdge struct {
	ID             string
	X1, Y1, X2, Y2 float64
	TargetRadius   float64
	Em             selection.EdgeStyle
}

type frame struct {
	Nodes []placedNode
	Edges []placedEdge
}

// place fits the layout coordinates into the drawing area below the header,
// preserving aspect ratio and never enlarging. Nodes without a position sit at the centre.
// Highlighted elements are ordered last so they draw on top.
func (s Scene) place() frame {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := range s.Nodes {
		p, ok := s.Positions[s.Nodes[i].ID]
		if !ok {
			continue
		}
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}

	areaX, areaY := padding, padding+headerHeight
	areaW := float64(s.Width) - 2*padding
	areaH := float64(s.Height) - 2*padding - headerHeight
	cx, cy := areaX+areaW/2, areaY+areaH/2

	project := func(model.Position) (float64, float64) { return cx, cy }
	if !math.IsInf(minX, 0) {
		spanX, spanY := maxX-minX, maxY-minY
		scale := 1.0
		if spanX > 0 {
			scale = areaW / spanX
		}
		if spanY > 0 {
			scale = min(scale, areaH/spanY)
		}
		// Layouts smaller than the canvas keep their proportions.
		scale = min(scale, 1)
		midX, midY := (minX+maxX)/2, (minY+maxY)/2
		project = func(p model.Position) (float64, float64) {
			return cx + (p.X-midX)*scale, cy + (p.Y-midY)*scale
		}
	}

	var f frame
	at := make(map[string]placedNode, len(s.Nodes))
	for i := range s.Nodes {
		n := &s.Nodes[i]
		x, y := cx, cy
		if p, ok := s.Positions[n.ID]; ok {
			x, y = project(p)
		}
		st := s.Styles.For(n.Type)
		pn := placedNode{
			ID:     n.ID,
			Label:  runewidth.Truncate(n.DisplayName(), labelWidth, "…"),
			X:      x,
			Y:      y,
			Radius: st.Size / 2,
			Style:  st,
			Em:     s.Emphasis.Node(n.ID),
		}
		at[n.ID] = pn
		f.Nodes = append(f.Nodes, pn)
	}
	for i := range s.Edges {
		e := &s.Edges[i]
		src, ok1 := at[e.Source]
		tgt, ok2 := at[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		f.Edges = append(f.Edges, placedEdge{
			ID: e.ID,
			X1: src.X, Y1: src.Y, X2: tgt.X, Y2: tgt.Y,
			TargetRadius: tgt.Radius,
			Em:           s.Emphasis.Edge(e.ID),
		})
	}
	slices.SortStableFunc(f.Nodes, func(a, b placedNode) int { return boolOrder(a.Em.Highlighted, b.Em.Highlighted) })
	slices.SortStableFunc(f.Edges, func(a, b placedEdge) int { return boolOrder(a.Em.Highlighted, b.Em.Highlighted) })
	return f
}

func boolOrder(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	}
	return -1
}

// arrowHead returns the tip and the two base corners of an arrow ending on
// the target's border. ok is false for zero-length edges.
func (e placedEdge) arrowHead() (tip, left, right [2]float64, ok bool) {
	dx, dy := e.X2-e.X1, e.Y2-e.Y1
	l := math.Hypot(dx, dy)
	if l <= e.TargetRadius {
		return tip, left, right, false
	}
	ux, uy := dx/l, dy/l
	const size = 8.0
	tx, ty := e.X2-ux*e.TargetRadius, e.Y2-uy*e.TargetRadius
	bx, by := tx-ux*size, ty-uy*size
	tip = [2]float64{tx, ty}
	left = [2]float64{bx - uy*size/2, by + ux*size/2}
	right = [2]float64{bx + uy*size/2, by - ux*size/2}
	return tip, left, right, true
}
