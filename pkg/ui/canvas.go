package ui

import (
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/vanderheijden86/graphlens/pkg/engine"
	"github.com/vanderheijden86/graphlens/pkg/layout"
	"github.com/vanderheijden86/graphlens/pkg/model"
)

// canvasLabelWidth caps node labels on the canvas, in cells.
const canvasLabelWidth = 16

// class picks the style of a canvas cell.
type class uint8

const (
	clsEmpty class = iota
	clsEdgeDim
	clsEdge
	clsEdgeFocus
	clsNodeDim
	clsNode
	clsNodeFocus
	clsCursor
)

type cell struct {
	ch  string // "" marks the second half of a wide rune
	cls class
	typ string
}

// gridPoint is a projected node position in cells.
type gridPoint struct {
	Col, Row int
}

// Canvas draws a frame as a grid of runes: edges as line segments, nodes as
// type glyphs followed by their label.
type Canvas struct {
	Width  int
	Height int
	// Focus is the node under the keyboard cursor, drawn on top.
	Focus string
	Theme Theme
}

// project maps layout coordinates onto the grid. The bounding box of the
// placements is stretched over the canvas, leaving room for labels on the
// right. Placements without a finite position land in the middle.
func project(snap layout.Snapshot, width, height int) map[string]gridPoint {
	out := make(map[string]gridPoint, len(snap.Placements))
	if width <= 0 || height <= 0 {
		return out
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range snap.Placements {
		if !finitePair(p.X, p.Y) {
			continue
		}
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	cols := max(1, width-min(width/3, canvasLabelWidth/2)) - 1
	rows := height - 1
	mid := gridPoint{Col: cols / 2, Row: rows / 2}
	for _, p := range snap.Placements {
		if !finitePair(p.X, p.Y) {
			out[p.ID] = mid
			continue
		}
		gp := mid
		if maxX > minX {
			gp.Col = int(math.Round((p.X - minX) / (maxX - minX) * float64(cols)))
		}
		if maxY > minY {
			gp.Row = int(math.Round((p.Y - minY) / (maxY - minY) * float64(rows)))
		}
		out[p.ID] = gp
	}
	return out
}

func finitePair(x, y float64) bool {
	return !math.IsNaN(x) && !math.IsNaN(y) && !math.IsInf(x, 0) && !math.IsInf(y, 0)
}

// grid lays the frame out cell by cell.
func (c Canvas) grid(f engine.Frame) [][]cell {
	g := make([][]cell, max(0, c.Height))
	for r := range g {
		g[r] = make([]cell, max(0, c.Width))
		for k := range g[r] {
			g[r][k] = cell{ch: " "}
		}
	}
	if c.Width <= 0 || c.Height <= 0 {
		return g
	}
	pts := project(f.Layout, c.Width, c.Height)

	edges := make([]*model.Edge, 0, len(f.View.Edges))
	for i := range f.View.Edges {
		edges = append(edges, &f.View.Edges[i])
	}
	edgeClass := func(e *model.Edge) class {
		em := f.Emphasis.Edge(e.ID)
		switch {
		case em.Highlighted:
			return clsEdgeFocus
		case em.Opacity < 0.5:
			return clsEdgeDim
		default:
			return clsEdge
		}
	}
	sort.SliceStable(edges, func(i, j int) bool { return edgeClass(edges[i]) < edgeClass(edges[j]) })
	for _, e := range edges {
		a, ok1 := pts[e.Source]
		b, ok2 := pts[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		drawLine(g, a, b, edgeClass(e))
	}

	nodes := make([]*model.Node, 0, len(f.View.Nodes))
	for i := range f.View.Nodes {
		nodes = append(nodes, &f.View.Nodes[i])
	}
	nodeClass := func(n *model.Node) class {
		if n.ID == c.Focus {
			return clsCursor
		}
		em := f.Emphasis.Node(n.ID)
		switch {
		case em.Highlighted:
			return clsNodeFocus
		case em.Opacity < 1:
			return clsNodeDim
		default:
			return clsNode
		}
	}
	sort.SliceStable(nodes, func(i, j int) bool { return nodeClass(nodes[i]) < nodeClass(nodes[j]) })
	for _, n := range nodes {
		p, ok := pts[n.ID]
		if !ok {
			continue
		}
		cls := nodeClass(n)
		put(g, p.Row, p.Col, TypeIcon(n.Type), cls, n.Type, true)
		writeLabel(g, p.Row, p.Col+2, truncate(n.DisplayName(), canvasLabelWidth), cls, n.Type)
	}
	return g
}

// drawLine rasterises the segment between a and b, endpoints excluded.
func drawLine(g [][]cell, a, b gridPoint, cls class) {
	dc, dr := b.Col-a.Col, b.Row-a.Row
	glyph := lineGlyph(dc, dr)
	steps := max(abs(dc), abs(dr))
	for i := 1; i < steps; i++ {
		t := float64(i) / float64(steps)
		col := a.Col + int(math.Round(t*float64(dc)))
		row := a.Row + int(math.Round(t*float64(dr)))
		put(g, row, col, glyph, cls, "", false)
	}
}

func lineGlyph(dc, dr int) string {
	switch {
	case abs(dc) > 2*abs(dr):
		return "─"
	case abs(dr) > 2*abs(dc):
		return "│"
	case (dc > 0) == (dr > 0):
		return "╲"
	default:
		return "╱"
	}
}

// put writes one glyph. Edges never overwrite node glyphs or labels; nodes
// overwrite anything.
func put(g [][]cell, row, col int, ch string, cls class, typ string, force bool) bool {
	if row < 0 || row >= len(g) || col < 0 || col >= len(g[row]) {
		return false
	}
	cur := g[row][col]
	if !force && cur.cls >= clsNodeDim {
		return false
	}
	// Never leave half of a wide rune behind.
	if cur.ch == "" && col > 0 {
		g[row][col-1] = cell{ch: " "}
	}
	if col+1 < len(g[row]) && g[row][col+1].ch == "" {
		g[row][col+1] = cell{ch: " "}
	}
	w := runewidth.StringWidth(ch)
	if w == 2 {
		if col+1 >= len(g[row]) {
			return false
		}
		g[row][col+1] = cell{ch: "", cls: cls, typ: typ}
	}
	g[row][col] = cell{ch: ch, cls: cls, typ: typ}
	return true
}

// writeLabel writes s rune by rune until it runs off the row or into
// another node's glyph.
func writeLabel(g [][]cell, row, col int, s string, cls class, typ string) {
	if row < 0 || row >= len(g) {
		return
	}
	for _, r := range s {
		if col >= len(g[row]) {
			return
		}
		if isGlyph(g[row][col].ch) {
			return
		}
		if !put(g, row, col, string(r), cls, typ, true) {
			return
		}
		col += max(1, runewidth.RuneWidth(r))
	}
}

func isGlyph(s string) bool {
	switch s {
	case "●", "■", "◆", "▲", "•":
		return true
	}
	return false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Render draws the frame with the theme's styles. Consecutive cells of the
// same style are rendered as one run.
func (c Canvas) Render(f engine.Frame) string {
	g := c.grid(f)
	var b strings.Builder
	for r, row := range g {
		if r > 0 {
			b.WriteByte('\n')
		}
		start := 0
		for k := 1; k <= len(row); k++ {
			if k < len(row) && row[k].cls == row[start].cls && row[k].typ == row[start].typ {
				continue
			}
			var run strings.Builder
			for _, cl := range row[start:k] {
				run.WriteString(cl.ch)
			}
			b.WriteString(c.style(row[start]).Render(run.String()))
			start = k
		}
	}
	return b.String()
}

// Plain draws the frame without styling.
func (c Canvas) Plain(f engine.Frame) string {
	g := c.grid(f)
	lines := make([]string, len(g))
	for r, row := range g {
		var b strings.Builder
		for _, cl := range row {
			b.WriteString(cl.ch)
		}
		lines[r] = strings.TrimRight(b.String(), " ")
	}
	return strings.Join(lines, "\n")
}

func (c Canvas) style(cl cell) lipgloss.Style {
	t := c.Theme
	switch cl.cls {
	case clsEdgeDim:
		return t.EdgeDim
	case clsEdge:
		return t.EdgeText
	case clsEdgeFocus:
		return t.EdgeFocus
	case clsNodeDim:
		return t.MutedText
	case clsNode:
		return t.NodeStyle(cl.typ, false, false)
	case clsNodeFocus:
		return t.NodeStyle(cl.typ, true, false)
	case clsCursor:
		return t.FocusRing
	default:
		return t.Renderer.NewStyle()
	}
}
