package layout

import (
	"math"

	"github.com/vanderheijden86/graphlens/pkg/model"
)

// Preset lays the view out from caller-supplied node positions. Nodes
// without one are placed on a grid spanning the viewport, in view order.
func Preset(view model.View, vp Viewport) Snapshot {
	if vp.Width <= 0 || vp.Height <= 0 {
		vp = DefaultConfig().Viewport
	}

	missing := 0
	for i := range view.Nodes {
		if !hasPosition(&view.Nodes[i]) {
			missing++
		}
	}
	cols := int(math.Ceil(math.Sqrt(float64(missing))))
	rows := 1
	if cols > 0 {
		rows = (missing + cols - 1) / cols
	}
	dx := vp.Width / float64(cols+1)
	dy := vp.Height / float64(rows+1)

	out := Snapshot{Placements: make([]Placement, 0, len(view.Nodes))}
	k := 0
	for i := range view.Nodes {
		n := &view.Nodes[i]
		if hasPosition(n) {
			out.Placements = append(out.Placements, Placement{ID: n.ID, X: n.Position.X, Y: n.Position.Y, Pinned: true})
			continue
		}
		row, col := k/cols, k%cols
		out.Placements = append(out.Placements, Placement{
			ID: n.ID,
			X:  dx * float64(col+1),
			Y:  dy * float64(row+1),
		})
		k++
	}
	return out
}

func hasPosition(n *model.Node) bool {
	p := n.Position
	return p != nil && !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}
