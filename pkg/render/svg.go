package render

import (
	"fmt"
	"html"
	"io"

	svg "github.com/ajstarks/svgo"

	"github.com/vanderheijden86/graphlens/pkg/metrics"
)

var (
	colorBackdrop = MustHex("#f9fafb")
	colorHeaderBG = MustHex("#f3f4f6")
	colorText     = MustHex("#111111")
	colorSubtle   = MustHex("#666666")
)

// WriteSVG renders sc as an SVG document.
func WriteSVG(w io.Writer, sc Scene) error {
	defer metrics.Timer(metrics.RenderSVG)()
	sc = sc.withDefaults()
	f := sc.place()

	canvas := svg.New(w)
	canvas.Start(sc.Width, sc.Height)
	canvas.Title(sc.Title)
	canvas.Rect(0, 0, sc.Width, sc.Height, "fill:"+Hex(colorBackdrop))
	canvas.Roundrect(16, 16, sc.Width-32, int(headerHeight)-8, 10, 10, "fill:"+Hex(colorHeaderBG))
	canvas.Text(32, 38, sc.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", Hex(colorText)))
	canvas.Text(32, 56, sc.subtitle(), fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", Hex(colorSubtle)))

	canvas.Gid("edges")
	for _, e := range f.Edges {
		stroke := e.Em.Color
		attrs := []string{
			dataID(e.ID),
			fmt.Sprintf("stroke:%s;stroke-width:%.1f;stroke-opacity:%.2f", stroke, e.Em.Width, e.Em.Opacity),
		}
		if e.Em.Highlighted {
			attrs = append([]string{`class="highlighted"`}, attrs...)
		}
		canvas.Line(int(e.X1), int(e.Y1), int(e.X2), int(e.Y2), attrs...)
		if tip, l, r, ok := e.arrowHead(); ok {
			canvas.Polygon(
				[]int{int(tip[0]), int(l[0]), int(r[0])},
				[]int{int(tip[1]), int(l[1]), int(r[1])},
				fmt.Sprintf("fill:%s;fill-opacity:%.2f", stroke, e.Em.Opacity),
			)
		}
	}
	canvas.Gend()

	canvas.Gid("nodes")
	for _, n := range f.Nodes {
		attrs := []string{
			dataID(n.ID),
			fmt.Sprintf("fill:%s;stroke:%s;stroke-width:%.1f;opacity:%.2f",
				Hex(n.Style.Fill), Hex(n.Style.Border), n.Style.BorderWidth, n.Em.Opacity),
		}
		if n.Em.Highlighted {
			attrs = append([]string{`class="highlighted"`}, attrs...)
		}
		canvas.Circle(int(n.X), int(n.Y), int(n.Radius), attrs...)
		canvas.Text(int(n.X), int(n.Y+n.Radius+14), n.Label,
			fmt.Sprintf("fill:%s;font-size:11px;font-family:monospace;text-anchor:middle;opacity:%.2f", Hex(colorText), n.Em.Opacity))
	}
	canvas.Gend()

	canvas.End()
	return nil
}

func dataID(id string) string {
	return fmt.Sprintf(`data-id="%s"`, html.EscapeString(id))
}
