package render

import (
	"io"

	"git.sr.ht/~sbinet/gg"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/graphlens/pkg/metrics"
)

// WritePNG rasterises sc with the same geometry as WriteSVG.
func WritePNG(w io.Writer, sc Scene) error {
	defer metrics.Timer(metrics.RenderPNG)()
	sc = sc.withDefaults()
	f := sc.place()

	dc := gg.NewContext(sc.Width, sc.Height)
	dc.SetColor(colorBackdrop)
	dc.Clear()

	dc.SetColor(colorHeaderBG)
	dc.DrawRoundedRectangle(16, 16, float64(sc.Width)-32, headerHeight-8, 10)
	dc.Fill()

	dc.SetFontFace(basicfont.Face7x13)
	dc.SetColor(colorText)
	dc.DrawStringAnchored(sc.Title, 32, 32, 0, 0.5)
	dc.SetColor(colorSubtle)
	dc.DrawStringAnchored(sc.subtitle(), 32, 50, 0, 0.5)

	for _, e := range f.Edges {
		c, err := ParseHex(e.Em.Color)
		if err != nil {
			c = MustHex("#999999")
		}
		dc.SetColor(withOpacity(c, e.Em.Opacity))
		dc.SetLineWidth(e.Em.Width)
		dc.DrawLine(e.X1, e.Y1, e.X2, e.Y2)
		dc.Stroke()
		if tip, l, r, ok := e.arrowHead(); ok {
			dc.NewSubPath()
			dc.MoveTo(tip[0], tip[1])
			dc.LineTo(l[0], l[1])
			dc.LineTo(r[0], r[1])
			dc.ClosePath()
			dc.Fill()
		}
	}

	for _, n := range f.Nodes {
		dc.SetColor(withOpacity(n.Style.Fill, n.Em.Opacity))
		dc.DrawCircle(n.X, n.Y, n.Radius)
		dc.Fill()
		dc.SetColor(withOpacity(n.Style.Border, n.Em.Opacity))
		dc.SetLineWidth(n.Style.BorderWidth)
		dc.DrawCircle(n.X, n.Y, n.Radius)
		dc.Stroke()

		dc.SetColor(withOpacity(colorText, n.Em.Opacity))
		dc.DrawStringAnchored(n.Label, n.X, n.Y+n.Radius+10, 0.5, 0.5)
	}

	return dc.EncodePNG(w)
}
