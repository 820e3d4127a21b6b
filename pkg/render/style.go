package render

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"
)

// Style is the base look of a node type before emphasis is applied.
type Style struct {
	Fill        color.RGBA
	Border      color.RGBA
	Size        float64 // diameter in pixels
	BorderWidth float64
}

// StyleTable maps node types to styles. Types without an entry use the
// fallback style.
type StyleTable map[string]Style

var fallbackStyle = Style{
	Fill:        color.RGBA{0xa0, 0xae, 0xc0, 0xff},
	Border:      color.RGBA{0x71, 0x80, 0x96, 0xff},
	Size:        40,
	BorderWidth: 2,
}

// DefaultStyles returns the palette for the common entity types.
func DefaultStyles() StyleTable {
	mk := func(fill, border string) Style {
		return Style{Fill: MustHex(fill), Border: MustHex(border), Size: 40, BorderWidth: 2}
	}
	return StyleTable{
		"Person":     mk("#4299e1", "#2b6cb0"),
		"Company":    mk("#ed8936", "#c05621"),
		"Project":    mk("#48bb78", "#2f855a"),
		"Technology": mk("#9f7aea", "#6b46c1"),
	}
}

// For returns the style for a node type.
func (t StyleTable) For(typ string) Style {
	if s, ok := t[typ]; ok {
		if s.Size <= 0 {
			s.Size = fallbackStyle.Size
		}
		return s
	}
	return fallbackStyle
}

// ParseHex parses "#rrggbb" or "#rgb".
func ParseHex(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}

// MustHex is ParseHex for constants; it panics on malformed input.
func MustHex(s string) color.RGBA {
	c, err := ParseHex(s)
	if err != nil {
		panic(err)
	}
	return c
}

// withOpacity returns c with its alpha scaled by op, as non-premultiplied
// color for gg.
func withOpacity(c color.RGBA, op float64) color.NRGBA {
	op = min(1, max(0, op))
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: uint8(float64(c.A)*op + 0.5)}
}

// Hex formats c as #rrggbb.
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
