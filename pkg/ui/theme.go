package ui

import (
	"os"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/graphlens/pkg/render"
)

// TermProfile holds the detected terminal color profile. Computed once at
// package init so every style helper can branch without re-detecting.
var TermProfile colorprofile.Profile

func init() {
	TermProfile = colorprofile.Detect(os.Stdout, os.Environ())
}

// ThemeBg returns the given hex color for TrueColor terminals and
// lipgloss.NoColor{} otherwise, so 16/256-color terminals keep their own
// background.
func ThemeBg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.TrueColor {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(hex)
}

// ThemeFg returns the given hex color for ANSI256+ terminals and a safe
// ANSI white (color 7) for 16-color or lower terminals.
func ThemeFg(hex string) lipgloss.TerminalColor {
	if TermProfile < colorprofile.ANSI256 {
		return lipgloss.ANSIColor(7)
	}
	return lipgloss.Color(hex)
}

type Theme struct {
	Renderer *lipgloss.Renderer

	// Colors
	Primary lipgloss.AdaptiveColor

	// Node types, keyed by model.Node.Type
	Types    map[string]lipgloss.AdaptiveColor
	Fallback lipgloss.AdaptiveColor

	// Edges
	Edge          lipgloss.AdaptiveColor
	EdgeHighlight lipgloss.AdaptiveColor

	// UI Elements
	Border lipgloss.AdaptiveColor
	Muted  lipgloss.AdaptiveColor

	// Styles
	Base   lipgloss.Style
	Header lipgloss.Style
	Panel  lipgloss.Style

	// Pre-computed canvas styles, created once instead of per cell.
	MutedText    lipgloss.Style // Dimmed nodes and labels
	EdgeText     lipgloss.Style // Plain edges
	EdgeDim      lipgloss.Style // Edges outside the selection
	EdgeFocus    lipgloss.Style // Highlighted edges
	FocusRing    lipgloss.Style // Keyboard focus marker
	PrimaryBold  lipgloss.Style
	StatusText   lipgloss.Style
	ErrorText    lipgloss.Style
	PointCurrent lipgloss.Style // Timeline marker at the cursor
	PointEvent   lipgloss.Style // Timeline points carrying a key event
}

// DefaultTheme returns the standard Dracula-inspired theme (adaptive). Node
// type colors follow the render palette: dark terminals get the fill, light
// terminals the darker border shade.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	t := Theme{
		Renderer: r,

		Primary: lipgloss.AdaptiveColor{Light: "#6B47D9", Dark: "#BD93F9"}, // Purple

		Types:    make(map[string]lipgloss.AdaptiveColor),
		Fallback: typeColor(render.DefaultStyles().For("")),

		Edge:          lipgloss.AdaptiveColor{Light: "#777777", Dark: "#999999"},
		EdgeHighlight: lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"},

		Border: lipgloss.AdaptiveColor{Light: "#AAAAAA", Dark: "#44475A"},
		Muted:  lipgloss.AdaptiveColor{Light: "#555555", Dark: "#6272A4"},
	}
	for typ, st := range render.DefaultStyles() {
		t.Types[typ] = typeColor(st)
	}

	t.Base = r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#000000", Dark: "#F8F8F2"})

	t.Header = r.NewStyle().
		Background(t.Primary).
		Foreground(lipgloss.AdaptiveColor{Light: "#FFFFFF", Dark: "#282A36"}).
		Bold(true).
		Padding(0, 1)

	t.Panel = r.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Border).
		Padding(0, SpaceXS)

	t.MutedText = r.NewStyle().Foreground(t.Muted).Faint(true)
	t.EdgeText = r.NewStyle().Foreground(t.Edge)
	t.EdgeDim = r.NewStyle().Foreground(t.Border).Faint(true)
	t.EdgeFocus = r.NewStyle().Foreground(t.EdgeHighlight).Bold(true)
	t.FocusRing = r.NewStyle().Foreground(t.Primary).Background(ThemeBg("#44475A")).Bold(true).Underline(true)
	t.PrimaryBold = r.NewStyle().Foreground(t.Primary).Bold(true)
	t.StatusText = r.NewStyle().Foreground(ColorSuccess)
	t.ErrorText = r.NewStyle().Foreground(ColorDanger).Bold(true)
	t.PointCurrent = r.NewStyle().Foreground(ThemeFg("#BD93F9")).Bold(true)
	t.PointEvent = r.NewStyle().Foreground(ColorWarning)

	return t
}

func typeColor(st render.Style) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: render.Hex(st.Border), Dark: render.Hex(st.Fill)}
}

// TypeColor returns the color for a node type, or the fallback for types
// without an entry.
func (t Theme) TypeColor(typ string) lipgloss.AdaptiveColor {
	if c, ok := t.Types[typ]; ok {
		return c
	}
	return t.Fallback
}

// NodeStyle returns the canvas style for a node of typ.
func (t Theme) NodeStyle(typ string, highlighted, dimmed bool) lipgloss.Style {
	switch {
	case dimmed:
		return t.MutedText
	case highlighted:
		return t.Renderer.NewStyle().Foreground(t.TypeColor(typ)).Bold(true)
	default:
		return t.Renderer.NewStyle().Foreground(t.TypeColor(typ))
	}
}

// TypeIcon returns a glyph for a node type. Unknown types get a plain dot.
func TypeIcon(typ string) string {
	switch typ {
	case "Person":
		return "●"
	case "Company":
		return "■"
	case "Project":
		return "◆"
	case "Technology":
		return "▲"
	default:
		return "•"
	}
}

// PlainTheme returns the theme for output that is not a terminal: its
// renderer has no color profile, so styles render as plain text.
func PlainTheme() Theme {
	return DefaultTheme(lipgloss.NewRenderer(nil))
}
