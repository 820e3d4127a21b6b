package ui

import "github.com/charmbracelet/lipgloss"

// ══════════════════════════════════════════════════════════════════════════════
// DESIGN TOKENS - Consistent spacing and colors
// ══════════════════════════════════════════════════════════════════════════════

// Spacing constants for consistent layout (in characters)
const (
	SpaceXS = 1
	SpaceSM = 2
	SpaceMD = 3
)

// Light mode colors tuned for WCAG AA compliance (contrast ratio >= 4.5:1)
var (
	ColorText    = lipgloss.AdaptiveColor{Light: "#1A1A1A", Dark: "#F8F8F2"}
	ColorSubtext = lipgloss.AdaptiveColor{Light: "#555555", Dark: "#BFBFBF"}
	ColorMuted   = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#6272A4"}

	ColorInfo    = lipgloss.AdaptiveColor{Light: "#006080", Dark: "#8BE9FD"}
	ColorSuccess = lipgloss.AdaptiveColor{Light: "#007700", Dark: "#50FA7B"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#B06800", Dark: "#FFB86C"}
	ColorDanger  = lipgloss.AdaptiveColor{Light: "#CC0000", Dark: "#FF5555"}
)

// Layout thresholds
const (
	// MinDetailPaneWidth hides the detail pane on narrower terminals.
	MinDetailPaneWidth = 36
	// SplitViewThreshold is the width from which the detail pane sits
	// beside the canvas instead of replacing it.
	SplitViewThreshold = 100
	detailRatio        = 0.35
)
