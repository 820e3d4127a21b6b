package ui

import (
	"fmt"
	"strings"

	"github.com/vanderheijden86/graphlens/pkg/timeline"
)

// TimelineBar is the two-line strip under the canvas: a track with one
// marker per timeline point, and the label, counts and playback state of
// the current point.
type TimelineBar struct {
	Points  []timeline.Point
	Current int // index into Points, -1 before the first
	Playing bool
	Speed   float64
	Width   int
	Theme   Theme
}

const (
	markerPoint   = "◇"
	markerEvent   = "◈"
	markerCurrent = "◆"
)

// track returns the unstyled marker row. Points are spread evenly; when
// there are more points than cells, neighbours share a cell and the
// current point wins.
func (b TimelineBar) track() []string {
	w := max(1, b.Width)
	cells := make([]string, w)
	for i := range cells {
		cells[i] = "─"
	}
	n := len(b.Points)
	if n == 0 {
		return cells
	}
	for i, p := range b.Points {
		col := b.column(i, n, w)
		if cells[col] == markerCurrent {
			continue
		}
		switch {
		case i == b.Current:
			cells[col] = markerCurrent
		case p.Event != "":
			cells[col] = markerEvent
		default:
			cells[col] = markerPoint
		}
	}
	return cells
}

func (b TimelineBar) column(i, n, w int) int {
	if n == 1 {
		return 0
	}
	return i * (w - 1) / (n - 1)
}

// Status returns the second row: playback state, speed, the current point
// with its counts, and its key event if any.
func (b TimelineBar) Status() string {
	state := "⏸ paused"
	if b.Playing {
		state = "▶ playing"
	}
	parts := []string{fmt.Sprintf("%s %s", state, formatSpeed(b.Speed))}
	if b.Current >= 0 && b.Current < len(b.Points) {
		p := b.Points[b.Current]
		parts = append(parts,
			fmt.Sprintf("%s (%d/%d)", p.Label, b.Current+1, len(b.Points)),
			fmt.Sprintf("%d nodes · %d edges", p.NodeCount, p.EdgeCount),
		)
		if p.ChangeCount > 0 {
			parts = append(parts, fmt.Sprintf("Δ%d changes", p.ChangeCount))
		}
		if p.Event != "" {
			parts = append(parts, "★ "+p.Event)
		}
	} else if len(b.Points) > 0 {
		parts = append(parts, fmt.Sprintf("before %s", b.Points[0].Label))
	} else {
		parts = append(parts, "no timeline")
	}
	return truncate(strings.Join(parts, "  │  "), b.Width)
}

// Render draws both rows with the theme's styles.
func (b TimelineBar) Render() string {
	t := b.Theme
	var track strings.Builder
	for _, c := range b.track() {
		switch c {
		case markerCurrent:
			track.WriteString(t.PointCurrent.Render(c))
		case markerEvent:
			track.WriteString(t.PointEvent.Render(c))
		case markerPoint:
			track.WriteString(t.PrimaryBold.Render(c))
		default:
			track.WriteString(t.MutedText.Render(c))
		}
	}
	status := b.Status()
	return track.String() + "\n" + t.Base.Render(padRight(status, b.Width))
}
