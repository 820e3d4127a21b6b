package ui

import (
	"strings"
	"testing"

	"github.com/vanderheijden86/graphlens/pkg/testutil"
	"github.com/vanderheijden86/graphlens/pkg/timeline"
)

func threePoints() []timeline.Point {
	return []timeline.Point{
		{Time: testutil.Month(0), Label: "Jan 2023", NodeCount: 1, ChangeCount: 1},
		{Time: testutil.Month(1), Label: "Feb 2023", NodeCount: 2, EdgeCount: 1, ChangeCount: 2, Event: "Series A"},
		{Time: testutil.Month(2), Label: "Mar 2023", NodeCount: 3, EdgeCount: 2, ChangeCount: 2},
	}
}

func TestTimelineBar_Track(t *testing.T) {
	tests := []struct {
		name    string
		current int
		want    string
	}{
		{"first", 0, "◆────◈────◇"},
		{"event point current", 1, "◇────◆────◇"},
		{"before first", -1, "◇────◈────◇"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := TimelineBar{Points: threePoints(), Current: tc.current, Width: 11, Theme: PlainTheme()}
			if got := strings.Join(b.track(), ""); got != tc.want {
				t.Errorf("track = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestTimelineBar_TrackCrowded(t *testing.T) {
	var points []timeline.Point
	for i := 0; i < 30; i++ {
		points = append(points, timeline.Point{Time: testutil.Month(i)})
	}
	b := TimelineBar{Points: points, Current: 17, Width: 10, Theme: PlainTheme()}
	track := b.track()
	if len(track) != 10 {
		t.Fatalf("track has %d cells, want 10", len(track))
	}
	if n := strings.Count(strings.Join(track, ""), markerCurrent); n != 1 {
		t.Errorf("current marker drawn %d times, want once", n)
	}
}

func TestTimelineBar_Status(t *testing.T) {
	b := TimelineBar{Points: threePoints(), Current: 1, Playing: true, Speed: 2, Width: 200, Theme: PlainTheme()}
	status := b.Status()
	for _, want := range []string{"▶ playing 2x", "Feb 2023 (2/3)", "2 nodes · 1 edges", "Δ2 changes", "★ Series A"} {
		if !strings.Contains(status, want) {
			t.Errorf("status %q missing %q", status, want)
		}
	}

	b.Playing, b.Speed, b.Current = false, 0.5, -1
	status = b.Status()
	if !strings.Contains(status, "⏸ paused 0.5x") || !strings.Contains(status, "before Jan 2023") {
		t.Errorf("status = %q", status)
	}

	b.Points = nil
	if status = b.Status(); !strings.Contains(status, "no timeline") {
		t.Errorf("status without points = %q", status)
	}
}

func TestTimelineBar_StatusTruncated(t *testing.T) {
	b := TimelineBar{Points: threePoints(), Current: 1, Speed: 1, Width: 20, Theme: PlainTheme()}
	if got := b.Status(); !strings.HasSuffix(got, "…") {
		t.Errorf("status %q should be truncated to the bar width", got)
	}
}

func TestTimelineBar_RenderHasTwoRows(t *testing.T) {
	b := TimelineBar{Points: threePoints(), Current: 0, Speed: 1, Width: 40, Theme: PlainTheme()}
	if n := strings.Count(b.Render(), "\n"); n != 1 {
		t.Errorf("render has %d line breaks, want 1", n)
	}
}
