package ui_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/graphlens/pkg/engine"
	"github.com/vanderheijden86/graphlens/pkg/model"
	"github.com/vanderheijden86/graphlens/pkg/testutil"
	"github.com/vanderheijden86/graphlens/pkg/timeline"
	"github.com/vanderheijden86/graphlens/pkg/ui"
)

// newTestModel opens a preset-layout session on a manual clock, so nothing
// moves unless the test says so.
func newTestModel(t *testing.T, g *model.Graph, opts ...ui.Option) (ui.Model, *engine.Session) {
	t.Helper()
	s, err := engine.Open(context.Background(), g, engine.Options{
		Mode:          engine.LayoutPreset,
		FrameInterval: time.Hour,
		Clock:         timeline.NewManualClock(testutil.BaseTime),
	})
	if err != nil {
		t.Fatalf("engine.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	opts = append([]ui.Option{ui.WithTheme(ui.PlainTheme()), ui.WithSize(120, 30)}, opts...)
	return ui.NewModel(s, opts...), s
}

func press(t *testing.T, m ui.Model, keys ...tea.KeyMsg) ui.Model {
	t.Helper()
	for _, k := range keys {
		next, _ := m.Update(k)
		m = next.(ui.Model)
	}
	return m
}

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var (
	keyTab      = tea.KeyMsg{Type: tea.KeyTab}
	keyShiftTab = tea.KeyMsg{Type: tea.KeyShiftTab}
	keyEnter    = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc      = tea.KeyMsg{Type: tea.KeyEsc}
	keySpace    = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	keyLeft     = tea.KeyMsg{Type: tea.KeyLeft}
	keyRight    = tea.KeyMsg{Type: tea.KeyRight}
)

func TestModel_StartsOnFirstPoint(t *testing.T) {
	m, _ := newTestModel(t, testutil.Chain(4))
	f := m.Frame()
	if f.Point != 0 {
		t.Errorf("point = %d, want 0", f.Point)
	}
	testutil.AssertNodeIDs(t, f.View, "n0")
}

func TestModel_StepForwardAndBack(t *testing.T) {
	m, _ := newTestModel(t, testutil.Chain(4))

	m = press(t, m, keyRight, keyRight)
	if p := m.Frame().Point; p != 2 {
		t.Fatalf("after two steps point = %d, want 2", p)
	}
	testutil.AssertNodeIDs(t, m.Frame().View, "n0", "n1", "n2")

	m = press(t, m, keyLeft)
	if p := m.Frame().Point; p != 1 {
		t.Errorf("after stepping back point = %d, want 1", p)
	}

	m = press(t, m, keyLeft, keyLeft)
	if p := m.Frame().Point; p != 3 {
		t.Errorf("stepping back from the first point should wrap, got %d", p)
	}
}

func TestModel_FocusCyclesThroughVisibleNodes(t *testing.T) {
	m, _ := newTestModel(t, testutil.Star(3))

	m = press(t, m, keyTab)
	if m.FocusID() != "hub" {
		t.Fatalf("first tab focus = %q, want hub", m.FocusID())
	}
	m = press(t, m, keyTab, keyTab, keyTab, keyTab)
	if m.FocusID() != "hub" {
		t.Errorf("focus should wrap to hub, got %q", m.FocusID())
	}
	m = press(t, m, keyShiftTab)
	if m.FocusID() != "s3" {
		t.Errorf("shift+tab focus = %q, want s3", m.FocusID())
	}
}

func TestModel_EnterSelectsAndTogglesOff(t *testing.T) {
	m, _ := newTestModel(t, testutil.Star(3))

	m = press(t, m, keyTab, keyEnter)
	sel := m.Frame().Selection
	if sel.Selected != "hub" {
		t.Fatalf("selected = %q, want hub", sel.Selected)
	}
	if len(sel.HighlightedNodes) != 4 || len(sel.HighlightedEdges) != 3 {
		t.Errorf("highlight = %d nodes, %d edges; want 4, 3", len(sel.HighlightedNodes), len(sel.HighlightedEdges))
	}
	if msg, _ := m.StatusMessage(); msg != "Selected hub" {
		t.Errorf("status = %q", msg)
	}

	m = press(t, m, keyEnter)
	if m.Frame().Selection.Active() {
		t.Error("second enter on the same node should clear the selection")
	}
}

func TestModel_EnterWithoutFocus(t *testing.T) {
	m, _ := newTestModel(t, testutil.Star(2))
	m = press(t, m, keyEnter)
	if m.Frame().Selection.Active() {
		t.Error("nothing should be selected")
	}
	if msg, isErr := m.StatusMessage(); msg == "" || isErr {
		t.Errorf("status = %q (error %v), want a hint", msg, isErr)
	}
}

func TestModel_EscClearsSelection(t *testing.T) {
	m, _ := newTestModel(t, testutil.Star(3))
	m = press(t, m, keyTab, keyTab, keyEnter)
	if m.Frame().Selection.Selected != "s1" {
		t.Fatalf("selected = %q, want s1", m.Frame().Selection.Selected)
	}
	m = press(t, m, keyEsc)
	if m.Frame().Selection.Active() || m.FocusID() != "" {
		t.Errorf("esc left selection %q focus %q", m.Frame().Selection.Selected, m.FocusID())
	}
}

func TestModel_PlayPauseAndSpeed(t *testing.T) {
	m, s := newTestModel(t, testutil.Chain(3))

	m = press(t, m, keySpace)
	if !s.Playing() {
		t.Fatal("space should start playback")
	}
	m = press(t, m, runes("+"), runes("+"))
	if m.Speed() != 4 || s.Speed() != 4 {
		t.Errorf("speed = %v (session %v), want 4", m.Speed(), s.Speed())
	}
	m = press(t, m, runes("-"))
	if m.Speed() != 2 {
		t.Errorf("speed = %v, want 2", m.Speed())
	}
	m = press(t, m, runes("-"), runes("-"), runes("-"), runes("-"))
	if m.Speed() != 0.25 {
		t.Errorf("speed should bottom out at 0.25, got %v", m.Speed())
	}

	m = press(t, m, keySpace)
	if s.Playing() {
		t.Error("second space should pause")
	}
	if msg, _ := m.StatusMessage(); msg != "Paused" {
		t.Errorf("status = %q", msg)
	}
}

func TestModel_PlayWithoutPointsReportsError(t *testing.T) {
	m, s := newTestModel(t, testutil.Star(2))
	m = press(t, m, keySpace)
	if s.Playing() {
		t.Error("a graph without timeline points cannot play")
	}
	if _, isErr := m.StatusMessage(); !isErr {
		t.Error("expected an error status")
	}
}

func TestModel_CycleTypes(t *testing.T) {
	m, _ := newTestModel(t, testutil.Star(4))

	m = press(t, m, runes("t"))
	testutil.AssertNodeIDs(t, m.Frame().View, "hub")

	m = press(t, m, runes("t"))
	testutil.AssertNodeIDs(t, m.Frame().View, "s1", "s3")

	m = press(t, m, runes("t"), runes("t"))
	if n := len(m.Frame().View.Nodes); n != 5 {
		t.Errorf("cycling past the last type should show all 5 nodes, got %d", n)
	}
}

func TestModel_SearchIsLiveAndEscClears(t *testing.T) {
	m, _ := newTestModel(t, testutil.Star(4))

	m = press(t, m, runes("/"))
	if !m.Searching() {
		t.Fatal("/ should open the search input")
	}
	for _, r := range "Spoke 3" {
		m = press(t, m, runes(string(r)))
	}
	testutil.AssertNodeIDs(t, m.Frame().View, "s3")

	m = press(t, m, keyEnter)
	if m.Searching() {
		t.Error("enter should close the search input")
	}
	if term := m.Frame().Filter.SearchTerm; term != "Spoke 3" {
		t.Errorf("search term = %q", term)
	}

	m = press(t, m, runes("/"), keyEsc)
	if term := m.Frame().Filter.SearchTerm; term != "" {
		t.Errorf("esc should clear the search, term = %q", term)
	}
	if n := len(m.Frame().View.Nodes); n != 5 {
		t.Errorf("view has %d nodes after clearing search, want 5", n)
	}
}

func TestModel_CopyNodeJSON(t *testing.T) {
	var copied string
	m, _ := newTestModel(t, testutil.Star(2), ui.WithClipboard(func(s string) error {
		copied = s
		return nil
	}))

	m = press(t, m, runes("c"))
	if _, isErr := m.StatusMessage(); !isErr || copied != "" {
		t.Fatal("copy with nothing focused should fail without touching the clipboard")
	}

	m = press(t, m, keyTab, runes("c"))
	if !strings.Contains(copied, `"id": "hub"`) {
		t.Errorf("clipboard = %s", copied)
	}
	if msg, _ := m.StatusMessage(); !strings.Contains(msg, "Copied hub") {
		t.Errorf("status = %q", msg)
	}
}

func TestModel_CopyReportsClipboardError(t *testing.T) {
	m, _ := newTestModel(t, testutil.Star(2), ui.WithClipboard(func(string) error {
		return errors.New("no clipboard")
	}))
	m = press(t, m, keyTab, runes("c"))
	if msg, isErr := m.StatusMessage(); !isErr || !strings.Contains(msg, "no clipboard") {
		t.Errorf("status = %q (error %v)", msg, isErr)
	}
}

func TestModel_Reset(t *testing.T) {
	m, _ := newTestModel(t, testutil.Chain(4))
	m = press(t, m, keyRight, keyRight, runes("t"), keyTab, keyEnter)

	m = press(t, m, runes("r"))
	f := m.Frame()
	if f.Point != 0 || f.Selection.Active() || len(f.Filter.EnabledTypes) != 0 || m.FocusID() != "" {
		t.Errorf("reset left point %d selection %q types %v focus %q",
			f.Point, f.Selection.Selected, f.Filter.EnabledTypes, m.FocusID())
	}
}

func TestModel_FocusDroppedWhenNodeLeavesView(t *testing.T) {
	m, _ := newTestModel(t, testutil.Chain(3))
	m = press(t, m, keyRight, keyRight, keyShiftTab)
	if m.FocusID() != "n2" {
		t.Fatalf("focus = %q, want n2", m.FocusID())
	}
	m = press(t, m, keyRight) // wraps to the first point, n2 is not valid yet
	if m.FocusID() != "" {
		t.Errorf("focus on a hidden node should be dropped, got %q", m.FocusID())
	}
}

func TestModel_FrameMsgRefreshesAndRearms(t *testing.T) {
	m, s := newTestModel(t, testutil.Chain(3))
	if err := s.Seek(testutil.Month(2)); err != nil {
		t.Fatal(err)
	}
	next, cmd := m.Update(ui.FrameMsg{})
	if cmd == nil {
		t.Error("FrameMsg should re-arm the wait command")
	}
	if p := next.(ui.Model).Frame().Point; p != 2 {
		t.Errorf("point = %d, want 2", p)
	}
}

func TestWaitForFrameCmd_EndsWhenSessionCloses(t *testing.T) {
	_, s := newTestModel(t, testutil.Chain(3))
	select {
	case <-s.Updates():
	default:
	}

	msgs := make(chan tea.Msg, 1)
	go func() { msgs <- ui.WaitForFrameCmd(s)() }()
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case msg := <-msgs:
		if msg != nil {
			t.Errorf("msg = %#v, want nil after Close", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForFrameCmd still blocked after Close")
	}
}

func TestModel_QuitKey(t *testing.T) {
	m, _ := newTestModel(t, testutil.Star(1))
	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("q should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}
}

func TestModel_View(t *testing.T) {
	g := testutil.Chain(3)
	g.Metadata.KeyEvents = []model.KeyEvent{{Timestamp: "2023-01-15", Description: "Kickoff"}}
	m, _ := newTestModel(t, g, ui.WithTitle("supply chain"))

	out := m.View()
	for _, want := range []string{"supply chain", "Jan 2023", "1 nodes", "Step 0", "paused"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}

	next, _ := m.Update(tea.WindowSizeMsg{Width: 60, Height: 20})
	m = next.(ui.Model)
	if out := m.View(); out == "" {
		t.Error("narrow view rendered nothing")
	}

	m = press(t, m, runes("d"))
	if out := m.View(); !strings.Contains(out, "Step 0") {
		t.Error("hiding the detail pane on a narrow terminal should bring the canvas back")
	}
}

func TestModel_HelpToggle(t *testing.T) {
	m, _ := newTestModel(t, testutil.Star(1))
	short := strings.Count(m.View(), "\n")
	m = press(t, m, runes("?"))
	full := strings.Count(m.View(), "\n")
	if full != short {
		t.Errorf("toggling help changed the frame height from %d to %d lines", short, full)
	}
	m = press(t, m, keyEsc)
	if strings.Count(m.View(), "\n") != short {
		t.Error("esc should close the full help")
	}
}
