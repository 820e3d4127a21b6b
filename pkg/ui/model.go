// Package ui is the terminal explorer: a force-directed canvas, a timeline
// strip and a detail pane over an engine.Session.
package ui

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/graphlens/pkg/debug"
	"github.com/vanderheijden86/graphlens/pkg/engine"
	"github.com/vanderheijden86/graphlens/pkg/metrics"
	"github.com/vanderheijden86/graphlens/pkg/model"
	"github.com/vanderheijden86/graphlens/pkg/timeline"
)

// speeds is the ladder + and - move along.
var speeds = []float64{0.25, 0.5, 1, 2, 4, 8}

// FrameMsg tells the model the session has a new frame.
type FrameMsg struct{}

// WaitForFrameCmd blocks until the session signals a change. It yields no
// message once the session is closed.
func WaitForFrameCmd(s *engine.Session) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-s.Updates(); !ok {
			return nil
		}
		return FrameMsg{}
	}
}

// Option configures a Model.
type Option func(*Model)

// WithTitle sets the header title.
func WithTitle(title string) Option {
	return func(m *Model) { m.title = title }
}

// WithTheme replaces the default theme.
func WithTheme(t Theme) Option {
	return func(m *Model) { m.theme = t }
}

// WithSpeed sets the speed playback starts at.
func WithSpeed(speed float64) Option {
	return func(m *Model) {
		if speed > 0 {
			m.speed = speed
		}
	}
}

// WithClipboard replaces the system clipboard writer.
func WithClipboard(fn func(string) error) Option {
	return func(m *Model) { m.copy = fn }
}

// WithSize sets the initial terminal size, before the first WindowSizeMsg.
func WithSize(width, height int) Option {
	return func(m *Model) { m.width, m.height = width, height }
}

// Model is the bubbletea model of the explorer.
type Model struct {
	session *engine.Session
	frame   engine.Frame
	graph   *model.Graph
	points  []timeline.Point

	theme  Theme
	keys   keyMap
	help   help.Model
	search textinput.Model
	detail viewport.Model
	md     *markdownRenderer

	title      string
	width      int
	height     int
	focusID    string
	typeIdx    int // 0 shows every type, i > 0 only types[i-1]
	speed      float64
	searching  bool
	showDetail bool
	detailSrc  string
	copy       func(string) error

	statusMsg     string
	statusIsError bool
}

// NewModel builds the explorer over s. The session stays owned by the
// caller, who closes it after the program exits.
func NewModel(s *engine.Session, opts ...Option) Model {
	ti := textinput.New()
	ti.Placeholder = "search labels and properties"
	ti.Prompt = "/ "
	ti.CharLimit = 120

	m := Model{
		session:    s,
		theme:      DefaultTheme(lipgloss.DefaultRenderer()),
		keys:       defaultKeyMap(),
		help:       help.New(),
		search:     ti,
		title:      "graphlens",
		width:      120,
		height:     40,
		speed:      1,
		showDetail: true,
		copy:       clipboard.WriteAll,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.resize()
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, WaitForFrameCmd(m.session))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case FrameMsg:
		m.refresh()
		return m, WaitForFrameCmd(m.session)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		m.refresh()

	case tea.KeyMsg:
		if m.searching {
			return m.updateSearch(msg)
		}
		m.statusMsg = ""
		m.statusIsError = false
		cmd := m.handleKey(msg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Accept):
		m.searching = false
		m.search.Blur()
		return *m, nil
	case key.Matches(msg, m.keys.Cancel):
		m.searching = false
		m.search.Blur()
		m.search.SetValue("")
		m.apply(m.session.Search(""))
		return *m, nil
	}
	var cmd tea.Cmd
	before := m.search.Value()
	m.search, cmd = m.search.Update(msg)
	if v := m.search.Value(); v != before {
		m.apply(m.session.Search(strings.TrimSpace(v)))
	}
	return *m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		return tea.Quit

	case key.Matches(msg, k.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.resize()

	case key.Matches(msg, k.Next):
		m.moveFocus(1)
	case key.Matches(msg, k.Prev):
		m.moveFocus(-1)

	case key.Matches(msg, k.Select):
		if m.focusID == "" {
			m.setStatus("Tab to a node first", false)
			break
		}
		st, err := m.session.Click(m.focusID)
		if m.apply(err) {
			if st.Active() {
				m.setStatus("Selected "+st.Selected, false)
			} else {
				m.setStatus("Selection cleared", false)
			}
		}

	case key.Matches(msg, k.Clear):
		if m.help.ShowAll {
			m.help.ShowAll = false
			m.resize()
			break
		}
		if _, err := m.session.Click(""); m.apply(err) {
			m.focusID = ""
		}

	case key.Matches(msg, k.Play):
		if m.session.Playing() {
			m.session.Pause()
			m.setStatus("Paused", false)
		} else if m.apply(m.session.Play(m.speed)) {
			m.setStatus("Playing at "+formatSpeed(m.speed), false)
		}

	case key.Matches(msg, k.Forward):
		m.apply(m.session.Step())
	case key.Matches(msg, k.Back):
		m.stepBack()

	case key.Matches(msg, k.Faster):
		m.changeSpeed(1)
	case key.Matches(msg, k.Slower):
		m.changeSpeed(-1)

	case key.Matches(msg, k.Search):
		m.searching = true
		m.search.SetValue(m.frame.Filter.SearchTerm)
		m.search.CursorEnd()
		return m.search.Focus()

	case key.Matches(msg, k.Types):
		m.cycleType()

	case key.Matches(msg, k.Copy):
		m.copyNode()

	case key.Matches(msg, k.Detail):
		m.showDetail = !m.showDetail
		m.resize()

	case key.Matches(msg, k.ScrollUp):
		m.detail.LineUp(max(1, m.detail.Height/2))
	case key.Matches(msg, k.ScrollDn):
		m.detail.LineDown(max(1, m.detail.Height/2))

	case key.Matches(msg, k.Reset):
		if m.apply(m.session.Reset()) {
			m.typeIdx = 0
			m.focusID = ""
			m.search.SetValue("")
			m.setStatus("Reset to the loaded graph", false)
		}
	}
	m.refresh()
	return nil
}

// apply reports a session error on the status line. It returns true when
// err is nil.
func (m *Model) apply(err error) bool {
	if err == nil {
		return true
	}
	debug.Log("ui: %v", err)
	m.setStatus(err.Error(), true)
	return false
}

func (m *Model) setStatus(msg string, isErr bool) {
	m.statusMsg = msg
	m.statusIsError = isErr
}

// refresh pulls the latest frame and keeps keyboard focus and the detail
// pane in step with it.
func (m *Model) refresh() {
	m.frame = m.session.Frame()
	m.graph = m.session.Graph()
	m.points = m.session.Points()
	if m.focusID != "" && !m.visible(m.focusID) {
		m.focusID = ""
	}
	m.updateDetail()
}

func (m *Model) visible(id string) bool {
	for i := range m.frame.View.Nodes {
		if m.frame.View.Nodes[i].ID == id {
			return true
		}
	}
	return false
}

func (m *Model) moveFocus(delta int) {
	nodes := m.frame.View.Nodes
	if len(nodes) == 0 {
		m.focusID = ""
		return
	}
	idx := -1
	for i := range nodes {
		if nodes[i].ID == m.focusID {
			idx = i
			break
		}
	}
	switch {
	case idx < 0 && delta < 0:
		idx = len(nodes) - 1
	case idx < 0:
		idx = 0
	default:
		idx = (idx + delta + len(nodes)) % len(nodes)
	}
	m.focusID = nodes[idx].ID
}

// stepBack seeks to the point before the current one, wrapping to the
// last point.
func (m *Model) stepBack() {
	n := len(m.points)
	if n == 0 {
		m.apply(timeline.ErrNoPoints)
		return
	}
	prev := m.frame.Point - 1
	if prev < 0 {
		prev = n - 1
	}
	m.apply(m.session.Seek(m.points[prev].Time))
}

func (m *Model) changeSpeed(dir int) {
	idx := 0
	for i, s := range speeds {
		if s <= m.speed {
			idx = i
		}
	}
	idx = clamp(idx+dir, 0, len(speeds)-1)
	m.speed = speeds[idx]
	if m.apply(m.session.SetSpeed(m.speed)) {
		m.setStatus("Speed "+formatSpeed(m.speed), false)
	}
}

// cycleType steps through "all types" and then each node type alone.
func (m *Model) cycleType() {
	if m.graph == nil {
		return
	}
	types := m.graph.NodeTypes()
	m.typeIdx = (m.typeIdx + 1) % (len(types) + 1)
	if m.typeIdx == 0 {
		if m.apply(m.session.SetTypes()) {
			m.setStatus("Showing all types", false)
		}
		return
	}
	typ := types[m.typeIdx-1]
	if m.apply(m.session.SetTypes(typ)) {
		m.setStatus("Showing "+typ+" only", false)
	}
}

// copyTarget is the selected node, else the focused one.
func (m *Model) copyTarget() *model.Node {
	id := m.frame.Selection.Selected
	if id == "" {
		id = m.focusID
	}
	for i := range m.frame.View.Nodes {
		if m.frame.View.Nodes[i].ID == id {
			return &m.frame.View.Nodes[i]
		}
	}
	return nil
}

func (m *Model) copyNode() {
	n := m.copyTarget()
	if n == nil {
		m.setStatus("Nothing to copy", true)
		return
	}
	data, err := nodeJSON(n)
	if err == nil {
		err = m.copy(data)
	}
	if err != nil {
		m.setStatus(fmt.Sprintf("Clipboard error: %v", err), true)
		return
	}
	m.setStatus(fmt.Sprintf("📋 Copied %s to clipboard", n.ID), false)
}

// detailMarkdown is the source text of the detail pane.
func (m *Model) detailMarkdown() string {
	if sel := m.frame.Selection.Selected; sel != "" {
		for i := range m.frame.View.Nodes {
			n := &m.frame.View.Nodes[i]
			if n.ID == sel {
				return nodeMarkdown(n, m.session.Connections())
			}
		}
	}
	var event *model.KeyEvent
	if ev, ok := timeline.EventInMonth(m.graph, m.frame.Cursor); ok {
		event = &ev
	}
	return metadataMarkdown(m.graph, event)
}

// updateDetail re-renders the pane only when its source changed.
func (m *Model) updateDetail() {
	if !m.showDetail {
		return
	}
	src := m.detailMarkdown()
	if src == m.detailSrc {
		return
	}
	m.detailSrc = src
	m.detail.SetContent(m.md.Render(src))
}

// Layout

func (m Model) helpHeight() int {
	return lipgloss.Height(m.help.View(m.keys))
}

// bodyHeight is what remains after the header, the timeline strip, the
// status line and the help.
func (m Model) bodyHeight() int {
	return max(3, m.height-1-2-1-m.helpHeight())
}

func (m Model) splitView() bool {
	return m.showDetail && m.width >= SplitViewThreshold
}

func (m Model) detailWidth() int {
	if !m.showDetail {
		return 0
	}
	if !m.splitView() {
		return m.width
	}
	return max(MinDetailPaneWidth, int(float64(m.width)*detailRatio))
}

func (m Model) canvasWidth() int {
	switch {
	case m.splitView():
		return max(10, m.width-m.detailWidth())
	case m.showDetail:
		return 0
	default:
		return m.width
	}
}

func (m *Model) resize() {
	m.help.Width = m.width
	inner := max(10, m.detailWidth()-4) // border and padding
	m.detail = viewport.New(inner, max(1, m.bodyHeight()-2))
	m.md = newMarkdownRenderer(inner)
	if m.detailSrc != "" {
		m.detail.SetContent(m.md.Render(m.detailSrc))
	}
}

func (m Model) View() string {
	defer metrics.Timer(metrics.UIRender)()

	body := m.bodyHeight()
	var panes []string
	if w := m.canvasWidth(); w > 0 {
		c := Canvas{Width: w, Height: body, Focus: m.focusID, Theme: m.theme}
		panes = append(panes, c.Render(m.frame))
	}
	if m.showDetail {
		panel := m.theme.Panel.
			Width(m.detailWidth() - 2).
			Height(body - 2).
			Render(m.detail.View())
		panes = append(panes, panel)
	}

	bar := TimelineBar{
		Points:  m.points,
		Current: m.frame.Point,
		Playing: m.session.Playing(),
		Speed:   m.speed,
		Width:   m.width,
		Theme:   m.theme,
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.header(),
		lipgloss.JoinHorizontal(lipgloss.Top, panes...),
		bar.Render(),
		m.footer(),
		m.help.View(m.keys),
	)
}

func (m Model) header() string {
	parts := []string{m.title}
	if !m.frame.Cursor.IsZero() {
		parts = append(parts, m.frame.Cursor.UTC().Format("Jan 2006"))
	}
	parts = append(parts, fmt.Sprintf("%d nodes · %d edges", len(m.frame.View.Nodes), len(m.frame.View.Edges)))
	if f := m.frame.Filter; len(f.EnabledTypes) > 0 || f.SearchTerm != "" {
		var active []string
		if m.typeIdx > 0 && m.graph != nil {
			if types := m.graph.NodeTypes(); m.typeIdx-1 < len(types) {
				active = append(active, "type="+types[m.typeIdx-1])
			}
		}
		if f.SearchTerm != "" {
			active = append(active, fmt.Sprintf("search=%q", f.SearchTerm))
		}
		parts = append(parts, strings.Join(active, " "))
	}
	return m.theme.Header.Width(m.width).Render(truncate(strings.Join(parts, "  │  "), max(1, m.width-2)))
}

func (m Model) footer() string {
	switch {
	case m.searching:
		return m.search.View()
	case m.statusIsError:
		return m.theme.ErrorText.Render(truncate(m.statusMsg, m.width))
	case m.statusMsg != "":
		return m.theme.StatusText.Render(truncate(m.statusMsg, m.width))
	case m.focusID != "":
		return m.theme.MutedText.Render(truncate("focus: "+m.focusID, m.width))
	default:
		return ""
	}
}

// Accessors for tests and the CLI.

// Frame returns the frame the model last rendered from.
func (m Model) Frame() engine.Frame { return m.frame }

// FocusID returns the node under the keyboard cursor.
func (m Model) FocusID() string { return m.focusID }

// Speed returns the playback speed the model will use.
func (m Model) Speed() float64 { return m.speed }

// Searching reports whether the search input has focus.
func (m Model) Searching() bool { return m.searching }

// StatusMessage returns the status line text and whether it is an error.
func (m Model) StatusMessage() (string, bool) { return m.statusMsg, m.statusIsError }
