package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vanderheijden86/graphlens/pkg/config"
	"github.com/vanderheijden86/graphlens/pkg/filter"
	"github.com/vanderheijden86/graphlens/pkg/metrics"
	"github.com/vanderheijden86/graphlens/pkg/model"
	"github.com/vanderheijden86/graphlens/pkg/selection"
	"github.com/vanderheijden86/graphlens/pkg/testutil"
	"github.com/vanderheijden86/graphlens/pkg/timeline"
)

// quiet keeps the simulation loop from ticking during a test.
func quiet(opts Options) Options {
	if opts.FrameInterval == 0 {
		opts.FrameInterval = time.Hour
	}
	return opts
}

func openSession(t *testing.T, g *model.Graph, opts Options) *Session {
	t.Helper()
	s, err := Open(context.Background(), g, quiet(opts))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

// assertConsistent checks the layout covers exactly the view's nodes, in
// view order.
func assertConsistent(t testutil.TB, f Frame) {
	t.Helper()
	if len(f.Layout.Placements) != len(f.View.Nodes) {
		t.Fatalf("seq %d: %d placements for %d nodes", f.Seq, len(f.Layout.Placements), len(f.View.Nodes))
	}
	for i, p := range f.Layout.Placements {
		if p.ID != f.View.Nodes[i].ID {
			t.Fatalf("seq %d: placement %d is %s, view has %s", f.Seq, i, p.ID, f.View.Nodes[i].ID)
		}
	}
	testutil.AssertNoDanglingEdges(t, f.View)
}

func TestOpen_StartsAtFirstPoint(t *testing.T) {
	s := openSession(t, testutil.Chain(4), Options{})
	f := s.Frame()

	if !f.Cursor.Equal(testutil.Month(0)) {
		t.Errorf("cursor = %v, want first point", f.Cursor)
	}
	if f.Point != 0 {
		t.Errorf("point = %d, want 0", f.Point)
	}
	testutil.AssertNodeIDs(t, f.View, "n0")
	assertConsistent(t, f)
	if len(s.Points()) != 4 {
		t.Errorf("points = %d, want 4", len(s.Points()))
	}
	if s.ID() == "" {
		t.Error("session id should be set")
	}
	if got := promtest.ToFloat64(metrics.VisibleNodes); got != 1 {
		t.Errorf("visible nodes gauge = %v, want 1", got)
	}
}

func TestOpen_RejectsInvalidGraph(t *testing.T) {
	g := &model.Graph{Nodes: []model.Node{{ID: "a"}, {ID: "a"}}}
	if _, err := Open(context.Background(), g, Options{}); err == nil {
		t.Fatal("expected duplicate ids to be rejected")
	}
	if _, err := Open(context.Background(), nil, Options{}); err == nil {
		t.Fatal("expected nil graph to be rejected")
	}
}

func TestSeek_AppliesViewAndLayoutTogether(t *testing.T) {
	s := openSession(t, testutil.Chain(4), Options{})
	if err := s.Seek(testutil.Month(2)); err != nil {
		t.Fatal(err)
	}
	f := s.Frame()
	testutil.AssertNodeIDs(t, f.View, "n0", "n1", "n2")
	testutil.AssertEdgeIDs(t, f.View, "e1", "e2")
	assertConsistent(t, f)
	if f.Point != 2 {
		t.Errorf("point = %d, want 2", f.Point)
	}

	// Between points the latest earlier point is current.
	if err := s.Seek(testutil.Month(2).AddDate(0, 0, 10)); err != nil {
		t.Fatal(err)
	}
	if got := s.Frame().Point; got != 2 {
		t.Errorf("point between months = %d, want 2", got)
	}
}

func TestStep_Wraps(t *testing.T) {
	s := openSession(t, testutil.Chain(3), Options{})
	want := []int{1, 2, 0}
	for _, m := range want {
		if err := s.Step(); err != nil {
			t.Fatal(err)
		}
		if got := s.Frame().Cursor; !got.Equal(testutil.Month(m)) {
			t.Fatalf("cursor = %v, want month %d", got, m)
		}
	}
}

func TestPlayback_LoopsThroughPoints(t *testing.T) {
	clock := timeline.NewManualClock(testutil.BaseTime)
	s := openSession(t, testutil.Chain(4), Options{Clock: clock})

	if err := s.Play(1); err != nil {
		t.Fatal(err)
	}
	if !s.Playing() {
		t.Fatal("session should be playing")
	}
	for _, m := range []int{1, 2, 3, 0, 1} {
		waitFor(t, "live ticker", func() bool { return clock.Live() > 0 })
		clock.Fire()
		want := testutil.Month(m)
		waitFor(t, want.Format("Jan 2006"), func() bool { return s.Frame().Cursor.Equal(want) })
		f := s.Frame()
		assertConsistent(t, f)
		if len(f.View.Nodes) != m+1 {
			t.Errorf("month %d: %d nodes, want %d", m, len(f.View.Nodes), m+1)
		}
	}
	s.Pause()
	if s.Playing() {
		t.Error("Pause should stop playback")
	}
}

func TestFramesStayConsistentUnderConcurrentSeeks(t *testing.T) {
	s := openSession(t, testutil.Chain(6), Options{FrameInterval: time.Millisecond})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			_ = s.Seek(testutil.Month(i % 6))
		}
	}()

	for range 300 {
		assertConsistent(t, s.Frame())
	}
	close(stop)
	wg.Wait()
}

func TestClick_TogglePolicy(t *testing.T) {
	s := openSession(t, testutil.Chain(4), Options{})
	if err := s.Seek(testutil.Month(3)); err != nil {
		t.Fatal(err)
	}

	st, err := s.Click("n1")
	if err != nil {
		t.Fatal(err)
	}
	if st.Selected != "n1" || !st.HighlightedNodes["n0"] || !st.HighlightedNodes["n2"] || len(st.HighlightedEdges) != 2 {
		t.Errorf("selection = %+v", st)
	}
	if conns := s.Connections(); len(conns) != 2 {
		t.Errorf("connections = %d, want 2", len(conns))
	}
	f := s.Frame()
	if em := f.Emphasis.Node("n3"); em.Opacity != 0.2 {
		t.Errorf("n3 opacity = %v, want dimmed", em.Opacity)
	}
	testutil.AssertNodeIDs(t, f.View, "n0", "n1", "n2", "n3")

	st, _ = s.Click("n1")
	if st.Active() {
		t.Error("second click on the selected node should clear")
	}

	keep := openSession(t, testutil.Chain(2), Options{Policy: selection.SecondClickKeeps})
	_ = keep.Seek(testutil.Month(1))
	keep.Click("n0")
	if st, _ := keep.Click("n0"); st.Selected != "n0" {
		t.Error("keep policy should hold the selection")
	}
	if st, _ := keep.Click(""); st.Active() {
		t.Error("background click should clear")
	}
}

func TestSelectionClearedWhenNodeFilteredOut(t *testing.T) {
	s := openSession(t, testutil.Chain(4), Options{})
	_ = s.Seek(testutil.Month(3))
	s.Click("n3")
	_ = s.Seek(testutil.Month(0))
	if s.Frame().Selection.Active() {
		t.Error("selection should clear when its node leaves the view")
	}
}

func TestTypesAndSearch(t *testing.T) {
	s := openSession(t, testutil.Star(4), Options{})
	if !s.Frame().Cursor.IsZero() {
		t.Fatal("a graph without temporal data has no cursor")
	}

	if err := s.SetTypes("odd"); err != nil {
		t.Fatal(err)
	}
	f := s.Frame()
	testutil.AssertNodeIDs(t, f.View, "s1", "s3")
	testutil.AssertEdgeIDs(t, f.View)

	_ = s.SetTypes()
	if err := s.Search("spoke 2"); err != nil {
		t.Fatal(err)
	}
	testutil.AssertNodeIDs(t, s.Frame().View, "s2")

	_ = s.SetFilter(filter.State{}.WithTypes("hub", "even"))
	f = s.Frame()
	testutil.AssertNodeIDs(t, f.View, "hub", "s2", "s4")
	testutil.AssertEdgeIDs(t, f.View, "es2", "es4")
	if f.Filter.SearchTerm != "" {
		t.Error("SetFilter should replace the search term")
	}

	_ = s.SetEdgeTypes("none")
	testutil.AssertEdgeIDs(t, s.Frame().View)
}

func TestImport(t *testing.T) {
	s := openSession(t, testutil.Star(2), Options{})

	bad := &model.Graph{Nodes: []model.Node{{ID: "x"}, {ID: "x"}}}
	if err := s.Import(bad); err == nil {
		t.Fatal("expected invalid import to fail")
	}
	if len(s.Graph().Nodes) != 3 {
		t.Error("failed import must keep the current graph")
	}

	if err := s.Import(testutil.Chain(3)); err != nil {
		t.Fatal(err)
	}
	f := s.Frame()
	if len(s.Points()) != 3 {
		t.Errorf("points = %d, want 3", len(s.Points()))
	}
	if !f.Cursor.Equal(testutil.Month(0)) {
		t.Errorf("cursor = %v, want first point of the new graph", f.Cursor)
	}
	testutil.AssertNodeIDs(t, f.View, "n0")
	assertConsistent(t, f)
}

func TestReset(t *testing.T) {
	g := testutil.Chain(4)
	s := openSession(t, g, Options{})
	_ = s.Seek(testutil.Month(3))
	_ = s.Search("step")
	s.Click("n2")
	_ = s.Import(testutil.Star(2))

	if err := s.Reset(); err != nil {
		t.Fatal(err)
	}
	f := s.Frame()
	if s.Graph() != g {
		t.Error("Reset should restore the original graph")
	}
	if !f.Cursor.Equal(testutil.Month(0)) {
		t.Errorf("cursor = %v, want first point", f.Cursor)
	}
	if f.Selection.Active() || f.Filter.SearchTerm != "" {
		t.Errorf("filter %+v / selection %+v should be cleared", f.Filter, f.Selection)
	}
	testutil.AssertNodeIDs(t, f.View, "n0")
}

func TestRefilterCoalescing(t *testing.T) {
	var calls atomic.Int32
	entered := make(chan struct{})
	gate := make(chan struct{})
	apply := func(g *model.Graph, st filter.State, o filter.Options) model.View {
		if calls.Add(1) == 2 {
			close(entered)
			<-gate
		}
		return filter.Apply(g, st, o)
	}

	s, err := open(context.Background(), testutil.Star(3), quiet(Options{}), apply)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	before := promtest.ToFloat64(metrics.RefiltersCoalesced)

	done := make(chan error, 1)
	go func() { done <- s.Search("spoke") }()
	<-entered

	// Both return at once: the running refilter picks them up.
	if err := s.Search("spoke 1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Search("spoke 3"); err != nil {
		t.Fatal(err)
	}
	close(gate)
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	f := s.Frame()
	testutil.AssertNodeIDs(t, f.View, "s3")
	assertConsistent(t, f)
	if n := calls.Load(); n != 3 {
		t.Errorf("filter ran %d times, want 3 (open, first search, latest search)", n)
	}
	if got := promtest.ToFloat64(metrics.RefiltersCoalesced) - before; got != 1 {
		t.Errorf("coalesced = %v, want 1", got)
	}
}

func TestDrag(t *testing.T) {
	s := openSession(t, testutil.Star(2), Options{})
	if err := s.Drag("hub", 10, 20); err != nil {
		t.Fatal(err)
	}
	p, ok := s.Frame().Layout.Position("hub")
	if !ok || p.X != 10 || p.Y != 20 {
		t.Errorf("hub at %+v, want (10, 20)", p)
	}
	if err := s.EndDrag("hub"); err != nil {
		t.Fatal(err)
	}
	if err := s.Drag("missing", 0, 0); err == nil {
		t.Error("dragging an unknown node should fail")
	}

	preset := openSession(t, testutil.Star(2), Options{Mode: LayoutPreset})
	if err := preset.Drag("hub", 1, 1); err != nil {
		t.Errorf("preset drag = %v, want nil", err)
	}
}

func TestWatchReloadsFixture(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFixture(t, dir, "graph.json", testutil.Star(2))

	s := openSession(t, testutil.Star(2), Options{WatchPath: path, WatchDebounce: 20 * time.Millisecond})

	time.Sleep(50 * time.Millisecond)
	testutil.WriteFixture(t, dir, "graph.json", testutil.Star(5))
	waitFor(t, "reload", func() bool { return len(s.Graph().Nodes) == 6 })

	if err := os.WriteFile(filepath.Join(dir, "graph.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	if n := len(s.Graph().Nodes); n != 6 {
		t.Errorf("malformed fixture replaced the graph: %d nodes", n)
	}
}

func TestClose_IdempotentAndLeakFree(t *testing.T) {
	before := runtime.NumGoroutine()

	dir := t.TempDir()
	path := testutil.WriteFixture(t, dir, "graph.json", testutil.Chain(3))
	s, err := Open(context.Background(), testutil.Chain(3), Options{
		FrameInterval: time.Millisecond,
		BaseInterval:  5 * time.Millisecond,
		WatchPath:     path,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Play(4); err != nil {
		t.Fatal(err)
	}
	time.Sleep(30 * time.Millisecond)

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	waitFor(t, "goroutines to exit", func() bool { return runtime.NumGoroutine() <= before })

	if err := s.Seek(testutil.Month(1)); !errors.Is(err, ErrClosed) {
		t.Errorf("Seek after Close = %v, want ErrClosed", err)
	}
	if _, err := s.Click("n0"); !errors.Is(err, ErrClosed) {
		t.Errorf("Click after Close = %v, want ErrClosed", err)
	}
	if err := s.Search("x"); !errors.Is(err, ErrClosed) {
		t.Errorf("Search after Close = %v, want ErrClosed", err)
	}
	if s.Playing() {
		t.Error("Close should stop playback")
	}
}

func TestClose_ReleasesUpdateReaders(t *testing.T) {
	s, err := Open(context.Background(), testutil.Chain(3), quiet(Options{}))
	if err != nil {
		t.Fatal(err)
	}
	select {
	case <-s.Updates():
	default:
		t.Fatal("Open should signal the first frame")
	}

	got := make(chan bool, 1)
	go func() {
		_, ok := <-s.Updates()
		got <- ok
	}()
	time.Sleep(10 * time.Millisecond)

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case ok := <-got:
		if ok {
			t.Error("reader woke with a frame signal, want the channel closed")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reader still blocked on Updates after Close")
	}

	// Late signals from a stray tick or watcher callback are dropped.
	s.signal()
	if err := s.Search("n1"); !errors.Is(err, ErrClosed) {
		t.Errorf("Search after Close = %v, want ErrClosed", err)
	}
	if _, ok := <-s.Updates(); ok {
		t.Error("Updates delivered a signal after Close")
	}
}

func TestClose_ParentContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, err := Open(ctx, testutil.Chain(2), Options{FrameInterval: time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close hung after the parent context was cancelled")
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	opts := OptionsFromConfig(cfg).withDefaults()
	if opts.Mode != LayoutForce {
		t.Errorf("mode = %q", opts.Mode)
	}
	if opts.FrameInterval != time.Second/30 {
		t.Errorf("frame interval = %v", opts.FrameInterval)
	}
	if opts.Policy != selection.SecondClickClears {
		t.Errorf("policy = %v", opts.Policy)
	}
	if vp := opts.viewport(); vp.Width != 960 || vp.Height != 640 {
		t.Errorf("viewport = %+v", vp)
	}

	cfg.Selection.SecondClick = "keep"
	cfg.Layout.DisableBarnesHut = true
	cfg.Filter.Match = "fuzzy"
	opts = OptionsFromConfig(cfg)
	if opts.Policy != selection.SecondClickKeeps || !opts.Layout.ExactRepulsion || opts.Filter.Match != filter.MatchFuzzy {
		t.Errorf("options = %+v", opts)
	}
}

func TestFrameScene(t *testing.T) {
	s := openSession(t, testutil.Chain(3), Options{})
	_ = s.Seek(testutil.Month(2))
	s.Click("n0")
	sc := s.Frame().Scene("Chain", OptionsFromConfig(config.DefaultConfig()).viewport())
	if sc.Title != "Chain" || !sc.Cursor.Equal(testutil.Month(2)) {
		t.Errorf("scene header = %q %v", sc.Title, sc.Cursor)
	}
	if len(sc.Nodes) != 3 || len(sc.Positions) != 3 {
		t.Errorf("scene has %d nodes, %d positions", len(sc.Nodes), len(sc.Positions))
	}
	if !sc.Emphasis.Node("n1").Highlighted || sc.Emphasis.Node("n2").Highlighted {
		t.Error("scene should carry the selection emphasis")
	}
}
