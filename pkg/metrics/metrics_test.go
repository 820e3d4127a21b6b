package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestOp_Record(t *testing.T) {
	o := newOp("test_record")
	for _, d := range []time.Duration{4 * time.Millisecond, 2 * time.Millisecond, 3 * time.Millisecond} {
		o.Record(d)
	}

	want := OpStats{
		Name:  "test_record",
		Count: 3,
		Total: 9 * time.Millisecond,
		Avg:   3 * time.Millisecond,
		Min:   2 * time.Millisecond,
		Max:   4 * time.Millisecond,
	}
	if got := o.Stats(); got != want {
		t.Errorf("stats = %+v, want %+v", got, want)
	}

	o.Reset()
	if got := o.Stats(); got != (OpStats{Name: "test_record"}) {
		t.Errorf("reset left %+v", got)
	}
}

func TestTimer_FeedsHistogram(t *testing.T) {
	m := newOp("test_timer_histogram")
	stop := Timer(m)
	stop()

	if m.Count() != 1 {
		t.Fatalf("count = %d, want 1", m.Count())
	}
	if n := testutil.CollectAndCount(OperationDuration, "glens_operation_duration_seconds"); n == 0 {
		t.Error("expected histogram series after Timer")
	}
}

func TestTimer_Disabled(t *testing.T) {
	SetEnabled(false)
	defer SetEnabled(true)

	m := newOp("test_disabled")
	Timer(m)()
	if m.Count() != 0 {
		t.Error("disabled metrics should not record")
	}
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(LayoutReheats)
	LayoutReheats.Inc()
	if got := testutil.ToFloat64(LayoutReheats); got != before+1 {
		t.Errorf("reheats = %v, want %v", got, before+1)
	}
}

func TestWriteTextfile(t *testing.T) {
	VisibleNodes.Set(3)
	path := filepath.Join(t.TempDir(), "glens.prom")
	if err := WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "glens_visible_nodes 3") {
		t.Errorf("textfile missing gauge:\n%s", data)
	}
}

func TestSummary_SkipsIdleOps(t *testing.T) {
	ResetAll()
	t.Cleanup(ResetAll)
	LayoutTick.Record(time.Millisecond)
	FilterApply.Record(time.Millisecond)

	stats := Summary()
	if len(stats) != 2 || stats[0].Name != "filter_apply" || stats[1].Name != "layout_tick" {
		t.Errorf("summary = %+v", stats)
	}
}
