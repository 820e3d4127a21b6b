package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every glens collector. It is separate from the default
// registry so embedding programs do not inherit our series.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	OperationDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "glens_operation_duration_seconds",
		Help:    "Latency of engine operations, labelled by operation name.",
		Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1},
	}, []string{"operation"})

	VisibleNodes = factory.NewGauge(prometheus.GaugeOpts{
		Name: "glens_visible_nodes",
		Help: "Nodes in the most recent filtered view.",
	})

	VisibleEdges = factory.NewGauge(prometheus.GaugeOpts{
		Name: "glens_visible_edges",
		Help: "Edges in the most recent filtered view.",
	})

	LayoutReheats = factory.NewCounter(prometheus.CounterOpts{
		Name: "glens_layout_reheats_total",
		Help: "Times the force simulation was reheated by a filter change or drag.",
	})

	TimelineAdvances = factory.NewCounter(prometheus.CounterOpts{
		Name: "glens_timeline_advances_total",
		Help: "Cursor changes driven by timeline playback.",
	})

	ImportFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "glens_import_failures_total",
		Help: "Rejected fixture imports, labelled by reason.",
	}, []string{"reason"})

	RefiltersCoalesced = factory.NewCounter(prometheus.CounterOpts{
		Name: "glens_refilters_coalesced_total",
		Help: "Filter recomputations superseded by a newer request before they were applied.",
	})

	FixtureReloads = factory.NewCounter(prometheus.CounterOpts{
		Name: "glens_fixture_reloads_total",
		Help: "Fixture file changes picked up by the watcher.",
	})
)

func observe(name string, d time.Duration) {
	OperationDuration.WithLabelValues(name).Observe(d.Seconds())
}

// WriteTextfile dumps the registry in the text exposition format, for the
// node_exporter textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
