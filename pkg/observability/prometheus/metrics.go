// Package prometheus exposes the engine's iteration state as Prometheus
// metrics. The driving goroutine records batches and pushes snapshots; the
// registry is served over HTTP by the inspector.
package prometheus

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fractalforge/coordplane/pkg/plane"
)

var (
	// DefaultRegistry is the default Prometheus registry
	DefaultRegistry = prometheus.NewRegistry()

	// DefaultRegisterer is the default Prometheus registerer
	DefaultRegisterer = prometheus.WrapRegistererWith(
		prometheus.Labels{"service": "coordplane"}, DefaultRegistry)

	metricsOnce sync.Once
	metrics     *Metrics
)

// Metrics holds all Prometheus metrics for the iteration engine.
type Metrics struct {
	// Point-state gauges, refreshed from plane snapshots
	PointsEscaped    prometheus.Gauge
	PointsNotEscaped prometheus.Gauge
	PointsTrapped    prometheus.Gauge
	UnchangedRounds  prometheus.Gauge
	IterationCount   prometheus.Gauge
	Workers          prometheus.Gauge

	// Batch counters and timing, recorded per Iterate call
	BatchesTotal    *prometheus.CounterVec
	IterationsTotal prometheus.Counter
	EscapesTotal    prometheus.Counter
	BatchDuration   prometheus.Histogram

	// View mutations (pan/zoom/recenter/resize/function switches)
	ResetsTotal *prometheus.CounterVec
}

// GetMetrics returns the singleton metrics collection, creating and
// registering it on first use.
func GetMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = newMetrics(DefaultRegisterer)
	})
	return metrics
}

func newMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PointsEscaped: factory.NewGauge(prometheus.GaugeOpts{
			Name: "coordplane_points_escaped",
			Help: "Points that crossed the escape radius",
		}),
		PointsNotEscaped: factory.NewGauge(prometheus.GaugeOpts{
			Name: "coordplane_points_not_escaped",
			Help: "Points still in the iteration working set",
		}),
		PointsTrapped: factory.NewGauge(prometheus.GaugeOpts{
			Name: "coordplane_points_trapped",
			Help: "Points proven never-escaping by the analytic pre-test",
		}),
		UnchangedRounds: factory.NewGauge(prometheus.GaugeOpts{
			Name: "coordplane_unchanged_rounds",
			Help: "Consecutive iterate calls with no escapes",
		}),
		IterationCount: factory.NewGauge(prometheus.GaugeOpts{
			Name: "coordplane_iteration_count",
			Help: "Iterations applied since the last view reset",
		}),
		Workers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "coordplane_workers",
			Help: "Desired worker thread count",
		}),
		BatchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coordplane_batches_total",
			Help: "Iterate batches executed",
		}, []string{"path"}), // single_threaded | multi_threaded
		IterationsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "coordplane_iterations_total",
			Help: "Total iteration steps applied across all resets",
		}),
		EscapesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "coordplane_escapes_total",
			Help: "Total points escaped across all resets",
		}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "coordplane_batch_duration_seconds",
			Help:    "Wall-clock duration of Iterate calls",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 16),
		}),
		ResetsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "coordplane_resets_total",
			Help: "Grid resets by view mutation kind",
		}, []string{"kind"}),
	}
}

// RecordBatch records one Iterate call.
func (m *Metrics) RecordBatch(steps, escaped, threads int, duration time.Duration) {
	path := "single_threaded"
	if threads > 1 {
		path = "multi_threaded"
	}
	m.BatchesTotal.WithLabelValues(path).Inc()
	m.IterationsTotal.Add(float64(steps))
	m.EscapesTotal.Add(float64(escaped))
	m.BatchDuration.Observe(duration.Seconds())
}

// RecordReset records a view mutation that re-populated the grid.
func (m *Metrics) RecordReset(kind string) {
	m.ResetsTotal.WithLabelValues(kind).Inc()
}

// Observe refreshes the state gauges from a plane snapshot.
func (m *Metrics) Observe(s plane.Snapshot) {
	m.PointsEscaped.Set(float64(s.Escaped))
	m.PointsNotEscaped.Set(float64(s.NotEscaped))
	m.PointsTrapped.Set(float64(s.Trapped))
	m.UnchangedRounds.Set(float64(s.Unchanged))
	m.IterationCount.Set(float64(s.IterationCount))
	m.Workers.Set(float64(s.Threads))
}
