// Package metrics exposes Prometheus counters for the rewrite engine. All
// methods are safe on a nil *Metrics, which disables collection.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine collectors.
type Metrics struct {
	// Results transformed, by provider and mode
	Transformed *prometheus.CounterVec

	// Hits not transformed, by provider and reason
	Skipped *prometheus.CounterVec

	// Full scan latency by provider and path ("indexed", "fallback")
	ScanLatency *prometheus.HistogramVec

	// Mutation batches applied to live pages
	BatchesApplied prometheus.Counter

	// Live page sessions currently open
	Sessions prometheus.Gauge
}

// New registers the collectors on reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		Transformed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "farmshift_results_transformed_total",
			Help: "Search results transformed, by provider and mode",
		}, []string{"provider", "mode"}),

		Skipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "farmshift_hits_skipped_total",
			Help: "Legacy links matched but not transformed, by provider and reason",
		}, []string{"provider", "reason"}),

		ScanLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "farmshift_scan_duration_seconds",
			Help:    "Duration of one engine invocation",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"provider", "path"}),

		BatchesApplied: f.NewCounter(prometheus.CounterOpts{
			Name: "farmshift_page_batches_applied_total",
			Help: "Mutation batches applied to live page sessions",
		}),

		Sessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "farmshift_page_sessions",
			Help: "Live page sessions currently open",
		}),
	}
}

// IncTransformed records one transformed result.
func (m *Metrics) IncTransformed(provider, mode string) {
	if m != nil {
		m.Transformed.WithLabelValues(provider, mode).Inc()
	}
}

// IncSkipped records one skipped hit.
func (m *Metrics) IncSkipped(provider, reason string) {
	if m != nil {
		m.Skipped.WithLabelValues(provider, reason).Inc()
	}
}

// ObserveScan records the duration of a scan.
func (m *Metrics) ObserveScan(provider, path string, d time.Duration) {
	if m != nil {
		m.ScanLatency.WithLabelValues(provider, path).Observe(d.Seconds())
	}
}

// IncBatches records an applied mutation batch.
func (m *Metrics) IncBatches() {
	if m != nil {
		m.BatchesApplied.Inc()
	}
}

// SetSessions records the number of open page sessions.
func (m *Metrics) SetSessions(n int) {
	if m != nil {
		m.Sessions.Set(float64(n))
	}
}
