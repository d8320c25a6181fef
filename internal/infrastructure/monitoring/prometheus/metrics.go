// Package prometheus exposes the engine's operational metrics.  A single
// Metrics value is constructed at startup, registered on a private registry,
// and handed to each component that records measurements.
package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lokaskor"

// Metrics bundles every collector the engine records to.  All fields are
// safe for concurrent use.
type Metrics struct {
	registry *prometheus.Registry

	// AnalysisRuns counts completed analysis runs by mode ("point"/"region")
	// and outcome ("ok"/"fallback"/"error"/"stale").
	AnalysisRuns *prometheus.CounterVec

	// AnalysisDuration observes end-to-end run latency by mode.
	AnalysisDuration *prometheus.HistogramVec

	// BoundaryLatency observes scoring-backend call latency by operation
	// ("score"/"scan"/"geocode") and status ("ok"/"error"/"timeout").
	BoundaryLatency *prometheus.HistogramVec

	// CacheOps counts result-cache lookups by result ("hit"/"miss") and
	// invalidations under result "invalidate".
	CacheOps *prometheus.CounterVec

	// Notifications counts surfaced user notifications by kind.
	Notifications *prometheus.CounterVec

	// ActiveSessions tracks the number of live engine sessions.
	ActiveSessions prometheus.Gauge

	// PanelToggles counts panel operations by action ("open"/"close"/"abort").
	PanelToggles *prometheus.CounterVec

	// HeatmapRenders counts heatmap render requests by outcome
	// ("rendered"/"below_zoom"/"empty").
	HeatmapRenders *prometheus.CounterVec
}

// NewMetrics constructs and registers the full collector set on a fresh
// registry, including the standard Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		AnalysisRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_runs_total",
			Help:      "Completed analysis runs by mode and outcome.",
		}, []string{"mode", "outcome"}),
		AnalysisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "End-to-end analysis run latency by mode.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		BoundaryLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "boundary_latency_seconds",
			Help:      "Scoring backend call latency by operation and status.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation", "status"}),
		CacheOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "result_cache_ops_total",
			Help:      "Result cache lookups and invalidations.",
		}, []string{"result"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "User-facing notifications surfaced by kind.",
		}, []string{"kind"}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of live engine sessions.",
		}),
		PanelToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "panel_toggles_total",
			Help:      "Detail panel operations by action.",
		}, []string{"action"}),
		HeatmapRenders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heatmap_renders_total",
			Help:      "Heatmap render requests by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.AnalysisRuns,
		m.AnalysisDuration,
		m.BoundaryLatency,
		m.CacheOps,
		m.Notifications,
		m.ActiveSessions,
		m.PanelToggles,
		m.HeatmapRenders,
	)
	return m
}

// ObserveBoundary records one scoring backend call.
func (m *Metrics) ObserveBoundary(operation, status string, elapsed time.Duration) {
	m.BoundaryLatency.WithLabelValues(operation, status).Observe(elapsed.Seconds())
}

// ObserveRun records one completed analysis run.
func (m *Metrics) ObserveRun(mode, outcome string, elapsed time.Duration) {
	m.AnalysisRuns.WithLabelValues(mode, outcome).Inc()
	m.AnalysisDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
