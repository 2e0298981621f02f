package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus collectors for the catalog and admin bridge.
//
// All metrics are prefixed with "portfolio_":
//   - portfolio_catalog_refresh_total{result} - catalog refreshes by outcome
//   - portfolio_catalog_refresh_duration_seconds - read + parse latency
//   - portfolio_catalog_projects - records in the live snapshot
//   - portfolio_bridge_runs_total{op,status} - admin bridge invocations
//   - portfolio_bridge_run_duration_seconds{op} - admin script runtime
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry prometheus.Gatherer

	RefreshTotal    *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
	Projects        prometheus.Gauge

	BridgeRunsTotal  *prometheus.CounterVec
	BridgeRunSeconds *prometheus.HistogramVec
}

// New registers the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RefreshTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_catalog_refresh_total",
				Help: "Total catalog refreshes by result",
			},
			[]string{"result"}, // "ok" or "error"
		),
		RefreshDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "portfolio_catalog_refresh_duration_seconds",
				Help:    "Duration of record store read and parse in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),
		Projects: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "portfolio_catalog_projects",
				Help: "Number of records in the current catalog snapshot",
			},
		),
		BridgeRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_bridge_runs_total",
				Help: "Total admin bridge runs by operation and status",
			},
			[]string{"op", "status"},
		),
		BridgeRunSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "portfolio_bridge_run_duration_seconds",
				Help:    "Duration of admin bridge script runs in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"op"},
		),
	}
}

// ObserveRefresh records a catalog refresh. projects is the size of the
// snapshot that is live afterwards.
func (m *Metrics) ObserveRefresh(ok bool, projects int, took time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.RefreshTotal.WithLabelValues(result).Inc()
	m.RefreshDuration.Observe(took.Seconds())
	m.Projects.Set(float64(projects))
}

// ObserveBridgeRun records one admin bridge invocation.
func (m *Metrics) ObserveBridgeRun(op, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.BridgeRunsTotal.WithLabelValues(op, status).Inc()
	m.BridgeRunSeconds.WithLabelValues(op).Observe(took.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
