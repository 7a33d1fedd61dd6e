// Package observability wires Prometheus instrumentation for the ShellCast
// service: upstream fetch outcomes, refresh cycle counts, snapshot cache
// effectiveness, and HTTP request latency.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	// Upstream fetch metrics.
	UpstreamRequests *prometheus.CounterVec   // labels: provider={noaa,doh}, outcome={success,error}
	UpstreamDuration *prometheus.HistogramVec // labels: provider

	// Classification snapshot cache effectiveness.
	SnapshotCache *prometheus.CounterVec // labels: result={hit,miss}

	// Refresh cycle outcomes.
	RefreshCycles *prometheus.CounterVec // labels: job={biotoxin,tides}, outcome={success,partial,error}

	// Current beach status distribution, set after each reconciliation.
	BeachStatus *prometheus.GaugeVec // labels: status

	// HTTP request latency, recorded by the core middleware.
	RequestDuration *prometheus.HistogramVec // labels: method, route, status
}

// NewMetrics creates and registers all collectors with the given registerer.
// Pass prometheus.DefaultRegisterer in production; tests use a fresh
// prometheus.NewRegistry to avoid duplicate registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		UpstreamRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shellcast",
			Name:      "upstream_requests_total",
			Help:      "Upstream API requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shellcast",
			Name:      "upstream_request_duration_seconds",
			Help:      "Upstream API request duration.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"provider"}),
		SnapshotCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shellcast",
			Name:      "classification_snapshot_cache_total",
			Help:      "Classification snapshot cache hits and misses.",
		}, []string{"result"}),
		RefreshCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shellcast",
			Name:      "refresh_cycles_total",
			Help:      "Refresh cycles by job and outcome.",
		}, []string{"job", "outcome"}),
		BeachStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "shellcast",
			Name:      "beach_status",
			Help:      "Number of beaches per biotoxin status after the last reconciliation.",
		}, []string{"status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "shellcast",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration by method, route, and status.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		m.UpstreamRequests,
		m.UpstreamDuration,
		m.SnapshotCache,
		m.RefreshCycles,
		m.BeachStatus,
		m.RequestDuration,
	)

	return m
}

// NopMetrics returns a Metrics instance registered against a throwaway
// registry, for tests and tools that don't scrape.
func NopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
