// Package telemetry exposes Prometheus metrics for the prospect
// discovery service.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all service Prometheus metrics.
type Metrics struct {
	// Cache metrics
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter

	// Submission metrics
	SearchesSubmitted prometheus.Counter
	SearchesReused    prometheus.Counter
	QuotaDenied       prometheus.Counter

	// Poll engine metrics
	PollTicks         *prometheus.CounterVec
	TickDuration      prometheus.Histogram
	ActiveDiscoveries prometheus.Gauge
	TerminalStates    *prometheus.CounterVec
	ProspectsFound    prometheus.Histogram

	// Delivery metrics
	StreamClients prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates the metric set on its own registry so tests can
// construct independent instances without duplicate-registration
// panics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	m := &Metrics{registry: registry}

	m.CacheHits = factory.NewCounter(prometheus.CounterOpts{
		Name: "discovery_cache_hits_total",
		Help: "Search requests served from a cached remote job",
	})
	m.CacheMisses = factory.NewCounter(prometheus.CounterOpts{
		Name: "discovery_cache_misses_total",
		Help: "Search requests that required a new remote job",
	})
	m.CacheEvictions = factory.NewCounter(prometheus.CounterOpts{
		Name: "discovery_cache_evictions_total",
		Help: "Cache entries evicted after remote fetch failures",
	})

	m.SearchesSubmitted = factory.NewCounter(prometheus.CounterOpts{
		Name: "discovery_searches_submitted_total",
		Help: "Remote search jobs created",
	})
	m.SearchesReused = factory.NewCounter(prometheus.CounterOpts{
		Name: "discovery_searches_reused_total",
		Help: "Search requests that reused an existing remote job",
	})
	m.QuotaDenied = factory.NewCounter(prometheus.CounterOpts{
		Name: "discovery_quota_denied_total",
		Help: "Submissions blocked by the quota precheck",
	})

	m.PollTicks = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_poll_ticks_total",
		Help: "Poll ticks by outcome (ok, error)",
	}, []string{"outcome"})
	m.TickDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "discovery_tick_duration_seconds",
		Help:    "Duration of one poll-and-merge tick",
		Buckets: prometheus.DefBuckets,
	})
	m.ActiveDiscoveries = factory.NewGauge(prometheus.GaugeOpts{
		Name: "discovery_active_loops",
		Help: "Poll loops currently running",
	})
	m.TerminalStates = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "discovery_terminal_states_total",
		Help: "Discoveries reaching a terminal state, by status",
	}, []string{"status"})
	m.ProspectsFound = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "discovery_prospects_per_discovery",
		Help:    "Accumulated prospect count at discovery completion",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})

	m.StreamClients = factory.NewGauge(prometheus.GaugeOpts{
		Name: "discovery_stream_clients",
		Help: "Connected SSE stream clients",
	})

	return m
}

// Handler returns the Prometheus HTTP handler for the /metrics
// endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
