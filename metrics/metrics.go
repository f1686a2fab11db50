// Package metrics exposes Prometheus collectors for the routing core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RequestsTotal counts handled queries by outcome.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carelink_requests_total",
		Help: "Handled queries by outcome.",
	}, []string{"outcome"})

	// DispatchesTotal counts per-domain handler dispatches by status.
	DispatchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carelink_dispatches_total",
		Help: "Domain handler dispatches by domain and status.",
	}, []string{"domain", "status"})

	// SynthesisTotal counts multi-domain synthesis invocations.
	SynthesisTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carelink_synthesis_total",
		Help: "Multi-domain synthesis invocations.",
	})

	// RequestDuration observes end-to-end handling latency.
	RequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "carelink_request_duration_seconds",
		Help:    "End-to-end query handling latency.",
		Buckets: prometheus.DefBuckets,
	})

	// ContextRefreshTotal counts background context refreshes by status.
	ContextRefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carelink_context_refresh_total",
		Help: "Background context refreshes by status.",
	}, []string{"status"})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
