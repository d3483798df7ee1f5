// Package metrics holds the Prometheus collectors for the proxy.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors registered for the service
type Metrics struct {
	Requests     *prometheus.CounterVec
	Latency      *prometheus.HistogramVec
	TierAttempts *prometheus.CounterVec
	CacheHits    *prometheus.CounterVec
}

// New creates and registers the service collectors on the given registry
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solar_proxy_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "status"},
		),
		Latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solar_proxy_request_duration_seconds",
				Help:    "HTTP request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		TierAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solar_proxy_tier_attempts_total",
				Help: "Upstream quality tier attempts by tier and outcome",
			},
			[]string{"tier", "outcome"},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solar_proxy_tile_cache_total",
				Help: "Tile cache lookups by result",
			},
			[]string{"result"},
		),
	}

	reg.MustRegister(m.Requests, m.Latency, m.TierAttempts, m.CacheHits)
	return m
}
