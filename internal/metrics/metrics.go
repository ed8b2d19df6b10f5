// Package metrics exposes gateway counters on a dedicated Prometheus
// registry so tests can assert on them in isolation.
package metrics

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gateway's instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	// RequestsTotal counts prediction requests by terminal outcome
	// (success or the stage that rejected them).
	RequestsTotal *prometheus.CounterVec

	// RequestDuration observes end-to-end prediction latency.
	RequestDuration prometheus.Histogram

	RateLimits   prometheus.Counter
	ModelErrors  prometheus.Counter
	ArchiveDrops prometheus.Counter
}

// New creates a metrics set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gateway_requests_total",
			Help: "Prediction requests by terminal outcome.",
		}, []string{"outcome"}),
		RequestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gateway_request_duration_seconds",
			Help:    "End-to-end prediction latency.",
			Buckets: prometheus.DefBuckets,
		}),
		RateLimits: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		ModelErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_model_errors_total",
			Help: "Failed model backend calls.",
		}),
		ArchiveDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "gateway_archive_drops_total",
			Help: "Archive jobs dropped because the queue was full.",
		}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Snapshot flattens current counter values for the admin stats endpoint.
// Keys are metric names, with label values appended for vector metrics.
func (m *Metrics) Snapshot() map[string]float64 {
	out := make(map[string]float64)
	families, err := m.registry.Gather()
	if err != nil {
		return out
	}
	for _, fam := range families {
		for _, metric := range fam.Metric {
			name := fam.GetName()
			for _, label := range metric.GetLabel() {
				name = fmt.Sprintf("%s{%s=%s}", name, label.GetName(), label.GetValue())
			}
			switch {
			case metric.Counter != nil:
				out[name] = metric.Counter.GetValue()
			case metric.Histogram != nil:
				out[name+"_count"] = float64(metric.Histogram.GetSampleCount())
			}
		}
	}
	return out
}
