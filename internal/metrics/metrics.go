// Package metrics exports provider call counters and latencies in the
// Prometheus text format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder observes guarded provider calls and resolutions.
type Recorder struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	resolutions *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Provider calls by provider, cascade step, and outcome.",
		}, []string{"provider", "step", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Provider call latency including retries.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"provider", "step"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "property_resolutions_total",
			Help: "Completed resolutions by provider and whether an APN was found.",
		}, []string{"provider", "found"}),
	}
	r.registry.MustRegister(r.requests, r.latency, r.resolutions)
	return r
}

// Observe implements resilience.Observer.
func (r *Recorder) Observe(provider, step, outcome string, elapsed time.Duration) {
	r.requests.WithLabelValues(provider, step, outcome).Inc()
	r.latency.WithLabelValues(provider, step).Observe(elapsed.Seconds())
}

// Resolved counts one finished resolution.
func (r *Recorder) Resolved(provider string, found bool) {
	label := "false"
	if found {
		label = "true"
	}
	r.resolutions.WithLabelValues(provider, label).Inc()
}

// Handler serves the registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }
