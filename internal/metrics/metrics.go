// Package metrics exposes Prometheus metrics for HTTP traffic, feedback
// writes and the connection pool.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"feedback-app/internal/dbpool"
)

const namespace = "feedbackd"

// Save outcomes recorded in FeedbackSaves.
const (
	OutcomeStored    = "stored"
	OutcomeRetryable = "retryable"
	OutcomeFailed    = "failed"
)

type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests  *prometheus.CounterVec
	HTTPDuration  *prometheus.HistogramVec
	FeedbackSaves *prometheus.CounterVec
}

// New builds a registry with Go runtime and process collectors plus the
// service's own metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		FeedbackSaves: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feedback_saves_total",
			Help:      "Feedback submissions by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// RecordSave counts one feedback write.
func (m *Metrics) RecordSave(err error) {
	switch {
	case err == nil:
		m.FeedbackSaves.WithLabelValues(OutcomeStored).Inc()
	case dbpool.IsRetryable(err):
		m.FeedbackSaves.WithLabelValues(OutcomeRetryable).Inc()
	default:
		m.FeedbackSaves.WithLabelValues(OutcomeFailed).Inc()
	}
}

// PoolStatter is implemented by *dbpool.Pool.
type PoolStatter interface {
	Stat() dbpool.Stats
}

// RegisterPool exports the pool's stats under the given pool name.
func (m *Metrics) RegisterPool(name string, p PoolStatter) error {
	return m.Registry.Register(newPoolCollector(name, p))
}
