// Package metrics exposes Prometheus metrics for the governance gateway:
// admission outcomes, generation requests, latency, and token throughput.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lcortez-code/strengthsync/pkg/ai"
)

const namespace = "strengthsync"
const subsystem = "ai"

// AIMetrics implements the gateway's Observer on a Prometheus registry.
type AIMetrics struct {
	registry *prometheus.Registry

	admissionsTotal  *prometheus.CounterVec
	generationsTotal *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	tokensTotal      *prometheus.CounterVec
}

// New creates the metric set and registers it on the given registry. A
// nil registry gets a fresh one.
func New(registry *prometheus.Registry) *AIMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &AIMetrics{
		registry: registry,

		admissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "admissions_total",
				Help:      "Admission check outcomes by feature and denial reason",
			},
			[]string{"feature", "outcome", "reason"},
		),

		generationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "generations_total",
				Help:      "Attempted model invocations by feature, model, and status",
			},
			[]string{"feature", "model", "status"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "generation_duration_seconds",
				Help:      "End-to-end model invocation latency",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"feature", "model"},
		),

		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "tokens_total",
				Help:      "Tokens consumed by feature and model",
			},
			[]string{"feature", "model"},
		),
	}

	registry.MustRegister(
		m.admissionsTotal,
		m.generationsTotal,
		m.requestDuration,
		m.tokensTotal,
	)
	return m
}

// ObserveAdmission implements gateway.Observer.
func (m *AIMetrics) ObserveAdmission(feature ai.Feature, allowed bool, reason string) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	} else {
		reason = ""
	}
	m.admissionsTotal.WithLabelValues(string(feature), outcome, reason).Inc()
}

// ObserveGeneration implements gateway.Observer.
func (m *AIMetrics) ObserveGeneration(feature ai.Feature, model string, success bool, latency time.Duration, totalTokens int) {
	status := "success"
	if !success {
		status = "error"
	}

	m.generationsTotal.WithLabelValues(string(feature), model, status).Inc()
	m.requestDuration.WithLabelValues(string(feature), model).Observe(latency.Seconds())
	if totalTokens > 0 {
		m.tokensTotal.WithLabelValues(string(feature), model).Add(float64(totalTokens))
	}
}

// Handler returns the exposition handler for the underlying registry.
func (m *AIMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry, for tests and for callers
// registering additional collectors.
func (m *AIMetrics) Registry() *prometheus.Registry {
	return m.registry
}
