package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"falciparum/pkg/domain"
)

// PrometheusRecorder exports operation latencies and host event counts. It
// registers its collectors on its own registry, which cmd/hostsim serves on
// /metrics.
type PrometheusRecorder struct {
	registry   *prometheus.Registry
	operations *prometheus.HistogramVec
	failures   *prometheus.CounterVec
	events     *prometheus.CounterVec
}

// NewPrometheusRecorder builds a recorder with its collectors registered.
func NewPrometheusRecorder() *PrometheusRecorder {
	r := &PrometheusRecorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "falciparum",
			Name:      "operation_duration_seconds",
			Help:      "Duration of cohort service operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"operation"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "falciparum",
			Name:      "operation_failures_total",
			Help:      "Cohort service operations that returned an error.",
		}, []string{"operation"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "falciparum",
			Name:      "host_events_total",
			Help:      "Host events by kind: clinical and severe cases, severe anemia, clearances and deaths.",
		}, []string{"kind"}),
	}
	r.registry.MustRegister(r.operations, r.failures, r.events)
	for _, kind := range []domain.EventKind{
		domain.EventNewClinicalCase,
		domain.EventNewSevereCase,
		domain.EventSevereAnemia,
		domain.EventInfectionClear,
		domain.EventHostDeath,
	} {
		r.events.WithLabelValues(string(kind))
	}
	return r
}

// Registry returns the registry holding the recorder's collectors.
func (r *PrometheusRecorder) Registry() *prometheus.Registry { return r.registry }

// Observe records an operation duration and counts failures.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	r.operations.WithLabelValues(operation).Observe(duration.Seconds())
	if !success {
		r.failures.WithLabelValues(operation).Inc()
	}
}

// RecordEvent counts a host event by kind.
func (r *PrometheusRecorder) RecordEvent(_ context.Context, e domain.Event) {
	r.events.WithLabelValues(string(e.Kind)).Inc()
}
