package resource

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Mutation outcomes recorded by Metrics.
const (
	OutcomeSuccess    = "success"
	OutcomeFailure    = "failure"
	OutcomeDropped    = "dropped"
	OutcomeSuperseded = "superseded"
)

// Metrics collects Prometheus metrics for resources. One collector can be
// shared by many resources; series are labelled by endpoint. A nil
// *Metrics records nothing.
type Metrics struct {
	mutationsTotal    *prometheus.CounterVec
	mutationDuration  *prometheus.HistogramVec
	mutationsInFlight *prometheus.GaugeVec
	rollbacksTotal    *prometheus.CounterVec
	readsTotal        *prometheus.CounterVec
	readDuration      *prometheus.HistogramVec
}

// NewMetrics registers the resource collectors on registry.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	return &Metrics{
		mutationsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "resource_mutations_total",
				Help: "Total number of resource mutations by outcome",
			},
			[]string{"endpoint", "kind", "strategy", "outcome"},
		),
		mutationDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "resource_mutation_duration_seconds",
				Help:    "Duration of resource mutation requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint", "kind"},
		),
		mutationsInFlight: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "resource_mutations_in_flight",
				Help: "Number of accepted resource mutations not yet settled",
			},
			[]string{"endpoint", "kind"},
		),
		rollbacksTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "resource_rollbacks_total",
				Help: "Total number of optimistic changes rolled back",
			},
			[]string{"endpoint", "kind"},
		),
		readsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "resource_reads_total",
				Help: "Total number of collection fetches by outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		readDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "resource_read_duration_seconds",
				Help:    "Duration of collection fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
	}
}

func (m *Metrics) mutationStarted(endpoint string, kind Kind) {
	if m == nil {
		return
	}
	m.mutationsInFlight.WithLabelValues(endpoint, string(kind)).Inc()
}

func (m *Metrics) mutationSettled(endpoint string, kc kindConfig, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.mutationsInFlight.WithLabelValues(endpoint, string(kc.kind)).Dec()
	m.mutationsTotal.WithLabelValues(endpoint, string(kc.kind), string(kc.strategy), outcome).Inc()
	if outcome == OutcomeSuccess || outcome == OutcomeFailure {
		m.mutationDuration.WithLabelValues(endpoint, string(kc.kind)).Observe(duration.Seconds())
	}
}

func (m *Metrics) rolledBack(endpoint string, kind Kind) {
	if m == nil {
		return
	}
	m.rollbacksTotal.WithLabelValues(endpoint, string(kind)).Inc()
}

func (m *Metrics) readSettled(endpoint, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.readsTotal.WithLabelValues(endpoint, outcome).Inc()
	if outcome != OutcomeSuperseded {
		m.readDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
	}
}
