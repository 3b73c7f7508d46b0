package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for compliance evaluation.
type Metrics struct {
	// Store read latencies by source
	FetchLatency *prometheus.HistogramVec

	// Evaluation outcomes: compliant, non_compliant, system_error
	Outcome *prometheus.CounterVec

	// Overall evaluation latency
	EvaluateLatency prometheus.Histogram
}

// New registers compliance metrics on reg. A nil reg yields unregistered
// collectors, which keeps tests isolated.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FetchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clearance_compliance_fetch_duration_seconds",
			Help:    "Duration of evaluation store reads by source",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"source"}), // source: "employee", "requirements", "records"

		Outcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clearance_compliance_evaluations_total",
			Help: "Compliance evaluations by outcome and context type",
		}, []string{"outcome", "context_type"}),

		EvaluateLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "clearance_compliance_evaluate_duration_seconds",
			Help:    "Duration of a full compliance evaluation",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// ObserveFetchLatency records the duration of one store read.
func (m *Metrics) ObserveFetchLatency(source string, d time.Duration) {
	if m != nil {
		m.FetchLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

// IncrementOutcome records an evaluation outcome.
func (m *Metrics) IncrementOutcome(outcome, contextType string) {
	if m != nil {
		m.Outcome.WithLabelValues(outcome, contextType).Inc()
	}
}

// ObserveEvaluateLatency records the total evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}
