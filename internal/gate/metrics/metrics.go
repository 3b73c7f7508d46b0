package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts assignment gate decisions.
type Metrics struct {
	Decisions *prometheus.CounterVec
}

// New registers gate metrics on reg. A nil reg yields unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clearance_gate_decisions_total",
			Help: "Assignment gate decisions by outcome and context type",
		}, []string{"outcome", "context_type"}), // outcome: "allowed", "override", "denied", "system_error"
	}
}

// IncDecision records one gate decision.
func (m *Metrics) IncDecision(outcome, contextType string) {
	if m != nil {
		m.Decisions.WithLabelValues(outcome, contextType).Inc()
	}
}
