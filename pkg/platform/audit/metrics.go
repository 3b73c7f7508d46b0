package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the audit write path. A non-zero rate on
// clearance_audit_write_failures_total or clearance_audit_dead_lettered_total
// means audit rows are missing from the primary store and must be alerted on.
type Metrics struct {
	Written         *prometheus.CounterVec
	WriteFailures   *prometheus.CounterVec
	Retried         prometheus.Counter
	DeadLettered    prometheus.Counter
	SinkFailures    prometheus.Counter
	Dropped         prometheus.Counter
	BufferDepth     prometheus.Gauge
	CircuitOpen     prometheus.Gauge
	NameResolveMiss prometheus.Counter
}

// NewMetrics registers audit metrics on reg. A nil registerer yields
// unregistered collectors, which keeps tests free of global state.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Written: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clearance_audit_entries_written_total",
			Help: "Audit entries persisted to the primary store",
		}, []string{"action"}),
		WriteFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clearance_audit_write_failures_total",
			Help: "Audit writes that failed and were moved to the retry buffer",
		}, []string{"action", "reason"}),
		Retried: f.NewCounter(prometheus.CounterOpts{
			Name: "clearance_audit_retried_total",
			Help: "Buffered audit entries persisted on retry",
		}),
		DeadLettered: f.NewCounter(prometheus.CounterOpts{
			Name: "clearance_audit_dead_lettered_total",
			Help: "Audit entries handed to the dead-letter sink",
		}),
		SinkFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "clearance_audit_dead_letter_sink_failures_total",
			Help: "Dead-letter publishes that failed",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "clearance_audit_dropped_total",
			Help: "Audit entries lost because both the retry buffer and the dead-letter sink were unavailable",
		}),
		BufferDepth: f.NewGauge(prometheus.GaugeOpts{
			Name: "clearance_audit_retry_buffer_depth",
			Help: "Audit entries waiting in the retry buffer",
		}),
		CircuitOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "clearance_audit_circuit_open",
			Help: "Audit store circuit breaker state (0=closed, 1=open)",
		}),
		NameResolveMiss: f.NewCounter(prometheus.CounterOpts{
			Name: "clearance_audit_user_name_unresolved_total",
			Help: "Audit entries written without a resolved user display name",
		}),
	}
}

func (m *Metrics) IncWritten(action Action) {
	if m != nil {
		m.Written.WithLabelValues(string(action)).Inc()
	}
}

func (m *Metrics) IncWriteFailure(action Action, reason string) {
	if m != nil {
		m.WriteFailures.WithLabelValues(string(action), reason).Inc()
	}
}

func (m *Metrics) IncRetried() {
	if m != nil {
		m.Retried.Inc()
	}
}

func (m *Metrics) IncDeadLettered() {
	if m != nil {
		m.DeadLettered.Inc()
	}
}

func (m *Metrics) IncSinkFailures() {
	if m != nil {
		m.SinkFailures.Inc()
	}
}

func (m *Metrics) IncDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) SetBufferDepth(n int) {
	if m != nil {
		m.BufferDepth.Set(float64(n))
	}
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.CircuitOpen.Set(1)
	} else {
		m.CircuitOpen.Set(0)
	}
}

func (m *Metrics) IncNameResolveMiss() {
	if m != nil {
		m.NameResolveMiss.Inc()
	}
}
