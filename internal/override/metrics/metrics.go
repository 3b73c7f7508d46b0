package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the override manager.
type Metrics struct {
	Created  prometheus.Counter
	Revoked  prometheus.Counter
	Rejected *prometheus.CounterVec
}

// New registers override metrics on reg. A nil reg yields unregistered
// collectors.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Created: f.NewCounter(prometheus.CounterOpts{
			Name: "clearance_overrides_created_total",
			Help: "Compliance overrides granted",
		}),
		Revoked: f.NewCounter(prometheus.CounterOpts{
			Name: "clearance_overrides_revoked_total",
			Help: "Compliance overrides revoked",
		}),
		Rejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "clearance_override_requests_rejected_total",
			Help: "Override create and revoke requests rejected, by operation and error code",
		}, []string{"operation", "code"}),
	}
}

func (m *Metrics) IncCreated() {
	if m != nil {
		m.Created.Inc()
	}
}

func (m *Metrics) IncRevoked() {
	if m != nil {
		m.Revoked.Inc()
	}
}

func (m *Metrics) IncRejected(operation, code string) {
	if m != nil {
		m.Rejected.WithLabelValues(operation, code).Inc()
	}
}
