package ratelimit

import "github.com/prometheus/client_golang/prometheus"

// Outcome labels for the decisions counter.
const (
	OutcomeAllowed  = "allowed"
	OutcomeRejected = "rejected"
	OutcomeFailOpen = "fail_open"
)

// Metrics counts middleware decisions by outcome.
type Metrics struct {
	Decisions *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scanlog",
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Rate limit decisions on limited endpoints, by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.Decisions)
	return m
}

// observe is nil-safe so a Limiter without metrics needs no checks.
func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(outcome).Inc()
}
