package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Decisions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "notary_ratelimit_decisions_total",
			Help: "Rate limit decisions by scope and outcome",
		}, []string{"scope", "outcome"}), // outcome: "allowed", "rejected", "error"
	}
}

func (m *Metrics) IncrementDecision(scope, outcome string) {
	if m != nil {
		m.Decisions.WithLabelValues(scope, outcome).Inc()
	}
}
