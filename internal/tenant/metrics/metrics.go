package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for tenant resolution.
type Metrics struct {
	Resolutions *prometheus.CounterVec
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notary_tenant_resolutions_total",
			Help: "Tenant resolutions by source and whether the tenant is registered",
		}, []string{"source", "known"}), // source: "header", "host", "default"
	}
}

// IncrementResolution records how a request's tenant was determined.
func (m *Metrics) IncrementResolution(source string, known bool) {
	if m == nil {
		return
	}
	label := "false"
	if known {
		label = "true"
	}
	m.Resolutions.WithLabelValues(source, label).Inc()
}
