package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the contract lifecycle.
type Metrics struct {
	ContractsCreated *prometheus.CounterVec
	SignaturesAdded  *prometheus.CounterVec
	// Registry round-trips including mining, by operation
	RegistrationDuration *prometheus.HistogramVec
}

func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ContractsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notary_contracts_created_total",
			Help: "Contracts created by chain registration outcome",
		}, []string{"chain"}),
		SignaturesAdded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notary_signatures_added_total",
			Help: "Signatures recorded by resulting contract status",
		}, []string{"status"}),
		RegistrationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notary_contract_registration_duration_seconds",
			Help:    "Duration of registry writes made while creating or signing contracts",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementCreated(chain string) {
	if m != nil {
		m.ContractsCreated.WithLabelValues(chain).Inc()
	}
}

func (m *Metrics) IncrementSigned(status string) {
	if m != nil {
		m.SignaturesAdded.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) ObserveRegistration(operation string, d time.Duration) {
	if m != nil {
		m.RegistrationDuration.WithLabelValues(operation).Observe(d.Seconds())
	}
}
