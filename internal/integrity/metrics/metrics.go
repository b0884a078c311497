package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for integrity verification.
type Metrics struct {
	// Full Verify latency, including document download and chain decodes
	VerifyLatency prometheus.Histogram

	// Reports by overall status
	ReportOutcome *prometheus.CounterVec

	// Individual check outcomes by check kind and status
	CheckOutcome *prometheus.CounterVec

	// Latency of collaborator calls by source
	SourceLatency *prometheus.HistogramVec
}

// New registers the integrity metrics on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the integrity metrics on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		VerifyLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "notary_integrity_verify_duration_seconds",
			Help:    "Duration of a full contract integrity verification",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ReportOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notary_integrity_reports_total",
			Help: "Integrity reports produced by overall status",
		}, []string{"status"}),
		CheckOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notary_integrity_checks_total",
			Help: "Integrity check outcomes by check and status",
		}, []string{"check", "status"}), // check: "pdf_hash", "contract_chain", "evidence_hash", "signature_chain"
		SourceLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notary_integrity_source_duration_seconds",
			Help:    "Duration of collaborator calls made during verification",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"source"}), // source: "store", "document", "chain"
	}
}

func (m *Metrics) ObserveVerifyLatency(d time.Duration) {
	if m != nil {
		m.VerifyLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementReport(status string) {
	if m != nil {
		m.ReportOutcome.WithLabelValues(status).Inc()
	}
}

func (m *Metrics) IncrementCheck(check, status string) {
	if m != nil {
		m.CheckOutcome.WithLabelValues(check, status).Inc()
	}
}

func (m *Metrics) ObserveSourceLatency(source string, d time.Duration) {
	if m != nil {
		m.SourceLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}
