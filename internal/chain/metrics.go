package chain

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks RPC traffic to the chain node.
type Metrics struct {
	RPCLatency    *prometheus.HistogramVec
	RPCFailures   *prometheus.CounterVec
	BreakerOpen   prometheus.Gauge
	CacheLookups  *prometheus.CounterVec
	Registrations *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return NewMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func NewMetricsWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RPCLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "notary_chain_rpc_duration_seconds",
			Help:    "Duration of chain RPC calls",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"op"}),
		RPCFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notary_chain_rpc_failures_total",
			Help: "Failed chain RPC calls",
		}, []string{"op"}),
		BreakerOpen: factory.NewGauge(prometheus.GaugeOpts{
			Name: "notary_chain_breaker_open",
			Help: "1 when the chain RPC circuit breaker is open",
		}),
		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notary_chain_decode_cache_total",
			Help: "Decode cache lookups by result",
		}, []string{"result"}), // result: "hit", "miss", "error"
		Registrations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "notary_chain_registrations_total",
			Help: "Registry transactions by method and outcome",
		}, []string{"method", "outcome"}), // outcome: "recorded", "disabled", "failed"
	}
}

func (m *Metrics) ObserveRPC(op string, d time.Duration) {
	if m != nil {
		m.RPCLatency.WithLabelValues(op).Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementRPCFailure(op string) {
	if m != nil {
		m.RPCFailures.WithLabelValues(op).Inc()
	}
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}

func (m *Metrics) IncrementCache(result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncrementRegistration(method, outcome string) {
	if m != nil {
		m.Registrations.WithLabelValues(method, outcome).Inc()
	}
}
