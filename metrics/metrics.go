package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// --- Metrics ---

// Metrics holds all the Prometheus metrics for the aggregator. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	opDuration *prometheus.HistogramVec
	opsTotal   *prometheus.CounterVec
	poolShares *prometheus.GaugeVec
	retained   *prometheus.CounterVec
}

// NewMetrics creates and registers the metrics for the aggregator.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "aggregator_operation_duration_seconds",
			Help:    "Time taken by a single aggregator operation, external calls included.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		opsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aggregator_operations_total",
			Help: "Total number of aggregator operations, labeled by operation and result.",
		}, []string{"op", "result"}),
		poolShares: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "aggregator_pool_shares",
			Help: "Shares outstanding per (token, protocol) pair. Float approximation of a 256-bit value.",
		}, []string{"token", "protocol"}),
		retained: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "aggregator_retained_penalty_total",
			Help: "Early-withdrawal penalties retained, in token base units. Float approximation.",
		}, []string{"token"}),
	}
	reg.MustRegister(m.opDuration, m.opsTotal, m.poolShares, m.retained)
	return m
}

// ObserveOp records one finished operation. result is "ok" or an error class.
func (m *Metrics) ObserveOp(op, result string, took time.Duration) {
	if m == nil {
		return
	}
	m.opDuration.WithLabelValues(op).Observe(took.Seconds())
	m.opsTotal.WithLabelValues(op, result).Inc()
}

// SetPoolShares publishes the current share supply of a pair.
func (m *Metrics) SetPoolShares(token, protocol string, shares float64) {
	if m == nil {
		return
	}
	m.poolShares.WithLabelValues(token, protocol).Set(shares)
}

// AddRetained adds a retained penalty for token.
func (m *Metrics) AddRetained(token string, amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.retained.WithLabelValues(token).Add(amount)
}
