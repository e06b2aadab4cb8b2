package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for inventory operations.
const (
	OutcomeSuccess      = "success"
	OutcomeInsufficient = "insufficient"
	OutcomeNotFound     = "not_found"
	OutcomeDuplicate    = "duplicate"
	OutcomeRejected     = "rejected"
	OutcomeError        = "error"
)

// InventoryMetrics tracks reservation engine throughput and contention.
type InventoryMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	retries    *prometheus.CounterVec
	lowStock   prometheus.Gauge
	drift      prometheus.Counter
}

// NewInventoryMetrics registers the inventory metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewInventoryMetrics(reg prometheus.Registerer) *InventoryMetrics {
	if reg == nil {
		return &InventoryMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_operations_total",
		Help: "Inventory engine operations by outcome.",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inventory_operation_duration_seconds",
		Help:    "Latency of inventory engine operations, including lock waits and retries.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"operation"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_write_retries_total",
		Help: "Record writes retried after a version conflict or transient lock error.",
	}, []string{"operation"})
	lowStock := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "inventory_low_stock_records",
		Help: "Records at or below their reorder point on the last sweep.",
	})
	drift := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inventory_ledger_drift_total",
		Help: "Records whose counters disagreed with their ledger during an audit.",
	})
	reg.MustRegister(operations, duration, retries, lowStock, drift)
	return &InventoryMetrics{
		operations: operations,
		duration:   duration,
		retries:    retries,
		lowStock:   lowStock,
		drift:      drift,
	}
}

// Observe records one finished operation.
func (m *InventoryMetrics) Observe(operation, outcome string, elapsed time.Duration) {
	if m == nil || m.operations == nil {
		return
	}
	op := normalizeLabel(operation)
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// IncRetry counts a retried write attempt.
func (m *InventoryMetrics) IncRetry(operation string) {
	if m == nil || m.retries == nil {
		return
	}
	m.retries.WithLabelValues(normalizeLabel(operation)).Inc()
}

// SetLowStock publishes the size of the latest low-stock sweep.
func (m *InventoryMetrics) SetLowStock(count int) {
	if m == nil || m.lowStock == nil {
		return
	}
	m.lowStock.Set(float64(count))
}

// AddDrift counts records found out of balance with their ledger.
func (m *InventoryMetrics) AddDrift(count int) {
	if m == nil || m.drift == nil || count <= 0 {
		return
	}
	m.drift.Add(float64(count))
}
