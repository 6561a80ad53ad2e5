package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Operation outcomes recorded in metrics.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeRollback = "rollback"
	OutcomeTerminal = "terminal"
	OutcomeSkipped  = "skipped"
)

// Metrics exposes engine counters to Prometheus. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Operations *prometheus.CounterVec
	Dropped    *prometheus.CounterVec
	Inventory  *prometheus.CounterVec
}

// NewMetrics creates engine metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cartsync",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Cart operations by name and outcome.",
		}, []string{"op", "outcome"}),
		Dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cartsync",
			Subsystem: "engine",
			Name:      "dropped_total",
			Help:      "Cart operations dropped because another mutation was in flight.",
		}, []string{"op"}),
		Inventory: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cartsync",
			Subsystem: "engine",
			Name:      "inventory_refresh_total",
			Help:      "Inventory read-model refreshes by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.Operations, m.Dropped, m.Inventory)
	return m
}

func (m *Metrics) observe(op, outcome string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) drop(op string) {
	if m == nil {
		return
	}
	m.Dropped.WithLabelValues(op).Inc()
}

func (m *Metrics) inventory(outcome string) {
	if m == nil {
		return
	}
	m.Inventory.WithLabelValues(outcome).Inc()
}
