package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Calculation outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeSkipped = "skipped"
	// OutcomeUnpersisted marks a computed result whose snapshot write failed.
	OutcomeUnpersisted = "unpersisted"
)

// HPPMetrics records cost engine activity.
type HPPMetrics struct {
	calculations *prometheus.CounterVec
	duration     prometheus.Histogram
	alerts       *prometheus.CounterVec
	stockEvents  *prometheus.CounterVec
	wacConflicts prometheus.Counter
}

// NewHPPMetrics registers the cost engine metrics on the provided registerer.
// A nil registerer yields a no-op recorder.
func NewHPPMetrics(reg prometheus.Registerer) *HPPMetrics {
	if reg == nil {
		return &HPPMetrics{}
	}
	calculations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hpp_calculations_total",
		Help: "Recipe cost calculations by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "hpp_calculation_duration_seconds",
		Help:    "Duration of a single recipe cost calculation.",
		Buckets: prometheus.DefBuckets,
	})
	alerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hpp_alerts_raised_total",
		Help: "Alerts raised by type and severity.",
	}, []string{"type", "severity"})
	stockEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hpp_stock_transactions_total",
		Help: "Stock transactions recorded by the WAC ledger.",
	}, []string{"type"})
	wacConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "hpp_wac_conflicts_total",
		Help: "Optimistic version conflicts retried by the WAC ledger.",
	})
	reg.MustRegister(calculations, duration, alerts, stockEvents, wacConflicts)
	return &HPPMetrics{
		calculations: calculations,
		duration:     duration,
		alerts:       alerts,
		stockEvents:  stockEvents,
		wacConflicts: wacConflicts,
	}
}

// ObserveCalculation records one recipe calculation.
func (m *HPPMetrics) ObserveCalculation(outcome string, duration time.Duration) {
	if m == nil || m.calculations == nil {
		return
	}
	m.calculations.WithLabelValues(jobLabel(outcome)).Inc()
	if outcome != OutcomeSkipped {
		m.duration.Observe(duration.Seconds())
	}
}

func (m *HPPMetrics) IncAlert(alertType, severity string) {
	if m == nil || m.alerts == nil {
		return
	}
	m.alerts.WithLabelValues(jobLabel(alertType), jobLabel(severity)).Inc()
}

func (m *HPPMetrics) IncStockTransaction(txType string) {
	if m == nil || m.stockEvents == nil {
		return
	}
	m.stockEvents.WithLabelValues(jobLabel(txType)).Inc()
}

func (m *HPPMetrics) IncWACConflict() {
	if m == nil || m.wacConflicts == nil {
		return
	}
	m.wacConflicts.Inc()
}
