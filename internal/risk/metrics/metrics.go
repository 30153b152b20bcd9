package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for risk scoring.
type Metrics struct {
	Computations    *prometheus.CounterVec
	ComputeLatency  prometheus.Histogram
	ScoreValues     prometheus.Histogram
	BreadcrumbFails prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Computations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeledger_risk_computations_total",
			Help: "Risk computations by trigger and outcome (computed, skipped, error)",
		}, []string{"trigger", "outcome"}),
		ComputeLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradeledger_risk_compute_duration_seconds",
			Help:    "Wall time of a risk computation including lock wait",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		ScoreValues: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "tradeledger_risk_score_value",
			Help:    "Distribution of computed risk scores",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}),
		BreadcrumbFails: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tradeledger_risk_breadcrumb_failures_total",
			Help: "RISK_RECALCULATED ledger entries that could not be written",
		}),
	}
}

func (m *Metrics) IncrementComputation(trigger, outcome string) {
	if m != nil {
		m.Computations.WithLabelValues(trigger, outcome).Inc()
	}
}

func (m *Metrics) ObserveCompute(d time.Duration, score int) {
	if m != nil {
		m.ComputeLatency.Observe(d.Seconds())
		m.ScoreValues.Observe(float64(score))
	}
}

func (m *Metrics) IncrementBreadcrumbFailure() {
	if m != nil {
		m.BreadcrumbFails.Inc()
	}
}
