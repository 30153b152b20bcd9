package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers recalculation fan-out and the task queue.
type Metrics struct {
	Dispatched   *prometheus.CounterVec
	Outcomes     *prometheus.CounterVec
	Fallbacks    prometheus.Counter
	Retries      prometheus.Counter
	DeadLettered prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		Dispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeledger_recalc_dispatched_total",
			Help: "Recalculation requests by delivery mode (inprocess, kafka)",
		}, []string{"mode"}),
		Outcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeledger_recalc_outcomes_total",
			Help: "Executed recalculations by outcome (computed, skipped, error, timeout)",
		}, []string{"outcome"}),
		Fallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tradeledger_recalc_publish_fallbacks_total",
			Help: "Tasks executed in process because publishing failed or the circuit was open",
		}),
		Retries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tradeledger_recalc_retries_total",
			Help: "Failed tasks republished for another attempt",
		}),
		DeadLettered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tradeledger_recalc_dead_lettered_total",
			Help: "Tasks routed to the dead-letter topic",
		}),
	}
}

func (m *Metrics) IncrementDispatched(mode string) {
	if m != nil {
		m.Dispatched.WithLabelValues(mode).Inc()
	}
}

func (m *Metrics) IncrementOutcome(outcome string) {
	if m != nil {
		m.Outcomes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) IncrementFallback() {
	if m != nil {
		m.Fallbacks.Inc()
	}
}

func (m *Metrics) IncrementRetry() {
	if m != nil {
		m.Retries.Inc()
	}
}

func (m *Metrics) IncrementDeadLettered() {
	if m != nil {
		m.DeadLettered.Inc()
	}
}
