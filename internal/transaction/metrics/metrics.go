package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the transaction state machine.
type Metrics struct {
	Created     prometheus.Counter
	Transitions *prometheus.CounterVec
	Rejected    *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tradeledger_transactions_created_total",
			Help: "Trade transactions opened",
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeledger_transaction_transitions_total",
			Help: "Applied status transitions",
		}, []string{"from", "to"}),
		Rejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeledger_transaction_transitions_rejected_total",
			Help: "Status transitions rejected by the state machine, by error code",
		}, []string{"code"}),
	}
}

func (m *Metrics) IncrementCreated() {
	if m != nil {
		m.Created.Inc()
	}
}

func (m *Metrics) IncrementTransition(from, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Metrics) IncrementRejected(code string) {
	if m != nil {
		m.Rejected.WithLabelValues(code).Inc()
	}
}
