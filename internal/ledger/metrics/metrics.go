package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the ledger module.
type Metrics struct {
	EntriesAppended *prometheus.CounterVec
	AppendFailures  prometheus.Counter
}

func New() *Metrics {
	return &Metrics{
		EntriesAppended: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeledger_ledger_entries_appended_total",
			Help: "Ledger entries appended by action",
		}, []string{"action"}),
		AppendFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tradeledger_ledger_append_failures_total",
			Help: "Ledger appends rejected by the store",
		}),
	}
}

func (m *Metrics) IncrementAppended(action string) {
	if m != nil {
		m.EntriesAppended.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) IncrementAppendFailure() {
	if m != nil {
		m.AppendFailures.Inc()
	}
}
