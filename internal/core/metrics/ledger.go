package metrics

import (
	"github.com/Nzyazin/smartwallet/internal/core/models"
	"github.com/prometheus/client_golang/prometheus"
)

// Ledger counts committed transaction records.
type Ledger struct {
	operations *prometheus.CounterVec
	amount     *prometheus.CounterVec
}

func NewLedger(reg prometheus.Registerer) *Ledger {
	l := &Ledger{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartwallet",
			Subsystem: "ledger",
			Name:      "operations_total",
			Help:      "Transaction records by ledger operation, type and status.",
		}, []string{"operation", "type", "status"}),
		amount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smartwallet",
			Subsystem: "ledger",
			Name:      "amount_total",
			Help:      "Sum of recorded amounts by type and status.",
		}, []string{"type", "status"}),
	}
	reg.MustRegister(l.operations, l.amount)
	return l
}

// Observe is safe on a nil *Ledger.
func (l *Ledger) Observe(operation string, tx *models.Transaction) {
	if l == nil || tx == nil {
		return
	}
	l.operations.WithLabelValues(operation, string(tx.Type), string(tx.Status)).Inc()

	amount, _ := tx.Amount.Float64()
	l.amount.WithLabelValues(string(tx.Type), string(tx.Status)).Add(amount)
}
