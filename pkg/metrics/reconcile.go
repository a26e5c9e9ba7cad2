package metrics

import "github.com/prometheus/client_golang/prometheus"

// ReconcileMetrics counts ledger changes made by sheet reconciliation.
type ReconcileMetrics struct {
	changes *prometheus.CounterVec
}

// NewReconcileMetrics registers the reconciliation counters on the provided registerer.
func NewReconcileMetrics(reg prometheus.Registerer) *ReconcileMetrics {
	if reg == nil {
		return &ReconcileMetrics{}
	}
	changes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_changes_total",
		Help:      "Ledger rows touched by reconciliation, by change type.",
	}, []string{"change"})
	reg.MustRegister(changes)
	return &ReconcileMetrics{changes: changes}
}

// Add increments the counter for change by n.
func (r *ReconcileMetrics) Add(change string, n int) {
	if r == nil || r.changes == nil || n <= 0 {
		return
	}
	r.changes.WithLabelValues(normalizeLabel(change)).Add(float64(n))
}
