package metrics

import "github.com/prometheus/client_golang/prometheus"

// Checkout outcomes.
const (
	CheckoutCommitted = "committed"
	CheckoutConflict  = "conflict"
	CheckoutRetried   = "retried"
	CheckoutFailed    = "failed"
)

// CheckoutMetrics counts checkout outcomes and the number of vendor orders each commit produced.
type CheckoutMetrics struct {
	outcomes *prometheus.CounterVec
	orders   prometheus.Histogram
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "outcomes_total",
		Help:      "Checkout attempts by outcome.",
	}, []string{"outcome"})
	orders := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "vendor_orders",
		Help:      "Vendor orders created per committed checkout.",
		Buckets:   []float64{1, 2, 3, 5, 8, 13},
	})
	reg.MustRegister(outcomes, orders)
	return &CheckoutMetrics{outcomes: outcomes, orders: orders}
}

func (m *CheckoutMetrics) Inc(outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *CheckoutMetrics) ObserveOrders(n int) {
	if m == nil || m.orders == nil {
		return
	}
	m.orders.Observe(float64(n))
}
