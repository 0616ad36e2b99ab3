package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FanoutMetrics covers notification receipt fan-out.
type FanoutMetrics struct {
	receipts *prometheus.CounterVec
	skipped  prometheus.Counter
	duration *prometheus.HistogramVec
}

func NewFanoutMetrics(reg prometheus.Registerer) *FanoutMetrics {
	if reg == nil {
		return &FanoutMetrics{}
	}
	receipts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifications",
		Name:      "receipts_total",
		Help:      "Receipts written by fan-out mode.",
	}, []string{"mode"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifications",
		Name:      "skipped_recipients_total",
		Help:      "Recipients dropped because they were missing or inactive.",
	})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "notifications",
		Name:      "fanout_duration_seconds",
		Help:      "Time spent writing receipts for one notification.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"mode"})
	reg.MustRegister(receipts, skipped, duration)
	return &FanoutMetrics{receipts: receipts, skipped: skipped, duration: duration}
}

func (m *FanoutMetrics) Observe(mode string, written, skipped int, elapsed time.Duration) {
	if m == nil || m.receipts == nil {
		return
	}
	mode = normalizeLabel(mode)
	m.receipts.WithLabelValues(mode).Add(float64(written))
	m.skipped.Add(float64(skipped))
	m.duration.WithLabelValues(mode).Observe(elapsed.Seconds())
}
