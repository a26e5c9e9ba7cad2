package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WriteBackMetrics tracks the spreadsheet write-back queue.
type WriteBackMetrics struct {
	enqueued *prometheus.CounterVec
	applied  *prometheus.CounterVec
	dropped  *prometheus.CounterVec
	depth    prometheus.Gauge
	duration *prometheus.HistogramVec
}

// NewWriteBackMetrics registers the write-back metrics on the provided registerer.
func NewWriteBackMetrics(reg prometheus.Registerer) *WriteBackMetrics {
	if reg == nil {
		return &WriteBackMetrics{}
	}
	enqueued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "writeback_enqueued_total",
		Help:      "Write-back jobs accepted by the queue.",
	}, []string{"kind"})
	applied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "writeback_applied_total",
		Help:      "Write-back jobs applied to the spreadsheet.",
	}, []string{"kind"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "writeback_dropped_total",
		Help:      "Write-back jobs dropped before reaching the spreadsheet.",
	}, []string{"kind", "reason"})
	depth := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "writeback_queue_depth",
		Help:      "Jobs waiting in the write-back queue.",
	})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "writeback_apply_seconds",
		Help:      "Time spent applying a write-back job, retries included.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"kind"})
	reg.MustRegister(enqueued, applied, dropped, depth, duration)
	return &WriteBackMetrics{
		enqueued: enqueued,
		applied:  applied,
		dropped:  dropped,
		depth:    depth,
		duration: duration,
	}
}

// IncEnqueued counts an accepted job.
func (w *WriteBackMetrics) IncEnqueued(kind string) {
	if w == nil || w.enqueued == nil {
		return
	}
	w.enqueued.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncApplied counts a job that reached the spreadsheet.
func (w *WriteBackMetrics) IncApplied(kind string) {
	if w == nil || w.applied == nil {
		return
	}
	w.applied.WithLabelValues(normalizeLabel(kind)).Inc()
}

// IncDropped counts a job that was discarded for reason.
func (w *WriteBackMetrics) IncDropped(kind, reason string) {
	if w == nil || w.dropped == nil {
		return
	}
	w.dropped.WithLabelValues(normalizeLabel(kind), normalizeLabel(reason)).Inc()
}

// SetDepth records the current queue length.
func (w *WriteBackMetrics) SetDepth(n int) {
	if w == nil || w.depth == nil {
		return
	}
	w.depth.Set(float64(n))
}

// ObserveApply records how long a job took to apply or give up.
func (w *WriteBackMetrics) ObserveApply(kind string, d time.Duration) {
	if w == nil || w.duration == nil {
		return
	}
	w.duration.WithLabelValues(normalizeLabel(kind)).Observe(d.Seconds())
}
