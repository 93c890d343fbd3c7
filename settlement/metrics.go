package settlement

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type engineMetrics struct {
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	rejections *prometheus.CounterVec
}

var (
	metricsOnce     sync.Once
	metricsRegistry *engineMetrics
)

// Metrics returns the lazily registered engine collectors.
func Metrics() *engineMetrics {
	metricsOnce.Do(func() {
		metricsRegistry = &engineMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "yusd",
				Subsystem: "settlement",
				Name:      "operations_total",
				Help:      "Settlement operations segmented by operation and error class.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "yusd",
				Subsystem: "settlement",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution of settlement operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "yusd",
				Subsystem: "settlement",
				Name:      "redeem_rejections_total",
				Help:      "Redeem requests rejected during approval, by reason.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			metricsRegistry.operations,
			metricsRegistry.latency,
			metricsRegistry.rejections,
		)
	})
	return metricsRegistry
}

// Observe records the outcome of one operation.
func (m *engineMetrics) Observe(operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = ClassOf(err).String()
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *engineMetrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(reason).Inc()
}
