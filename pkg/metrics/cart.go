package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records reconciliation engine activity.
type CartMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	fallback *prometheus.CounterVec
}

// NewCartMetrics registers the cart metrics on the provided registerer.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_op_duration_seconds",
		Help:    "Duration of cart operations in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "mode"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_op_success",
		Help: "Successful cart operations.",
	}, []string{"op", "mode"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_op_failure",
		Help: "Failed cart operations.",
	}, []string{"op", "mode", "code"})
	fallback := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_load_fallback",
		Help: "Loads served from the local snapshot because the gateway was unavailable.",
	}, []string{"reason"})
	reg.MustRegister(duration, success, failure, fallback)
	return &CartMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		fallback: fallback,
	}
}

// ObserveDuration records the duration for the named operation.
func (c *CartMetrics) ObserveDuration(op, mode string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(op), normalizeLabel(mode)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the named operation.
func (c *CartMetrics) IncSuccess(op, mode string) {
	if c == nil || c.success == nil {
		return
	}
	c.success.WithLabelValues(normalizeLabel(op), normalizeLabel(mode)).Inc()
}

// IncFailure increments the failure counter for the named operation.
func (c *CartMetrics) IncFailure(op, mode, code string) {
	if c == nil || c.failure == nil {
		return
	}
	c.failure.WithLabelValues(normalizeLabel(op), normalizeLabel(mode), normalizeLabel(code)).Inc()
}

// IncFallback increments the local-fallback counter.
func (c *CartMetrics) IncFallback(reason string) {
	if c == nil || c.fallback == nil {
		return
	}
	c.fallback.WithLabelValues(normalizeLabel(reason)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
