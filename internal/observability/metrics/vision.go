package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// VisionMetrics tracks calls to the external vision model.
type VisionMetrics struct {
	Requests     *prometheus.CounterVec
	Retries      prometheus.Counter
	Duration     prometheus.Histogram
	BreakerState prometheus.Gauge
}

func NewVisionMetrics(registry prometheus.Registerer) (*VisionMetrics, error) {
	m := &VisionMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vision",
			Name:      "requests_total",
			Help:      "Vision API requests by result status.",
		}, []string{"status"}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vision",
			Name:      "retries_total",
			Help:      "Inline retries after a transient vision failure.",
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "vision",
			Name:      "duration_seconds",
			Help:      "Latency of vision API requests.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 9),
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "vision",
			Name:      "breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register vision metrics: %w", err)
	}
	return m, nil
}

// RecordRequest counts a request and observes its latency.
func (m *VisionMetrics) RecordRequest(status string, seconds float64) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(status).Inc()
	m.Duration.Observe(seconds)
}

func (m *VisionMetrics) RecordRetry() {
	if m == nil {
		return
	}
	m.Retries.Inc()
}

func (m *VisionMetrics) SetBreakerState(state int) {
	if m == nil {
		return
	}
	m.BreakerState.Set(float64(state))
}

func (m *VisionMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Requests.Describe(ch)
	m.Retries.Describe(ch)
	m.Duration.Describe(ch)
	m.BreakerState.Describe(ch)
}

func (m *VisionMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Requests.Collect(ch)
	m.Retries.Collect(ch)
	m.Duration.Collect(ch)
	m.BreakerState.Collect(ch)
}
