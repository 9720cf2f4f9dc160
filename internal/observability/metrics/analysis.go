package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// AnalysisMetrics tracks worker ticks and per-capture outcomes.
// All methods are safe on a nil receiver.
type AnalysisMetrics struct {
	Batches      prometheus.Counter
	Captures     *prometheus.CounterVec
	Duration     prometheus.Histogram
	QueueEntries *prometheus.GaugeVec
}

// NewAnalysisMetrics creates and registers the analysis collectors.
func NewAnalysisMetrics(registry prometheus.Registerer) (*AnalysisMetrics, error) {
	m := &AnalysisMetrics{
		Batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "batches_total",
			Help:      "Worker ticks that fetched a batch from the queue.",
		}),
		Captures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "captures_total",
			Help:      "Captures processed, by outcome.",
		}, []string{"outcome"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "Wall time of the per-capture pipeline.",
			Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
		QueueEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "entries",
			Help:      "Analysis queue entries by state.",
		}, []string{"state"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register analysis metrics: %w", err)
	}
	return m, nil
}

func (m *AnalysisMetrics) RecordBatch() {
	if m == nil {
		return
	}
	m.Batches.Inc()
}

// RecordCapture counts one capture outcome and observes the pipeline duration.
func (m *AnalysisMetrics) RecordCapture(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.Captures.WithLabelValues(outcome).Inc()
	m.Duration.Observe(seconds)
}

// SetQueueEntries publishes the queue gauges.
func (m *AnalysisMetrics) SetQueueEntries(pending, exhausted, completed int64) {
	if m == nil {
		return
	}
	m.QueueEntries.WithLabelValues(QueueStatePending).Set(float64(pending))
	m.QueueEntries.WithLabelValues(QueueStateExhausted).Set(float64(exhausted))
	m.QueueEntries.WithLabelValues(QueueStateCompleted).Set(float64(completed))
}

func (m *AnalysisMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Batches.Describe(ch)
	m.Captures.Describe(ch)
	m.Duration.Describe(ch)
	m.QueueEntries.Describe(ch)
}

func (m *AnalysisMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Batches.Collect(ch)
	m.Captures.Collect(ch)
	m.Duration.Collect(ch)
	m.QueueEntries.Collect(ch)
}
