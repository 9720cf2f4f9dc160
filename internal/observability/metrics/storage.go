package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// StorageMetrics tracks object store traffic and thumbnail generation.
type StorageMetrics struct {
	Operations *prometheus.CounterVec
	Bytes      *prometheus.CounterVec
	Thumbnails *prometheus.CounterVec
}

func NewStorageMetrics(registry prometheus.Registerer) (*StorageMetrics, error) {
	m := &StorageMetrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "operations_total",
			Help:      "Object store operations by operation and status.",
		}, []string{"operation", "status"}),
		Bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "bytes_total",
			Help:      "Bytes transferred to or from the object store.",
		}, []string{"operation"}),
		Thumbnails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thumbnails_total",
			Help:      "Thumbnail generation attempts by outcome.",
		}, []string{"outcome"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register storage metrics: %w", err)
	}
	return m, nil
}

// RecordOperation counts one object store call; size is added for successful calls.
func (m *StorageMetrics) RecordOperation(operation, status string, size int) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, status).Inc()
	if status == StatusSuccess && size > 0 {
		m.Bytes.WithLabelValues(operation).Add(float64(size))
	}
}

func (m *StorageMetrics) RecordThumbnail(outcome string) {
	if m == nil {
		return
	}
	m.Thumbnails.WithLabelValues(outcome).Inc()
}

func (m *StorageMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Operations.Describe(ch)
	m.Bytes.Describe(ch)
	m.Thumbnails.Describe(ch)
}

func (m *StorageMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Operations.Collect(ch)
	m.Bytes.Collect(ch)
	m.Thumbnails.Collect(ch)
}
