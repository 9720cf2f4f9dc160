package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrorMetrics counts categorized errors built by the errors package.
type ErrorMetrics struct {
	Errors *prometheus.CounterVec
}

func NewErrorMetrics(registry prometheus.Registerer) (*ErrorMetrics, error) {
	m := &ErrorMetrics{
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors by component and category.",
		}, []string{"component", "category"}),
	}
	if err := registry.Register(m.Errors); err != nil {
		return nil, fmt.Errorf("failed to register error metrics: %w", err)
	}
	return m, nil
}

func (m *ErrorMetrics) RecordError(component, category string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(component, category).Inc()
}
