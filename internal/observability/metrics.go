// Package observability wires the Prometheus registry and serves /metrics.
package observability

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tphakala/geocapture/internal/errors"
	"github.com/tphakala/geocapture/internal/observability/metrics"
)

// Metrics holds all metric collectors for the application.
type Metrics struct {
	registry *prometheus.Registry
	Analysis *metrics.AnalysisMetrics
	Vision   *metrics.VisionMetrics
	Storage  *metrics.StorageMetrics
	Errors   *metrics.ErrorMetrics
}

// NewMetrics creates a private registry with Go runtime and process
// collectors plus the pipeline collectors.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	analysis, err := metrics.NewAnalysisMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create analysis metrics: %w", err)
	}

	vision, err := metrics.NewVisionMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision metrics: %w", err)
	}

	storage, err := metrics.NewStorageMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage metrics: %w", err)
	}

	errMetrics, err := metrics.NewErrorMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create error metrics: %w", err)
	}

	return &Metrics{
		registry: registry,
		Analysis: analysis,
		Vision:   vision,
		Storage:  storage,
		Errors:   errMetrics,
	}, nil
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// TrackErrors counts every error built through the errors package.
func (m *Metrics) TrackErrors() {
	errors.AddErrorHook(func(ee *errors.EnhancedError) {
		m.Errors.RecordError(ee.GetComponent(), ee.GetCategory())
	})
}

// RegisterHandlers registers /metrics on mux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      slog.NewLogLogger(slog.Default().Handler(), slog.LevelError),
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))
}
