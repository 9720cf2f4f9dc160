// Package app assembles the pipeline components from the loaded settings.
// Commands build only what they need: the worker uses everything, the
// maintenance commands only the store.
package app

import (
	"context"

	"github.com/tphakala/geocapture/internal/analysis"
	"github.com/tphakala/geocapture/internal/conf"
	"github.com/tphakala/geocapture/internal/datastore"
	"github.com/tphakala/geocapture/internal/errors"
	"github.com/tphakala/geocapture/internal/logger"
	"github.com/tphakala/geocapture/internal/observability"
	"github.com/tphakala/geocapture/internal/solar"
	"github.com/tphakala/geocapture/internal/storage"
	"github.com/tphakala/geocapture/internal/thumbnail"
	"github.com/tphakala/geocapture/internal/vision"
)

// App holds the long-lived components of a running process.
type App struct {
	Settings *conf.Settings
	Log      logger.Logger
	Metrics  *observability.Metrics

	Store      *datastore.Store
	Objects    *storage.S3Store
	Vision     *vision.Client
	Thumbnails *thumbnail.Generator
}

// New builds every component of the analysis pipeline.
func New(ctx context.Context, settings *conf.Settings, log logger.Logger) (*App, error) {
	m, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}

	a := &App{Settings: settings, Log: log, Metrics: m}

	if a.Store, err = OpenStore(settings); err != nil {
		return nil, err
	}

	if a.Objects, err = NewObjectStore(ctx, settings, m); err != nil {
		a.Close()
		return nil, err
	}

	if a.Vision, err = NewVisionClient(settings, m); err != nil {
		a.Close()
		return nil, err
	}

	if settings.Worker.ThumbnailEnabled {
		a.Thumbnails = thumbnail.NewGenerator(thumbnail.Config{
			Width:   settings.Worker.MaxThumbnailWidth,
			Height:  settings.Worker.MaxThumbnailHeight,
			Quality: settings.Worker.ThumbnailQuality,
		}, a.Objects, m.Storage, logger.Global().Module("thumbnail"))
	}

	return a, nil
}

// OpenStore connects to the configured database.
func OpenStore(settings *conf.Settings) (*datastore.Store, error) {
	db := settings.Database
	return datastore.Open(datastore.Config{
		Driver:             db.Driver,
		DSN:                db.DSN,
		MaxOpenConns:       db.MaxOpenConns,
		MaxIdleConns:       db.MaxIdleConns,
		ConnMaxLifetime:    db.ConnMaxLifetime,
		AutoMigrate:        db.AutoMigrate,
		SlowQueryThreshold: db.SlowQuery,
	},
		datastore.WithMaxAttempts(settings.Worker.MaxAttempts),
		datastore.WithLogger(logger.Global().Module("datastore")),
	)
}

// NewObjectStore creates the S3 client for the configured bucket.
func NewObjectStore(ctx context.Context, settings *conf.Settings, m *observability.Metrics) (*storage.S3Store, error) {
	s := settings.Storage
	opts := []storage.Option{storage.WithLogger(logger.Global().Module("storage"))}
	if m != nil {
		opts = append(opts, storage.WithMetrics(m.Storage))
	}
	return storage.New(ctx, storage.Config{
		Region:          s.Region,
		AccessKeyID:     s.AccessKeyID,
		SecretAccessKey: s.SecretAccessKey,
		Bucket:          s.Bucket,
		Endpoint:        s.Endpoint,
		PublicBaseURL:   s.PublicBaseURL,
		MaxObjectSize:   s.MaxImageSizeBytes,
	}, opts...)
}

// NewVisionClient creates the vision client with solar context enabled.
func NewVisionClient(settings *conf.Settings, m *observability.Metrics) (*vision.Client, error) {
	v := settings.Vision
	opts := []vision.Option{
		vision.WithContextBuilder(vision.NewContextBuilder(solar.NewCalculator())),
		vision.WithLogger(logger.Global().Module("vision")),
	}
	if m != nil {
		opts = append(opts, vision.WithMetrics(m.Vision))
	}
	client, err := vision.New(vision.Config{
		APIKey:    v.APIKey,
		Endpoint:  v.Endpoint,
		Model:     v.Model,
		Timeout:   v.Timeout,
		RateLimit: v.RateLimit,
		RateBurst: v.RateBurst,
		Breaker: vision.BreakerConfig{
			Enabled:             v.Breaker.Enabled,
			ConsecutiveFailures: v.Breaker.ConsecutiveFailures,
			OpenTimeout:         v.Breaker.OpenTimeout,
			HalfOpenRequests:    v.Breaker.HalfOpenRequests,
		},
	}, opts...)
	if err != nil {
		return nil, errors.New(err).
			Component("app").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return client, nil
}

// NewWorker builds the analysis worker over the app's components.
func (a *App) NewWorker() (*analysis.Worker, error) {
	w := a.Settings.Worker
	deps := analysis.Deps{
		Store:    a.Store,
		Objects:  a.Objects,
		Analyzer: a.Vision,
	}
	// A nil *thumbnail.Generator must stay a nil interface
	if a.Thumbnails != nil {
		deps.Thumbnails = a.Thumbnails
	}
	return analysis.NewWorker(analysis.Config{
		BatchSize: w.BatchSize,
		Retry: analysis.RetryConfig{
			MaxRetries:   w.Retry.MaxRetries,
			InitialDelay: w.Retry.InitialDelay,
			Multiplier:   w.Retry.Multiplier,
			MaxDelay:     w.Retry.MaxDelay,
		},
		TransientEscalationAfter: w.TransientEscalationAfter,
		LeaseDuration:            w.LeaseDuration,
	}, deps,
		analysis.WithMetrics(a.Metrics.Analysis, a.Metrics.Vision),
		analysis.WithLogger(logger.Global().Module("analysis")),
	)
}

// NewScheduler wraps worker in the cron scheduler with housekeeping.
func (a *App) NewScheduler(worker *analysis.Worker) *analysis.Scheduler {
	w := a.Settings.Worker
	return analysis.NewScheduler(analysis.SchedulerConfig{
		Interval:       w.Interval(),
		PurgeSchedule:  w.PurgeSchedule,
		PurgeRetention: w.QueueRetention(),
	}, worker, a.Store, a.Metrics.Analysis, logger.Global().Module("scheduler"))
}

// Close releases the database connection.
func (a *App) Close() {
	if a.Store == nil {
		return
	}
	if err := a.Store.Close(); err != nil {
		a.Log.Warn("Failed to close database", logger.Error(err))
	}
}
