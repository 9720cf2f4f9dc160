package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/geocapture/internal/datastore"
	"github.com/tphakala/geocapture/internal/errors"
	"github.com/tphakala/geocapture/internal/logger"
	"github.com/tphakala/geocapture/internal/observability/metrics"
	"github.com/tphakala/geocapture/internal/vision"
)

// DefaultBatchSize is the number of queue entries fetched per tick.
const DefaultBatchSize = 10

// Config controls the worker.
type Config struct {
	BatchSize int
	Retry     RetryConfig
	// TransientEscalationAfter, when positive, counts a transient failure as
	// an attempt once the queue entry is older than this
	TransientEscalationAfter time.Duration
	// LeaseDuration, when positive, claims fetched entries with a lease
	LeaseDuration time.Duration
}

// Deps are the collaborators of the worker. Thumbnails may be nil to
// disable thumbnail generation.
type Deps struct {
	Store      QueueStore
	Objects    ObjectStore
	Analyzer   Analyzer
	Thumbnails ThumbnailGenerator
}

// Worker processes batches of pending captures sequentially.
type Worker struct {
	cfg           Config
	store         QueueStore
	objects       ObjectStore
	analyzer      Analyzer
	thumbnails    ThumbnailGenerator
	metrics       *metrics.AnalysisMetrics
	visionMetrics *metrics.VisionMetrics
	sleep         Sleeper
	now           func() time.Time
	log           logger.Logger
}

// Option configures a Worker.
type Option func(*Worker)

// WithSleeper replaces the backoff sleep; tests use it to skip real waits.
func WithSleeper(s Sleeper) Option {
	return func(w *Worker) { w.sleep = s }
}

func WithClock(now func() time.Time) Option {
	return func(w *Worker) { w.now = now }
}

func WithMetrics(analysis *metrics.AnalysisMetrics, vision *metrics.VisionMetrics) Option {
	return func(w *Worker) {
		w.metrics = analysis
		w.visionMetrics = vision
	}
}

func WithLogger(l logger.Logger) Option {
	return func(w *Worker) { w.log = l }
}

// NewWorker creates a Worker. Store, Objects and Analyzer are required.
func NewWorker(cfg Config, deps Deps, opts ...Option) (*Worker, error) {
	if deps.Store == nil || deps.Objects == nil || deps.Analyzer == nil {
		return nil, errors.Newf("analysis worker requires a queue store, an object store and an analyzer").
			Component("analysis").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}

	w := &Worker{
		cfg:        cfg,
		store:      deps.Store,
		objects:    deps.Objects,
		analyzer:   deps.Analyzer,
		thumbnails: deps.Thumbnails,
		sleep:      sleepContext,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = logger.Global().Module("analysis")
	}
	return w, nil
}

// BatchSummary reports what one tick did.
type BatchSummary struct {
	Fetched  int
	Outcomes map[string]int
}

// RunOnce fetches one batch and processes every capture in it in order.
// Per-capture failures are logged and never abort the batch; only a failed
// fetch is returned.
func (w *Worker) RunOnce(ctx context.Context) (BatchSummary, error) {
	summary := BatchSummary{Outcomes: make(map[string]int)}
	ctx = logger.WithBatchID(ctx, uuid.NewString())
	log := w.log.WithContext(ctx)

	ids, err := w.fetch(ctx)
	if err != nil {
		log.Error("Failed to fetch pending analysis entries", logger.Error(err))
		return summary, err
	}
	summary.Fetched = len(ids)
	w.metrics.RecordBatch()

	if len(ids) == 0 {
		log.Trace("No pending captures")
		return summary, nil
	}
	log.Debug("Processing analysis batch", logger.Int("size", len(ids)))

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		outcome, _ := w.ProcessCapture(ctx, id)
		summary.Outcomes[outcome]++
	}
	return summary, nil
}

func (w *Worker) fetch(ctx context.Context) ([]uuid.UUID, error) {
	if w.cfg.LeaseDuration > 0 {
		return w.store.ClaimPending(ctx, w.cfg.BatchSize, w.cfg.LeaseDuration)
	}
	return w.store.FetchPending(ctx, w.cfg.BatchSize)
}

// ProcessCapture runs the pipeline for one capture and returns its outcome
// label. The error, if any, explains a non-completed outcome; it has
// already been logged and acted on.
func (w *Worker) ProcessCapture(ctx context.Context, id uuid.UUID) (string, error) {
	start := w.now()
	log := w.log.WithContext(ctx).With(logger.String("capture_id", id.String()))

	outcome, err := w.process(ctx, id, log)
	w.metrics.RecordCapture(outcome, w.now().Sub(start).Seconds())
	return outcome, err
}

func (w *Worker) process(ctx context.Context, id uuid.UUID, log logger.Logger) (string, error) {
	capture, err := w.store.GetCapture(ctx, id)
	switch {
	case errors.Is(err, ErrCaptureNotFound):
		log.Warn("Capture not found, skipping")
		return metrics.OutcomeNotFound, err
	case err != nil:
		log.Error("Failed to load capture", logger.Error(err))
		return metrics.OutcomePersistFailed, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	if !datastore.NeedsAnalysis(capture.VisionResult) {
		if err := w.store.MarkCompleted(ctx, id); err != nil {
			log.Error("Failed to complete already analyzed capture", logger.Error(err))
			return metrics.OutcomePersistFailed, fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		log.Info("Capture already analyzed, queue entry completed")
		return metrics.OutcomeAlreadyAnalyzed, ErrAlreadyAnalyzed
	}

	key, err := w.objects.ObjectKey(capture.ImageURL)
	if err != nil {
		// Left pending without an attempt; needs manual intervention
		log.Warn("Cannot derive object key, skipping",
			logger.String("image_url", capture.ImageURL),
			logger.Error(err))
		return metrics.OutcomeBadKey, fmt.Errorf("%w: %w", ErrKeyExtraction, err)
	}

	image, err := w.objects.Download(ctx, key)
	if err != nil {
		log.Error("Failed to download source image",
			logger.String("key", key),
			logger.Bool("missing", errors.IsNotFound(err)),
			logger.Error(err))
		w.incrementAttempts(ctx, id, log)
		return metrics.OutcomeDownloadFailed, fmt.Errorf("%w: %w", ErrDownload, err)
	}

	result, err := retryTransient(ctx, w.cfg.Retry, w.sleep, vision.IsTransient,
		func(n int, delay time.Duration, err error) {
			w.visionMetrics.RecordRetry()
			log.Warn("Vision service unavailable, retrying",
				logger.Int("retry", n),
				logger.Int("max_retries", w.cfg.Retry.MaxRetries),
				logger.Duration("delay", delay),
				logger.Error(err))
		},
		func(ctx context.Context) (vision.Result, error) {
			return w.analyzer.Analyze(ctx, image, geoInput(capture))
		})
	if err != nil {
		if vision.IsTransient(err) {
			log.Warn("Vision analysis failed transiently, leaving entry pending", logger.Error(err))
			w.escalateTransient(ctx, id, log)
			return metrics.OutcomeTransient, err
		}
		log.Error("Vision analysis failed permanently", logger.Error(err))
		w.incrementAttempts(ctx, id, log)
		return metrics.OutcomePermanent, err
	}

	md := vision.ExtractMetadata(result)
	persistStart := w.now()
	if err := w.persist(ctx, id, result, md); err != nil {
		log.Error("Failed to persist analysis", logger.Error(err))
		// The vision result is lost; the capture is re-analyzed on a later tick.
		return metrics.OutcomePersistFailed, errors.New(fmt.Errorf("%w: %w", ErrPersistence, err)).
			Component("analysis").
			Category(errors.CategoryDatabase).
			Priority(errors.PriorityHigh).
			Context("capture_id", id.String()).
			Timing("persist", w.now().Sub(persistStart)).
			Build()
	}

	log.Info("Capture analyzed",
		logger.String("category", md.Category),
		logger.Float64("confidence", md.Confidence),
		logger.String("difficulty", md.Difficulty),
		logger.Bool("verified", md.Verified),
		logger.Int("tags", len(md.Tags)))

	if w.thumbnails != nil {
		w.generateThumbnail(ctx, id, key, image, log)
	}
	return metrics.OutcomeCompleted, nil
}

// persist stores the result, its tag links and the completion as one unit.
// A failure leaves the capture unanalyzed and its entry pending.
func (w *Worker) persist(ctx context.Context, id uuid.UUID, result vision.Result, md vision.Metadata) error {
	return w.store.SaveAnalysis(ctx, id, datastore.AnalysisUpdate{
		Result:     result,
		Category:   md.Category,
		Confidence: md.Confidence,
		Difficulty: md.Difficulty,
		Verified:   md.Verified,
		Tags:       md.Tags,
	})
}

func (w *Worker) generateThumbnail(ctx context.Context, id uuid.UUID, key string, image []byte, log logger.Logger) {
	url, err := w.thumbnails.Generate(ctx, key, image)
	if err != nil {
		log.Warn("Thumbnail generation failed", logger.Error(fmt.Errorf("%w: %w", ErrThumbnail, err)))
		return
	}
	if err := w.store.SetThumbnail(ctx, id, url); err != nil {
		log.Warn("Failed to store thumbnail URL", logger.Error(fmt.Errorf("%w: %w", ErrThumbnail, err)))
		return
	}
	log.Debug("Thumbnail stored", logger.String("url", url))
}

func (w *Worker) incrementAttempts(ctx context.Context, id uuid.UUID, log logger.Logger) {
	if err := w.store.IncrementAttempts(ctx, id); err != nil {
		log.Error("Failed to increment analysis attempts", logger.Error(err))
	}
}

// escalateTransient counts a transient failure as an attempt once the
// entry has been waiting longer than the escalation window.
func (w *Worker) escalateTransient(ctx context.Context, id uuid.UUID, log logger.Logger) {
	if w.cfg.TransientEscalationAfter <= 0 {
		return
	}
	entry, err := w.store.GetQueueEntry(ctx, id)
	if err != nil {
		log.Warn("Cannot load queue entry for transient escalation", logger.Error(err))
		return
	}
	age := w.now().Sub(entry.CreatedAt)
	if age < w.cfg.TransientEscalationAfter {
		return
	}
	log.Warn("Transient failures exceeded escalation window, counting attempt",
		logger.Duration("entry_age", age),
		logger.Int("attempts", entry.Attempts+1))
	w.incrementAttempts(ctx, id, log)
}

// geoInput maps the stored capture metadata onto the vision context input.
// The capture creation time stands in for the shot time.
func geoInput(c *datastore.Capture) vision.GeoInput {
	in := vision.GeoInput{CapturedAt: c.CreatedAt}
	if c.Location != nil {
		in.Location = &vision.Location{Latitude: c.Location.Latitude, Longitude: c.Location.Longitude}
	}
	if c.LocationInfo != nil {
		in.Place = &vision.Place{
			Country:   c.LocationInfo.Country,
			City:      c.LocationInfo.City,
			PlaceName: c.LocationInfo.PlaceName,
		}
	}
	if c.Orientation != nil {
		in.Orientation = &vision.Orientation{
			Bearing:           c.Orientation.Bearing,
			CardinalDirection: c.Orientation.CardinalDirection,
		}
	}
	return in
}
