// Package analysis runs the capture-analysis pipeline: a scheduled worker
// that drains the analysis queue, calls the vision model with geographic
// context, persists the extracted metadata and derives a thumbnail.
package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/geocapture/internal/datastore"
	"github.com/tphakala/geocapture/internal/vision"
)

// QueueStore is the persistence the worker needs. *datastore.Store implements it.
type QueueStore interface {
	FetchPending(ctx context.Context, limit int) ([]uuid.UUID, error)
	ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]uuid.UUID, error)
	GetQueueEntry(ctx context.Context, captureID uuid.UUID) (*datastore.AnalysisQueueEntry, error)
	IncrementAttempts(ctx context.Context, captureID uuid.UUID) error
	MarkCompleted(ctx context.Context, captureID uuid.UUID) error
	GetCapture(ctx context.Context, id uuid.UUID) (*datastore.Capture, error)
	// SaveAnalysis writes the result, the tag links and the completion atomically.
	SaveAnalysis(ctx context.Context, id uuid.UUID, update datastore.AnalysisUpdate) error
	SetThumbnail(ctx context.Context, id uuid.UUID, url string) error
}

// MaintenanceStore is used by the scheduler's housekeeping job.
type MaintenanceStore interface {
	PurgeCompleted(ctx context.Context, olderThan time.Duration) (int64, error)
	QueueStats(ctx context.Context) (datastore.QueueStats, error)
}

// ObjectStore reads source images. *storage.S3Store implements it.
type ObjectStore interface {
	ObjectKey(rawURL string) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
}

// Analyzer calls the vision model. *vision.Client implements it.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, geo vision.GeoInput) (vision.Result, error)
}

// ThumbnailGenerator renders and uploads the thumbnail of a source image.
// *thumbnail.Generator implements it.
type ThumbnailGenerator interface {
	Generate(ctx context.Context, sourceKey string, source []byte) (string, error)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error
