package analysis

import (
	"github.com/tphakala/geocapture/internal/datastore"
	"github.com/tphakala/geocapture/internal/errors"
)

// Per-capture failure classes. Vision failures are classified with
// vision.IsTransient instead.
var (
	// ErrCaptureNotFound: the capture vanished; skipped without queue changes.
	ErrCaptureNotFound = datastore.ErrCaptureNotFound
	// ErrAlreadyAnalyzed: the capture carries a result; the entry is completed.
	ErrAlreadyAnalyzed = errors.NewStd("capture already analyzed")
	// ErrKeyExtraction: the image URL yields no object key; the entry stays pending.
	ErrKeyExtraction = errors.NewStd("cannot derive object key from image URL")
	// ErrDownload: the source image could not be read; counted as a permanent failure.
	ErrDownload = errors.NewStd("source image download failed")
	// ErrPersistence: writing the analysis back failed; the item is abandoned for this tick.
	ErrPersistence = errors.NewStd("persisting analysis failed")
	// ErrThumbnail: best-effort thumbnail failure; never affects the entry.
	ErrThumbnail = errors.NewStd("thumbnail generation failed")
)
