// Package thumbnail derives the fixed-size JPEG preview of a capture.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"

	// Decoders for the formats clients upload
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/tphakala/geocapture/internal/errors"
	"github.com/tphakala/geocapture/internal/logger"
	"github.com/tphakala/geocapture/internal/observability/metrics"
	"github.com/tphakala/geocapture/internal/storage"
)

const (
	DefaultWidth   = 200
	DefaultHeight  = 200
	DefaultQuality = 85

	contentType = "image/jpeg"
)

// Uploader stores the encoded thumbnail and returns its URL.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Config sets the thumbnail dimensions and JPEG quality.
type Config struct {
	Width   int
	Height  int
	Quality int
}

// Generator renders and uploads thumbnails.
type Generator struct {
	cfg      Config
	uploader Uploader
	metrics  *metrics.StorageMetrics
	log      logger.Logger
}

// NewGenerator creates a Generator. Zero config values take the defaults.
func NewGenerator(cfg Config, uploader Uploader, m *metrics.StorageMetrics, log logger.Logger) *Generator {
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultHeight
	}
	if cfg.Quality <= 0 || cfg.Quality > 100 {
		cfg.Quality = DefaultQuality
	}
	if log == nil {
		log = logger.Global().Module("thumbnail")
	}
	return &Generator{cfg: cfg, uploader: uploader, metrics: m, log: log}
}

// Render decodes the source image, cover-crops it to the configured size
// with Lanczos resampling and encodes the result as JPEG.
func (g *Generator) Render(source []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(source), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode source image: %w", err)
	}

	thumb := imaging.Fill(img, g.cfg.Width, g.cfg.Height, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(g.cfg.Quality)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// Generate renders the thumbnail of the object stored at sourceKey and
// uploads it under the derived thumbnail key. It returns the thumbnail URL.
func (g *Generator) Generate(ctx context.Context, sourceKey string, source []byte) (string, error) {
	data, err := g.Render(source)
	if err != nil {
		g.metrics.RecordThumbnail(metrics.ThumbnailFailed)
		return "", g.wrap(err, sourceKey)
	}

	key := storage.ThumbnailKey(sourceKey)
	url, err := g.uploader.Upload(ctx, key, data, contentType)
	if err != nil {
		g.metrics.RecordThumbnail(metrics.ThumbnailFailed)
		return "", g.wrap(err, sourceKey)
	}

	g.metrics.RecordThumbnail(metrics.ThumbnailGenerated)
	g.log.Debug("Thumbnail generated",
		logger.String("key", key),
		logger.Int("bytes", len(data)))
	return url, nil
}

func (g *Generator) wrap(err error, sourceKey string) error {
	return errors.New(err).
		Component("thumbnail").
		Category(errors.CategoryThumbnail).
		Context("source_key", sourceKey).
		Build()
}
