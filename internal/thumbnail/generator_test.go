package thumbnail

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/geocapture/internal/errors"
	"github.com/tphakala/geocapture/internal/logger"
	"github.com/tphakala/geocapture/internal/observability/metrics"
)

type recordingUploader struct {
	key         string
	data        []byte
	contentType string
	err         error
}

func (u *recordingUploader) Upload(_ context.Context, key string, data []byte, contentType string) (string, error) {
	if u.err != nil {
		return "", u.err
	}
	u.key, u.data, u.contentType = key, data, contentType
	return "https://bucket.s3.amazonaws.com/" + key, nil
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testLogger() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
}

func TestRender_CoverCropsToConfiguredSize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		srcW, srcH   int
		cfg          Config
		wantW, wantH int
	}{
		{"landscape", 640, 360, Config{}, DefaultWidth, DefaultHeight},
		{"portrait", 300, 900, Config{}, DefaultWidth, DefaultHeight},
		{"upscale small source", 50, 80, Config{}, DefaultWidth, DefaultHeight},
		{"custom size", 400, 400, Config{Width: 120, Height: 80}, 120, 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			g := NewGenerator(tt.cfg, &recordingUploader{}, nil, testLogger())

			out, err := g.Render(encodePNG(t, tt.srcW, tt.srcH))
			require.NoError(t, err)

			decoded, err := jpeg.Decode(bytes.NewReader(out))
			require.NoError(t, err, "thumbnail must be JPEG")
			assert.Equal(t, tt.wantW, decoded.Bounds().Dx())
			assert.Equal(t, tt.wantH, decoded.Bounds().Dy())
		})
	}
}

func TestRender_RejectsUndecodableInput(t *testing.T) {
	t.Parallel()

	g := NewGenerator(Config{}, &recordingUploader{}, nil, testLogger())
	_, err := g.Render([]byte("not an image"))
	require.Error(t, err)
}

func TestGenerate_UploadsUnderDerivedKey(t *testing.T) {
	t.Parallel()

	m, err := metrics.NewStorageMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	up := &recordingUploader{}
	g := NewGenerator(Config{}, up, m, testLogger())

	url, err := g.Generate(t.Context(), "captures/123/uuid.png", encodePNG(t, 320, 240))
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.s3.amazonaws.com/captures/123/uuid_thumb.jpg", url)
	assert.Equal(t, "captures/123/uuid_thumb.jpg", up.key)
	assert.Equal(t, "image/jpeg", up.contentType)
	assert.NotEmpty(t, up.data)
	assert.InDelta(t, 1, testutil.ToFloat64(m.Thumbnails.WithLabelValues(metrics.ThumbnailGenerated)), 0)
}

func TestGenerate_Failures(t *testing.T) {
	t.Parallel()

	m, err := metrics.NewStorageMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	g := NewGenerator(Config{}, &recordingUploader{err: errors.NewStd("AccessDenied")}, m, testLogger())
	_, err = g.Generate(t.Context(), "captures/a.jpg", encodePNG(t, 10, 10))
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryThumbnail))

	_, err = g.Generate(t.Context(), "captures/a.jpg", []byte{0x00})
	require.Error(t, err)
	assert.InDelta(t, 2, testutil.ToFloat64(m.Thumbnails.WithLabelValues(metrics.ThumbnailFailed)), 0)
}
