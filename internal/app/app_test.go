package app

import (
	"context"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/geocapture/internal/conf"
	"github.com/tphakala/geocapture/internal/datastore"
	"github.com/tphakala/geocapture/internal/logger"
)

func testSettings(t *testing.T) *conf.Settings {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	s := &conf.Settings{}
	s.Database = conf.DatabaseSettings{
		Driver:       datastore.DriverSQLite,
		DSN:          "file:" + name + "?mode=memory&cache=shared",
		MaxOpenConns: 1,
		AutoMigrate:  true,
	}
	s.Storage = conf.StorageSettings{
		Region:            "us-east-1",
		AccessKeyID:       "test",
		SecretAccessKey:   "test",
		Bucket:            "captures",
		Endpoint:          "http://127.0.0.1:1",
		MaxImageSizeBytes: 1 << 20,
	}
	s.Vision = conf.VisionSettings{APIKey: "key", Timeout: time.Second}
	s.Worker = conf.WorkerSettings{
		AnalysisEnabled:    true,
		IntervalSeconds:    30,
		BatchSize:          5,
		MaxAttempts:        3,
		ThumbnailEnabled:   true,
		MaxThumbnailWidth:  100,
		MaxThumbnailHeight: 100,
		ThumbnailQuality:   80,
		QueueRetentionDays: 7,
	}
	return s
}

func quiet() logger.Logger {
	return logger.NewSlogLogger(io.Discard, logger.LogLevelError, nil)
}

func TestNew_BuildsPipeline(t *testing.T) {
	t.Parallel()

	a, err := New(t.Context(), testSettings(t), quiet())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.NotNil(t, a.Store)
	assert.NotNil(t, a.Objects)
	assert.NotNil(t, a.Vision)
	assert.NotNil(t, a.Thumbnails)
	assert.Equal(t, "captures", a.Objects.Bucket())

	w, err := a.NewWorker()
	require.NoError(t, err)
	summary, err := w.RunOnce(t.Context())
	require.NoError(t, err)
	assert.Zero(t, summary.Fetched)

	assert.NotNil(t, a.NewScheduler(w))
}

func TestNew_ThumbnailsDisabled(t *testing.T) {
	t.Parallel()

	s := testSettings(t)
	s.Worker.ThumbnailEnabled = false
	a, err := New(t.Context(), s, quiet())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.Nil(t, a.Thumbnails)
	_, err = a.NewWorker()
	require.NoError(t, err)
}

func TestNew_MissingAPIKey(t *testing.T) {
	t.Parallel()

	s := testSettings(t)
	s.Vision.APIKey = ""
	_, err := New(t.Context(), s, quiet())
	require.Error(t, err)
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	t.Parallel()

	s := testSettings(t)
	s.Database.Driver = "oracle"
	_, err := OpenStore(s)
	require.Error(t, err)
}

type countingService struct {
	started atomic.Int32
}

func (c *countingService) Serve(ctx context.Context) error {
	c.started.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func TestRunServices_StopsOnCancel(t *testing.T) {
	t.Parallel()

	svc := &countingService{}
	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- RunServices(ctx, NewSupervisor(DefaultSupervisorConfig(), quiet()), svc)
	}()

	assert.Eventually(t, func() bool { return svc.started.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}
