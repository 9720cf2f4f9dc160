package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/tphakala/geocapture/internal/errors"
)

// writeConfig writes a config file into a temp dir and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalConfig = `
storage:
  bucket: captures
vision:
  apikey: test-key
`

func TestLoad_Defaults(t *testing.T) {
	settings, err := load(viper.New(), writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "postgres", settings.Database.Driver)
	assert.Equal(t, 30, settings.Worker.IntervalSeconds)
	assert.Equal(t, 30*time.Second, settings.Worker.Interval())
	assert.Equal(t, 10, settings.Worker.BatchSize)
	assert.Equal(t, 3, settings.Worker.MaxAttempts)
	assert.Equal(t, 3, settings.Worker.Retry.MaxRetries)
	assert.Equal(t, 5*time.Second, settings.Worker.Retry.InitialDelay)
	assert.InDelta(t, 2.0, settings.Worker.Retry.Multiplier, 0)
	assert.Equal(t, 20*time.Second, settings.Worker.Retry.MaxDelay)
	assert.Equal(t, 200, settings.Worker.MaxThumbnailWidth)
	assert.Equal(t, 200, settings.Worker.MaxThumbnailHeight)
	assert.Equal(t, 30*24*time.Hour, settings.Worker.QueueRetention())
	assert.Zero(t, settings.Worker.TransientEscalationAfter)
	assert.Equal(t, 120*time.Second, settings.Vision.Timeout)
	assert.Equal(t, "https://generativelanguage.googleapis.com/v1", settings.Vision.Endpoint)
	assert.Equal(t, "models/gemini-2.5-flash", settings.Vision.Model)
	assert.True(t, settings.Vision.Breaker.Enabled)
	assert.Equal(t, "info", settings.Logging.DefaultLevel)
	require.NotNil(t, settings.Logging.Console)
	assert.True(t, settings.Logging.Console.Enabled)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, minimalConfig+`
database:
  driver: sqlite
  dsn: "file:geocapture.db"
worker:
  intervalseconds: 5
  batchsize: 25
  leaseduration: 2m
  retry:
    initialdelay: 1s
logging:
  modulelevels:
    analysis: debug
`)
	settings, err := load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", settings.Database.Driver)
	assert.Equal(t, "file:geocapture.db", settings.Database.DSN)
	assert.Equal(t, 5, settings.Worker.IntervalSeconds)
	assert.Equal(t, 25, settings.Worker.BatchSize)
	assert.Equal(t, 2*time.Minute, settings.Worker.LeaseDuration)
	assert.Equal(t, time.Second, settings.Worker.Retry.InitialDelay)
	assert.Equal(t, 3, settings.Worker.Retry.MaxRetries, "unset nested keys keep defaults")
	assert.Equal(t, "debug", settings.Logging.ModuleLevels["analysis"])
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://geo@db/geocapture")
	t.Setenv("S3_BUCKET", "from-env")
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("ANALYSIS_WORKER_INTERVAL_SECONDS", "60")
	t.Setenv("THUMBNAIL_GENERATION_ENABLED", "false")
	t.Setenv("MAX_THUMBNAIL_WIDTH", "320")
	t.Setenv("LOG_LEVEL", "debug")

	settings, err := load(viper.New(), writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "postgres://geo@db/geocapture", settings.Database.DSN)
	assert.Equal(t, "from-env", settings.Storage.Bucket)
	assert.Equal(t, "env-key", settings.Vision.APIKey)
	assert.Equal(t, 60, settings.Worker.IntervalSeconds)
	assert.False(t, settings.Worker.ThumbnailEnabled)
	assert.Equal(t, 320, settings.Worker.MaxThumbnailWidth)
	assert.Equal(t, "debug", settings.Logging.DefaultLevel)
	assert.Equal(t, "debug", settings.Logging.Console.Level)
}

func TestLoad_InvalidEnvironment(t *testing.T) {
	t.Setenv("ANALYSIS_WORKER_INTERVAL_SECONDS", "0")
	t.Setenv("DATABASE_DRIVER", "oracle")

	_, err := load(viper.New(), writeConfig(t, minimalConfig))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANALYSIS_WORKER_INTERVAL_SECONDS")
	assert.Contains(t, err.Error(), "DATABASE_DRIVER")
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestLoad_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
worker:
  analysisenabled: true
  batchsize: 0
`)
	_, err := load(viper.New(), path)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	var ve ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Errors, "worker.batchsize must be positive")
	assert.Contains(t, ve.Errors, "storage.bucket is required when the analysis worker is enabled")
	assert.Contains(t, ve.Errors, "vision.apikey is required when the analysis worker is enabled")
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := load(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoad_StoresSettings(t *testing.T) {
	settings, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)
	assert.Same(t, settings, GetSettings())
}

func TestDefaultConfig_MatchesDefaults(t *testing.T) {
	t.Parallel()

	data, err := DefaultConfig()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(data, &doc))
	for _, section := range []string{"database", "storage", "vision", "worker", "logging", "telemetry"} {
		assert.Contains(t, doc, section)
	}

	// The embedded file loads cleanly once the required secrets are present
	path := writeConfig(t, string(data))
	v := viper.New()
	v.Set("storage.bucket", "captures")
	v.Set("vision.apikey", "key")
	settings, err := load(v, path)
	require.NoError(t, err)

	defaults := viper.New()
	setDefaultConfig(defaults)
	assert.Equal(t, defaults.GetInt("worker.batchsize"), settings.Worker.BatchSize)
	assert.Equal(t, defaults.GetDuration("vision.timeout"), settings.Vision.Timeout)
	assert.Equal(t, defaults.GetString("vision.model"), settings.Vision.Model)
}

func TestLoad_SecretFiles(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "gemini_api_key")
	require.NoError(t, os.WriteFile(keyFile, []byte("file-key\n"), 0o600))
	t.Setenv("GEMINI_API_KEY_FILE", keyFile)
	t.Setenv("GEO_DB_PASSWORD", "s3cr3t")

	path := writeConfig(t, minimalConfig+`
database:
  dsn: "postgres://geo:${GEO_DB_PASSWORD}@db:5432/geocapture"
`)
	settings, err := load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "file-key", settings.Vision.APIKey)
	assert.Equal(t, "postgres://geo:s3cr3t@db:5432/geocapture", settings.Database.DSN)
}

func TestLoad_UnresolvedSecretReference(t *testing.T) {
	path := writeConfig(t, minimalConfig+`
telemetry:
  sentrydsn: "${GEO_SENTRY_DSN_UNSET}"
`)
	_, err := load(viper.New(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEO_SENTRY_DSN_UNSET")
}
