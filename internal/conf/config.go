// Package conf loads geocapture settings from config.yaml, environment
// variables and built-in defaults using viper.
package conf

import (
	"embed"
	"io/fs"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/tphakala/geocapture/internal/errors"
	"github.com/tphakala/geocapture/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// DatabaseSettings selects and tunes the SQL backend.
type DatabaseSettings struct {
	Driver          string        // postgres, mysql or sqlite
	DSN             string        // driver specific connection string
	MaxOpenConns    int           // 0 keeps the driver default
	MaxIdleConns    int           // 0 keeps the driver default
	ConnMaxLifetime time.Duration // 0 means connections are reused forever
	AutoMigrate     bool          // create tables on start, for sqlite and development only
	SlowQuery       time.Duration // queries slower than this are logged at WARN
}

// StorageSettings points at the S3 compatible bucket holding capture images.
type StorageSettings struct {
	Region            string
	AccessKeyID       string
	SecretAccessKey   string
	Bucket            string
	Endpoint          string // custom endpoint for MinIO and friends
	PublicBaseURL     string // CDN or public host for uploaded objects
	MaxImageSizeBytes int64
}

// BreakerSettings configures the circuit breaker in front of the vision API.
type BreakerSettings struct {
	Enabled             bool
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
	HalfOpenRequests    uint32
}

// VisionSettings configures the generative vision model.
type VisionSettings struct {
	APIKey    string
	Endpoint  string
	Model     string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
	RateBurst int
	Breaker   BreakerSettings
}

// RetrySettings controls inline retries of transient vision failures.
type RetrySettings struct {
	MaxRetries   int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
}

// WorkerSettings configures the analysis worker and its scheduler.
type WorkerSettings struct {
	AnalysisEnabled          bool
	IntervalSeconds          int
	BatchSize                int
	MaxAttempts              int
	Retry                    RetrySettings
	TransientEscalationAfter time.Duration // 0 retries transient failures forever
	LeaseDuration            time.Duration // 0 disables claiming
	ThumbnailEnabled         bool
	MaxThumbnailWidth        int
	MaxThumbnailHeight       int
	ThumbnailQuality         int
	QueueRetentionDays       int
	PurgeSchedule            string // cron spec, empty disables housekeeping
}

// TelemetrySettings controls metrics exposure and error reporting.
type TelemetrySettings struct {
	Enabled   bool   // serve /metrics
	Listen    string // address for the metrics listener
	SentryDSN string // enables Sentry error reporting when set
}

// Settings is the root of the configuration tree.
type Settings struct {
	Debug     bool
	Database  DatabaseSettings
	Storage   StorageSettings
	Vision    VisionSettings
	Worker    WorkerSettings
	Logging   logger.LoggingConfig
	Telemetry TelemetrySettings
}

// Interval returns the worker tick interval.
func (w WorkerSettings) Interval() time.Duration {
	return time.Duration(w.IntervalSeconds) * time.Second
}

// QueueRetention returns how long completed queue entries are kept.
func (w WorkerSettings) QueueRetention() time.Duration {
	return time.Duration(w.QueueRetentionDays) * 24 * time.Hour
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads configFile (or config.yaml from the default search paths when
// empty), applies defaults and environment variables, validates the result
// and stores it as the current settings. A missing config file is not an
// error.
func Load(configFile string) (*Settings, error) {
	v := viper.New()
	settings, err := load(v, configFile)
	if err != nil {
		return nil, err
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()
	return settings, nil
}

func load(v *viper.Viper, configFile string) (*Settings, error) {
	if err := initViper(v, configFile); err != nil {
		return nil, err
	}

	if err := bindEnvVars(v); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "bind-env").
			Build()
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}

	if err := resolveSecrets(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "resolve-secrets").
			Build()
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}

	if used := v.ConfigFileUsed(); used != "" {
		GetLogger().Debug("Configuration loaded", logger.String("path", used))
	}
	return settings, nil
}

// initViper sets defaults and reads the config file.
func initViper(v *viper.Viper, configFile string) error {
	v.SetConfigType("yaml")
	setDefaultConfig(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		for _, path := range GetDefaultConfigPaths() {
			v.AddConfigPath(path)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			GetLogger().Info("No config file found, using defaults and environment")
			return nil
		}
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "read-config").
			Context("path", configFile).
			Build()
	}
	return nil
}

// DefaultConfig returns the annotated default config.yaml.
func DefaultConfig() ([]byte, error) {
	return fs.ReadFile(configFiles, "config.yaml")
}

// GetSettings returns the settings stored by the last successful Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
