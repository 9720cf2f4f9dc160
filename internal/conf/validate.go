package conf

import (
	"fmt"
	"strings"

	"github.com/tphakala/geocapture/internal/datastore"
)

// ValidationError collects every problem found in the settings.
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the whole settings tree.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	ve.Errors = append(ve.Errors, validateDatabaseSettings(&settings.Database)...)
	ve.Errors = append(ve.Errors, validateWorkerSettings(&settings.Worker)...)
	ve.Errors = append(ve.Errors, validateVisionSettings(&settings.Vision)...)

	if settings.Worker.AnalysisEnabled {
		if settings.Storage.Bucket == "" {
			ve.Errors = append(ve.Errors, "storage.bucket is required when the analysis worker is enabled")
		}
		if settings.Vision.APIKey == "" {
			ve.Errors = append(ve.Errors, "vision.apikey is required when the analysis worker is enabled")
		}
	}
	if settings.Storage.MaxImageSizeBytes <= 0 {
		ve.Errors = append(ve.Errors, "storage.maximagesizebytes must be positive")
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateDatabaseSettings(s *DatabaseSettings) []string {
	if validateEnvDriver(s.Driver) != nil {
		return []string{fmt.Sprintf("database.driver %q is not supported (use %s, %s or %s)",
			s.Driver, datastore.DriverPostgres, datastore.DriverMySQL, datastore.DriverSQLite)}
	}
	return nil
}

func validateWorkerSettings(s *WorkerSettings) []string {
	var errs []string
	if s.IntervalSeconds <= 0 {
		errs = append(errs, "worker.intervalseconds must be positive")
	}
	if s.BatchSize <= 0 {
		errs = append(errs, "worker.batchsize must be positive")
	}
	if s.MaxAttempts <= 0 {
		errs = append(errs, "worker.maxattempts must be positive")
	}
	if s.MaxThumbnailWidth <= 0 || s.MaxThumbnailHeight <= 0 {
		errs = append(errs, "worker.maxthumbnailwidth and worker.maxthumbnailheight must be positive")
	}
	if s.ThumbnailQuality < 1 || s.ThumbnailQuality > 100 {
		errs = append(errs, "worker.thumbnailquality must be between 1 and 100")
	}
	if s.Retry.MaxRetries < 0 {
		errs = append(errs, "worker.retry.maxretries must not be negative")
	}
	if s.Retry.MaxRetries > 0 && s.Retry.InitialDelay <= 0 {
		errs = append(errs, "worker.retry.initialdelay must be positive when retries are enabled")
	}
	if s.TransientEscalationAfter < 0 || s.LeaseDuration < 0 {
		errs = append(errs, "worker.transientescalationafter and worker.leaseduration must not be negative")
	}
	if s.QueueRetentionDays <= 0 {
		errs = append(errs, "worker.queueretentiondays must be positive")
	}
	return errs
}

func validateVisionSettings(s *VisionSettings) []string {
	var errs []string
	if s.Timeout <= 0 {
		errs = append(errs, "vision.timeout must be positive")
	}
	if s.RateLimit < 0 {
		errs = append(errs, "vision.ratelimit must not be negative")
	}
	if err := validateEnvURL(s.Endpoint); err != nil {
		errs = append(errs, fmt.Sprintf("vision.endpoint: %v", err))
	}
	return errs
}
