package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/tphakala/geocapture/internal/datastore"
)

// envBinding maps an environment variable onto a config key.
type envBinding struct {
	ConfigKey string
	EnvVar    string
	Validate  func(string) error // optional
}

// getEnvBindings returns every supported environment variable. The names
// match the deployment environment of the capture service.
func getEnvBindings() []envBinding {
	return []envBinding{
		{"database.dsn", "DATABASE_URL", nil},
		{"database.driver", "DATABASE_DRIVER", validateEnvDriver},

		{"storage.region", "AWS_REGION", nil},
		{"storage.accesskeyid", "AWS_ACCESS_KEY_ID", nil},
		{"storage.secretaccesskey", "AWS_SECRET_ACCESS_KEY", nil},
		{"storage.bucket", "S3_BUCKET", nil},
		{"storage.endpoint", "S3_ENDPOINT", validateEnvURL},
		{"storage.publicbaseurl", "S3_PUBLIC_BASE_URL", validateEnvURL},

		{"vision.apikey", "GEMINI_API_KEY", nil},
		{"vision.endpoint", "GEMINI_ENDPOINT", validateEnvURL},
		{"vision.model", "GEMINI_MODEL", nil},

		{"worker.analysisenabled", "ANALYSIS_WORKER_ENABLED", validateEnvBool},
		{"worker.intervalseconds", "ANALYSIS_WORKER_INTERVAL_SECONDS", validateEnvPositiveInt},
		{"worker.thumbnailenabled", "THUMBNAIL_GENERATION_ENABLED", validateEnvBool},
		{"worker.maxthumbnailwidth", "MAX_THUMBNAIL_WIDTH", validateEnvPositiveInt},
		{"worker.maxthumbnailheight", "MAX_THUMBNAIL_HEIGHT", validateEnvPositiveInt},

		{"logging.defaultlevel", "LOG_LEVEL", validateEnvLogLevel},
		{"logging.console.level", "LOG_LEVEL", nil},
		{"telemetry.sentrydsn", "SENTRY_DSN", nil},
		{"telemetry.listen", "METRICS_LISTEN", nil},
	}
}

// bindEnvVars binds every environment variable and validates the ones
// that are set. All problems are reported together.
func bindEnvVars(v *viper.Viper) error {
	var problems []string

	for _, binding := range getEnvBindings() {
		if err := v.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			problems = append(problems, fmt.Sprintf("failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if value := os.Getenv(binding.EnvVar); value != "" {
			if err := binding.Validate(value); err != nil {
				problems = append(problems, fmt.Sprintf("invalid %s value %q: %v", binding.EnvVar, value, err))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("must be true/false, 1/0, t/f")
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("not an integer: %w", err)
	}
	if n <= 0 {
		return fmt.Errorf("must be positive, got %d", n)
	}
	return nil
}

func validateEnvDriver(value string) error {
	switch value {
	case datastore.DriverPostgres, datastore.DriverMySQL, datastore.DriverSQLite:
		return nil
	}
	return fmt.Errorf("must be one of %s, %s, %s", datastore.DriverPostgres, datastore.DriverMySQL, datastore.DriverSQLite)
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be an absolute URL")
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "trace", "debug", "info", "warn", "error":
		return nil
	}
	return fmt.Errorf("must be trace, debug, info, warn or error")
}
