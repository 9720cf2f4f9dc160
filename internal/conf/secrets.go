package conf

import (
	"fmt"
	"os"

	"github.com/tphakala/geocapture/internal/secrets"
)

// secretField is a credential that may come from <EnvVar>_FILE or contain
// ${VAR} references.
type secretField struct {
	EnvVar string
	Key    string
	Target func(*Settings) *string
}

func secretFields() []secretField {
	return []secretField{
		{"DATABASE_URL", "database.dsn", func(s *Settings) *string { return &s.Database.DSN }},
		{"AWS_ACCESS_KEY_ID", "storage.accesskeyid", func(s *Settings) *string { return &s.Storage.AccessKeyID }},
		{"AWS_SECRET_ACCESS_KEY", "storage.secretaccesskey", func(s *Settings) *string { return &s.Storage.SecretAccessKey }},
		{"GEMINI_API_KEY", "vision.apikey", func(s *Settings) *string { return &s.Vision.APIKey }},
		{"SENTRY_DSN", "telemetry.sentrydsn", func(s *Settings) *string { return &s.Telemetry.SentryDSN }},
	}
}

// resolveSecrets replaces each credential with its resolved value. A
// secret file named by <ENV>_FILE wins over config and environment.
func resolveSecrets(settings *Settings) error {
	for _, f := range secretFields() {
		target := f.Target(settings)
		value, err := secrets.Resolve(os.Getenv(f.EnvVar+"_FILE"), *target)
		if err != nil {
			return fmt.Errorf("%s: %w", f.Key, err)
		}
		*target = value
	}
	return nil
}
