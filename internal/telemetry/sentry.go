// Package telemetry initialises Sentry error reporting. Events are
// scrubbed of host, user and credential data before they leave the process.
package telemetry

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/tphakala/geocapture/internal/buildinfo"
	"github.com/tphakala/geocapture/internal/errors"
	"github.com/tphakala/geocapture/internal/logger"
)

const flushTimeout = 2 * time.Second

// Options configures Sentry.
type Options struct {
	DSN         string
	Environment string
	Build       *buildinfo.Context
	// Transport replaces the HTTP transport, mainly for tests
	Transport sentry.Transport
}

// Init initialises Sentry and routes EnhancedErrors to it. It returns a
// flush function to call before exit. An empty DSN disables reporting and
// returns a no-op flush.
func Init(opts Options) (flush func(), err error) {
	if opts.DSN == "" && opts.Transport == nil {
		return func() {}, nil
	}
	if opts.Environment == "" {
		opts.Environment = "production"
	}

	err = sentry.Init(sentry.ClientOptions{
		Dsn:              opts.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      opts.Environment,
		ServerName:       "",
		Release:          opts.Build.Release(),
		Transport:        opts.Transport,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return func() {}, fmt.Errorf("sentry initialization failed: %w", err)
	}

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	logger.Global().Module("telemetry").Info("Sentry error reporting enabled",
		logger.String("environment", opts.Environment),
		logger.String("release", opts.Build.Release()))

	return func() { sentry.Flush(flushTimeout) }, nil
}

// applyPrivacyFilters removes identifying data from an event.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Message = logger.RedactSensitiveData(event.Message)

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	for i := range event.Exception {
		event.Exception[i].Value = logger.RedactSensitiveData(event.Exception[i].Value)
	}
	if event.Request != nil {
		event.Request.URL = logger.RedactURL(event.Request.URL)
		event.Request.QueryString = ""
		event.Request.Cookies = ""
		event.Request.Headers = nil
	}
	return event
}
