package app

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tphakala/geocapture/internal/logger"
)

// SupervisorConfig holds the restart policy of the service tree.
type SupervisorConfig struct {
	FailureThreshold float64
	FailureDecay     float64
	FailureBackoff   time.Duration
	ShutdownTimeout  time.Duration
}

// DefaultSupervisorConfig matches suture's own defaults.
func DefaultSupervisorConfig() SupervisorConfig {
	return SupervisorConfig{
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		ShutdownTimeout:  10 * time.Second,
	}
}

// NewSupervisor creates the root supervisor. Supervisor events such as
// service panics and restarts are written to log.
func NewSupervisor(cfg SupervisorConfig, log logger.Logger) *suture.Supervisor {
	return suture.New("geocapture", suture.Spec{
		EventHook:        eventHook(log),
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	})
}

func eventHook(log logger.Logger) suture.EventHook {
	return func(e suture.Event) {
		fields := make([]logger.Field, 0, len(e.Map())+1)
		fields = append(fields, logger.String("event", e.String()))
		for k, v := range e.Map() {
			fields = append(fields, logger.Any(k, v))
		}
		switch e.Type() {
		case suture.EventTypeServicePanic, suture.EventTypeBackoff:
			log.Error("Supervisor event", fields...)
		default:
			log.Warn("Supervisor event", fields...)
		}
	}
}

// RunServices supervises services until ctx is cancelled and returns
// once every service has stopped.
func RunServices(ctx context.Context, sup *suture.Supervisor, services ...suture.Service) error {
	for _, svc := range services {
		sup.Add(svc)
	}
	err := sup.Serve(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}
