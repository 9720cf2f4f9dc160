package worker

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/thejerf/suture/v4"

	"github.com/tphakala/geocapture/internal/app"
	"github.com/tphakala/geocapture/internal/conf"
	"github.com/tphakala/geocapture/internal/logger"
	"github.com/tphakala/geocapture/internal/observability"
)

// Command creates the worker command, which runs the analysis scheduler
// until SIGINT or SIGTERM.
func Command(settings *conf.Settings) *cobra.Command {
	var (
		once     bool
		interval int
	)

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the capture analysis worker",
		Long:  "Drains the analysis queue on a fixed interval: downloads each capture, analyzes it with the vision model, stores the metadata and a thumbnail.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if interval > 0 {
				settings.Worker.IntervalSeconds = interval
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, settings, once)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Process a single batch and exit")
	cmd.Flags().IntVar(&interval, "interval", 0, "Override worker.intervalseconds")

	return cmd
}

func run(ctx context.Context, settings *conf.Settings, once bool) error {
	log := logger.Global().Module("worker")

	if !settings.Worker.AnalysisEnabled {
		log.Info("Analysis worker disabled by configuration, nothing to do")
		return nil
	}

	a, err := app.New(ctx, settings, log)
	if err != nil {
		return err
	}
	defer a.Close()
	a.Metrics.TrackErrors()

	w, err := a.NewWorker()
	if err != nil {
		return err
	}

	if once {
		summary, err := w.RunOnce(ctx)
		if err != nil {
			return err
		}
		log.Info("Batch processed",
			logger.Int("fetched", summary.Fetched),
			logger.Any("outcomes", summary.Outcomes))
		return nil
	}

	services := []suture.Service{a.NewScheduler(w)}
	if settings.Telemetry.Enabled {
		endpoint, err := observability.NewEndpoint(settings.Telemetry.Listen, a.Metrics, logger.Global().Module("observability"))
		if err != nil {
			return err
		}
		services = append(services, endpoint)
	}

	log.Info("Starting analysis worker",
		logger.Int("interval_seconds", settings.Worker.IntervalSeconds),
		logger.Int("batch_size", settings.Worker.BatchSize),
		logger.Bool("thumbnails", settings.Worker.ThumbnailEnabled),
		logger.Bool("metrics", settings.Telemetry.Enabled))

	err = app.RunServices(ctx, app.NewSupervisor(app.DefaultSupervisorConfig(), log), services...)
	log.Info("Analysis worker stopped")
	return err
}
