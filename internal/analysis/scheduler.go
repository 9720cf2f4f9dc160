package analysis

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/tphakala/geocapture/internal/errors"
	"github.com/tphakala/geocapture/internal/logger"
	"github.com/tphakala/geocapture/internal/observability/metrics"
)

const (
	DefaultInterval       = 30 * time.Second
	DefaultPurgeSchedule  = "@daily"
	DefaultPurgeRetention = 30 * 24 * time.Hour
)

// SchedulerConfig controls the cron jobs.
type SchedulerConfig struct {
	// Interval between analysis ticks
	Interval time.Duration
	// PurgeSchedule is a cron spec for the housekeeping job; empty disables it
	PurgeSchedule string
	// PurgeRetention is how long completed entries are kept
	PurgeRetention time.Duration
}

// Scheduler runs the worker on a fixed interval with robfig/cron. A tick
// is skipped while the previous one is still running, so batches never
// overlap.
type Scheduler struct {
	cfg         SchedulerConfig
	worker      *Worker
	maintenance MaintenanceStore
	metrics     *metrics.AnalysisMetrics
	log         logger.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool

	// tickMu keeps the startup run and the first scheduled run apart
	tickMu sync.Mutex
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler for worker. maintenance may be nil, in
// which case no housekeeping job is registered.
func NewScheduler(cfg SchedulerConfig, worker *Worker, maintenance MaintenanceStore, m *metrics.AnalysisMetrics, log logger.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.PurgeRetention <= 0 {
		cfg.PurgeRetention = DefaultPurgeRetention
	}
	if log == nil {
		log = logger.Global().Module("scheduler")
	}
	return &Scheduler{
		cfg:         cfg,
		worker:      worker,
		maintenance: maintenance,
		metrics:     m,
		log:         log,
	}
}

// Start registers the jobs and starts the cron runner. The first tick
// runs immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.Newf("scheduler already running").
			Component("analysis").
			Category(errors.CategoryJobQueue).
			Build()
	}

	cronLog := cronLogger{log: s.log}
	c := cron.New(cron.WithChain(
		recoverWrapper(s.log),
		loggingWrapper(s.log),
		cron.SkipIfStillRunning(cronLog),
	), cron.WithLogger(cronLog))

	tick := cron.FuncJob(func() { s.tick(ctx) })
	if _, err := c.AddJob(fmt.Sprintf("@every %s", s.cfg.Interval), tick); err != nil {
		return s.scheduleError(err, "analysis")
	}

	if s.maintenance != nil && s.cfg.PurgeSchedule != "" {
		if _, err := c.AddFunc(s.cfg.PurgeSchedule, func() { s.housekeeping(ctx) }); err != nil {
			return s.scheduleError(err, "housekeeping")
		}
	}

	c.Start()
	s.cron = c
	s.running = true
	s.log.Info("Analysis scheduler started",
		logger.Duration("interval", s.cfg.Interval),
		logger.String("purge_schedule", s.cfg.PurgeSchedule))

	// cron waits a full interval before the first run
	s.wg.Go(func() { s.tick(ctx) })
	return nil
}

// Stop stops scheduling new ticks and waits for a running one to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	c := s.cron
	wasRunning := s.running
	s.running = false
	s.cron = nil
	s.mu.Unlock()

	if !wasRunning {
		return
	}
	<-c.Stop().Done()
	s.wg.Wait()
	s.log.Info("Analysis scheduler stopped")
}

// Serve runs the scheduler until ctx is cancelled. It satisfies
// suture.Service.
func (s *Scheduler) Serve(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	s.Stop()
	return ctx.Err()
}

func (s *Scheduler) String() string { return "analysis-scheduler" }

func (s *Scheduler) tick(ctx context.Context) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	if ctx.Err() != nil {
		return
	}
	summary, err := s.worker.RunOnce(ctx)
	if err != nil {
		return
	}
	if summary.Fetched > 0 {
		s.log.Info("Analysis batch finished",
			logger.Int("fetched", summary.Fetched),
			logger.Int("completed", summary.Outcomes[metrics.OutcomeCompleted]),
			logger.Int("transient", summary.Outcomes[metrics.OutcomeTransient]),
			logger.Int("permanent", summary.Outcomes[metrics.OutcomePermanent]))
	}
}

func (s *Scheduler) housekeeping(ctx context.Context) {
	purged, err := s.maintenance.PurgeCompleted(ctx, s.cfg.PurgeRetention)
	if err != nil {
		s.log.Error("Failed to purge completed queue entries", logger.Error(err))
	} else if purged > 0 {
		s.log.Info("Purged completed queue entries", logger.Int64("count", purged))
	}

	stats, err := s.maintenance.QueueStats(ctx)
	if err != nil {
		s.log.Error("Failed to read queue stats", logger.Error(err))
		return
	}
	s.metrics.SetQueueEntries(stats.Pending, stats.Exhausted, stats.Completed)
	s.log.Debug("Queue stats",
		logger.Int64("pending", stats.Pending),
		logger.Int64("exhausted", stats.Exhausted),
		logger.Int64("completed", stats.Completed))
}

func (s *Scheduler) scheduleError(err error, job string) error {
	return errors.New(err).
		Component("analysis").
		Category(errors.CategoryJobQueue).
		Context("job", job).
		Build()
}

// recoverWrapper keeps a panicking job from taking down the cron runner.
func recoverWrapper(log logger.Logger) cron.JobWrapper {
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error("Scheduled job panicked",
						logger.Any("panic", r),
						logger.String("stack", string(debug.Stack())))
				}
			}()
			j.Run()
		})
	}
}

func loggingWrapper(log logger.Logger) cron.JobWrapper {
	return func(j cron.Job) cron.Job {
		return cron.FuncJob(func() {
			id := uuid.NewString()
			start := time.Now()
			log.Trace("Scheduled job started", logger.String("execution_id", id))
			j.Run()
			log.Trace("Scheduled job finished",
				logger.String("execution_id", id),
				logger.Duration("elapsed", time.Since(start)))
		})
	}
}

// cronLogger adapts logger.Logger to cron.Logger.
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Trace("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []any) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, logger.Any(key, kv[i+1]))
	}
	return fields
}
