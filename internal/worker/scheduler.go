package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pratik-mahalle/skuprice/internal/domain/run"
	apperrors "github.com/pratik-mahalle/skuprice/internal/pkg/errors"
	"github.com/pratik-mahalle/skuprice/internal/pkg/logger"
)

// Runner executes one pipeline run
type Runner interface {
	Run(ctx context.Context, trigger run.Trigger) (*run.Report, error)
}

// Scheduler triggers pipeline runs on a cron schedule evaluated in UTC
type Scheduler struct {
	runner     Runner
	schedule   string
	runOnStart bool
	logger     *logger.Logger

	// tracks triggers started outside cron
	wg sync.WaitGroup
}

// NewScheduler creates a new scheduler worker
func NewScheduler(runner Runner, schedule string, runOnStart bool, log *logger.Logger) *Scheduler {
	return &Scheduler{
		runner:     runner,
		schedule:   schedule,
		runOnStart: runOnStart,
		logger:     log.WithComponent("scheduler"),
	}
}

// Start schedules runs and blocks until ctx is done and every run it started
// has returned. A firing that overlaps a still running job is skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	clog := cronLogger{s.logger}
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)

	id, err := c.AddFunc(s.schedule, func() { s.trigger(ctx, run.TriggerSchedule) })
	if err != nil {
		return apperrors.ValidationError("invalid pipeline schedule", map[string]string{"schedule": s.schedule})
	}

	c.Start()
	s.logger.WithFields(map[string]interface{}{
		"schedule": s.schedule,
		"next_run": c.Entry(id).Next.Format(time.RFC3339),
	}).Info("Scheduler started")

	if s.runOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.trigger(ctx, run.TriggerStartup)
		}()
	}

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	s.wg.Wait()
	s.logger.Info("Scheduler stopped")
	return nil
}

func (s *Scheduler) trigger(ctx context.Context, trigger run.Trigger) {
	if ctx.Err() != nil {
		return
	}
	report, err := s.runner.Run(ctx, trigger)
	switch {
	case err == nil:
		s.logger.WithFields(map[string]interface{}{
			"run_id":  report.ID.String(),
			"trigger": string(trigger),
			"status":  string(report.Status),
		}).Info("Scheduled run finished")
	case apperrors.HasCode(err, apperrors.ErrCodeConflict):
		s.logger.With("trigger", string(trigger)).Info("Run already in progress, trigger skipped")
	case errors.Is(err, context.Canceled):
		s.logger.With("trigger", string(trigger)).Warn("Run cancelled")
	default:
		s.logger.With("trigger", string(trigger)).ErrorWithErr(err, "Scheduled run failed")
	}
}

// cronLogger adapts the application logger to cron.Logger
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(fields(keysAndValues)).ErrorWithErr(err, msg)
}

func fields(keysAndValues []interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if k, ok := keysAndValues[i].(string); ok {
			out[k] = keysAndValues[i+1]
		}
	}
	return out
}
