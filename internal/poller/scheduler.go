package poller

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs a job repeatedly until the returned handle is cancelled.
type Scheduler interface {
	Every(interval time.Duration, job func()) (Handle, error)
}

// Handle stops a scheduled job.
type Handle interface {
	Cancel()
}

// CronScheduler schedules poll jobs on a shared robfig/cron instance. A job
// that is still running when its next tick fires is skipped, not queued.
type CronScheduler struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// NewCronScheduler creates a scheduler. Call Start before jobs can fire.
func NewCronScheduler(logger *zap.Logger) *CronScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))
	c := cron.New(
		cron.WithLogger(cronLogger),
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	return &CronScheduler{cron: c, logger: logger}
}

// Every registers job to fire once per interval. Intervals are rounded down to
// whole seconds by cron; anything under a second is rejected.
func (s *CronScheduler) Every(interval time.Duration, job func()) (Handle, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("interval %s is below the one second cron resolution", interval)
	}
	if job == nil {
		return nil, fmt.Errorf("job must not be nil")
	}

	id := s.cron.Schedule(cron.Every(interval), cron.FuncJob(job))
	s.logger.Debug("job scheduled", zap.Int("entry_id", int(id)), zap.Duration("interval", interval))

	return &cronHandle{cron: s.cron, id: id}, nil
}

// At registers job on a standard five-field cron expression, e.g. "0 20 * * 5".
func (s *CronScheduler) At(spec string, job func()) (Handle, error) {
	id, err := s.cron.AddFunc(spec, job)
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", spec, err)
	}
	s.logger.Debug("job scheduled", zap.Int("entry_id", int(id)), zap.String("spec", spec))

	return &cronHandle{cron: s.cron, id: id}, nil
}

// Start starts the scheduler.
func (s *CronScheduler) Start() {
	s.logger.Info("starting scheduler")
	s.cron.Start()
}

// Stop stops the scheduler and waits for running jobs until ctx expires.
func (s *CronScheduler) Stop(ctx context.Context) {
	s.logger.Info("stopping scheduler")
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("scheduler stop timed out with jobs still running")
	}
}

type cronHandle struct {
	cron *cron.Cron
	id   cron.EntryID
}

func (h *cronHandle) Cancel() {
	h.cron.Remove(h.id)
}
