// Package scheduler triggers pipeline batches on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner is one schedulable batch job.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler drives a Runner from a cron schedule. Invocations are serial: a
// tick that fires while the previous batch is still running is skipped.
type Scheduler struct {
	cron    *cron.Cron
	job     Runner
	timeout time.Duration
	logger  *slog.Logger
}

// New parses the cron expression (standard five-field syntax or an @-style
// descriptor) and registers the job with the given per-batch timeout.
func New(spec string, timeout time.Duration, job Runner, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		job:     job,
		timeout: timeout,
		logger:  logger,
	}
	s.cron = cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger})))
	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started")
	s.cron.Start()
}

// Stop halts scheduling and waits for a running batch to finish, bounded by
// ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	if err := s.job.Run(ctx); err != nil {
		s.logger.Error("scheduled batch failed", "error", err, "duration", time.Since(start))
		return
	}
	s.logger.Debug("scheduled batch finished", "duration", time.Since(start))
}

// cronLogger adapts slog to the cron logging interface. With the skip chain
// this only ever sees skip notices, which are worth surfacing: a skipped tick
// means a batch overran its schedule.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	args := append([]interface{}{"error", err}, keysAndValues...)
	l.logger.Error(msg, args...)
}
