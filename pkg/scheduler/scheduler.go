package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler drives evaluation passes at a fixed period after an initial
// startup delay. Passes never overlap: a tick arriving while the previous
// pass is still running is skipped.
type Scheduler struct {
	period       time.Duration
	initialDelay time.Duration
	job          func(ctx context.Context)
	logger       *slog.Logger

	c       *cron.Cron
	running atomic.Bool
	wg      sync.WaitGroup
}

// New creates a scheduler for the given job. The job receives the context
// passed to Start and is expected to honor its cancellation.
func New(period, initialDelay time.Duration, job func(ctx context.Context), logger *slog.Logger) (*Scheduler, error) {
	if period <= 0 {
		return nil, fmt.Errorf("scheduler: period must be positive, got %s", period)
	}
	if initialDelay < 0 {
		return nil, fmt.Errorf("scheduler: initial delay must not be negative, got %s", initialDelay)
	}
	return &Scheduler{
		period:       period,
		initialDelay: initialDelay,
		job:          job,
		logger:       logger,
	}, nil
}

// Start begins scheduling: one pass after the initial delay, then one every
// period. It does not block.
func (s *Scheduler) Start(ctx context.Context) error {
	s.c = cron.New(cron.WithChain(cron.Recover(cronLogger{s.logger})))
	if _, err := s.c.AddFunc("@every "+s.period.String(), func() { s.runOnce(ctx) }); err != nil {
		return fmt.Errorf("register schedule: %w", err)
	}

	go func() {
		select {
		case <-time.After(s.initialDelay):
		case <-ctx.Done():
			return
		}
		s.runOnce(ctx)
		s.c.Start()
	}()
	return nil
}

// Stop halts scheduling and waits for an in-flight pass to finish, or until
// ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.c != nil {
		s.c.Stop()
	}
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for in-flight pass: %w", ctx.Err())
	}
}

// runOnce executes the job under the single-flight guard.
func (s *Scheduler) runOnce(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("previous pass still running, skipping tick")
		return
	}
	s.wg.Add(1)
	defer func() {
		s.running.Store(false)
		s.wg.Done()
	}()
	s.job(ctx)
}

// cronLogger adapts slog to the cron logging interface.
type cronLogger struct {
	logger *slog.Logger
}

func (c cronLogger) Info(msg string, kv ...interface{}) {
	c.logger.Debug(msg, kv...)
}

func (c cronLogger) Error(err error, msg string, kv ...interface{}) {
	c.logger.Error(msg, append(kv, "error", err)...)
}
