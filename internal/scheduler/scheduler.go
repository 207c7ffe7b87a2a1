// Package scheduler triggers pipeline runs on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-backup-etl/internal/pipeline"
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler calls Run once at start (optionally) and then on every tick.
// Ticks that arrive while a run is executing are dropped by the ticker.
type Scheduler struct {
	runner     Runner
	interval   time.Duration
	runOnStart bool
	clock      clockwork.Clock
	logger     *slog.Logger
}

// New creates a Scheduler. A nil clock uses the real clock.
func New(runner Runner, interval time.Duration, runOnStart bool, clock clockwork.Clock, logger *slog.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		runner:     runner,
		interval:   interval,
		runOnStart: runOnStart,
		clock:      clock,
		logger:     logger,
	}
}

// Start blocks, triggering runs until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler started", "interval", s.interval.String(), "run_on_start", s.runOnStart)
	if s.runOnStart {
		s.trigger(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.Chan():
			s.trigger(ctx)
		}
	}
}

func (s *Scheduler) trigger(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	err := s.runner.Run(ctx)
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		s.logger.Info("scheduled run skipped, manual run in progress")
	case err != nil:
		s.logger.Error("scheduled run failed", "error", err)
	}
}
