// Package scheduler drives the decision cycle on a fixed tick. Cycles are
// strictly serialized: a tick that fires while a cycle is still running is
// skipped, never queued.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Official-Krish/ai-trading-zerodha/internal/logger"
)

// Runner is one schedulable unit of work per tick.
type Runner interface {
	// RunCycle performs one decision cycle.
	RunCycle(ctx context.Context) error
	// Snapshot records the portfolio value after a cycle.
	Snapshot(ctx context.Context) error
}

type Scheduler struct {
	runner   Runner
	interval time.Duration
	busy     atomic.Bool
}

func New(runner Runner, interval time.Duration) *Scheduler {
	return &Scheduler{runner: runner, interval: interval}
}

// Run ticks until ctx is cancelled. The first cycle starts immediately.
// Each tick claims the single run slot; if the previous cycle still holds
// it the tick is dropped and logged, so cycles never overlap or pile up.
func (s *Scheduler) Run(ctx context.Context) {
	logger.Info(ctx, "Scheduler started", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Scheduler stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if !s.busy.CompareAndSwap(false, true) {
		logger.Warn(ctx, "Previous cycle still running, skipping tick")
		return
	}
	go func() {
		defer s.busy.Store(false)

		if err := s.runner.RunCycle(ctx); err != nil {
			// RunCycle logs its own failure detail; the scheduler only
			// cares that the slot is freed for the next tick.
			logger.Debug(ctx, "Cycle ended with error", "error", err.Error())
			return
		}
		if err := s.runner.Snapshot(ctx); err != nil {
			logger.Debug(ctx, "Snapshot ended with error", "error", err.Error())
		}
	}()
}
