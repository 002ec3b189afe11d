// Package scheduler runs the periodic full sweep.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/clousec/clousec/internal/scanner"
	"go.uber.org/zap"
)

// Sweeper runs one blocking sweep.
type Sweeper interface {
	FullScan(ctx context.Context, services ...string) error
}

// Scheduler sweeps once at start, then on every tick.
type Scheduler struct {
	sweeper  Sweeper
	interval time.Duration
	logger   *zap.Logger
}

// New returns a scheduler. A zero interval disables periodic sweeps.
func New(sweeper Sweeper, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{sweeper: sweeper, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("Periodic sweeps disabled")
		return
	}

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	start := time.Now()
	err := s.sweeper.FullScan(ctx)
	switch {
	case errors.Is(err, scanner.ErrScanInProgress):
		s.logger.Info("Skipping scheduled sweep, one is already running")
	case err != nil && ctx.Err() == nil:
		s.logger.Warn("Scheduled sweep failed", zap.Error(err))
	case err == nil:
		s.logger.Info("Scheduled sweep complete", zap.Duration("took", time.Since(start)))
	}
}
