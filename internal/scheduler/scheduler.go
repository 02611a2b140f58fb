// Package scheduler runs the journal sweep on a fixed interval.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

const sweepTimeout = 5 * time.Minute

// Sweeper is the cleanup job run on each tick.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) error
}

type Scheduler struct {
	scheduler *gocron.Scheduler
	sweeper   Sweeper
	interval  time.Duration
	logger    *slog.Logger
}

func New(sweeper Sweeper, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		sweeper:   sweeper,
		interval:  interval,
		logger:    logger,
	}
}

// Start schedules the sweep and starts the scheduler. A non-positive
// interval leaves the sweep unscheduled.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.logger.Info("sweep schedule disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()

		start := time.Now()
		if err := s.sweeper.Sweep(ctx, start); err != nil {
			s.logger.Error("sweep failed", "error", err)
			return
		}
		s.logger.Debug("sweep completed", "duration", time.Since(start))
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	s.logger.Info("sweep scheduled", "interval", s.interval)
	return nil
}

func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
