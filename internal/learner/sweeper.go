package learner

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

// Sweeper runs the retention sweep on a fixed interval.
type Sweeper struct {
	learner   *Learner
	scheduler gocron.Scheduler
	interval  time.Duration
	logger    *zap.Logger
}

// NewSweeper schedules l.Sweep every interval. Default interval: 1h.
// The scheduler does not start until Start is called.
func NewSweeper(l *Learner, interval time.Duration) (*Sweeper, error) {
	if interval <= 0 {
		interval = time.Hour
	}
	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("creating scheduler: %w", err)
	}
	return &Sweeper{
		learner:   l,
		scheduler: scheduler,
		interval:  interval,
		logger:    l.logger.Named("sweeper"),
	}, nil
}

// Start registers the sweep job and starts the scheduler. ctx bounds every
// sweep; cancel it before Stop to abort a sweep in progress.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			if _, err := s.learner.Sweep(ctx); err != nil {
				s.logger.Warn("retention sweep failed", zap.Error(err))
			}
		}),
		gocron.WithName("performance_retention_sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("scheduling retention sweep: %w", err)
	}
	s.scheduler.Start()
	s.logger.Info("retention sweep scheduled",
		zap.Duration("interval", s.interval),
		zap.Duration("retention", s.learner.cfg.Retention),
	)
	return nil
}

// Stop shuts the scheduler down and waits for a running sweep.
func (s *Sweeper) Stop() error {
	return s.scheduler.Shutdown()
}
