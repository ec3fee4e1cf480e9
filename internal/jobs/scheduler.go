package jobs

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Schedule fires a job every Interval.
type Schedule struct {
	Job      string
	Interval time.Duration
}

// JobRunner is the trigger surface the scheduler drives.
type JobRunner interface {
	RunJob(ctx context.Context, name string) JobResult
}

// Scheduler triggers jobs on fixed intervals. Each job runs at most once at a time within
// a process; the registry's lease covers other processes.
type Scheduler struct {
	runner    JobRunner
	schedules []Schedule
	logger    *zap.Logger
	newTicker func(d time.Duration) (<-chan time.Time, func())
}

// NewScheduler creates a Scheduler.
func NewScheduler(runner JobRunner, logger *zap.Logger, schedules ...Schedule) (*Scheduler, error) {
	for _, s := range schedules {
		if s.Interval <= 0 {
			return nil, fmt.Errorf("schedule for job %s: interval must be positive, got %s", s.Job, s.Interval)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		runner:    runner,
		schedules: schedules,
		logger:    logger,
		newTicker: func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		},
	}, nil
}

// Run blocks until ctx is cancelled. A run in progress when ctx ends is allowed to finish
// its current page.
func (s *Scheduler) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, sched := range s.schedules {
		g.Go(func() error {
			s.loop(ctx, sched)
			return nil
		})
	}
	return g.Wait()
}

func (s *Scheduler) loop(ctx context.Context, sched Schedule) {
	ticks, stop := s.newTicker(sched.Interval)
	defer stop()
	log := s.logger.With(zap.String("job", sched.Job), zap.Duration("interval", sched.Interval))
	log.Info("job scheduled")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			res := s.runner.RunJob(ctx, sched.Job)
			if res.Success {
				log.Info("scheduled run finished", zap.String("result", res.Message))
			} else {
				log.Error("scheduled run failed", zap.String("result", res.Message))
			}
		}
	}
}
