// Package cron runs the billing worker's scheduled jobs: the monthly invoice
// cycle and the overdue sweep.
package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	robfig "github.com/robfig/cron/v3"
	"go.uber.org/multierr"

	"github.com/angelmondragon/feeledger/pkg/logger"
)

const defaultInterval = 24 * time.Hour

// ErrCycleSkipped is returned by RunOnce when another worker holds the lock.
var ErrCycleSkipped = errors.New("cron cycle skipped: lock held elsewhere")

type jobObserver interface {
	ObserveRun(job string, finished time.Time, took time.Duration, err error)
	ObserveSkippedCycle()
}

// Schedule yields the next activation after a given time. robfig/cron
// schedules satisfy it.
type Schedule interface {
	Next(time.Time) time.Time
}

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  jobObserver
	Schedule Schedule
	Clock    func() time.Time
}

// Service runs every registered job on each schedule activation while holding Lock.
type Service struct {
	logg     *logger.Logger
	jobs     []Job
	lock     Lock
	metrics  jobObserver
	schedule Schedule
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	if params.Registry == nil || len(params.Registry.Jobs()) == 0 {
		return nil, fmt.Errorf("at least one cron job required")
	}
	svc := &Service{
		logg:     params.Logger,
		jobs:     params.Registry.Jobs(),
		lock:     params.Lock,
		metrics:  params.Metrics,
		schedule: params.Schedule,
		now:      params.Clock,
	}
	if svc.schedule == nil {
		svc.schedule = robfig.Every(defaultInterval)
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// Run executes a cycle immediately and then at every schedule activation
// until ctx ends. Cycle failures are logged, never fatal.
func (s *Service) Run(ctx context.Context) error {
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		s.logCycle(ctx, s.RunOnce(ctx))

		next := s.schedule.Next(s.now())
		s.logg.Debug(s.logg.WithField(ctx, "next_run", next.UTC().Format(time.RFC3339)), "cron cycle scheduled")
		timer.Reset(time.Until(next))
	}
}

func (s *Service) logCycle(ctx context.Context, err error) {
	switch {
	case err == nil:
	case errors.Is(err, ErrCycleSkipped):
		s.logg.Info(ctx, "cron cycle skipped; another worker holds the lock")
	case ctx.Err() != nil:
	default:
		s.logg.Error(ctx, "cron cycle finished with failures", err)
	}
}

// RunOnce runs every job a single time. All jobs run even when an earlier one
// fails; the failures are combined in the returned error.
func (s *Service) RunOnce(ctx context.Context) (err error) {
	acquired, err := s.lock.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire cron lock: %w", err)
	}
	if !acquired {
		if s.metrics != nil {
			s.metrics.ObserveSkippedCycle()
		}
		return ErrCycleSkipped
	}
	defer func() {
		if relErr := s.lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "failed to release cron lock", relErr)
		}
	}()

	for _, job := range s.jobs {
		if ctx.Err() != nil {
			return multierr.Append(err, ctx.Err())
		}
		err = multierr.Append(err, s.runJob(ctx, job))
	}
	return err
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	started := s.now()
	err := job.Run(jobCtx)
	finished := s.now()
	took := finished.Sub(started)
	if s.metrics != nil {
		s.metrics.ObserveRun(job.Name(), finished, took, err)
	}

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "cron job failed", err)
		return fmt.Errorf("%s: %w", job.Name(), err)
	}
	s.logg.Info(jobCtx, "cron job completed")
	return nil
}
