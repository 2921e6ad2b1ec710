package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

type scriptedJob struct {
	name  string
	err   error
	runs  int
	onRun func(runs int)
}

func (j *scriptedJob) Name() string { return j.name }

func (j *scriptedJob) Run(context.Context) error {
	j.runs++
	if j.onRun != nil {
		j.onRun(j.runs)
	}
	return j.err
}

type recordingObserver struct {
	runs    map[string]error
	skipped int
}

func (r *recordingObserver) ObserveRun(job string, _ time.Time, _ time.Duration, err error) {
	if r.runs == nil {
		r.runs = map[string]error{}
	}
	r.runs[job] = err
}

func (r *recordingObserver) ObserveSkippedCycle() { r.skipped++ }

func newTestService(t *testing.T, lock Lock, observer jobObserver, jobs ...Job) *Service {
	t.Helper()
	registry, err := NewRegistry(jobs...)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{Logger: testLogger(), Registry: registry, Lock: lock, Metrics: observer})
	require.NoError(t, err)
	return svc
}

func TestRunOnceRunsEveryJobAndCombinesFailures(t *testing.T) {
	cycle := &scriptedJob{name: "invoice-cycle", err: errors.New("supplier s-1 busy")}
	overdue := &scriptedJob{name: "invoice-overdue"}
	observer := &recordingObserver{}
	lock := NewLocalLock()
	svc := newTestService(t, lock, observer, cycle, overdue)

	err := svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 1)
	assert.ErrorContains(t, err, "invoice-cycle")

	assert.Equal(t, 1, cycle.runs)
	assert.Equal(t, 1, overdue.runs)
	assert.Error(t, observer.runs["invoice-cycle"])
	assert.NoError(t, observer.runs["invoice-overdue"])

	ok, _ := lock.Acquire(context.Background())
	assert.True(t, ok, "lock must be released after the cycle")
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &scriptedJob{name: "invoice-cycle"}
	observer := &recordingObserver{}
	lock := NewLocalLock()
	_, _ = lock.Acquire(context.Background())
	svc := newTestService(t, lock, observer, job)

	assert.ErrorIs(t, svc.RunOnce(context.Background()), ErrCycleSkipped)
	assert.Zero(t, job.runs)
	assert.Equal(t, 1, observer.skipped)
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &scriptedJob{name: "invoice-overdue"}
	svc := newTestService(t, NewLocalLock(), nil, job)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.Run(ctx), context.Canceled)
	assert.Zero(t, job.runs)
}

func TestNewServiceValidates(t *testing.T) {
	registry, err := NewRegistry()
	require.NoError(t, err)

	_, err = NewService(ServiceParams{Registry: registry, Lock: NewLocalLock()})
	assert.ErrorContains(t, err, "logger")
	_, err = NewService(ServiceParams{Logger: testLogger(), Registry: registry})
	assert.ErrorContains(t, err, "lock")
	_, err = NewService(ServiceParams{Logger: testLogger(), Registry: registry, Lock: NewLocalLock()})
	assert.ErrorContains(t, err, "at least one")
}

type stepSchedule struct{ step time.Duration }

func (s stepSchedule) Next(t time.Time) time.Time { return t.Add(s.step) }

func TestRunFollowsSchedule(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job := &scriptedJob{name: "invoice-overdue"}
	job.onRun = func(runs int) {
		if runs == 3 {
			cancel()
		}
	}
	registry, err := NewRegistry(job)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: registry,
		Lock:     NewLocalLock(),
		Schedule: stepSchedule{step: time.Millisecond},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Run(ctx), context.Canceled)
	assert.Equal(t, 3, job.runs)
}
