package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/feeledger/internal/invoices"
	"github.com/angelmondragon/feeledger/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

type fakeCycler struct {
	periods []invoices.Period
	err     error
}

func (f *fakeCycler) RunCycle(_ context.Context, period invoices.Period) (invoices.CycleReport, error) {
	f.periods = append(f.periods, period)
	return invoices.CycleReport{Period: period}, f.err
}

type fakeOverdue struct {
	asOf  time.Time
	calls int
	err   error
}

func (f *fakeOverdue) MarkOverdue(_ context.Context, now time.Time) (int64, error) {
	f.calls++
	f.asOf = now
	return 3, f.err
}

func TestInvoiceCycleJobBatchesPreviousMonth(t *testing.T) {
	cycler := &fakeCycler{}
	jobIface, err := NewInvoiceCycleJob(InvoiceCycleJobParams{Logger: testLogger(), Invoices: cycler})
	require.NoError(t, err)
	job := jobIface.(*invoiceCycleJob)
	job.now = func() time.Time { return time.Date(2025, 3, 1, 0, 5, 0, 0, time.UTC) }

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, cycler.periods, 1)
	require.Equal(t, "2025-02", cycler.periods[0].String())
}

func TestInvoiceCycleJobRollsOverYear(t *testing.T) {
	cycler := &fakeCycler{}
	jobIface, err := NewInvoiceCycleJob(InvoiceCycleJobParams{Logger: testLogger(), Invoices: cycler})
	require.NoError(t, err)
	job := jobIface.(*invoiceCycleJob)
	job.now = func() time.Time { return time.Date(2026, 1, 1, 2, 0, 0, 0, time.UTC) }

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, "2025-12", cycler.periods[0].String())
}

func TestInvoiceCycleJobPropagatesFailures(t *testing.T) {
	cycler := &fakeCycler{err: errors.New("supplier x: busy")}
	job, err := NewInvoiceCycleJob(InvoiceCycleJobParams{Logger: testLogger(), Invoices: cycler})
	require.NoError(t, err)
	require.Error(t, job.Run(context.Background()))
}

func TestOverdueJobUsesClock(t *testing.T) {
	marker := &fakeOverdue{}
	jobIface, err := NewOverdueJob(OverdueJobParams{Logger: testLogger(), Invoices: marker})
	require.NoError(t, err)
	job := jobIface.(*overdueJob)
	now := time.Date(2025, 2, 16, 0, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.Equal(t, 1, marker.calls)
	require.True(t, marker.asOf.Equal(now))

	marker.err = errors.New("db down")
	require.Error(t, job.Run(context.Background()))
}

func TestJobConstructorsRequireDependencies(t *testing.T) {
	_, err := NewInvoiceCycleJob(InvoiceCycleJobParams{Logger: testLogger()})
	require.Error(t, err)
	_, err = NewOverdueJob(OverdueJobParams{Invoices: &fakeOverdue{}})
	require.Error(t, err)
}
