package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/feeledger/internal/invoices"
	"github.com/angelmondragon/feeledger/pkg/logger"
)

type invoiceCycler interface {
	RunCycle(ctx context.Context, period invoices.Period) (invoices.CycleReport, error)
}

type InvoiceCycleJobParams struct {
	Logger   *logger.Logger
	Invoices invoiceCycler
}

// NewInvoiceCycleJob batches the previous calendar month on every tick. Reruns
// are idempotent, so a missed 1st is caught up on the next tick. Late
// completions land on their own month's invoice while it is unpaid.
func NewInvoiceCycleJob(params InvoiceCycleJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Invoices == nil {
		return nil, fmt.Errorf("invoice service required")
	}
	return &invoiceCycleJob{
		logg:     params.Logger,
		invoices: params.Invoices,
		now:      time.Now,
	}, nil
}

type invoiceCycleJob struct {
	logg     *logger.Logger
	invoices invoiceCycler
	now      func() time.Time
}

func (j *invoiceCycleJob) Name() string { return "invoice-cycle" }

func (j *invoiceCycleJob) Run(ctx context.Context) error {
	period := invoices.PreviousPeriod(j.now())
	report, err := j.invoices.RunCycle(ctx, period)

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"period":    period.String(),
		"suppliers": report.Suppliers,
		"invoiced":  len(report.Invoiced),
		"skipped":   len(report.Skipped),
		"failed":    len(report.Failed),
	})
	if err != nil {
		j.logg.Warn(logCtx, "invoice cycle finished with supplier failures")
		return fmt.Errorf("invoice cycle %s: %w", period, err)
	}
	j.logg.Info(logCtx, "invoice cycle complete")
	return nil
}
