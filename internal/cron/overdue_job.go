package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/feeledger/pkg/logger"
)

type overdueMarker interface {
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}

type OverdueJobParams struct {
	Logger   *logger.Logger
	Invoices overdueMarker
}

func NewOverdueJob(params OverdueJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Invoices == nil {
		return nil, fmt.Errorf("invoice service required")
	}
	return &overdueJob{
		logg:     params.Logger,
		invoices: params.Invoices,
		now:      time.Now,
	}, nil
}

type overdueJob struct {
	logg     *logger.Logger
	invoices overdueMarker
	now      func() time.Time
}

func (j *overdueJob) Name() string { return "invoice-overdue" }

func (j *overdueJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	marked, err := j.invoices.MarkOverdue(ctx, now)
	if err != nil {
		return fmt.Errorf("mark overdue invoices: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"as_of":         now,
		"invoices_late": marked,
	})
	j.logg.Info(logCtx, "overdue invoices marked")
	return nil
}
