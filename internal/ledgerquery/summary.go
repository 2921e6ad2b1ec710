package ledgerquery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/feeledger/internal/invoices"
	"github.com/angelmondragon/feeledger/internal/ledger"
	"github.com/angelmondragon/feeledger/pkg/db/models"
	"github.com/angelmondragon/feeledger/pkg/enums"
	pkgerrors "github.com/angelmondragon/feeledger/pkg/errors"
)

// BalanceStatus summarizes how close a supplier is to owing overdue fees.
type BalanceStatus string

const (
	BalanceCurrent BalanceStatus = "current"
	BalanceDueSoon BalanceStatus = "due_soon"
	BalanceOverdue BalanceStatus = "overdue"
)

type CurrentBalance struct {
	OutstandingFees decimal.Decimal `json:"outstandingFees"`
	PendingFees     decimal.Decimal `json:"pendingFees"`
	Status          BalanceStatus   `json:"status"`
	NextBillingDate string          `json:"nextBillingDate"`
}

// MonthSummary covers orders completed in the calendar month containing now.
// AvgFeeRate is fees over effective value, as a percentage.
type MonthSummary struct {
	CompletedOrders     int             `json:"completedOrders"`
	TotalEffectiveValue decimal.Decimal `json:"totalEffectiveValue"`
	AvgFeeRate          decimal.Decimal `json:"avgFeeRate"`
	FeesOwed            decimal.Decimal `json:"feesOwed"`
}

type Summary struct {
	CurrentBalance CurrentBalance `json:"currentBalance"`
	MonthSummary   MonthSummary   `json:"monthSummary"`
}

// Summary aggregates a supplier's balance and month to date activity in one snapshot.
func (e *Engine) Summary(ctx context.Context, supplierID uuid.UUID, now time.Time) (*Summary, error) {
	if supplierID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier id is required")
	}
	now = now.UTC()
	month := invoices.PeriodOf(now)

	var (
		entries     []models.LedgerEntry
		outstanding []models.Invoice
	)
	err := e.db.WithReadTx(ctx, func(tx *gorm.DB) error {
		var err error
		entries, err = e.ledgerRepo.WithTx(tx).Search(ctx, ledger.Filter{SupplierID: &supplierID})
		if err != nil {
			return err
		}
		outstanding, err = e.invoiceRepo.WithTx(tx).ListOutstanding(ctx, supplierID)
		return err
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load billing summary")
	}

	summary := &Summary{
		CurrentBalance: CurrentBalance{
			OutstandingFees: decimal.Zero,
			PendingFees:     decimal.Zero,
			Status:          e.balanceStatus(outstanding, now),
			NextBillingDate: month.Cutoff().Format(dateLayout),
		},
		MonthSummary: MonthSummary{
			TotalEffectiveValue: decimal.Zero,
			AvgFeeRate:          decimal.Zero,
			FeesOwed:            decimal.Zero,
		},
	}

	start, cutoff := month.Start(), month.Cutoff()
	for _, entry := range entries {
		switch entry.Status {
		case enums.LedgerEntryStatusInvoiced:
			summary.CurrentBalance.OutstandingFees = summary.CurrentBalance.OutstandingFees.Add(entry.FeeAmount)
		case enums.LedgerEntryStatusPending:
			summary.CurrentBalance.PendingFees = summary.CurrentBalance.PendingFees.Add(entry.FeeAmount)
		}
		completed := entry.CompletedAt.UTC()
		if completed.Before(start) || !completed.Before(cutoff) {
			continue
		}
		ms := &summary.MonthSummary
		ms.CompletedOrders++
		ms.TotalEffectiveValue = ms.TotalEffectiveValue.Add(entry.EffectiveValue)
		ms.FeesOwed = ms.FeesOwed.Add(entry.FeeAmount)
	}

	ms := &summary.MonthSummary
	if ms.TotalEffectiveValue.IsPositive() {
		ms.AvgFeeRate = ms.FeesOwed.Mul(decimal.NewFromInt(100)).Div(ms.TotalEffectiveValue).Round(2)
	}
	return summary, nil
}

func (e *Engine) balanceStatus(outstanding []models.Invoice, now time.Time) BalanceStatus {
	status := BalanceCurrent
	for _, invoice := range outstanding {
		due := invoice.DueDate.UTC()
		if invoice.Status == enums.InvoiceStatusOverdue || now.After(due) {
			return BalanceOverdue
		}
		if !due.After(now.Add(e.dueSoon)) {
			status = BalanceDueSoon
		}
	}
	return status
}
