package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/feeledger/pkg/enums"
)

// Invoice batches one supplier's ledger entries for a calendar month.
// TotalFees is reconciled from the entries carrying its id on every mutation.
type Invoice struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SupplierID  uuid.UUID           `gorm:"column:supplier_id;type:uuid;not null;uniqueIndex:idx_invoices_supplier_period,priority:1"`
	PeriodStart time.Time           `gorm:"column:period_start;not null;uniqueIndex:idx_invoices_supplier_period,priority:2"`
	PeriodEnd   time.Time           `gorm:"column:period_end;not null"`
	TotalFees   decimal.Decimal     `gorm:"column:total_fees;type:numeric(16,2);not null"`
	EntryCount  int                 `gorm:"column:entry_count;not null;default:0"`
	DueDate     time.Time           `gorm:"column:due_date;not null;index"`
	Status      enums.InvoiceStatus `gorm:"column:status;type:invoice_status;not null;default:'open'"`
	PaidAt      *time.Time          `gorm:"column:paid_at"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// Finalized reports whether the invoice no longer accepts new entries.
func (i Invoice) Finalized() bool {
	return i.Status == enums.InvoiceStatusPaid
}
