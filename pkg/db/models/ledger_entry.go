package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/feeledger/pkg/enums"
)

// LedgerEntry is the fee obligation created when a marketplace order completes.
// Entries are never deleted; they only move through status transitions.
type LedgerEntry struct {
	ID             uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	SupplierID     uuid.UUID                `gorm:"column:supplier_id;type:uuid;not null;index:idx_ledger_entries_supplier_completed,priority:1"`
	OrderID        *uuid.UUID               `gorm:"column:order_id;type:uuid;uniqueIndex"`
	OrderType      enums.OrderType          `gorm:"column:order_type;type:order_type;not null"`
	EffectiveValue decimal.Decimal          `gorm:"column:effective_value;type:numeric(16,4);not null"`
	FeePercentage  decimal.Decimal          `gorm:"column:fee_percentage;type:numeric(7,4);not null"`
	FeeAmount      decimal.Decimal          `gorm:"column:fee_amount;type:numeric(16,2);not null"`
	Status         enums.LedgerEntryStatus  `gorm:"column:status;type:ledger_entry_status;not null;default:'pending'"`
	PriorStatus    *enums.LedgerEntryStatus `gorm:"column:prior_status;type:ledger_entry_status"`
	CompletedAt    time.Time                `gorm:"column:completed_at;not null;index:idx_ledger_entries_supplier_completed,priority:2"`
	InvoiceID      *uuid.UUID               `gorm:"column:invoice_id;type:uuid;index"`
	Notes          *string                  `gorm:"column:notes"`
	Version        int                      `gorm:"column:version;not null;default:1"`
	CreatedAt      time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (e *LedgerEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Version == 0 {
		e.Version = 1
	}
	return nil
}
