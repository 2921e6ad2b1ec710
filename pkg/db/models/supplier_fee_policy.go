package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SupplierFeePolicy overrides the default success-fee rate from EffectiveFrom onward.
type SupplierFeePolicy struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SupplierID    uuid.UUID       `gorm:"column:supplier_id;type:uuid;not null;index:idx_fee_policies_supplier_effective,priority:1"`
	FeePercentage decimal.Decimal `gorm:"column:fee_percentage;type:numeric(7,4);not null"`
	EffectiveFrom time.Time       `gorm:"column:effective_from;not null;index:idx_fee_policies_supplier_effective,priority:2"`
	CreatedBy     *uuid.UUID      `gorm:"column:created_by;type:uuid"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (p *SupplierFeePolicy) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
