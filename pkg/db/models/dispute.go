package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/feeledger/pkg/enums"
)

// Dispute tracks a buyer complaint against a completed order.
type Dispute struct {
	ID               uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID              `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	SupplierID       uuid.UUID              `gorm:"column:supplier_id;type:uuid;not null;index"`
	LedgerEntryID    *uuid.UUID             `gorm:"column:ledger_entry_id;type:uuid"`
	BuyerID          uuid.UUID              `gorm:"column:buyer_id;type:uuid;not null"`
	BuyerType        enums.BuyerType        `gorm:"column:buyer_type;type:buyer_type;not null"`
	IssueCategory    enums.IssueCategory    `gorm:"column:issue_category;type:issue_category;not null"`
	Status           enums.DisputeStatus    `gorm:"column:status;type:dispute_status;not null;default:'open'"`
	Description      string                 `gorm:"column:description;not null"`
	SupplierResponse *string                `gorm:"column:supplier_response"`
	Decision         *enums.DisputeDecision `gorm:"column:decision;type:dispute_decision"`
	Outcome          *string                `gorm:"column:outcome"`
	ResolvedBy       *uuid.UUID             `gorm:"column:resolved_by;type:uuid"`
	ResolvedAt       *time.Time             `gorm:"column:resolved_at"`
	AdminNotes       []DisputeNote          `gorm:"foreignKey:DisputeID"`
	CreatedAt        time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *Dispute) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// DisputeNote is one append-only internal admin note.
type DisputeNote struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	DisputeID uuid.UUID `gorm:"column:dispute_id;type:uuid;not null;index"`
	AuthorID  uuid.UUID `gorm:"column:author_id;type:uuid;not null"`
	Note      string    `gorm:"column:note;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (n *DisputeNote) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
