package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/feeledger/pkg/enums"
)

// OrderCompletedEvent is emitted by the order service when an order is fulfilled.
type OrderCompletedEvent struct {
	OrderID        uuid.UUID       `json:"orderId"`
	SupplierID     uuid.UUID       `json:"supplierId"`
	OrderType      enums.OrderType `json:"orderType"`
	EffectiveValue decimal.Decimal `json:"effectiveValue"`
	CompletedAt    time.Time       `json:"completedAt"`
	Notes          string          `json:"notes,omitempty"`
}

// OrderAdjustedEvent carries a post-completion change to an order's value.
type OrderAdjustedEvent struct {
	OrderID        uuid.UUID       `json:"orderId"`
	EffectiveValue decimal.Decimal `json:"effectiveValue"`
}

// OrderPurgedEvent signals the order record no longer exists.
type OrderPurgedEvent struct {
	OrderID uuid.UUID `json:"orderId"`
}

// FeeInvoicePaidEvent confirms a supplier settled an invoice.
type FeeInvoicePaidEvent struct {
	InvoiceID uuid.UUID `json:"invoiceId"`
}

// FeeInvoiceIssuedEvent is published after an invoice is created or extended.
type FeeInvoiceIssuedEvent struct {
	InvoiceID   uuid.UUID       `json:"invoiceId"`
	SupplierID  uuid.UUID       `json:"supplierId"`
	PeriodStart time.Time       `json:"periodStart"`
	PeriodEnd   time.Time       `json:"periodEnd"`
	TotalFees   decimal.Decimal `json:"totalFees"`
	EntryCount  int             `json:"entryCount"`
	DueDate     time.Time       `json:"dueDate"`
}
