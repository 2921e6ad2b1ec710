package enums

import "fmt"

// BillingEventType identifies the order and payment events the ledger reacts to,
// plus the events it publishes itself.
type BillingEventType string

const (
	EventOrderCompleted   BillingEventType = "order_completed"
	EventOrderAdjusted    BillingEventType = "order_adjusted"
	EventOrderPurged      BillingEventType = "order_purged"
	EventFeeInvoicePaid   BillingEventType = "fee_invoice_paid"
	EventFeeInvoiceIssued BillingEventType = "fee_invoice_issued"
)

var validBillingEventTypes = []BillingEventType{
	EventOrderCompleted,
	EventOrderAdjusted,
	EventOrderPurged,
	EventFeeInvoicePaid,
	EventFeeInvoiceIssued,
}

// IsValid reports whether the value is a known BillingEventType.
func (t BillingEventType) IsValid() bool {
	for _, candidate := range validBillingEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseBillingEventType converts raw input into a BillingEventType.
func ParseBillingEventType(value string) (BillingEventType, error) {
	for _, candidate := range validBillingEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid billing event type %q", value)
}
