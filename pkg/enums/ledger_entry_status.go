package enums

import "fmt"

// LedgerEntryStatus maps to the ledger_entry_status enum in Postgres.
type LedgerEntryStatus string

const (
	LedgerEntryStatusPending  LedgerEntryStatus = "pending"
	LedgerEntryStatusInvoiced LedgerEntryStatus = "invoiced"
	LedgerEntryStatusPaid     LedgerEntryStatus = "paid"
	LedgerEntryStatusDisputed LedgerEntryStatus = "disputed"
)

var validLedgerEntryStatuses = []LedgerEntryStatus{
	LedgerEntryStatusPending,
	LedgerEntryStatusInvoiced,
	LedgerEntryStatusPaid,
	LedgerEntryStatusDisputed,
}

// String implements fmt.Stringer.
func (v LedgerEntryStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known LedgerEntryStatus.
func (v LedgerEntryStatus) IsValid() bool {
	for _, candidate := range validLedgerEntryStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseLedgerEntryStatus converts raw input into a LedgerEntryStatus.
func ParseLedgerEntryStatus(value string) (LedgerEntryStatus, error) {
	for _, candidate := range validLedgerEntryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger entry status %q", value)
}
