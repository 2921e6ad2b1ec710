package enums

import "fmt"

// DisputeStatus is the buyer complaint lifecycle; resolved is terminal.
type DisputeStatus string

const (
	DisputeStatusOpen              DisputeStatus = "open"
	DisputeStatusSupplierResponded DisputeStatus = "supplier_responded"
	DisputeStatusResolved          DisputeStatus = "resolved"
)

var validDisputeStatuses = []DisputeStatus{
	DisputeStatusOpen,
	DisputeStatusSupplierResponded,
	DisputeStatusResolved,
}

// String implements fmt.Stringer.
func (v DisputeStatus) String() string {
	return string(v)
}

// IsValid reports whether the value is a known DisputeStatus.
func (v DisputeStatus) IsValid() bool {
	for _, candidate := range validDisputeStatuses {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseDisputeStatus converts raw input into a DisputeStatus.
func ParseDisputeStatus(value string) (DisputeStatus, error) {
	for _, candidate := range validDisputeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute status %q", value)
}
