package enums

import "fmt"

// DisputeDecision records which side a resolved dispute favored.
type DisputeDecision string

const (
	DisputeDecisionDenied DisputeDecision = "denied"
	DisputeDecisionUpheld DisputeDecision = "upheld"
)

var validDisputeDecisions = []DisputeDecision{
	DisputeDecisionDenied,
	DisputeDecisionUpheld,
}

// IsValid reports whether the value is a known DisputeDecision.
func (v DisputeDecision) IsValid() bool {
	for _, candidate := range validDisputeDecisions {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseDisputeDecision converts raw input into a DisputeDecision.
func ParseDisputeDecision(value string) (DisputeDecision, error) {
	for _, candidate := range validDisputeDecisions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute decision %q", value)
}
