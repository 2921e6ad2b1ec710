package enums

import "fmt"

// IssueCategory classifies what a buyer is disputing.
type IssueCategory string

const (
	IssueCategorySpecMismatch  IssueCategory = "spec_mismatch"
	IssueCategoryQuantityShort IssueCategory = "quantity_short"
	IssueCategoryQualityIssue  IssueCategory = "quality_issue"
	IssueCategoryLateDelivery  IssueCategory = "late_delivery"
	IssueCategoryOther         IssueCategory = "other"
)

var validIssueCategories = []IssueCategory{
	IssueCategorySpecMismatch,
	IssueCategoryQuantityShort,
	IssueCategoryQualityIssue,
	IssueCategoryLateDelivery,
	IssueCategoryOther,
}

// IsValid reports whether the value is a known IssueCategory.
func (v IssueCategory) IsValid() bool {
	for _, candidate := range validIssueCategories {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseIssueCategory converts raw input into a IssueCategory.
func ParseIssueCategory(value string) (IssueCategory, error) {
	for _, candidate := range validIssueCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid issue category %q", value)
}
