package enums

import "fmt"

type BuyerType string

const (
	BuyerTypeHomeowner  BuyerType = "homeowner"
	BuyerTypeContractor BuyerType = "contractor"
)

var validBuyerTypes = []BuyerType{
	BuyerTypeHomeowner,
	BuyerTypeContractor,
}

// IsValid reports whether the value is a known BuyerType.
func (v BuyerType) IsValid() bool {
	for _, candidate := range validBuyerTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseBuyerType converts raw input into a BuyerType.
func ParseBuyerType(value string) (BuyerType, error) {
	for _, candidate := range validBuyerTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid buyer type %q", value)
}
