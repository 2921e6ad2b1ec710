package enums

import "fmt"

// OrderType distinguishes material purchases from equipment rentals.
type OrderType string

const (
	OrderTypeMaterial OrderType = "material"
	OrderTypeRental   OrderType = "rental"
)

var validOrderTypes = []OrderType{
	OrderTypeMaterial,
	OrderTypeRental,
}

// IsValid reports whether the value is a known OrderType.
func (v OrderType) IsValid() bool {
	for _, candidate := range validOrderTypes {
		if candidate == v {
			return true
		}
	}
	return false
}

// ParseOrderType converts raw input into a OrderType.
func ParseOrderType(value string) (OrderType, error) {
	for _, candidate := range validOrderTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order type %q", value)
}
