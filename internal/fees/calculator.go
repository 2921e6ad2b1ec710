// Package fees computes success fees and resolves the rate that applies to an order.
package fees

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/angelmondragon/feeledger/pkg/errors"
)

const moneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// Calculate returns effectiveValue × feePercentage / 100 rounded half away from zero to cents.
func Calculate(effectiveValue, feePercentage decimal.Decimal) (decimal.Decimal, error) {
	if effectiveValue.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "effective value must be non-negative")
	}
	if err := ValidatePercentage(feePercentage); err != nil {
		return decimal.Zero, err
	}
	return effectiveValue.Mul(feePercentage).Div(hundred).Round(moneyPlaces), nil
}

// ValidatePercentage rejects rates outside [0, 100].
func ValidatePercentage(feePercentage decimal.Decimal) error {
	if feePercentage.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "fee percentage must be non-negative")
	}
	if feePercentage.GreaterThan(hundred) {
		return pkgerrors.New(pkgerrors.CodeValidation, "fee percentage must not exceed 100")
	}
	return nil
}

// FromFloat converts an untrusted float into a non-negative decimal amount.
func FromFloat(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a finite number")
	}
	if v < 0 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-negative")
	}
	return decimal.NewFromFloat(v), nil
}

// ParseAmount parses a decimal string such as "1000.00" into a non-negative amount.
func ParseAmount(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "amount is required")
	}
	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "nan") || strings.Contains(lower, "inf") {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "amount must be a finite number")
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid amount %q", raw))
	}
	if value.IsNegative() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-negative")
	}
	return value, nil
}
