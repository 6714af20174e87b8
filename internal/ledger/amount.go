package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for balances and amounts.
const Scale = 8

// MaxIntegerDigits is the integer precision of the NUMERIC(38,8) columns.
const MaxIntegerDigits = 38 - Scale

// ParseAmount converts a decimal string into a positive amount with at most
// Scale fractional digits.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := checkAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// FormatAmount renders d with exactly Scale fractional digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}

func checkAmount(d decimal.Decimal) error {
	if !d.IsPositive() {
		return ErrInvalidAmount
	}
	// Bound the exponent before any rescaling arithmetic.
	digits, exp := int64(d.NumDigits()), int64(d.Exponent())
	if digits+exp > MaxIntegerDigits {
		return ErrInvalidAmount
	}
	if -exp-digits >= Scale {
		return ErrInvalidAmount
	}
	if !d.Equal(d.Truncate(Scale)) {
		return ErrInvalidAmount
	}
	return nil
}

// ValidCurrency reports whether code looks like an ISO 4217 alphabetic code.
func ValidCurrency(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
