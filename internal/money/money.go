package money

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrTooManyDecimals = errors.New("amount has too many decimal places")
)

// Scale is the number of minor units per major unit. All balances and amounts
// are stored as int64 minor units.
const Scale = 100

var hundred = decimal.NewFromInt(Scale)

// ParseMinor converts a decimal string such as "4500.50" into minor units.
func ParseMinor(input string) (int64, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return 0, ErrInvalidAmount
	}
	value, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	scaled := value.Mul(hundred)
	if !scaled.IsInteger() {
		return 0, ErrTooManyDecimals
	}
	if scaled.GreaterThan(decimal.NewFromInt(maxMinor)) || scaled.LessThan(decimal.NewFromInt(-maxMinor)) {
		return 0, ErrInvalidAmount
	}
	return scaled.IntPart(), nil
}

// ParsePositiveMinor is ParseMinor restricted to amounts above zero.
func ParsePositiveMinor(input string) (int64, error) {
	amount, err := ParseMinor(input)
	if err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	return amount, nil
}

func FormatMinor(value int64) string {
	return decimal.New(value, -2).StringFixed(2)
}

// FromMajor converts whole currency units to minor units.
func FromMajor(value decimal.Decimal) int64 {
	return value.Mul(hundred).Round(0).IntPart()
}

const maxMinor = int64(1) << 53
