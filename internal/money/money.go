// Package money provides fixed-point currency amounts for invoicing.
//
// Amounts are stored as an integer number of minor units (cents) to avoid
// binary float drift between the rendered document and the ledger row.
// Rounding is half-up to two decimal places and is applied exactly once at
// the point an amount is finalized; intermediate products are carried at
// full decimal precision.
package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an amount in minor currency units (cents).
type Money int64

// Zero is the zero amount.
const Zero Money = 0

// FromDecimal finalizes a decimal amount into Money, rounding half-up to
// two decimal places. This is the single rounding point for all totals.
func FromDecimal(d decimal.Decimal) Money {
	// decimal.Round rounds half away from zero, which is half-up for the
	// non-negative amounts this tool deals in.
	return Money(d.Round(2).Shift(2).IntPart())
}

// FromCents builds Money from an already-final cent count.
func FromCents(cents int64) Money {
	return Money(cents)
}

// Parse reads a decimal string such as "125.00" into Money.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return FromDecimal(d), nil
}

// Decimal returns the exact decimal value of the amount.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -2)
}

// Cents returns the amount in minor units.
func (m Money) Cents() int64 {
	return int64(m)
}

// Add returns m + n. Cent arithmetic is exact, no rounding involved.
func (m Money) Add(n Money) Money {
	return m + n
}

// Sub returns m - n.
func (m Money) Sub(n Money) Money {
	return m - n
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m < 0
}

// String formats the amount with exactly two decimal places, e.g. "125.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

// Format appends the currency code, e.g. "125.00 AWG".
func (m Money) Format(currency string) string {
	return m.String() + " " + currency
}

// Percentage returns pct percent of the base, finalized with a single
// half-up rounding: round2(base * pct / 100).
func Percentage(base Money, pct decimal.Decimal) Money {
	return FromDecimal(base.Decimal().Mul(pct).Div(decimal.NewFromInt(100)))
}
