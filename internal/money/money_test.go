package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestFromDecimalRoundsHalfUp(t *testing.T) {
	tests := []struct {
		in    string
		cents int64
	}{
		{"125.00", 12500},
		{"2.344", 234},
		{"2.345", 235},
		{"2.346", 235},
		{"0.005", 1},
		{"0", 0},
		{"99.999", 10000},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.cents, FromDecimal(dec(t, tt.in)).Cents(), "round2(%s)", tt.in)
	}
}

func TestParse(t *testing.T) {
	m, err := Parse(" 140.00 ")
	require.NoError(t, err)
	assert.Equal(t, int64(14000), m.Cents())

	_, err = Parse("not-a-number")
	assert.Error(t, err)
}

func TestArithmetic(t *testing.T) {
	a := FromCents(12500)
	b := FromCents(1500)

	assert.Equal(t, int64(14000), a.Add(b).Cents())
	assert.Equal(t, int64(11000), a.Sub(b).Cents())
	assert.False(t, a.IsNegative())
	assert.True(t, b.Sub(a).IsNegative())
}

func TestFormatting(t *testing.T) {
	m := FromCents(12500)
	assert.Equal(t, "125.00", m.String())
	assert.Equal(t, "125.00 AWG", m.Format("AWG"))

	// Sub-unit amounts keep both decimal places.
	assert.Equal(t, "0.05", FromCents(5).String())
}

func TestPercentage(t *testing.T) {
	// 12% of 125.00 is exactly 15.00.
	assert.Equal(t, int64(1500), Percentage(FromCents(12500), dec(t, "12")).Cents())

	// 15% of 0.10 is 0.015, rounded half-up to 0.02.
	assert.Equal(t, int64(2), Percentage(FromCents(10), dec(t, "15")).Cents())

	// Zero rate.
	assert.Equal(t, int64(0), Percentage(FromCents(12500), dec(t, "0")).Cents())
}
