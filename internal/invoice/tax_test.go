package invoice

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicer/internal/money"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func item(t *testing.T, desc, units, qty, rate string) LineItem {
	t.Helper()
	return LineItem{
		Description: desc,
		Units:       dec(t, units),
		Quantity:    dec(t, qty),
		Rate:        dec(t, rate),
	}
}

func TestForward(t *testing.T) {
	tax, total, err := Forward(money.FromCents(12500), dec(t, "12"))
	require.NoError(t, err)
	assert.Equal(t, "15.00", tax.String())
	assert.Equal(t, "140.00", total.String())
}

func TestForwardRejectsNegativeRate(t *testing.T) {
	_, _, err := Forward(money.FromCents(10000), dec(t, "-1"))
	assert.ErrorIs(t, err, ErrInvalidRate)

	_, _, err = Forward(money.FromCents(10000), dec(t, "-100"))
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestForwardTotalAlwaysReconciles(t *testing.T) {
	subtotals := []string{"0", "0.01", "33.33", "125.00", "999.99", "10000"}
	rates := []string{"0", "1.5", "7", "12", "21", "100"}

	for _, s := range subtotals {
		for _, r := range rates {
			subtotal, err := money.Parse(s)
			require.NoError(t, err)
			tax, total, err := Forward(subtotal, dec(t, r))
			require.NoError(t, err)
			assert.Equal(t, total, subtotal.Add(tax), "subtotal=%s rate=%s", s, r)
			assert.Equal(t, money.Percentage(subtotal, dec(t, r)), tax, "subtotal=%s rate=%s", s, r)
		}
	}
}

func TestReverse(t *testing.T) {
	subtotal, tax, err := Reverse(money.FromCents(14000), dec(t, "12"))
	require.NoError(t, err)
	assert.Equal(t, "125.00", subtotal.String())
	assert.Equal(t, "15.00", tax.String())
}

func TestReverseZeroRate(t *testing.T) {
	subtotal, tax, err := Reverse(money.FromCents(14000), dec(t, "0"))
	require.NoError(t, err)
	assert.Equal(t, "140.00", subtotal.String())
	assert.Equal(t, "0.00", tax.String())
}

func TestReverseRejectsNegativeRate(t *testing.T) {
	_, _, err := Reverse(money.FromCents(14000), dec(t, "-12"))
	assert.ErrorIs(t, err, ErrInvalidRate)
}

// The reverse decomposition must reconcile to the input total exactly: the
// tax amount absorbs the rounding residue, no cent may go missing.
func TestReverseIsExact(t *testing.T) {
	totals := []string{"0.01", "0.99", "1.00", "33.33", "140.00", "999.99", "12345.67"}
	rates := []string{"0", "1.5", "7", "12", "12.5", "21", "100"}

	for _, tot := range totals {
		for _, r := range rates {
			total, err := money.Parse(tot)
			require.NoError(t, err)
			subtotal, tax, err := Reverse(total, dec(t, r))
			require.NoError(t, err)
			assert.Equal(t, total, subtotal.Add(tax), "total=%s rate=%s", tot, r)
		}
	}
}

// forward then reverse recovers the original subtotal within one cent.
func TestForwardReverseRoundTrip(t *testing.T) {
	subtotals := []string{"0.01", "33.33", "125.00", "999.99", "4567.89"}
	rates := []string{"1.5", "7", "12", "21"}

	for _, s := range subtotals {
		for _, r := range rates {
			subtotal, err := money.Parse(s)
			require.NoError(t, err)
			_, total, err := Forward(subtotal, dec(t, r))
			require.NoError(t, err)
			recovered, _, err := Reverse(total, dec(t, r))
			require.NoError(t, err)

			diff := recovered.Sub(subtotal).Cents()
			if diff < 0 {
				diff = -diff
			}
			assert.LessOrEqual(t, diff, int64(1), "subtotal=%s rate=%s recovered=%s", s, r, recovered)
		}
	}
}

func TestComputeTotals(t *testing.T) {
	items := []LineItem{
		item(t, "Consulting", "1", "2", "50.00"),
		item(t, "Support", "1", "1", "25.00"),
	}

	totals, err := ComputeTotals(items, dec(t, "12"))
	require.NoError(t, err)
	assert.Equal(t, "125.00", totals.Subtotal.String())
	assert.Equal(t, "15.00", totals.Tax.String())
	assert.Equal(t, "140.00", totals.Total.String())
}

func TestComputeTotalsSkipsInvalidRows(t *testing.T) {
	items := []LineItem{
		item(t, "Consulting", "1", "2", "50.00"),
		item(t, "", "1", "1", "999.00"), // blank description, dropped
	}

	totals, err := ComputeTotals(items, dec(t, "0"))
	require.NoError(t, err)
	assert.Equal(t, "100.00", totals.Subtotal.String())
}

// The subtotal rounds once from the sum of unrounded products, so three
// rows of 0.333 yield 1.00, not the 0.99 a sum of per-row roundings gives.
func TestComputeTotalsRoundsOnce(t *testing.T) {
	items := []LineItem{
		item(t, "a", "1", "1", "0.333"),
		item(t, "b", "1", "1", "0.333"),
		item(t, "c", "1", "1", "0.333"),
	}

	totals, err := ComputeTotals(items, dec(t, "0"))
	require.NoError(t, err)
	assert.Equal(t, "1.00", totals.Subtotal.String())
}

func TestComputeReverseTotals(t *testing.T) {
	totals, err := ComputeReverseTotals(money.FromCents(14000), dec(t, "12"))
	require.NoError(t, err)
	assert.Equal(t, "125.00", totals.Subtotal.String())
	assert.Equal(t, "15.00", totals.Tax.String())
	assert.Equal(t, "140.00", totals.Total.String())
}
