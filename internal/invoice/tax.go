package invoice

import (
	"github.com/shopspring/decimal"

	"invoicer/internal/money"
)

var oneHundred = decimal.NewFromInt(100)

// Forward computes tax and total from a pre-tax subtotal:
// tax = round2(subtotal * rate/100), total = subtotal + tax.
func Forward(subtotal money.Money, ratePct decimal.Decimal) (tax, total money.Money, err error) {
	if ratePct.IsNegative() {
		return 0, 0, ErrInvalidRate
	}
	tax = money.Percentage(subtotal, ratePct)
	return tax, subtotal.Add(tax), nil
}

// Reverse decomposes a tax-inclusive total into subtotal and tax:
// subtotal = round2(total / (1 + rate/100)), tax = total - subtotal.
// The tax amount is the exact cent difference, not re-rounded, so it
// absorbs the rounding residue and the pair always reconciles to the total.
func Reverse(totalInclTax money.Money, ratePct decimal.Decimal) (subtotal, tax money.Money, err error) {
	if ratePct.IsNegative() {
		return 0, 0, ErrInvalidRate
	}
	divisor := decimal.NewFromInt(1).Add(ratePct.Div(oneHundred))
	subtotal = money.FromDecimal(totalInclTax.Decimal().Div(divisor))
	return subtotal, totalInclTax.Sub(subtotal), nil
}

// ComputeTotals builds forward-mode totals from the valid line items.
// Unrounded line products are summed at full precision and rounded once for
// the subtotal; tax then rounds from that rounded subtotal. Invalid rows
// are skipped.
func ComputeTotals(items []LineItem, ratePct decimal.Decimal) (Totals, error) {
	sum := decimal.Zero
	for _, li := range items {
		if !li.Valid() {
			continue
		}
		sum = sum.Add(li.rawTotal())
	}
	subtotal := money.FromDecimal(sum)
	tax, total, err := Forward(subtotal, ratePct)
	if err != nil {
		return Totals{}, err
	}
	return Totals{Subtotal: subtotal, TaxRate: ratePct, Tax: tax, Total: total}, nil
}

// ComputeReverseTotals builds totals from a known tax-inclusive target
// total. Line items still appear on the document but the subtotal is
// derived from the target, not from the rows.
func ComputeReverseTotals(totalInclTax money.Money, ratePct decimal.Decimal) (Totals, error) {
	subtotal, tax, err := Reverse(totalInclTax, ratePct)
	if err != nil {
		return Totals{}, err
	}
	return Totals{Subtotal: subtotal, TaxRate: ratePct, Tax: tax, Total: totalInclTax}, nil
}
