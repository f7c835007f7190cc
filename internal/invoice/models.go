// Package invoice holds the invoice generation core: value types, tax
// arithmetic, invoice number allocation and the end-to-end workflow that
// renders, stores and logs a finalized invoice through injected
// collaborators.
package invoice

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"invoicer/internal/money"
)

// Status is the payment status recorded on an invoice.
type Status string

const (
	StatusUnpaid Status = "Unpaid"
	StatusPaid   Status = "Paid"
	StatusLate   Status = "Late"
)

// ParseStatus reads a status string, case-insensitively.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unpaid":
		return StatusUnpaid, true
	case "paid":
		return StatusPaid, true
	case "late":
		return StatusLate, true
	}
	return "", false
}

// DeriveStatus recomputes the effective status at the given time. An unpaid
// invoice past its due date is Late; anything else keeps the input status.
// Late is a function of wall-clock time, so callers re-derive it whenever a
// record is generated or viewed, never bake it in.
func DeriveStatus(input Status, dueDate, now time.Time) Status {
	if input == StatusUnpaid && dateOnly(now).After(dateOnly(dueDate)) {
		return StatusLate
	}
	return input
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Client identifies the billed party.
type Client struct {
	Name    string
	Company string
	Address string
	Phone   string
}

// Key returns the storage namespace for the client: the name title-cased
// with spaces stripped, matching the document naming convention.
func (c Client) Key() string {
	return titleNoSpaces(c.Name)
}

func titleNoSpaces(s string) string {
	var b strings.Builder
	upperNext := true
	for _, r := range s {
		if unicode.IsSpace(r) {
			upperNext = true
			continue
		}
		if upperNext {
			b.WriteRune(unicode.ToUpper(r))
			upperNext = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// LineItem is one billable row on the invoice.
type LineItem struct {
	Description string
	Units       decimal.Decimal
	Quantity    decimal.Decimal
	Rate        decimal.Decimal
}

// Valid reports whether the row contributes to totals. Rows with an empty
// description, non-positive units or quantity, or a negative rate are
// dropped, mirroring the form's drop-invalid-rows behavior.
func (li LineItem) Valid() bool {
	if strings.TrimSpace(li.Description) == "" {
		return false
	}
	if !li.Units.IsPositive() || !li.Quantity.IsPositive() {
		return false
	}
	return !li.Rate.IsNegative()
}

// Total returns the rounded line total: round2(units * quantity * rate).
// Used for per-line display; the subtotal is rounded once from the sum of
// unrounded products instead (see ComputeTotals).
func (li LineItem) Total() money.Money {
	return money.FromDecimal(li.rawTotal())
}

func (li LineItem) rawTotal() decimal.Decimal {
	return li.Units.Mul(li.Quantity).Mul(li.Rate)
}

// Totals aggregates the invoice amounts.
type Totals struct {
	Subtotal money.Money
	TaxRate  decimal.Decimal
	Tax      money.Money
	Total    money.Money
}

// Record is one finalized invoice. It is built in memory by the workflow
// and becomes immutable once the document is rendered; corrections require
// a new record, the ledger is append-only.
type Record struct {
	ID          string
	Number      string
	IssueDate   time.Time
	DueDate     time.Time
	Client      Client
	Items       []LineItem
	Totals      Totals
	Status      Status
	Currency    string
	DocumentRef string
	CreatedAt   time.Time
}

// FileName is the document naming convention:
// Invoice_{number}_{ClientNameTitleCasedNoSpaces}.pdf
func (r *Record) FileName() string {
	return "Invoice_" + r.Number + "_" + r.Client.Key() + ".pdf"
}
