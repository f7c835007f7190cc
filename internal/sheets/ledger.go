package sheets

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"invoicer/internal/invoice"
	"invoicer/internal/logger"
)

// Ledger is the append-only invoice ledger backed by one worksheet. It
// implements invoice.Ledger. Column order is fixed:
// Date, Invoice #, Client Name, Amount, Tax Rate, Drive File Link, Status,
// with an optional trailing Due Date column.
type Ledger struct {
	svc       *Service
	sheetName string
	log       zerolog.Logger
}

// NewLedger binds a ledger to a worksheet of the spreadsheet.
func NewLedger(svc *Service, sheetName string) *Ledger {
	return &Ledger{
		svc:       svc,
		sheetName: sheetName,
		log:       logger.WithComponent("ledger"),
	}
}

// EnsureSchema creates the worksheet with the given header row if needed.
func (l *Ledger) EnsureSchema(ctx context.Context, columns []string) error {
	return l.svc.EnsureSheet(ctx, l.sheetName, columns)
}

// ListNumbers returns the invoice-number column of every data row, in
// sheet order. Blank cells are skipped.
func (l *Ledger) ListNumbers(ctx context.Context) ([]string, error) {
	const op = "ListNumbers"

	values, err := l.svc.ReadRange(ctx, l.sheetName+"!B2:B")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var numbers []string
	for _, row := range values {
		if len(row) == 0 {
			continue
		}
		if s, ok := row[0].(string); ok && s != "" {
			numbers = append(numbers, s)
		}
	}
	return numbers, nil
}

// AppendRow appends one invoice row after the existing data.
func (l *Ledger) AppendRow(ctx context.Context, row invoice.Row) error {
	const op = "AppendRow"

	values := []interface{}{
		row.Date,
		row.Number,
		row.ClientName,
		row.Amount,
		row.TaxRate,
		row.DocumentLink,
		row.Status,
	}
	if row.DueDate != "" {
		values = append(values, row.DueDate)
	}

	if err := l.svc.Append(ctx, l.sheetName+"!A2", [][]interface{}{values}); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	l.log.Info().
		Str("invoice_number", row.Number).
		Str("client", row.ClientName).
		Str("amount", row.Amount).
		Msg("Ledger row appended")

	return nil
}

// ListRows reads every data row back out of the ledger, tolerating short
// rows from hand-edited sheets.
func (l *Ledger) ListRows(ctx context.Context) ([]invoice.Row, error) {
	const op = "ListRows"

	values, err := l.svc.ReadRange(ctx, l.sheetName+"!A2:H")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rows := make([]invoice.Row, 0, len(values))
	for _, raw := range values {
		rows = append(rows, invoice.Row{
			Date:         cell(raw, 0),
			Number:       cell(raw, 1),
			ClientName:   cell(raw, 2),
			Amount:       cell(raw, 3),
			TaxRate:      cell(raw, 4),
			DocumentLink: cell(raw, 5),
			Status:       cell(raw, 6),
			DueDate:      cell(raw, 7),
		})
	}
	return rows, nil
}

func cell(row []interface{}, i int) string {
	if i >= len(row) {
		return ""
	}
	if s, ok := row[i].(string); ok {
		return s
	}
	return fmt.Sprintf("%v", row[i])
}
