package invoice

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"invoicer/internal/logger"
)

// ReadLineItems parses line items from CSV data with the columns
// Description, Units, Qty, Rate. A header row is detected and skipped.
// Rows that fail validation (blank description, non-positive units or
// quantity, negative or unparseable numbers) are dropped with a warning,
// mirroring the form's behavior of ignoring incomplete rows rather than
// aborting the invoice.
func ReadLineItems(r io.Reader) ([]LineItem, error) {
	const op = "ReadLineItems"

	log := logger.WithComponent("items")

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var items []LineItem
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: reading CSV: %w", op, err)
		}
		line++

		if line == 1 && isHeaderRow(record) {
			continue
		}

		item, err := parseLineItem(record)
		if err != nil {
			log.Warn().
				Int("line", line).
				Strs("row", record).
				Err(err).
				Msg("Dropping invalid line item row")
			continue
		}
		items = append(items, item)
	}

	return items, nil
}

// ReadLineItemsFile reads line items from a CSV file on disk.
func ReadLineItemsFile(path string) ([]LineItem, error) {
	const op = "ReadLineItemsFile"

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	return ReadLineItems(f)
}

func isHeaderRow(record []string) bool {
	if len(record) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(record[0]))
	return first == "description" || first == "desc"
}

func parseLineItem(record []string) (LineItem, error) {
	if len(record) < 4 {
		return LineItem{}, fmt.Errorf("expected 4 columns (Description, Units, Qty, Rate), got %d", len(record))
	}

	units, err := decimal.NewFromString(strings.TrimSpace(record[1]))
	if err != nil {
		return LineItem{}, fmt.Errorf("invalid units %q: %w", record[1], err)
	}
	qty, err := decimal.NewFromString(strings.TrimSpace(record[2]))
	if err != nil {
		return LineItem{}, fmt.Errorf("invalid quantity %q: %w", record[2], err)
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(record[3]))
	if err != nil {
		return LineItem{}, fmt.Errorf("invalid rate %q: %w", record[3], err)
	}

	item := LineItem{
		Description: strings.TrimSpace(record[0]),
		Units:       units,
		Quantity:    qty,
		Rate:        rate,
	}
	if !item.Valid() {
		return LineItem{}, fmt.Errorf("row fails validation")
	}
	return item, nil
}
