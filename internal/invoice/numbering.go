package invoice

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"invoicer/internal/logger"
)

// DefaultNumberBase is the first invoice number issued against an empty
// ledger.
const DefaultNumberBase = 1001

// NumberAllocator derives the next invoice number from the ledger's
// existing invoice-number column. The ledger is the single source of truth:
// callers fetch the current numbers, allocate against them, and re-check
// right before the ledger append to catch a racing writer.
type NumberAllocator struct {
	base int
	log  zerolog.Logger
}

// NewNumberAllocator creates an allocator with the given base number.
// A non-positive base falls back to DefaultNumberBase.
func NewNumberAllocator(base int) *NumberAllocator {
	if base <= 0 {
		base = DefaultNumberBase
	}
	return &NumberAllocator{
		base: base,
		log:  logger.WithComponent("numbering"),
	}
}

// Next computes the next invoice number from the existing ledger numbers.
// Entries that parse as non-negative integers participate in the max;
// manually entered free-form numbers are ignored for the max but still
// count for verbatim collision, so the candidate is bumped until it is not
// present in the ledger at all.
func (a *NumberAllocator) Next(existing []string) string {
	max := -1
	for _, raw := range existing {
		n, ok := parseNumeric(raw)
		if !ok {
			continue
		}
		if n > max {
			max = n
		}
	}

	candidate := a.base
	if max >= 0 {
		candidate = max + 1
	} else {
		a.log.Info().
			Int("base", a.base).
			Int("ledger_entries", len(existing)).
			Msg("No numeric invoice numbers in ledger, starting from base")
	}

	taken := make(map[string]struct{}, len(existing))
	for _, raw := range existing {
		taken[strings.TrimSpace(raw)] = struct{}{}
	}
	for {
		formatted := strconv.Itoa(candidate)
		if _, exists := taken[formatted]; !exists {
			return formatted
		}
		candidate++
	}
}

// ValidateManual checks a manually entered invoice number against the
// ledger. Blank numbers are rejected; a number already present verbatim is
// a conflict.
func (a *NumberAllocator) ValidateManual(number string, existing []string) error {
	number = strings.TrimSpace(number)
	if number == "" {
		return ErrEmptyInvoiceNumber
	}
	for _, raw := range existing {
		if strings.TrimSpace(raw) == number {
			return ErrNumberConflict
		}
	}
	return nil
}

// parseNumeric accepts only all-digit strings, the same filter the
// ledger's numeric column has always used. Signs and non-digits make an
// entry free-form.
func parseNumeric(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
