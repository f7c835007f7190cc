package invoice

import (
	"errors"
	"fmt"
)

// Validation and allocation errors. These are user-fixable and are surfaced
// before any external call is made.
var (
	// ErrNoLineItems is returned when no valid line item survives validation.
	ErrNoLineItems = errors.New("invoice has no valid line items")

	// ErrInvalidRate is returned for a negative tax rate.
	ErrInvalidRate = errors.New("tax rate must be a non-negative percentage")

	// ErrEmptyInvoiceNumber is returned when a manually entered invoice
	// number is blank.
	ErrEmptyInvoiceNumber = errors.New("invoice number must not be empty")

	// ErrNumberConflict is returned when the chosen invoice number already
	// exists verbatim in the ledger. The caller may retry with a fresh
	// allocation.
	ErrNumberConflict = errors.New("invoice number already present in ledger")

	// ErrTransientIO marks a retryable failure on an idempotent external
	// read (ledger listing). Wrap it with the underlying cause.
	ErrTransientIO = errors.New("transient I/O failure")
)

// StageError wraps a failure with the workflow stage it occurred in, so the
// caller knows whether external side effects may be partially applied.
type StageError struct {
	// Stage is the workflow stage that failed.
	Stage Stage

	// Err is the underlying error.
	Err error

	// PendingRef holds the reference of a stored document that could not be
	// cleaned up after a later stage failed. Non-empty means the document
	// exists in storage with no matching ledger row and needs manual
	// reconciliation.
	PendingRef string
}

// Error implements the error interface.
func (e *StageError) Error() string {
	if e.PendingRef != "" {
		return fmt.Sprintf("invoice: stage %s failed (document pending reconciliation: %s): %v", e.Stage, e.PendingRef, e.Err)
	}
	return fmt.Sprintf("invoice: stage %s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// Is implements error matching for errors.Is.
func (e *StageError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newStageError(stage Stage, err error) *StageError {
	return &StageError{Stage: stage, Err: err}
}
