package invoice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"invoicer/internal/logger"
	"invoicer/internal/money"
)

// Stage identifies a step of the generation workflow. Failures carry the
// stage so the caller knows how far the side effects got.
type Stage string

const (
	StageValidate Stage = "validate"
	StageTotals   Stage = "totals"
	StageNumber   Stage = "number"
	StageRender   Stage = "render"
	StageStore    Stage = "store"
	StageLedger   Stage = "ledger"
)

// Renderer produces the invoice document. It must be pure with respect to
// the record: the financial figures on the document match the record
// exactly, formatted to two decimals with the currency suffix.
type Renderer interface {
	Render(rec Record) ([]byte, error)
}

// DocumentStore persists a rendered document and returns an opaque
// reference. Delete removes a stored document again; the workflow uses it
// to compensate when a later stage fails.
type DocumentStore interface {
	Store(ctx context.Context, data []byte, name, clientKey string) (string, error)
	Delete(ctx context.Context, ref string) error
}

// Row is one ledger entry, already formatted for the fixed column order
// Date, Invoice #, Client Name, Amount, Tax Rate, Document Link, Status.
// DueDate is only written when the schema carries the optional column.
type Row struct {
	Date         string
	Number       string
	ClientName   string
	Amount       string
	TaxRate      string
	DocumentLink string
	Status       string
	DueDate      string
}

// Ledger is the append-only record of issued invoices. It doubles as the
// source of truth for invoice number allocation.
type Ledger interface {
	EnsureSchema(ctx context.Context, columns []string) error
	ListNumbers(ctx context.Context) ([]string, error)
	AppendRow(ctx context.Context, row Row) error
}

// LedgerColumns returns the ledger header row for the configured currency,
// optionally extended with the due date column.
func LedgerColumns(currency string, includeDueDate bool) []string {
	cols := []string{
		"Date",
		"Invoice #",
		"Client Name",
		"Amount (" + currency + ")",
		"Tax Rate",
		"Drive File Link",
		"Status",
	}
	if includeDueDate {
		cols = append(cols, "Due Date")
	}
	return cols
}

// Request carries the collected form input for one invoice.
type Request struct {
	Client    Client
	Items     []LineItem
	TaxRate   decimal.Decimal
	IssueDate time.Time
	DueDate   time.Time
	Status    Status

	// ManualNumber, when non-empty, is used instead of allocating one. It
	// is still validated for ledger uniqueness.
	ManualNumber string

	// ReverseTotal, when set, switches to reverse tax mode: the subtotal
	// and tax are backed out of this tax-inclusive total and the line items
	// serve as document detail only.
	ReverseTotal *money.Money
}

// Result is returned on success.
type Result struct {
	Record      Record
	DocumentRef string
}

// WorkflowConfig tunes a Workflow. Zero values get sensible defaults.
type WorkflowConfig struct {
	Currency       string // default "AWG"
	NumberBase     int    // default DefaultNumberBase
	IncludeDueDate bool

	// ListAttempts bounds the retries of the idempotent ledger listing.
	// Non-idempotent writes (document upload, ledger append) are never
	// retried by the workflow.
	ListAttempts int           // default 3
	RetryBackoff time.Duration // default 500ms, doubling

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Workflow runs one invoice end to end:
// validate -> totals -> number -> render -> store -> ledger append.
// All collaborators are injected; the workflow holds no global state.
type Workflow struct {
	renderer  Renderer
	store     DocumentStore
	ledger    Ledger
	allocator *NumberAllocator

	currency       string
	includeDueDate bool
	listAttempts   int
	retryBackoff   time.Duration
	now            func() time.Time
	log            zerolog.Logger
}

// NewWorkflow wires a workflow from its collaborators.
func NewWorkflow(renderer Renderer, store DocumentStore, ledger Ledger, cfg WorkflowConfig) *Workflow {
	if cfg.Currency == "" {
		cfg.Currency = "AWG"
	}
	if cfg.ListAttempts <= 0 {
		cfg.ListAttempts = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Workflow{
		renderer:       renderer,
		store:          store,
		ledger:         ledger,
		allocator:      NewNumberAllocator(cfg.NumberBase),
		currency:       cfg.Currency,
		includeDueDate: cfg.IncludeDueDate,
		listAttempts:   cfg.ListAttempts,
		retryBackoff:   cfg.RetryBackoff,
		now:            cfg.Now,
		log:            logger.WithComponent("workflow"),
	}
}

// Generate runs the workflow for one request. Validation failures are
// returned before any external call is made. A *StageError with a non-empty
// PendingRef means a document was stored but could not be cleaned up after
// the ledger append failed.
func (w *Workflow) Generate(ctx context.Context, req Request) (*Result, error) {
	// Stage: validate. No external calls before this passes.
	items := validItems(req.Items)
	if len(items) == 0 {
		return nil, newStageError(StageValidate, ErrNoLineItems)
	}

	// Stage: totals.
	totals, err := w.computeTotals(items, req)
	if err != nil {
		return nil, newStageError(StageTotals, err)
	}

	// Stage: number. The ledger schema is ensured first so a fresh
	// spreadsheet starts numbering from the base.
	if err := w.ledger.EnsureSchema(ctx, LedgerColumns(w.currency, w.includeDueDate)); err != nil {
		return nil, newStageError(StageNumber, err)
	}
	number, err := w.resolveNumber(ctx, req.ManualNumber)
	if err != nil {
		return nil, newStageError(StageNumber, err)
	}

	now := w.now()
	rec := Record{
		ID:        uuid.NewString(),
		Number:    number,
		IssueDate: req.IssueDate,
		DueDate:   req.DueDate,
		Client:    req.Client,
		Items:     items,
		Totals:    totals,
		Status:    DeriveStatus(req.Status, req.DueDate, now),
		Currency:  w.currency,
		CreatedAt: now,
	}

	w.log.Info().
		Str("invoice_number", rec.Number).
		Str("client", rec.Client.Name).
		Str("total", rec.Totals.Total.String()).
		Str("status", string(rec.Status)).
		Msg("Invoice record finalized, rendering document")

	// Stage: render.
	data, err := w.renderer.Render(rec)
	if err != nil {
		return nil, newStageError(StageRender, err)
	}

	// Stage: store.
	ref, err := w.store.Store(ctx, data, rec.FileName(), rec.Client.Key())
	if err != nil {
		return nil, newStageError(StageStore, err)
	}
	rec.DocumentRef = ref

	// Stage: ledger. The number is re-checked against a fresh read right
	// before the append; if another writer claimed it, the stored document
	// is deleted and the caller can retry with a fresh allocation.
	if err := w.appendWithRecheck(ctx, rec); err != nil {
		return nil, w.compensate(ctx, ref, err)
	}

	w.log.Info().
		Str("invoice_number", rec.Number).
		Str("document_ref", ref).
		Msg("Invoice stored and logged")

	return &Result{Record: rec, DocumentRef: ref}, nil
}

func validItems(items []LineItem) []LineItem {
	var out []LineItem
	for _, li := range items {
		if li.Valid() {
			out = append(out, li)
		}
	}
	return out
}

func (w *Workflow) computeTotals(items []LineItem, req Request) (Totals, error) {
	if req.ReverseTotal != nil {
		return ComputeReverseTotals(*req.ReverseTotal, req.TaxRate)
	}
	return ComputeTotals(items, req.TaxRate)
}

func (w *Workflow) resolveNumber(ctx context.Context, manual string) (string, error) {
	existing, err := w.listNumbersWithRetry(ctx)
	if err != nil {
		return "", err
	}
	if manual != "" {
		if err := w.allocator.ValidateManual(manual, existing); err != nil {
			return "", err
		}
		return manual, nil
	}
	return w.allocator.Next(existing), nil
}

func (w *Workflow) appendWithRecheck(ctx context.Context, rec Record) error {
	existing, err := w.listNumbersWithRetry(ctx)
	if err != nil {
		return err
	}
	for _, raw := range existing {
		if raw == rec.Number {
			return ErrNumberConflict
		}
	}

	row := Row{
		Date:         rec.IssueDate.Format("2006-01-02"),
		Number:       rec.Number,
		ClientName:   rec.Client.Name,
		Amount:       rec.Totals.Total.String(),
		TaxRate:      rec.Totals.TaxRate.String(),
		DocumentLink: rec.DocumentRef,
		Status:       string(rec.Status),
	}
	if w.includeDueDate {
		row.DueDate = rec.DueDate.Format("2006-01-02")
	}
	return w.ledger.AppendRow(ctx, row)
}

// compensate removes the stored document after the ledger stage failed, so
// no document exists without a matching ledger row. If the delete itself
// fails the reference is surfaced for manual reconciliation.
func (w *Workflow) compensate(ctx context.Context, ref string, cause error) error {
	w.log.Warn().
		Err(cause).
		Str("document_ref", ref).
		Msg("Ledger append failed, deleting stored document")

	if delErr := w.store.Delete(ctx, ref); delErr != nil {
		w.log.Error().
			Err(delErr).
			Str("document_ref", ref).
			Msg("Compensation delete failed, document pending reconciliation")
		return &StageError{Stage: StageLedger, Err: cause, PendingRef: ref}
	}
	return newStageError(StageLedger, cause)
}

func (w *Workflow) listNumbersWithRetry(ctx context.Context) ([]string, error) {
	backoff := w.retryBackoff
	var lastErr error
	for attempt := 1; attempt <= w.listAttempts; attempt++ {
		numbers, err := w.ledger.ListNumbers(ctx)
		if err == nil {
			return numbers, nil
		}
		lastErr = err
		w.log.Warn().
			Err(err).
			Int("attempt", attempt).
			Int("max_attempts", w.listAttempts).
			Msg("Ledger listing failed")

		if attempt == w.listAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, fmt.Errorf("%w: listing ledger numbers (%d attempts): %v", ErrTransientIO, w.listAttempts, lastErr)
}
