package invoice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"invoicer/internal/money"
)

type mockRenderer struct {
	mock.Mock
}

func (m *mockRenderer) Render(rec Record) ([]byte, error) {
	args := m.Called(rec)
	if b := args.Get(0); b != nil {
		return b.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Store(ctx context.Context, data []byte, name, clientKey string) (string, error) {
	args := m.Called(ctx, data, name, clientKey)
	return args.String(0), args.Error(1)
}

func (m *mockStore) Delete(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) EnsureSchema(ctx context.Context, columns []string) error {
	args := m.Called(ctx, columns)
	return args.Error(0)
}

func (m *mockLedger) ListNumbers(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if n := args.Get(0); n != nil {
		return n.([]string), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLedger) AppendRow(ctx context.Context, row Row) error {
	args := m.Called(ctx, row)
	return args.Error(0)
}

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func newTestWorkflow(r *mockRenderer, s *mockStore, l *mockLedger) *Workflow {
	return NewWorkflow(r, s, l, WorkflowConfig{
		Currency:       "AWG",
		IncludeDueDate: true,
		ListAttempts:   2,
		RetryBackoff:   time.Millisecond,
		Now:            func() time.Time { return testNow },
	})
}

func testRequest(t *testing.T) Request {
	t.Helper()
	return Request{
		Client: Client{Name: "Acme NV", Address: "Main Street 1", Phone: "555-0100"},
		Items: []LineItem{
			item(t, "Consulting", "1", "2", "50.00"),
			item(t, "Support", "1", "1", "25.00"),
		},
		TaxRate:   dec(t, "12"),
		IssueDate: time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC),
		DueDate:   time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC),
		Status:    StatusUnpaid,
	}
}

const testRef = "https://drive.google.com/file/d/abc123/view"

func TestGenerateFailsWithoutLineItems(t *testing.T) {
	renderer, docStore, ledger := &mockRenderer{}, &mockStore{}, &mockLedger{}
	w := newTestWorkflow(renderer, docStore, ledger)

	req := testRequest(t)
	req.Items = nil
	_, err := w.Generate(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoLineItems)

	// Only invalid rows is the same as no rows.
	req.Items = []LineItem{item(t, "", "1", "1", "10.00")}
	_, err = w.Generate(context.Background(), req)
	assert.ErrorIs(t, err, ErrNoLineItems)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageValidate, stageErr.Stage)

	// Validation failures must precede every external call.
	ledger.AssertNotCalled(t, "EnsureSchema", mock.Anything, mock.Anything)
	ledger.AssertNotCalled(t, "ListNumbers", mock.Anything)
	renderer.AssertNotCalled(t, "Render", mock.Anything)
	docStore.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateHappyPath(t *testing.T) {
	renderer, docStore, ledger := &mockRenderer{}, &mockStore{}, &mockLedger{}
	w := newTestWorkflow(renderer, docStore, ledger)

	ledger.On("EnsureSchema", mock.Anything, LedgerColumns("AWG", true)).Return(nil)
	ledger.On("ListNumbers", mock.Anything).Return([]string{"1001"}, nil)
	renderer.On("Render", mock.MatchedBy(func(rec Record) bool {
		return rec.Number == "1002" &&
			rec.Totals.Subtotal.String() == "125.00" &&
			rec.Totals.Tax.String() == "15.00" &&
			rec.Totals.Total.String() == "140.00" &&
			rec.Status == StatusUnpaid &&
			rec.Currency == "AWG"
	})).Return([]byte("%PDF-fake"), nil)
	docStore.On("Store", mock.Anything, []byte("%PDF-fake"), "Invoice_1002_AcmeNV.pdf", "AcmeNV").
		Return(testRef, nil)
	ledger.On("AppendRow", mock.Anything, Row{
		Date:         "2026-08-20",
		Number:       "1002",
		ClientName:   "Acme NV",
		Amount:       "140.00",
		TaxRate:      "12",
		DocumentLink: testRef,
		Status:       "Unpaid",
		DueDate:      "2026-09-03",
	}).Return(nil)

	result, err := w.Generate(context.Background(), testRequest(t))
	require.NoError(t, err)
	assert.Equal(t, "1002", result.Record.Number)
	assert.Equal(t, testRef, result.DocumentRef)
	assert.Equal(t, testRef, result.Record.DocumentRef)
	assert.NotEmpty(t, result.Record.ID)

	renderer.AssertExpectations(t)
	docStore.AssertExpectations(t)
	ledger.AssertExpectations(t)
}

func TestGenerateManualNumberConflict(t *testing.T) {
	renderer, docStore, ledger := &mockRenderer{}, &mockStore{}, &mockLedger{}
	w := newTestWorkflow(renderer, docStore, ledger)

	ledger.On("EnsureSchema", mock.Anything, mock.Anything).Return(nil)
	ledger.On("ListNumbers", mock.Anything).Return([]string{"INV-7"}, nil)

	req := testRequest(t)
	req.ManualNumber = "INV-7"
	_, err := w.Generate(context.Background(), req)
	assert.ErrorIs(t, err, ErrNumberConflict)

	renderer.AssertNotCalled(t, "Render", mock.Anything)
	docStore.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestGenerateReverseMode(t *testing.T) {
	renderer, docStore, ledger := &mockRenderer{}, &mockStore{}, &mockLedger{}
	w := newTestWorkflow(renderer, docStore, ledger)

	ledger.On("EnsureSchema", mock.Anything, mock.Anything).Return(nil)
	ledger.On("ListNumbers", mock.Anything).Return(nil, nil)
	renderer.On("Render", mock.MatchedBy(func(rec Record) bool {
		return rec.Totals.Subtotal.String() == "125.00" &&
			rec.Totals.Tax.String() == "15.00" &&
			rec.Totals.Total.String() == "140.00"
	})).Return([]byte("pdf"), nil)
	docStore.On("Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(testRef, nil)
	ledger.On("AppendRow", mock.Anything, mock.Anything).Return(nil)

	req := testRequest(t)
	total := money.FromCents(14000)
	req.ReverseTotal = &total

	result, err := w.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "1001", result.Record.Number)
	renderer.AssertExpectations(t)
}

func TestGenerateDerivesLateStatus(t *testing.T) {
	renderer, docStore, ledger := &mockRenderer{}, &mockStore{}, &mockLedger{}
	w := newTestWorkflow(renderer, docStore, ledger)

	ledger.On("EnsureSchema", mock.Anything, mock.Anything).Return(nil)
	ledger.On("ListNumbers", mock.Anything).Return(nil, nil)
	renderer.On("Render", mock.Anything).Return([]byte("pdf"), nil)
	docStore.On("Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(testRef, nil)
	ledger.On("AppendRow", mock.Anything, mock.MatchedBy(func(row Row) bool {
		return row.Status == "Late"
	})).Return(nil)

	req := testRequest(t)
	req.DueDate = testNow.AddDate(0, 0, -1)

	result, err := w.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StatusLate, result.Record.Status)
	ledger.AssertExpectations(t)
}

func TestGenerateCompensatesOnAppendFailure(t *testing.T) {
	renderer, docStore, ledger := &mockRenderer{}, &mockStore{}, &mockLedger{}
	w := newTestWorkflow(renderer, docStore, ledger)

	ledger.On("EnsureSchema", mock.Anything, mock.Anything).Return(nil)
	ledger.On("ListNumbers", mock.Anything).Return(nil, nil)
	renderer.On("Render", mock.Anything).Return([]byte("pdf"), nil)
	docStore.On("Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(testRef, nil)
	ledger.On("AppendRow", mock.Anything, mock.Anything).Return(errors.New("append failed"))
	docStore.On("Delete", mock.Anything, testRef).Return(nil)

	_, err := w.Generate(context.Background(), testRequest(t))
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageLedger, stageErr.Stage)
	assert.Empty(t, stageErr.PendingRef, "clean compensation leaves nothing pending")
	docStore.AssertCalled(t, "Delete", mock.Anything, testRef)
}

func TestGenerateReportsPendingReconciliation(t *testing.T) {
	renderer, docStore, ledger := &mockRenderer{}, &mockStore{}, &mockLedger{}
	w := newTestWorkflow(renderer, docStore, ledger)

	ledger.On("EnsureSchema", mock.Anything, mock.Anything).Return(nil)
	ledger.On("ListNumbers", mock.Anything).Return(nil, nil)
	renderer.On("Render", mock.Anything).Return([]byte("pdf"), nil)
	docStore.On("Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(testRef, nil)
	ledger.On("AppendRow", mock.Anything, mock.Anything).Return(errors.New("append failed"))
	docStore.On("Delete", mock.Anything, testRef).Return(errors.New("delete failed"))

	_, err := w.Generate(context.Background(), testRequest(t))
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, testRef, stageErr.PendingRef)
	assert.Contains(t, err.Error(), "pending reconciliation")
}

func TestGenerateRecheckCatchesRacingWriter(t *testing.T) {
	renderer, docStore, ledger := &mockRenderer{}, &mockStore{}, &mockLedger{}
	w := newTestWorkflow(renderer, docStore, ledger)

	ledger.On("EnsureSchema", mock.Anything, mock.Anything).Return(nil)
	// First read allocates 1002; by the pre-append re-read another writer
	// has claimed it.
	ledger.On("ListNumbers", mock.Anything).Return([]string{"1001"}, nil).Once()
	ledger.On("ListNumbers", mock.Anything).Return([]string{"1001", "1002"}, nil).Once()
	renderer.On("Render", mock.Anything).Return([]byte("pdf"), nil)
	docStore.On("Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(testRef, nil)
	docStore.On("Delete", mock.Anything, testRef).Return(nil)

	_, err := w.Generate(context.Background(), testRequest(t))
	assert.ErrorIs(t, err, ErrNumberConflict)

	ledger.AssertNotCalled(t, "AppendRow", mock.Anything, mock.Anything)
	docStore.AssertCalled(t, "Delete", mock.Anything, testRef)
}

func TestGenerateRetriesLedgerListing(t *testing.T) {
	renderer, docStore, ledger := &mockRenderer{}, &mockStore{}, &mockLedger{}
	w := newTestWorkflow(renderer, docStore, ledger)

	ledger.On("EnsureSchema", mock.Anything, mock.Anything).Return(nil)
	ledger.On("ListNumbers", mock.Anything).Return(nil, errors.New("503")).Once()
	ledger.On("ListNumbers", mock.Anything).Return([]string{"1001"}, nil)
	renderer.On("Render", mock.Anything).Return([]byte("pdf"), nil)
	docStore.On("Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(testRef, nil)
	ledger.On("AppendRow", mock.Anything, mock.Anything).Return(nil)

	result, err := w.Generate(context.Background(), testRequest(t))
	require.NoError(t, err)
	assert.Equal(t, "1002", result.Record.Number)
}

func TestGenerateSurfacesTransientFailure(t *testing.T) {
	renderer, docStore, ledger := &mockRenderer{}, &mockStore{}, &mockLedger{}
	w := newTestWorkflow(renderer, docStore, ledger)

	ledger.On("EnsureSchema", mock.Anything, mock.Anything).Return(nil)
	ledger.On("ListNumbers", mock.Anything).Return(nil, errors.New("503"))

	_, err := w.Generate(context.Background(), testRequest(t))
	assert.ErrorIs(t, err, ErrTransientIO)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageNumber, stageErr.Stage)

	renderer.AssertNotCalled(t, "Render", mock.Anything)
	docStore.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
