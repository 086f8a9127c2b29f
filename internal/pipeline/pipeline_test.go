package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/parsea-dev/parsea/internal/cancel"
	"github.com/parsea-dev/parsea/internal/common"
	"github.com/parsea-dev/parsea/internal/model"
	"github.com/parsea-dev/parsea/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockClassifier is a test double for the classification boundary.
type mockClassifier struct {
	classifyFn func(txn model.ExtractedTransaction) (model.ClassificationResult, error)
	extractFn  func(text string) ([]model.ExtractedTransaction, error)
	calls      int
}

func (m *mockClassifier) Classify(_ context.Context, txn model.ExtractedTransaction, _ string) (model.ClassificationResult, error) {
	m.calls++
	if m.classifyFn != nil {
		return m.classifyFn(txn)
	}
	return model.ClassificationResult{
		Class:      model.ClassBusiness,
		Confidence: 0.9,
		Reasoning:  "test",
		Category:   "office_supplies",
	}, nil
}

func (m *mockClassifier) ExtractTransactions(_ context.Context, text, _ string) ([]model.ExtractedTransaction, error) {
	if m.extractFn != nil {
		return m.extractFn(text)
	}
	return nil, nil
}

// mockStorage records persisted units in memory. With dedupe set it
// enforces the store's per-user content uniqueness.
type mockStorage struct {
	saved  []model.Transaction
	seen   map[string]bool
	failOn string
	dedupe bool
}

func (m *mockStorage) SaveUnit(_ context.Context, txn *model.Transaction, record *model.ClassificationRecord) error {
	if m.failOn != "" && txn.Description == m.failOn {
		return fmt.Errorf("disk full")
	}
	if m.dedupe {
		if m.seen == nil {
			m.seen = make(map[string]bool)
		}
		key := txn.UserID + ":" + txn.ContentHash()
		if m.seen[key] {
			return fmt.Errorf("%w: transaction already recorded", common.ErrDuplicateEntry)
		}
		m.seen[key] = true
	}
	txn.ID = fmt.Sprintf("txn-%d", len(m.saved)+1)
	record.TransactionID = txn.ID
	m.saved = append(m.saved, *txn)
	return nil
}

// mockExtractor returns fixed text for any PDF bytes.
type mockExtractor struct {
	text string
	err  error
}

func (m *mockExtractor) ExtractText(_ []byte) (string, error) {
	return m.text, m.err
}

const validCSV = `date,description,amount,currency,merchant
2024-01-01,Coffee beans,12.50,USD,Blue Bottle
2024-01-02,Zoom subscription,-14.99,USD,Zoom
2024-01-03,Office chair,250.00,USD,IKEA
2024-01-04,Groceries,85.25,USD,Safeway
2024-01-05,Taxi to airport,40.00,USD,Uber
`

func newTestPipeline(classifier *mockClassifier, extractor *mockExtractor, storage *mockStorage, registry cancel.Registry) *Pipeline {
	var ext service.StatementExtractor
	if extractor != nil {
		ext = extractor
	}
	return New(classifier, ext, storage, registry, nil)
}

func TestProcessCSVSuccess(t *testing.T) {
	classifier := &mockClassifier{}
	storage := &mockStorage{}
	p := newTestPipeline(classifier, nil, storage, cancel.NewMemoryRegistry())

	outcome, err := p.Process(context.Background(), []byte(validCSV), "csv", "user-1")
	require.NoError(t, err)

	assert.Equal(t, 5, outcome.ProcessedCount)
	assert.Len(t, outcome.Transactions, 5)
	assert.Empty(t, outcome.Errors)
	assert.Equal(t, 5, classifier.calls)
	assert.GreaterOrEqual(t, outcome.ProcessingTime, 0.0)

	first := outcome.Transactions[0]
	assert.Equal(t, "2024-01-01", first.Date)
	assert.Equal(t, "Coffee beans", first.Description)
	assert.Equal(t, model.ClassBusiness, first.Classification)
	assert.NotEmpty(t, first.ID, "persisted units carry their storage ID")

	assert.Len(t, storage.saved, 5)
	assert.True(t, storage.saved[1].Amount.Equal(decimal.NewFromFloat(-14.99)))
}

func TestProcessCSVMissingRequiredColumn(t *testing.T) {
	classifier := &mockClassifier{}
	p := newTestPipeline(classifier, nil, &mockStorage{}, cancel.NewMemoryRegistry())

	csv := "date,description,currency\n2024-01-01,Coffee,USD\n"
	_, err := p.Process(context.Background(), []byte(csv), "csv", "user-1")

	assert.ErrorIs(t, err, common.ErrInvalidInput)
	assert.Equal(t, 0, classifier.calls, "structural rejection must happen before any model call")
}

func TestProcessCSVRowFailureContinuesBatch(t *testing.T) {
	classifier := &mockClassifier{
		classifyFn: func(txn model.ExtractedTransaction) (model.ClassificationResult, error) {
			if txn.Description == "Office chair" { // row 3
				return model.ClassificationResult{}, fmt.Errorf("model exploded")
			}
			return model.ClassificationResult{Class: model.ClassPersonal, Confidence: 0.5, Reasoning: "r", Category: "c"}, nil
		},
	}
	storage := &mockStorage{}
	p := newTestPipeline(classifier, nil, storage, cancel.NewMemoryRegistry())

	outcome, err := p.Process(context.Background(), []byte(validCSV), "csv", "user-1")
	require.NoError(t, err, "per-unit failures must not abort the batch")

	assert.Equal(t, 4, outcome.ProcessedCount)
	require.Len(t, outcome.Errors, 1)
	assert.True(t, strings.HasPrefix(outcome.Errors[0], "Row 3:"), "got %q", outcome.Errors[0])
	assert.Contains(t, outcome.Errors[0], "model exploded")
	assert.Len(t, storage.saved, 4)
}

func TestProcessCSVMalformedRowsBecomeUnitErrors(t *testing.T) {
	csv := `date,description,amount
2024-01-01,Coffee,12.50
not-a-date,Broken row,5.00
2024-01-03,,9.99
2024-01-04,Chair,notanumber
2024-01-05,Taxi,40.00
`
	storage := &mockStorage{}
	p := newTestPipeline(&mockClassifier{}, nil, storage, cancel.NewMemoryRegistry())

	outcome, err := p.Process(context.Background(), []byte(csv), "csv", "user-1")
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.ProcessedCount)
	require.Len(t, outcome.Errors, 3)
	assert.Contains(t, outcome.Errors[0], "Row 2:")
	assert.Contains(t, outcome.Errors[1], "Row 3:")
	assert.Contains(t, outcome.Errors[2], "Row 4:")
}

func TestProcessCSVDateFormats(t *testing.T) {
	csv := `date,description,amount
2024-01-15,ISO date,1.00
01/20/2024,US date,2.00
Jan 25, 2024,Readable date,3.00
`
	// The third row contains an unquoted comma and is a malformed record.
	storage := &mockStorage{}
	p := newTestPipeline(&mockClassifier{}, nil, storage, cancel.NewMemoryRegistry())

	outcome, err := p.Process(context.Background(), []byte(csv), "csv", "user-1")
	require.NoError(t, err)

	require.GreaterOrEqual(t, outcome.ProcessedCount, 2)
	assert.Equal(t, "2024-01-15", outcome.Transactions[0].Date)
	assert.Equal(t, "2024-01-20", outcome.Transactions[1].Date, "non-ISO dates are normalized")
}

func TestProcessCancellationAbortsWithoutOutcome(t *testing.T) {
	registry := cancel.NewMemoryRegistry()
	require.NoError(t, registry.RequestCancellation("user-1"))

	classifier := &mockClassifier{}
	p := newTestPipeline(classifier, nil, &mockStorage{}, registry)

	outcome, err := p.Process(context.Background(), []byte(validCSV), "csv", "user-1")

	assert.ErrorIs(t, err, common.ErrCancelled)
	assert.Nil(t, outcome, "cancellation returns no partial outcome")
	assert.Equal(t, 0, classifier.calls)
	assert.False(t, registry.IsCancelled("user-1"), "marker must be cleared on the cancellation exit path")
}

func TestProcessCancellationMidBatch(t *testing.T) {
	registry := cancel.NewMemoryRegistry()
	storage := &mockStorage{}

	classifier := &mockClassifier{}
	classifier.classifyFn = func(txn model.ExtractedTransaction) (model.ClassificationResult, error) {
		// The in-flight unit completes; cancellation only stops later units.
		if classifier.calls == 2 {
			require.NoError(t, registry.RequestCancellation("user-1"))
		}
		return model.ClassificationResult{Class: model.ClassBusiness, Confidence: 0.9, Reasoning: "r", Category: "c"}, nil
	}

	p := newTestPipeline(classifier, nil, storage, registry)
	outcome, err := p.Process(context.Background(), []byte(validCSV), "csv", "user-1")

	assert.ErrorIs(t, err, common.ErrCancelled)
	assert.Nil(t, outcome)
	assert.Equal(t, 2, classifier.calls, "no further model calls after the cancellation check trips")
	assert.Len(t, storage.saved, 2, "units persisted before cancellation stay persisted")
	assert.False(t, registry.IsCancelled("user-1"))
}

func TestProcessClassifierCancellationPropagates(t *testing.T) {
	registry := cancel.NewMemoryRegistry()
	classifier := &mockClassifier{
		classifyFn: func(_ model.ExtractedTransaction) (model.ClassificationResult, error) {
			return model.ClassificationResult{}, common.ErrCancelled
		},
	}
	p := newTestPipeline(classifier, nil, &mockStorage{}, registry)

	outcome, err := p.Process(context.Background(), []byte(validCSV), "csv", "user-1")
	assert.ErrorIs(t, err, common.ErrCancelled)
	assert.Nil(t, outcome)
}

func TestProcessMarkerClearedOnSuccess(t *testing.T) {
	registry := cancel.NewMemoryRegistry()
	p := newTestPipeline(&mockClassifier{}, nil, &mockStorage{}, registry)

	_, err := p.Process(context.Background(), []byte(validCSV), "csv", "user-1")
	require.NoError(t, err)
	assert.False(t, registry.IsCancelled("user-1"))
}

func TestProcessMarkerClearedOnStructuralError(t *testing.T) {
	registry := cancel.NewMemoryRegistry()
	p := newTestPipeline(&mockClassifier{}, nil, &mockStorage{}, registry)

	_, err := p.Process(context.Background(), []byte("garbage"), "csv", "user-1")
	require.Error(t, err)
	assert.False(t, registry.IsCancelled("user-1"))
}

func TestProcessPersistenceFailureIsPerUnit(t *testing.T) {
	storage := &mockStorage{failOn: "Zoom subscription"} // row 2
	p := newTestPipeline(&mockClassifier{}, nil, storage, cancel.NewMemoryRegistry())

	outcome, err := p.Process(context.Background(), []byte(validCSV), "csv", "user-1")
	require.NoError(t, err)

	assert.Equal(t, 4, outcome.ProcessedCount)
	require.Len(t, outcome.Errors, 1)
	assert.Contains(t, outcome.Errors[0], "Row 2:")
	assert.Contains(t, outcome.Errors[0], "disk full")
}

func TestProcessReuploadReportsDuplicatesPerRow(t *testing.T) {
	storage := &mockStorage{dedupe: true}
	p := newTestPipeline(&mockClassifier{}, nil, storage, cancel.NewMemoryRegistry())

	first, err := p.Process(context.Background(), []byte(validCSV), "csv", "user-1")
	require.NoError(t, err)
	require.Equal(t, 5, first.ProcessedCount)

	second, err := p.Process(context.Background(), []byte(validCSV), "csv", "user-1")
	require.NoError(t, err, "a re-upload is a partial-failure case, not a request failure")

	assert.Equal(t, 0, second.ProcessedCount)
	require.Len(t, second.Errors, 5)
	for i, unitErr := range second.Errors {
		assert.Contains(t, unitErr, fmt.Sprintf("Row %d:", i+1))
		assert.Contains(t, unitErr, "duplicate entry")
	}
	assert.Len(t, storage.saved, 5, "no duplicate rows persisted")
}

func TestProcessUnsupportedFileType(t *testing.T) {
	p := newTestPipeline(&mockClassifier{}, nil, &mockStorage{}, cancel.NewMemoryRegistry())

	_, err := p.Process(context.Background(), []byte("data"), "xlsx", "user-1")
	assert.ErrorIs(t, err, common.ErrUnsupportedFileType)
}

func TestProcessPDF(t *testing.T) {
	extractor := &mockExtractor{text: "statement text"}
	classifier := &mockClassifier{
		extractFn: func(text string) ([]model.ExtractedTransaction, error) {
			require.Equal(t, "statement text", text)
			return []model.ExtractedTransaction{
				{Date: "2024-01-15", Description: "Zoom", Amount: decimal.NewFromFloat(-1380.44), Currency: "GBP", Merchant: "Zoom"},
				{Date: "2024-01-16", Description: "Lunch", Amount: decimal.NewFromFloat(15.75), Currency: "USD"},
			}, nil
		},
	}
	storage := &mockStorage{}
	p := newTestPipeline(classifier, extractor, storage, cancel.NewMemoryRegistry())

	outcome, err := p.Process(context.Background(), []byte("%PDF..."), "pdf", "user-1")
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.ProcessedCount)
	assert.Equal(t, 2, classifier.calls)
	assert.Len(t, storage.saved, 2)
	assert.Equal(t, "GBP", storage.saved[0].Currency)
}

func TestProcessPDFClassificationErrorsUseTransactionLabel(t *testing.T) {
	extractor := &mockExtractor{text: "statement text"}
	classifier := &mockClassifier{
		extractFn: func(_ string) ([]model.ExtractedTransaction, error) {
			return []model.ExtractedTransaction{
				{Date: "2024-01-15", Description: "A", Amount: decimal.NewFromFloat(1)},
				{Date: "2024-01-16", Description: "B", Amount: decimal.NewFromFloat(2)},
			}, nil
		},
	}
	classifier.classifyFn = func(txn model.ExtractedTransaction) (model.ClassificationResult, error) {
		if txn.Description == "B" {
			return model.ClassificationResult{}, fmt.Errorf("boom")
		}
		return model.ClassificationResult{Class: model.ClassPersonal, Confidence: 0.5, Reasoning: "r", Category: "c"}, nil
	}

	p := newTestPipeline(classifier, extractor, &mockStorage{}, cancel.NewMemoryRegistry())
	outcome, err := p.Process(context.Background(), []byte("%PDF..."), "pdf", "user-1")
	require.NoError(t, err)

	require.Len(t, outcome.Errors, 1)
	assert.True(t, strings.HasPrefix(outcome.Errors[0], "Transaction 2:"), "got %q", outcome.Errors[0])
}

func TestProcessPDFUnreadable(t *testing.T) {
	extractor := &mockExtractor{err: fmt.Errorf("not a pdf")}
	p := newTestPipeline(&mockClassifier{}, extractor, &mockStorage{}, cancel.NewMemoryRegistry())

	_, err := p.Process(context.Background(), []byte("junk"), "pdf", "user-1")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestProcessProgressCallback(t *testing.T) {
	var updates []int
	p := newTestPipeline(&mockClassifier{}, nil, &mockStorage{}, cancel.NewMemoryRegistry()).
		WithProgress(func(done, total int) {
			assert.Equal(t, 5, total)
			updates = append(updates, done)
		})

	_, err := p.Process(context.Background(), []byte(validCSV), "csv", "user-1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, updates)
}
