// Package pipeline orchestrates statement uploads: extract transactions from
// the file, classify each one, and persist the results.
package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/parsea-dev/parsea/internal/cancel"
	"github.com/parsea-dev/parsea/internal/common"
	"github.com/parsea-dev/parsea/internal/model"
	"github.com/parsea-dev/parsea/internal/service"
	"github.com/shopspring/decimal"
)

// Supported upload file types.
const (
	FileTypeCSV = "csv"
	FileTypePDF = "pdf"
)

// ProgressFunc is called after each unit completes, successful or not.
type ProgressFunc func(done, total int)

// UnitStore is the slice of the storage contract the pipeline needs.
type UnitStore interface {
	SaveUnit(ctx context.Context, txn *model.Transaction, record *model.ClassificationRecord) error
}

// Pipeline runs uploads as a single sequential worker: one classification
// call in flight per upload, units processed in input order. Concurrent
// uploads from different users run as independent Pipeline invocations and
// share nothing but the cancellation registry.
type Pipeline struct {
	classifier service.TransactionClassifier
	extractor  service.StatementExtractor
	storage    UnitStore
	registry   cancel.Registry
	logger     *slog.Logger
	progress   ProgressFunc
}

// New creates an upload pipeline. The extractor may be nil if PDF uploads
// are not enabled; progress may be nil.
func New(classifier service.TransactionClassifier, extractor service.StatementExtractor,
	storage UnitStore, registry cancel.Registry, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		classifier: classifier,
		extractor:  extractor,
		storage:    storage,
		registry:   registry,
		logger:     logger,
	}
}

// WithProgress sets a per-unit progress callback and returns the pipeline.
func (p *Pipeline) WithProgress(fn ProgressFunc) *Pipeline {
	p.progress = fn
	return p
}

// unit is one row or extracted transaction heading into the classify+persist
// loop. Index is 1-based and label distinguishes CSV rows from extracted
// transactions in error messages.
type unit struct {
	txn   model.ExtractedTransaction
	index int
}

// Process runs one upload end to end and returns its outcome.
//
// Structural failures (unsupported type, unreadable file, missing CSV
// columns) and cancellation abort before an outcome exists; per-unit
// classification or persistence failures are recorded in the outcome and do
// not stop the batch. Cancellation is best effort: a unit already past its
// check still completes, only subsequent units are prevented. The user's
// cancellation marker is cleared on every exit path.
func (p *Pipeline) Process(ctx context.Context, data []byte, fileType, userID string) (outcome *model.UploadOutcome, err error) {
	start := time.Now()
	defer func() {
		if clearErr := p.registry.Clear(userID); clearErr != nil {
			p.logger.Warn("failed to clear cancellation marker", "user_id", userID, "error", clearErr)
		}
	}()

	var units []unit
	var unitErrors []string
	var label string

	switch strings.ToLower(fileType) {
	case FileTypeCSV:
		label = "Row"
		units, unitErrors, err = p.parseCSV(data)
		if err != nil {
			return nil, err
		}
	case FileTypePDF:
		label = "Transaction"
		units, err = p.extractPDF(ctx, data, userID)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", common.ErrUnsupportedFileType, fileType)
	}

	outcome = &model.UploadOutcome{
		Transactions: []model.ProcessedTransaction{},
		Errors:       unitErrors,
	}
	if outcome.Errors == nil {
		outcome.Errors = []string{}
	}

	total := len(units)
	for i, u := range units {
		if p.registry.IsCancelled(userID) {
			p.logger.Info("upload cancelled",
				"user_id", userID,
				"processed", len(outcome.Transactions),
				"remaining", total-i)
			return nil, common.ErrCancelled
		}

		if unitErr := p.processUnit(ctx, u, userID, outcome); unitErr != nil {
			if errors.Is(unitErr, common.ErrCancelled) {
				return nil, common.ErrCancelled
			}
			outcome.Errors = append(outcome.Errors, fmt.Sprintf("%s %d: %v", label, u.index, unitErr))
		}

		if p.progress != nil {
			p.progress(i+1, total)
		}
	}

	outcome.ProcessedCount = len(outcome.Transactions)
	outcome.ProcessingTime = time.Since(start).Seconds()

	p.logger.Info("upload completed",
		"user_id", userID,
		"file_type", fileType,
		"processed", outcome.ProcessedCount,
		"errors", len(outcome.Errors),
		"duration_s", outcome.ProcessingTime)

	return outcome, nil
}

// processUnit classifies and persists one unit. A returned error other than
// common.ErrCancelled is recorded against the unit and the batch continues.
func (p *Pipeline) processUnit(ctx context.Context, u unit, userID string, outcome *model.UploadOutcome) error {
	result, err := p.classifier.Classify(ctx, u.txn, userID)
	if err != nil {
		return err
	}

	date, dateErr := time.Parse("2006-01-02", u.txn.Date)
	if dateErr != nil {
		date = time.Now().UTC()
	}

	txn := &model.Transaction{
		UserID:      userID,
		Date:        date,
		Description: u.txn.Description,
		Amount:      u.txn.Amount,
		Currency:    u.txn.Currency,
		Merchant:    u.txn.Merchant,
		Category:    result.Category,
		Reasoning:   result.Reasoning,
		Confidence:  result.Confidence,
		IsBusiness:  result.Class == model.ClassBusiness,
	}
	record := &model.ClassificationRecord{
		Class:      result.Class,
		Reasoning:  result.Reasoning,
		Confidence: result.Confidence,
	}

	if err := p.storage.SaveUnit(ctx, txn, record); err != nil {
		return err
	}

	outcome.Transactions = append(outcome.Transactions, model.ProcessedTransaction{
		ID:             txn.ID,
		Date:           u.txn.Date,
		Description:    txn.Description,
		Amount:         txn.Amount,
		Classification: result.Class,
		Confidence:     result.Confidence,
		Category:       result.Category,
	})
	return nil
}

// extractPDF turns PDF bytes into units via text extraction and a single
// whole-document model extraction call.
func (p *Pipeline) extractPDF(ctx context.Context, data []byte, userID string) ([]unit, error) {
	if p.extractor == nil {
		return nil, fmt.Errorf("%w: PDF uploads are not enabled", common.ErrUnsupportedFileType)
	}

	text, err := p.extractor.ExtractText(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidInput, err)
	}

	extracted, err := p.classifier.ExtractTransactions(ctx, text, userID)
	if err != nil {
		return nil, err
	}

	units := make([]unit, len(extracted))
	for i, txn := range extracted {
		units[i] = unit{txn: txn, index: i + 1}
	}
	return units, nil
}

// Required CSV columns. Currency and merchant columns are optional.
var requiredColumns = []string{"date", "description", "amount"}

var csvDateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02-01-2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// parseCSV validates the header and converts data rows into units. A missing
// required column rejects the whole file before any model call; malformed
// rows become indexed per-unit errors and processing continues.
func (p *Pipeline) parseCSV(data []byte) ([]unit, []string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: unable to read CSV header: %v", common.ErrInvalidInput, err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range requiredColumns {
		if _, ok := columns[required]; !ok {
			return nil, nil, fmt.Errorf("%w: missing required column %q", common.ErrInvalidInput, required)
		}
	}

	var units []unit
	var unitErrors []string
	rowNum := 0
	for {
		row, readErr := reader.Read()
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			rowNum++
			unitErrors = append(unitErrors, fmt.Sprintf("Row %d: %v", rowNum, readErr))
			continue
		}
		rowNum++

		txn, rowErr := parseCSVRow(row, columns)
		if rowErr != nil {
			unitErrors = append(unitErrors, fmt.Sprintf("Row %d: %v", rowNum, rowErr))
			continue
		}
		units = append(units, unit{txn: txn, index: rowNum})
	}

	return units, unitErrors, nil
}

func parseCSVRow(row []string, columns map[string]int) (model.ExtractedTransaction, error) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	rawDate := field("date")
	date, err := parseDate(rawDate)
	if err != nil {
		return model.ExtractedTransaction{}, fmt.Errorf("invalid date %q", rawDate)
	}

	description := field("description")
	if description == "" {
		return model.ExtractedTransaction{}, fmt.Errorf("empty description")
	}

	rawAmount := strings.NewReplacer(",", "", "$", "", "£", "", "€", "").Replace(field("amount"))
	amount, err := decimal.NewFromString(rawAmount)
	if err != nil {
		return model.ExtractedTransaction{}, fmt.Errorf("invalid amount %q", field("amount"))
	}

	currency := strings.ToUpper(field("currency"))
	if currency == "" {
		currency = "USD"
	}

	return model.ExtractedTransaction{
		Date:        date.Format("2006-01-02"),
		Description: description,
		Amount:      amount,
		Currency:    currency,
		Merchant:    field("merchant"),
	}, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	for _, layout := range csvDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date format")
}
