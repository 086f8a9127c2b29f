package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/parsea-dev/parsea/internal/common"
	"github.com/parsea-dev/parsea/internal/model"
	"github.com/parsea-dev/parsea/internal/service"
	"github.com/shopspring/decimal"
)

// Amounts are stored as decimal strings to avoid the rounding drift REAL
// columns accumulate on money values.

// SaveUnit writes one transaction and its classification record in a single
// database transaction. Units commit independently, so a failure midway
// through an upload leaves earlier units durably persisted.
func (s *SQLiteStorage) SaveUnit(ctx context.Context, txn *model.Transaction, record *model.ClassificationRecord) error {
	if txn == nil {
		return fmt.Errorf("transaction cannot be nil")
	}
	if record == nil {
		return fmt.Errorf("classification record cannot be nil")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = now
	}
	txn.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, content_hash, date, description, amount, currency, merchant,
			category, reasoning, confidence, is_business, manually_overridden, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID, txn.UserID, txn.ContentHash(), txn.Date, txn.Description, txn.Amount.String(), txn.Currency,
		txn.Merchant, txn.Category, txn.Reasoning, txn.Confidence,
		txn.IsBusiness, txn.ManuallyOverridden, txn.CreatedAt, txn.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: transaction already recorded", common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.TransactionID = txn.ID
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO classification_records (id, transaction_id, class, reasoning, confidence, user_override, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.TransactionID, string(record.Class), record.Reasoning,
		record.Confidence, record.UserOverride, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert classification record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit unit: %w", err)
	}
	return nil
}

const transactionColumns = `id, user_id, date, description, amount, currency, merchant,
	category, reasoning, confidence, is_business, manually_overridden, created_at, updated_at`

// GetTransactions returns the user's transactions, newest first.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, userID string, limit, offset int) ([]model.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE user_id = ?
		ORDER BY date DESC, created_at DESC
		LIMIT ? OFFSET ?`,
		userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

// GetTransactionByID returns one of the user's transactions or
// common.ErrNotFound.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id, userID string) (*model.Transaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = ? AND user_id = ?`,
		id, userID)

	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// UpdateClassification applies a manual business/personal override and
// records it as a classification record with full confidence.
func (s *SQLiteStorage) UpdateClassification(ctx context.Context, id, userID string, isBusiness bool) (*model.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET is_business = ?, manually_overridden = 1, confidence = 1.0, updated_at = ?
		WHERE id = ? AND user_id = ?`,
		isBusiness, now, id, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to update classification: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}

	class := model.ClassPersonal
	if isBusiness {
		class = model.ClassBusiness
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO classification_records (id, transaction_id, class, reasoning, confidence, user_override, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), id, string(class), "Manually overridden by user", 1.0, true, now)
	if err != nil {
		return nil, fmt.Errorf("failed to record override: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit override: %w", err)
	}

	return s.GetTransactionByID(ctx, id, userID)
}

// DeleteTransaction removes one of the user's transactions and its
// classification history.
func (s *SQLiteStorage) DeleteTransaction(ctx context.Context, id, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// History first, while the parent row still satisfies the foreign key.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM classification_records
		WHERE transaction_id IN (SELECT id FROM transactions WHERE id = ? AND user_id = ?)`,
		id, userID); err != nil {
		return fmt.Errorf("failed to delete classification records: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}

	return tx.Commit()
}

// GetStatistics aggregates the user's stored transactions.
func (s *SQLiteStorage) GetStatistics(ctx context.Context, userID string) (*model.Statistics, error) {
	stats := &model.Statistics{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_business = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN manually_overridden = 1 THEN 1 ELSE 0 END), 0),
			COALESCE(AVG(confidence), 0)
		FROM transactions
		WHERE user_id = ?`,
		userID).Scan(&stats.TotalTransactions, &stats.BusinessTransactions,
		&stats.OverriddenTransactions, &stats.AverageConfidence)
	if err != nil {
		return nil, fmt.Errorf("failed to compute statistics: %w", err)
	}

	stats.PersonalTransactions = stats.TotalTransactions - stats.BusinessTransactions
	if stats.TotalTransactions > 0 {
		stats.BusinessPercentage = float64(stats.BusinessTransactions) / float64(stats.TotalTransactions) * 100
	}

	return stats, nil
}

// ListForExport returns the user's transactions matching the filter, oldest
// first so exports read chronologically.
func (s *SQLiteStorage) ListForExport(ctx context.Context, filter service.ExportFilter) ([]model.Transaction, error) {
	if filter.UserID == "" {
		return nil, fmt.Errorf("%w: export requires a user", common.ErrInvalidInput)
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = ?`
	args := []any{filter.UserID}

	if filter.StartDate != nil {
		query += ` AND date >= ?`
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		query += ` AND date <= ?`
		args = append(args, *filter.EndDate)
	}
	if filter.BusinessOnly {
		query += ` AND is_business = 1`
	}
	query += ` ORDER BY date ASC, created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query export transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanTransactions(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var amount string
	var merchant, category, reasoning sql.NullString

	err := row.Scan(&txn.ID, &txn.UserID, &txn.Date, &txn.Description, &amount,
		&txn.Currency, &merchant, &category, &reasoning, &txn.Confidence,
		&txn.IsBusiness, &txn.ManuallyOverridden, &txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return nil, err
	}

	txn.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount %q: %w", amount, err)
	}
	txn.Merchant = merchant.String
	txn.Category = category.String
	txn.Reasoning = reasoning.String

	return &txn, nil
}

func scanTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return transactions, nil
}
