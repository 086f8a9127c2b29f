// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/parsea-dev/parsea/internal/model"
)

// ExportFilter defines filtering options for export queries.
type ExportFilter struct {
	StartDate    *time.Time
	EndDate      *time.Time
	UserID       string
	BusinessOnly bool
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	// Upload persistence. SaveUnit writes one transaction and its
	// classification record as a single logical unit; each unit commits
	// independently, so a failure partway through an upload leaves earlier
	// units durably persisted.
	SaveUnit(ctx context.Context, txn *model.Transaction, record *model.ClassificationRecord) error

	// Transaction operations
	GetTransactions(ctx context.Context, userID string, limit, offset int) ([]model.Transaction, error)
	GetTransactionByID(ctx context.Context, id, userID string) (*model.Transaction, error)
	UpdateClassification(ctx context.Context, id, userID string, isBusiness bool) (*model.Transaction, error)
	DeleteTransaction(ctx context.Context, id, userID string) error
	GetStatistics(ctx context.Context, userID string) (*model.Statistics, error)
	ListForExport(ctx context.Context, filter ExportFilter) ([]model.Transaction, error)

	// User operations
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// TransactionClassifier is the model-backed classification boundary consumed
// by the upload pipeline. Implementations absorb transport and parse
// failures: Classify degrades to a safe-default result and
// ExtractTransactions to an empty slice. The only error either returns for a
// live backend is common.ErrCancelled.
type TransactionClassifier interface {
	Classify(ctx context.Context, txn model.ExtractedTransaction, userID string) (model.ClassificationResult, error)
	ExtractTransactions(ctx context.Context, statementText, userID string) ([]model.ExtractedTransaction, error)
}

// StatementExtractor turns an uploaded binary statement into plain text.
type StatementExtractor interface {
	ExtractText(data []byte) (string, error)
}
