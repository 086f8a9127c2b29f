package model

import "github.com/shopspring/decimal"

// ProcessedTransaction is one successfully classified and persisted unit in
// an upload outcome, in processing order.
type ProcessedTransaction struct {
	ID             string          `json:"id"`
	Date           string          `json:"date"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	Classification Class           `json:"classification"`
	Confidence     float64         `json:"confidence"`
	Category       string          `json:"category"`
}

// UploadOutcome summarizes a completed upload: the units that were persisted,
// the per-unit failures that were skipped, and the wall-clock duration.
// Per-unit errors never abort the batch; structural errors and cancellation
// abort before an outcome is produced.
type UploadOutcome struct {
	Transactions   []ProcessedTransaction `json:"transactions"`
	Errors         []string               `json:"errors"`
	ProcessedCount int                    `json:"processed_count"`
	ProcessingTime float64                `json:"processing_time"`
}

// Statistics aggregates a user's stored transactions.
type Statistics struct {
	TotalTransactions      int     `json:"total_transactions"`
	BusinessTransactions   int     `json:"business_transactions"`
	PersonalTransactions   int     `json:"personal_transactions"`
	OverriddenTransactions int     `json:"overridden_transactions"`
	AverageConfidence      float64 `json:"average_confidence"`
	BusinessPercentage     float64 `json:"business_percentage"`
}
