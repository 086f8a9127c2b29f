package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ExtractedTransaction is a single transaction pulled out of uploaded data,
// either a CSV row or one entry extracted from a PDF statement by the model.
// It exists only long enough to be classified and persisted.
type ExtractedTransaction struct {
	Date        string // YYYY-MM-DD
	Description string
	Currency    string
	Merchant    string
	Amount      decimal.Decimal
}

// Hash returns a content hash used for classification result caching.
func (t *ExtractedTransaction) Hash() string {
	data := fmt.Sprintf("%s:%s:%s:%s",
		t.Date,
		t.Description,
		t.Amount.String(),
		t.Merchant)
	sum := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", sum)
}

// Transaction is the persisted transaction record owned by the store.
// ContentHash gives it an identity independent of the generated ID, so
// re-uploading the same statement cannot insert the same row twice.
type Transaction struct {
	Date               time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
	ID                 string
	UserID             string
	Description        string
	Currency           string
	Merchant           string
	Category           string
	Reasoning          string
	Amount             decimal.Decimal
	Confidence         float64
	IsBusiness         bool
	ManuallyOverridden bool
}

// ContentHash hashes the fields that identify a transaction's content. The
// store enforces uniqueness on it per user; classification fields stay out
// so a manual override never changes the identity.
func (t *Transaction) ContentHash() string {
	data := fmt.Sprintf("%s:%s:%s:%s",
		t.Date.Format("2006-01-02"),
		t.Description,
		t.Amount.String(),
		t.Currency)
	sum := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", sum)
}
