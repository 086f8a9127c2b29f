package server

import (
	"github.com/parsea-dev/parsea/internal/model"
	"github.com/shopspring/decimal"
)

// transactionView is the JSON shape of a stored transaction.
type transactionView struct {
	ID                 string          `json:"id"`
	Date               string          `json:"date"`
	Description        string          `json:"description"`
	Merchant           string          `json:"merchant,omitempty"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	Classification     model.Class     `json:"classification"`
	Category           string          `json:"category"`
	Reasoning          string          `json:"reasoning,omitempty"`
	Confidence         float64         `json:"confidence"`
	ManuallyOverridden bool            `json:"manually_overridden"`
}

func toTransactionView(txn model.Transaction) transactionView {
	class := model.ClassPersonal
	if txn.IsBusiness {
		class = model.ClassBusiness
	}
	return transactionView{
		ID:                 txn.ID,
		Date:               txn.Date.Format("2006-01-02"),
		Description:        txn.Description,
		Merchant:           txn.Merchant,
		Amount:             txn.Amount,
		Currency:           txn.Currency,
		Classification:     class,
		Category:           txn.Category,
		Reasoning:          txn.Reasoning,
		Confidence:         txn.Confidence,
		ManuallyOverridden: txn.ManuallyOverridden,
	}
}

func toTransactionViews(transactions []model.Transaction) []transactionView {
	views := make([]transactionView, len(transactions))
	for i, txn := range transactions {
		views[i] = toTransactionView(txn)
	}
	return views
}
