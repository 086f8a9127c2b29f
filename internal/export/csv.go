// Package export renders stored transactions into downloadable reports.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"

	"github.com/parsea-dev/parsea/internal/model"
	"github.com/shopspring/decimal"
)

var csvHeader = []string{
	"date", "description", "merchant", "amount", "currency",
	"classification", "category", "confidence", "manually_overridden",
}

// WriteCSV writes the transactions as a CSV document suitable for
// spreadsheets and accounting imports.
func WriteCSV(w io.Writer, transactions []model.Transaction) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, txn := range transactions {
		class := model.ClassPersonal
		if txn.IsBusiness {
			class = model.ClassBusiness
		}
		row := []string{
			txn.Date.Format("2006-01-02"),
			txn.Description,
			txn.Merchant,
			txn.Amount.String(),
			txn.Currency,
			string(class),
			txn.Category,
			fmt.Sprintf("%.2f", txn.Confidence),
			fmt.Sprintf("%t", txn.ManuallyOverridden),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// CategorySummary is one line of the summary report.
type CategorySummary struct {
	Category string          `json:"category"`
	Count    int             `json:"count"`
	Total    decimal.Decimal `json:"total"`
}

// Summary aggregates transactions for the tax-time overview report.
type Summary struct {
	Categories         []CategorySummary `json:"categories"`
	BusinessTotal      decimal.Decimal   `json:"business_total"`
	PersonalTotal      decimal.Decimal   `json:"personal_total"`
	TransactionCount   int               `json:"transaction_count"`
	BusinessPercentage float64           `json:"business_percentage"`
}

// BuildSummary computes per-category totals over the business transactions
// plus overall business and personal totals. Totals use absolute amounts so
// refunds don't cancel out spending lines.
func BuildSummary(transactions []model.Transaction) Summary {
	summary := Summary{TransactionCount: len(transactions)}
	byCategory := make(map[string]*CategorySummary)
	businessCount := 0

	for _, txn := range transactions {
		amount := txn.Amount.Abs()
		if !txn.IsBusiness {
			summary.PersonalTotal = summary.PersonalTotal.Add(amount)
			continue
		}

		businessCount++
		summary.BusinessTotal = summary.BusinessTotal.Add(amount)

		category := txn.Category
		if category == "" {
			category = model.UnknownCategory
		}
		entry, ok := byCategory[category]
		if !ok {
			entry = &CategorySummary{Category: category}
			byCategory[category] = entry
		}
		entry.Count++
		entry.Total = entry.Total.Add(amount)
	}

	for _, entry := range byCategory {
		summary.Categories = append(summary.Categories, *entry)
	}
	sort.Slice(summary.Categories, func(i, j int) bool {
		return summary.Categories[i].Total.GreaterThan(summary.Categories[j].Total)
	})

	if len(transactions) > 0 {
		summary.BusinessPercentage = float64(businessCount) / float64(len(transactions)) * 100
	}

	return summary
}

// WriteSummaryCSV renders the summary report as CSV.
func WriteSummaryCSV(w io.Writer, summary Summary) error {
	writer := csv.NewWriter(w)

	if err := writer.Write([]string{"category", "count", "total"}); err != nil {
		return fmt.Errorf("failed to write summary header: %w", err)
	}
	for _, entry := range summary.Categories {
		row := []string{entry.Category, fmt.Sprintf("%d", entry.Count), entry.Total.String()}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}

	footer := [][]string{
		{"business_total", "", summary.BusinessTotal.String()},
		{"personal_total", "", summary.PersonalTotal.String()},
		{"business_percentage", "", fmt.Sprintf("%.1f", summary.BusinessPercentage)},
	}
	for _, row := range footer {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write summary footer: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}
