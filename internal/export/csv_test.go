package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/parsea-dev/parsea/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTransactions() []model.Transaction {
	return []model.Transaction{
		{
			Date:        time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			Description: "Zoom subscription",
			Merchant:    "Zoom",
			Amount:      decimal.NewFromFloat(-45.50),
			Currency:    "USD",
			Category:    "software",
			Confidence:  0.95,
			IsBusiness:  true,
		},
		{
			Date:        time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
			Description: "Grocery store",
			Merchant:    "Safeway",
			Amount:      decimal.NewFromFloat(-120.00),
			Currency:    "USD",
			Category:    "groceries",
			Confidence:  0.8,
			IsBusiness:  false,
		},
		{
			Date:               time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC),
			Description:        "Office chair",
			Merchant:           "IKEA",
			Amount:             decimal.NewFromFloat(-250.00),
			Currency:           "USD",
			Category:           "office_supplies",
			Confidence:         1.0,
			IsBusiness:         true,
			ManuallyOverridden: true,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTransactions()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4, "header plus three rows")

	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, []string{"2024-01-15", "Zoom subscription", "Zoom", "-45.5", "USD", "business", "software", "0.95", "false"}, records[1])
	assert.Equal(t, "true", records[3][8], "override flag carried through")
}

func TestWriteCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 1, "empty export still carries the header")
}

func TestBuildSummary(t *testing.T) {
	summary := BuildSummary(sampleTransactions())

	assert.Equal(t, 3, summary.TransactionCount)
	assert.True(t, summary.BusinessTotal.Equal(decimal.NewFromFloat(295.50)), "got %s", summary.BusinessTotal)
	assert.True(t, summary.PersonalTotal.Equal(decimal.NewFromFloat(120.00)), "got %s", summary.PersonalTotal)
	assert.InDelta(t, 66.6667, summary.BusinessPercentage, 0.01)

	require.Len(t, summary.Categories, 2, "only business categories are broken out")
	assert.Equal(t, "office_supplies", summary.Categories[0].Category, "largest total first")
	assert.True(t, summary.Categories[0].Total.Equal(decimal.NewFromFloat(250.00)))
}

func TestBuildSummaryEmpty(t *testing.T) {
	summary := BuildSummary(nil)

	assert.Equal(t, 0, summary.TransactionCount)
	assert.Equal(t, 0.0, summary.BusinessPercentage)
	assert.Empty(t, summary.Categories)
}

func TestWriteSummaryCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSummaryCSV(&buf, BuildSummary(sampleTransactions())))

	out := buf.String()
	assert.Contains(t, out, "office_supplies,1,250")
	assert.Contains(t, out, "business_total,,295.5")
	assert.Contains(t, out, "business_percentage,,66.7")
}