package storage

import (
	"context"
	"testing"
	"time"

	"github.com/parsea-dev/parsea/internal/common"
	"github.com/parsea-dev/parsea/internal/model"
	"github.com/parsea-dev/parsea/internal/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func createTestUser(t *testing.T, store *SQLiteStorage, email string) *model.User {
	t.Helper()

	user := &model.User{
		Email:        email,
		PasswordHash: "hashed",
		BusinessName: "Acme Consulting",
	}
	require.NoError(t, store.CreateUser(context.Background(), user))
	return user
}

func testUnit(userID string, date time.Time, amount float64, isBusiness bool) (*model.Transaction, *model.ClassificationRecord) {
	class := model.ClassPersonal
	if isBusiness {
		class = model.ClassBusiness
	}
	txn := &model.Transaction{
		UserID:      userID,
		Date:        date,
		Description: "Test purchase",
		Amount:      decimal.NewFromFloat(amount),
		Currency:    "USD",
		Merchant:    "Test Merchant",
		Category:    "office_supplies",
		Reasoning:   "looks like supplies",
		Confidence:  0.8,
		IsBusiness:  isBusiness,
	}
	record := &model.ClassificationRecord{
		Class:      class,
		Reasoning:  txn.Reasoning,
		Confidence: txn.Confidence,
	}
	return txn, record
}

func TestSaveUnitRejectsDuplicateContent(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()
	user := createTestUser(t, store, "dedupe@example.com")
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	txn, record := testUnit(user.ID, date, -14.99, true)
	require.NoError(t, store.SaveUnit(ctx, txn, record))

	// Same date, description, amount and currency: a re-uploaded statement row.
	dup, dupRecord := testUnit(user.ID, date, -14.99, true)
	err := store.SaveUnit(ctx, dup, dupRecord)
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)

	// The same content from another user is a distinct transaction.
	other := createTestUser(t, store, "other@example.com")
	otherTxn, otherRecord := testUnit(other.ID, date, -14.99, true)
	assert.NoError(t, store.SaveUnit(ctx, otherTxn, otherRecord))
}

func TestSaveUnitRoundTrip(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()
	user := createTestUser(t, store, "roundtrip@example.com")

	txn, record := testUnit(user.ID, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), -1380.44, true)
	require.NoError(t, store.SaveUnit(ctx, txn, record))
	require.NotEmpty(t, txn.ID, "SaveUnit should assign an ID")
	assert.Equal(t, txn.ID, record.TransactionID)

	got, err := store.GetTransactionByID(ctx, txn.ID, user.ID)
	require.NoError(t, err)

	assert.Equal(t, "Test purchase", got.Description)
	assert.True(t, got.Amount.Equal(decimal.NewFromFloat(-1380.44)), "amount %s", got.Amount)
	assert.Equal(t, "USD", got.Currency)
	assert.True(t, got.IsBusiness)
	assert.False(t, got.ManuallyOverridden)
	assert.InDelta(t, 0.8, got.Confidence, 0.0001)
}

func TestGetTransactionByIDScopedToUser(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()
	owner := createTestUser(t, store, "owner@example.com")
	other := createTestUser(t, store, "other@example.com")

	txn, record := testUnit(owner.ID, time.Now().UTC(), 10, false)
	require.NoError(t, store.SaveUnit(ctx, txn, record))

	_, err := store.GetTransactionByID(ctx, txn.ID, other.ID)
	assert.ErrorIs(t, err, common.ErrNotFound, "transactions must not be visible across users")
}

func TestGetTransactionsOrderAndPagination(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()
	user := createTestUser(t, store, "paging@example.com")

	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		txn, record := testUnit(user.ID, base.AddDate(0, 0, i), float64(10+i), false)
		require.NoError(t, store.SaveUnit(ctx, txn, record))
	}

	page, err := store.GetTransactions(ctx, user.ID, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, base.AddDate(0, 0, 4).Format("2006-01-02"), page[0].Date.Format("2006-01-02"), "newest first")

	rest, err := store.GetTransactions(ctx, user.ID, 10, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 3)
}

func TestUpdateClassificationOverride(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()
	user := createTestUser(t, store, "override@example.com")

	txn, record := testUnit(user.ID, time.Now().UTC(), 99.99, false)
	require.NoError(t, store.SaveUnit(ctx, txn, record))

	updated, err := store.UpdateClassification(ctx, txn.ID, user.ID, true)
	require.NoError(t, err)

	assert.True(t, updated.IsBusiness)
	assert.True(t, updated.ManuallyOverridden)
	assert.Equal(t, 1.0, updated.Confidence, "manual overrides carry full confidence")

	var count int
	err = store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM classification_records WHERE transaction_id = ? AND user_override = 1`,
		txn.ID).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "override should append a classification record")
}

func TestUpdateClassificationNotFound(t *testing.T) {
	store := setupTestStorage(t)
	user := createTestUser(t, store, "missing@example.com")

	_, err := store.UpdateClassification(context.Background(), "no-such-id", user.ID, true)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteTransaction(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()
	user := createTestUser(t, store, "delete@example.com")

	txn, record := testUnit(user.ID, time.Now().UTC(), 42, true)
	require.NoError(t, store.SaveUnit(ctx, txn, record))

	require.NoError(t, store.DeleteTransaction(ctx, txn.ID, user.ID))

	_, err := store.GetTransactionByID(ctx, txn.ID, user.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	err = store.DeleteTransaction(ctx, txn.ID, user.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetStatistics(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()
	user := createTestUser(t, store, "stats@example.com")

	stats, err := store.GetStatistics(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalTransactions)
	assert.Equal(t, 0.0, stats.BusinessPercentage)

	// The newest transaction starts business and is overridden to personal.
	dates := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	for i, business := range []bool{false, true, true, true} {
		txn, record := testUnit(user.ID, dates.AddDate(0, 0, i), 100, business)
		require.NoError(t, store.SaveUnit(ctx, txn, record))
	}
	_, err = store.UpdateClassification(ctx, mustFirstID(t, store, user.ID), user.ID, false)
	require.NoError(t, err)

	stats, err = store.GetStatistics(ctx, user.ID)
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalTransactions)
	assert.Equal(t, 2, stats.BusinessTransactions)
	assert.Equal(t, 2, stats.PersonalTransactions)
	assert.Equal(t, 1, stats.OverriddenTransactions)
	assert.InDelta(t, 50.0, stats.BusinessPercentage, 0.0001)
}

func mustFirstID(t *testing.T, store *SQLiteStorage, userID string) string {
	t.Helper()
	transactions, err := store.GetTransactions(context.Background(), userID, 1, 0)
	require.NoError(t, err)
	require.NotEmpty(t, transactions)
	return transactions[0].ID
}

func TestListForExport(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()
	user := createTestUser(t, store, "export@example.com")

	jan := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	for _, fixture := range []struct {
		date     time.Time
		business bool
	}{
		{jan, true},
		{feb, false},
		{mar, true},
	} {
		txn, record := testUnit(user.ID, fixture.date, 50, fixture.business)
		require.NoError(t, store.SaveUnit(ctx, txn, record))
	}

	all, err := store.ListForExport(ctx, service.ExportFilter{UserID: user.ID})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.True(t, all[0].Date.Before(all[1].Date), "exports read oldest first")

	business, err := store.ListForExport(ctx, service.ExportFilter{UserID: user.ID, BusinessOnly: true})
	require.NoError(t, err)
	assert.Len(t, business, 2)

	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)
	ranged, err := store.ListForExport(ctx, service.ExportFilter{UserID: user.ID, StartDate: &from, EndDate: &to})
	require.NoError(t, err)
	assert.Len(t, ranged, 1)

	_, err = store.ListForExport(ctx, service.ExportFilter{})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	createTestUser(t, store, "dup@example.com")

	err := store.CreateUser(ctx, &model.User{Email: "dup@example.com", PasswordHash: "x"})
	assert.ErrorIs(t, err, common.ErrDuplicateEntry)
}

func TestGetUserByEmailCaseInsensitive(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	user := createTestUser(t, store, "Mixed.Case@Example.com")

	got, err := store.GetUserByEmail(ctx, "mixed.case@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "Acme Consulting", got.BusinessName)

	_, err = store.GetUserByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, common.ErrNotFound)
}
