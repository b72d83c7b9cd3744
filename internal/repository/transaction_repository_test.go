package repository

import (
	"context"
	"testing"

	"github.com/rifadigital/raffle-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTransaction(paymentID string) *model.Transaction {
	return &model.Transaction{
		UserID:        1,
		RaffleID:      1,
		Amount:        3000,
		PaymentID:     paymentID,
		PaymentMethod: "credit_card",
		Status:        model.TransactionStatusCompleted,
		Numbers:       []int64{10, 11, 12},
	}
}

func TestTransactionRepository_Create_Idempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db.DB)
	ctx := context.Background()

	first, created, err := repo.Create(ctx, newTestTransaction("pay-1"))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, first.ID)
	assert.Equal(t, []int64{10, 11, 12}, first.Numbers)

	// same payment id inserts nothing and returns the original row
	dup := newTestTransaction("pay-1")
	dup.Amount = 999999
	second, created, err := repo.Create(ctx, dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, float64(3000), second.Amount)
}

func TestTransactionRepository_GetByPaymentID(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db.DB)
	ctx := context.Background()

	_, _, err := repo.Create(ctx, newTestTransaction("pay-2"))
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		txn, err := repo.GetByPaymentID(ctx, "pay-2")
		require.NoError(t, err)
		assert.Equal(t, "pay-2", txn.PaymentID)
		assert.Equal(t, model.TransactionStatusCompleted, txn.Status)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := repo.GetByPaymentID(ctx, "no-such-payment")
		assert.ErrorIs(t, err, ErrTransactionNotFound)
	})
}

func TestTransactionRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db.DB)
	ctx := context.Background()

	for _, id := range []string{"pay-a", "pay-b", "pay-c"} {
		txn := newTestTransaction(id)
		if id == "pay-c" {
			txn.UserID = 2
		}
		_, _, err := repo.Create(ctx, txn)
		require.NoError(t, err)
	}

	t.Run("filter by user", func(t *testing.T) {
		userID := int64(1)
		items, total, err := repo.List(ctx, TransactionFilter{UserID: &userID})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, items, 2)
	})

	t.Run("pagination", func(t *testing.T) {
		items, total, err := repo.List(ctx, TransactionFilter{Limit: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		assert.Len(t, items, 2)
	})
}

func TestTransactionRepository_SumCompleted(t *testing.T) {
	db := setupTestDB(t)
	repo := NewTransactionRepository(db.DB)
	ctx := context.Background()

	t.Run("empty ledger sums to zero", func(t *testing.T) {
		total, err := repo.SumCompleted(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, float64(0), total)
	})

	t.Run("sums only completed rows of the raffle", func(t *testing.T) {
		_, _, err := repo.Create(ctx, newTestTransaction("pay-x"))
		require.NoError(t, err)
		_, _, err = repo.Create(ctx, newTestTransaction("pay-y"))
		require.NoError(t, err)

		other := newTestTransaction("pay-z")
		other.RaffleID = 2
		_, _, err = repo.Create(ctx, other)
		require.NoError(t, err)

		total, err := repo.SumCompleted(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, float64(6000), total)
	})
}
