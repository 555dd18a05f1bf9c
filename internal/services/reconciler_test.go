package services

import (
	"context"
	"testing"
	"time"

	"github.com/mkasongo/kembo-wallet/internal/models"
	"github.com/mkasongo/kembo-wallet/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcilerRefundsStaleDebits(t *testing.T) {
	accounts := memory.NewAccountStore()
	ledger := memory.NewLedger()
	notifier := &recordingNotifier{}

	_, err := accounts.Ensure(context.Background(), "acct-1", "CDF")
	require.NoError(t, err)
	_, _, err = accounts.AdjustBalance(context.Background(), "acct-1", 300, 0)
	require.NoError(t, err)

	now := time.Now()
	staleID, err := ledger.Append(context.Background(), &models.TransactionRecord{
		AccountID:       "acct-1",
		Kind:            models.KindWithdrawal,
		Amount:          200,
		Currency:        "CDF",
		PreviousBalance: 500,
		NewBalance:      300,
		Status:          models.StatusPending,
		CreatedAt:       now.Add(-2 * time.Hour),
	})
	require.NoError(t, err)

	freshID, err := ledger.Append(context.Background(), &models.TransactionRecord{
		AccountID:       "acct-1",
		Kind:            models.KindWithdrawal,
		Amount:          50,
		Currency:        "CDF",
		PreviousBalance: 300,
		NewBalance:      250,
		Status:          models.StatusPending,
		CreatedAt:       now.Add(-time.Minute),
	})
	require.NoError(t, err)

	reconciler := NewReconciler(accounts, ledger, notifier, 30*time.Minute)
	reconciler.Run(context.Background())

	stale, err := ledger.GetByID(context.Background(), staleID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stale.Status)

	fresh, err := ledger.GetByID(context.Background(), freshID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, fresh.Status)

	acc, err := accounts.GetByID(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), acc.Balance)

	records, _, err := ledger.History(context.Background(), "acct-1", 10, "")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, models.KindRefund, records[0].Kind)
	assert.Equal(t, staleID, records[0].RelatedTransactionID)
	assert.Len(t, notifier.byKind(models.NotifyWithdrawalFailed), 1)
}

func TestReconcilerFailsStaleCreditsWithoutRefund(t *testing.T) {
	accounts := memory.NewAccountStore()
	ledger := memory.NewLedger()
	notifier := &recordingNotifier{}

	_, err := accounts.Ensure(context.Background(), "acct-1", "CDF")
	require.NoError(t, err)

	staleID, err := ledger.Append(context.Background(), &models.TransactionRecord{
		AccountID: "acct-1",
		Kind:      models.KindDeposit,
		Amount:    100,
		Currency:  "CDF",
		Status:    models.StatusPending,
		CreatedAt: time.Now().Add(-2 * time.Hour),
	})
	require.NoError(t, err)

	reconciler := NewReconciler(accounts, ledger, notifier, 30*time.Minute)
	reconciler.Run(context.Background())

	stale, err := ledger.GetByID(context.Background(), staleID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, stale.Status)

	// A credit that never landed needs no compensation.
	acc, err := accounts.GetByID(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), acc.Balance)
	assert.Empty(t, notifier.byKind(models.NotifyWithdrawalFailed))
}
