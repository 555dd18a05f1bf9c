package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/mkasongo/kembo-wallet/internal/models"
	pkgerrors "github.com/mkasongo/kembo-wallet/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ledgerRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "account_id", "kind", "amount", "currency", "counterparty_account_id",
		"previous_balance", "new_balance", "status", "description", "method",
		"exchange_rate_micros", "related_transaction_id", "created_at",
	})
}

func TestAppendAssignsIDAndTimestamp(t *testing.T) {
	db, mock := newMock(t)
	repo := NewLedgerRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO transactions")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(now))

	rec := &models.TransactionRecord{
		AccountID:       "acct-1",
		Kind:            models.KindDeposit,
		Amount:          100,
		Currency:        "CDF",
		PreviousBalance: 0,
		NewBalance:      100,
		Status:          models.StatusCompleted,
	}
	id, err := repo.Append(context.Background(), rec)
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, now, rec.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendRejectsInvalidRecords(t *testing.T) {
	db, _ := newMock(t)
	repo := NewLedgerRepository(db)

	_, err := repo.Append(context.Background(), nil)
	require.ErrorIs(t, err, pkgerrors.ErrInvalidArgument)

	_, err = repo.Append(context.Background(), &models.TransactionRecord{
		AccountID: "acct-1", Kind: "bribe", Amount: 100, Currency: "CDF",
	})
	require.ErrorIs(t, err, pkgerrors.ErrInvalidArgument)

	_, err = repo.Append(context.Background(), &models.TransactionRecord{
		AccountID: "acct-1", Kind: models.KindDeposit, Amount: 0, Currency: "CDF",
	})
	require.ErrorIs(t, err, pkgerrors.ErrInvalidArgument)
}

func TestUpdateStatusFinalizesPending(t *testing.T) {
	db, mock := newMock(t)
	repo := NewLedgerRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE transactions SET status = $2 WHERE id = $1 AND status = 'pending'")).
		WithArgs("tx-1", models.StatusCompleted).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.UpdateStatus(context.Background(), "tx-1", models.StatusCompleted))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusRejectsNonTerminal(t *testing.T) {
	db, _ := newMock(t)
	repo := NewLedgerRepository(db)

	err := repo.UpdateStatus(context.Background(), "tx-1", models.StatusPending)
	require.ErrorIs(t, err, pkgerrors.ErrInvalidArgument)
}

func TestUpdateStatusOnTerminalRecord(t *testing.T) {
	db, mock := newMock(t)
	repo := NewLedgerRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE transactions")).
		WithArgs("tx-1", models.StatusFailed).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs("tx-1").
		WillReturnRows(ledgerRows().AddRow(
			"tx-1", "acct-1", "withdrawal", 100, "CDF", nil,
			500, 400, "completed", "", "cash", 0, nil, time.Now()))

	err := repo.UpdateStatus(context.Background(), "tx-1", models.StatusFailed)
	require.ErrorIs(t, err, pkgerrors.ErrInvalidArgument)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusUnknownTransaction(t *testing.T) {
	db, mock := newMock(t)
	repo := NewLedgerRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE transactions")).
		WithArgs("missing", models.StatusFailed).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	err := repo.UpdateStatus(context.Background(), "missing", models.StatusFailed)
	require.ErrorIs(t, err, pkgerrors.ErrTransactionNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryReturnsCursorOnFullPage(t *testing.T) {
	db, mock := newMock(t)
	repo := NewLedgerRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM transactions")).
		WithArgs("acct-1", 2).
		WillReturnRows(ledgerRows().
			AddRow("tx-2", "acct-1", "deposit", 200, "CDF", nil, 100, 300, "completed", "", "cash", 0, nil, now).
			AddRow("tx-1", "acct-1", "deposit", 100, "CDF", nil, 0, 100, "completed", "", "cash", 0, nil, now.Add(-time.Minute)))

	records, cursor, err := repo.History(context.Background(), "acct-1", 2, "")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "tx-1", cursor)
	assert.Equal(t, "tx-2", records[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHistoryResumesFromCursor(t *testing.T) {
	db, mock := newMock(t)
	repo := NewLedgerRepository(db)

	// The cursor subquery is scoped to the account, so a cursor minted
	// for another account's history resolves to nothing.
	mock.ExpectQuery(regexp.QuoteMeta("(SELECT created_at, id FROM transactions WHERE id = $2 AND account_id = $1)")).
		WithArgs("acct-1", "tx-1", 2).
		WillReturnRows(ledgerRows())

	records, cursor, err := repo.History(context.Background(), "acct-1", 2, "tx-1")
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Empty(t, cursor)
	require.NoError(t, mock.ExpectationsWereMet())
}
