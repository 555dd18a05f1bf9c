package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	pkgerrors "github.com/mkasongo/kembo-wallet/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func TestAdjustBalanceSuccess(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE accounts")).
		WithArgs(int64(-300), "acct-1").
		WillReturnRows(sqlmock.NewRows([]string{"balance", "version"}).AddRow(700, 4))

	newBalance, newVersion, err := repo.AdjustBalance(context.Background(), "acct-1", -300, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(700), newBalance)
	assert.Equal(t, int64(4), newVersion)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustBalanceWithVersionGuard(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE accounts")).
		WithArgs(int64(100), "acct-1", int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"balance", "version"}).AddRow(600, 4))

	newBalance, newVersion, err := repo.AdjustBalance(context.Background(), "acct-1", 100, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(600), newBalance)
	assert.Equal(t, int64(4), newVersion)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustBalanceInsufficientFunds(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE accounts")).
		WithArgs(int64(-200), "acct-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT balance, version, active FROM accounts")).
		WithArgs("acct-1").
		WillReturnRows(sqlmock.NewRows([]string{"balance", "version", "active"}).AddRow(100, 1, true))

	_, _, err := repo.AdjustBalance(context.Background(), "acct-1", -200, 0)
	require.ErrorIs(t, err, pkgerrors.ErrInsufficientFunds)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustBalanceVersionConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE accounts")).
		WithArgs(int64(-50), "acct-1", int64(5)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT balance, version, active FROM accounts")).
		WithArgs("acct-1").
		WillReturnRows(sqlmock.NewRows([]string{"balance", "version", "active"}).AddRow(500, 7, true))

	_, _, err := repo.AdjustBalance(context.Background(), "acct-1", -50, 5)
	require.ErrorIs(t, err, pkgerrors.ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustBalanceUnknownAccount(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE accounts")).
		WithArgs(int64(10), "missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT balance, version, active FROM accounts")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, _, err := repo.AdjustBalance(context.Background(), "missing", 10, 0)
	require.ErrorIs(t, err, pkgerrors.ErrAccountNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdjustBalanceInactiveAccount(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE accounts")).
		WithArgs(int64(10), "acct-1").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT balance, version, active FROM accounts")).
		WithArgs("acct-1").
		WillReturnRows(sqlmock.NewRows([]string{"balance", "version", "active"}).AddRow(500, 1, false))

	_, _, err := repo.AdjustBalance(context.Background(), "acct-1", 10, 0)
	require.ErrorIs(t, err, pkgerrors.ErrAccountNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureCreatesThenReads(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO accounts")).
		WithArgs("acct-1", "CDF").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, balance, currency, version, active, created_at, updated_at FROM accounts")).
		WithArgs("acct-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "balance", "currency", "version", "active", "created_at", "updated_at"}).
			AddRow("acct-1", 0, "CDF", 0, true, now, now))

	acc, err := repo.Ensure(context.Background(), "acct-1", "CDF")
	require.NoError(t, err)
	assert.Equal(t, "acct-1", acc.ID)
	assert.Equal(t, int64(0), acc.Balance)
	assert.True(t, acc.Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeactivateMissingAccount(t *testing.T) {
	db, mock := newMock(t)
	repo := NewAccountRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE accounts SET active = FALSE")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Deactivate(context.Background(), "missing")
	require.ErrorIs(t, err, pkgerrors.ErrAccountNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
