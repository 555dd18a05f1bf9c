package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mkasongo/kembo-wallet/internal/infrastructure/observability"
	"github.com/mkasongo/kembo-wallet/internal/models"
	pkgerrors "github.com/mkasongo/kembo-wallet/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type LedgerRepository struct {
	db *sql.DB
}

func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

const ledgerColumns = `id, account_id, kind, amount, currency, counterparty_account_id,
	previous_balance, new_balance, status, description, method,
	exchange_rate_micros, related_transaction_id, created_at`

func (r *LedgerRepository) Append(ctx context.Context, rec *models.TransactionRecord) (string, error) {
	var err error
	tracer := otel.Tracer("ledger-repository")
	ctx, span := tracer.Start(ctx, "AppendRecord")
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("AppendRecord", status).Inc()
		observability.RepositoryDuration.WithLabelValues("AppendRecord").Observe(time.Since(start).Seconds())
	}()

	if rec == nil {
		err = fmt.Errorf("%w: record is nil", pkgerrors.ErrInvalidArgument)
		return "", err
	}
	if !models.ValidKind(rec.Kind) {
		err = fmt.Errorf("%w: unknown transaction kind %q", pkgerrors.ErrInvalidArgument, rec.Kind)
		slog.Error("invalid transaction kind", "kind", rec.Kind)
		return "", err
	}
	if rec.Amount <= 0 {
		err = fmt.Errorf("%w: amount must be positive", pkgerrors.ErrInvalidArgument)
		return "", err
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	span.SetAttributes(
		attribute.String("account_id", rec.AccountID),
		attribute.String("kind", string(rec.Kind)),
		attribute.Int64("amount", rec.Amount),
		attribute.String("status", string(rec.Status)),
	)

	query := `
		INSERT INTO transactions (id, account_id, kind, amount, currency, counterparty_account_id,
			previous_balance, new_balance, status, description, method,
			exchange_rate_micros, related_transaction_id)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10, $11, $12, NULLIF($13, ''))
		RETURNING created_at
	`
	err = r.db.QueryRowContext(ctx, query,
		rec.ID, rec.AccountID, rec.Kind, rec.Amount, rec.Currency, rec.CounterpartyAccountID,
		rec.PreviousBalance, rec.NewBalance, rec.Status, rec.Description, rec.Method,
		rec.ExchangeRateMicros, rec.RelatedTransactionID,
	).Scan(&rec.CreatedAt)
	if err != nil {
		slog.Error("failed to append ledger record", "account_id", rec.AccountID, "kind", rec.Kind, "error", err)
		return "", fmt.Errorf("failed to append ledger record: %w", err)
	}

	slog.Info("ledger record appended", "id", rec.ID, "account_id", rec.AccountID, "kind", rec.Kind, "status", rec.Status)
	return rec.ID, nil
}

func (r *LedgerRepository) GetByID(ctx context.Context, id string) (*models.TransactionRecord, error) {
	query := `SELECT ` + ledgerColumns + ` FROM transactions WHERE id = $1`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return rec, nil
}

// UpdateStatus finalizes a pending record. Terminal records are
// immutable; the guarded UPDATE matching nothing on an existing row
// means the transition was illegal.
func (r *LedgerRepository) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus) error {
	if !status.Terminal() {
		return fmt.Errorf("%w: status %q is not terminal", pkgerrors.ErrInvalidArgument, status)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET status = $2 WHERE id = $1 AND status = 'pending'`, id, status)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	if affected == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: transaction %s is already terminal", pkgerrors.ErrInvalidArgument, id)
	}
	slog.Info("transaction status updated", "id", id, "status", status)
	return nil
}

func (r *LedgerRepository) History(ctx context.Context, accountID string, limit int, cursor string) ([]models.TransactionRecord, string, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var rows *sql.Rows
	var err error
	if cursor == "" {
		query := `SELECT ` + ledgerColumns + ` FROM transactions
			WHERE account_id = $1
			ORDER BY created_at DESC, id DESC LIMIT $2`
		rows, err = r.db.QueryContext(ctx, query, accountID, limit)
	} else {
		query := `SELECT ` + ledgerColumns + ` FROM transactions
			WHERE account_id = $1
			AND (created_at, id) < (SELECT created_at, id FROM transactions WHERE id = $2 AND account_id = $1)
			ORDER BY created_at DESC, id DESC LIMIT $3`
		rows, err = r.db.QueryContext(ctx, query, accountID, cursor, limit)
	}
	if err != nil {
		slog.Error("failed to query transaction history", "account_id", accountID, "error", err)
		return nil, "", fmt.Errorf("failed to query transaction history: %w", err)
	}
	defer rows.Close()

	var records []models.TransactionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, "", fmt.Errorf("failed to scan transaction: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("failed to read transaction history: %w", err)
	}

	next := ""
	if len(records) == limit {
		next = records[len(records)-1].ID
	}
	return records, next, nil
}

func (r *LedgerRepository) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.TransactionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + ledgerColumns + ` FROM transactions
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at ASC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending transactions: %w", err)
	}
	defer rows.Close()

	var records []models.TransactionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.TransactionRecord, error) {
	var rec models.TransactionRecord
	var counterparty, related sql.NullString
	err := row.Scan(
		&rec.ID, &rec.AccountID, &rec.Kind, &rec.Amount, &rec.Currency, &counterparty,
		&rec.PreviousBalance, &rec.NewBalance, &rec.Status, &rec.Description, &rec.Method,
		&rec.ExchangeRateMicros, &related, &rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.CounterpartyAccountID = counterparty.String
	rec.RelatedTransactionID = related.String
	return &rec, nil
}
