package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkasongo/kembo-wallet/internal/infrastructure/observability"
	"github.com/mkasongo/kembo-wallet/internal/models"
	pkgerrors "github.com/mkasongo/kembo-wallet/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Ensure(ctx context.Context, accountID, currency string) (*models.Account, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: account id is required", pkgerrors.ErrInvalidArgument)
	}

	query := `
		INSERT INTO accounts (id, balance, currency, version, active)
		VALUES ($1, 0, $2, 0, TRUE)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, accountID, currency); err != nil {
		slog.Error("failed to ensure account", "account_id", accountID, "error", err)
		return nil, fmt.Errorf("failed to ensure account: %w", err)
	}
	return r.GetByID(ctx, accountID)
}

func (r *AccountRepository) GetByID(ctx context.Context, accountID string) (*models.Account, error) {
	query := `SELECT id, balance, currency, version, active, created_at, updated_at FROM accounts WHERE id = $1`
	var acc models.Account
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(
		&acc.ID, &acc.Balance, &acc.Currency, &acc.Version, &acc.Active, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &acc, nil
}

// AdjustBalance is the per-account serialization boundary. The single
// conditional UPDATE rejects both negative results and stale versions
// without ever applying a partial mutation.
func (r *AccountRepository) AdjustBalance(ctx context.Context, accountID string, delta int64, expectedVersion int64) (int64, int64, error) {
	var err error
	tracer := otel.Tracer("account-repository")
	ctx, span := tracer.Start(ctx, "AdjustBalance")
	span.SetAttributes(
		attribute.String("account_id", accountID),
		attribute.Int64("delta", delta),
	)
	defer span.End()

	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		observability.RepositoryCalls.WithLabelValues("AdjustBalance", status).Inc()
		observability.RepositoryDuration.WithLabelValues("AdjustBalance").Observe(time.Since(start).Seconds())
	}()

	var newBalance, newVersion int64
	if expectedVersion > 0 {
		query := `
			UPDATE accounts
			SET balance = balance + $1, version = version + 1, updated_at = NOW()
			WHERE id = $2 AND active AND (balance + $1) >= 0 AND version = $3
			RETURNING balance, version
		`
		err = r.db.QueryRowContext(ctx, query, delta, accountID, expectedVersion).Scan(&newBalance, &newVersion)
	} else {
		query := `
			UPDATE accounts
			SET balance = balance + $1, version = version + 1, updated_at = NOW()
			WHERE id = $2 AND active AND (balance + $1) >= 0
			RETURNING balance, version
		`
		err = r.db.QueryRowContext(ctx, query, delta, accountID).Scan(&newBalance, &newVersion)
	}
	if stderrors.Is(err, sql.ErrNoRows) {
		err = r.classifyRejection(ctx, accountID, delta, expectedVersion)
		slog.Warn("balance adjustment rejected", "account_id", accountID, "delta", delta, "error", err)
		return 0, 0, err
	}
	if err != nil {
		slog.Error("failed to adjust balance", "account_id", accountID, "delta", delta, "error", err)
		return 0, 0, fmt.Errorf("failed to adjust balance: %w", err)
	}

	return newBalance, newVersion, nil
}

// classifyRejection reads the current row to tell an unknown account, a
// stale version and an insufficient balance apart after the guarded
// UPDATE matched nothing.
func (r *AccountRepository) classifyRejection(ctx context.Context, accountID string, delta, expectedVersion int64) error {
	var balance, version int64
	var active bool
	query := `SELECT balance, version, active FROM accounts WHERE id = $1`
	err := r.db.QueryRowContext(ctx, query, accountID).Scan(&balance, &version, &active)
	if stderrors.Is(err, sql.ErrNoRows) {
		return pkgerrors.ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to inspect account: %w", err)
	}
	if !active {
		return pkgerrors.ErrAccountNotFound
	}
	if expectedVersion > 0 && version != expectedVersion {
		return pkgerrors.ErrVersionConflict
	}
	if balance+delta < 0 {
		return pkgerrors.ErrInsufficientFunds
	}
	return pkgerrors.ErrVersionConflict
}

func (r *AccountRepository) Deactivate(ctx context.Context, accountID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE accounts SET active = FALSE, updated_at = NOW() WHERE id = $1`, accountID)
	if err != nil {
		return fmt.Errorf("failed to deactivate account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to deactivate account: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrAccountNotFound
	}
	slog.Info("account deactivated", "account_id", accountID)
	return nil
}
