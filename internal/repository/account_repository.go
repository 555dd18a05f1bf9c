package repository

import (
	"context"

	"github.com/mkasongo/kembo-wallet/internal/models"
)

// AccountRepository is the only component allowed to mutate balances.
// AdjustBalance must be linearizable per account: concurrent calls on
// the same account never both pass the non-negative check against a
// stale balance.
type AccountRepository interface {
	// Ensure creates the account with a zero balance if it does not
	// exist yet. Idempotent.
	Ensure(ctx context.Context, accountID, currency string) (*models.Account, error)
	GetByID(ctx context.Context, accountID string) (*models.Account, error)
	// AdjustBalance applies delta atomically. It fails with
	// ErrInsufficientFunds when the result would be negative and with
	// ErrVersionConflict when expectedVersion > 0 and does not match
	// the stored version. No partial application in either case.
	AdjustBalance(ctx context.Context, accountID string, delta int64, expectedVersion int64) (newBalance, newVersion int64, err error)
	// Deactivate marks the account closed. Accounts are never deleted.
	Deactivate(ctx context.Context, accountID string) error
}
