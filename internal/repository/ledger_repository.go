package repository

import (
	"context"
	"time"

	"github.com/mkasongo/kembo-wallet/internal/models"
)

// LedgerRepository is the append-only audit trail. It never mutates
// balances; records are written after the account store commit.
type LedgerRepository interface {
	// Append writes a record once and returns its id.
	Append(ctx context.Context, rec *models.TransactionRecord) (string, error)
	GetByID(ctx context.Context, id string) (*models.TransactionRecord, error)
	// UpdateStatus moves a pending record to a terminal status. Records
	// already terminal are immutable and the call fails.
	UpdateStatus(ctx context.Context, id string, status models.TransactionStatus) error
	// History returns records newest first. The returned cursor resumes
	// the scan; empty means the history is exhausted.
	History(ctx context.Context, accountID string, limit int, cursor string) ([]models.TransactionRecord, string, error)
	// ListStalePending returns pending records created before the
	// bound, for the reconciliation sweep.
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.TransactionRecord, error)
}
