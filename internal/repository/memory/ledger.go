package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mkasongo/kembo-wallet/internal/models"
	pkgerrors "github.com/mkasongo/kembo-wallet/pkg/errors"
)

type Ledger struct {
	mu      sync.Mutex
	records []*models.TransactionRecord
	byID    map[string]*models.TransactionRecord
}

func NewLedger() *Ledger {
	return &Ledger{byID: make(map[string]*models.TransactionRecord)}
}

func (l *Ledger) Append(ctx context.Context, rec *models.TransactionRecord) (string, error) {
	if rec == nil {
		return "", pkgerrors.ErrInvalidArgument
	}
	if !models.ValidKind(rec.Kind) || rec.Amount <= 0 {
		return "", pkgerrors.ErrInvalidArgument
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	stored := *rec
	l.records = append(l.records, &stored)
	l.byID[stored.ID] = &stored
	return stored.ID, nil
}

func (l *Ledger) GetByID(ctx context.Context, id string) (*models.TransactionRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.byID[id]
	if !ok {
		return nil, pkgerrors.ErrTransactionNotFound
	}
	copy := *rec
	return &copy, nil
}

func (l *Ledger) UpdateStatus(ctx context.Context, id string, status models.TransactionStatus) error {
	if !status.Terminal() {
		return pkgerrors.ErrInvalidArgument
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.byID[id]
	if !ok {
		return pkgerrors.ErrTransactionNotFound
	}
	if rec.Status != models.StatusPending {
		return pkgerrors.ErrInvalidArgument
	}
	rec.Status = status
	return nil
}

// History walks the append order backwards, which is already
// chronological newest-first.
func (l *Ledger) History(ctx context.Context, accountID string, limit int, cursor string) ([]models.TransactionRecord, string, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	// A cursor only resumes the history it was minted for; one that
	// does not resolve within the account yields an empty page.
	start := len(l.records) - 1
	if cursor != "" {
		start = -1
		for i := len(l.records) - 1; i >= 0; i-- {
			if l.records[i].ID == cursor && l.records[i].AccountID == accountID {
				start = i - 1
				break
			}
		}
	}

	var out []models.TransactionRecord
	for i := start; i >= 0 && len(out) < limit; i-- {
		if l.records[i].AccountID == accountID {
			out = append(out, *l.records[i])
		}
	}

	next := ""
	if len(out) == limit {
		next = out[len(out)-1].ID
	}
	return out, next, nil
}

func (l *Ledger) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]models.TransactionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []models.TransactionRecord
	for _, rec := range l.records {
		if rec.Status == models.StatusPending && rec.CreatedAt.Before(olderThan) {
			out = append(out, *rec)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}
