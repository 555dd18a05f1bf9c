// Package memory provides mutex-guarded in-memory implementations of
// the repository interfaces. They back the service-level and
// concurrency tests and serve as a storage engine for single-node
// development runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/mkasongo/kembo-wallet/internal/models"
	pkgerrors "github.com/mkasongo/kembo-wallet/pkg/errors"
)

type AccountStore struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
}

func NewAccountStore() *AccountStore {
	return &AccountStore{accounts: make(map[string]*models.Account)}
}

func (s *AccountStore) Ensure(ctx context.Context, accountID, currency string) (*models.Account, error) {
	if accountID == "" {
		return nil, pkgerrors.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[accountID]
	if !ok {
		now := time.Now()
		acc = &models.Account{
			ID:        accountID,
			Currency:  currency,
			Active:    true,
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.accounts[accountID] = acc
	}
	copy := *acc
	return &copy, nil
}

func (s *AccountStore) GetByID(ctx context.Context, accountID string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[accountID]
	if !ok {
		return nil, pkgerrors.ErrAccountNotFound
	}
	copy := *acc
	return &copy, nil
}

// AdjustBalance serializes all mutations behind the store mutex, so
// two concurrent debits can never both pass the non-negative check
// against a stale balance.
func (s *AccountStore) AdjustBalance(ctx context.Context, accountID string, delta int64, expectedVersion int64) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[accountID]
	if !ok || !acc.Active {
		return 0, 0, pkgerrors.ErrAccountNotFound
	}
	if expectedVersion > 0 && acc.Version != expectedVersion {
		return 0, 0, pkgerrors.ErrVersionConflict
	}
	if acc.Balance+delta < 0 {
		return 0, 0, pkgerrors.ErrInsufficientFunds
	}

	acc.Balance += delta
	acc.Version++
	acc.UpdatedAt = time.Now()
	return acc.Balance, acc.Version, nil
}

func (s *AccountStore) Deactivate(ctx context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[accountID]
	if !ok {
		return pkgerrors.ErrAccountNotFound
	}
	acc.Active = false
	acc.UpdatedAt = time.Now()
	return nil
}
