package repository

import (
	"context"

	"github.com/mkasongo/kembo-wallet/internal/models"
)

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	// SetReferredBy records who referred the user. Fails with
	// ErrAlreadyReferred when a referrer is already set.
	SetReferredBy(ctx context.Context, userID, referrerAccountID string) error
}

// LookupMethod names how a recipient identifier is interpreted.
type LookupMethod string

const (
	LookupAccountNumber LookupMethod = "account_number"
	LookupPhone         LookupMethod = "phone"
	LookupEmail         LookupMethod = "email"
	LookupCardNumber    LookupMethod = "card_number"
	LookupDirectID      LookupMethod = "direct_id"
)

// DirectoryRepository maps user identifiers to account ids for the
// recipient resolver. Lookups are exact-match against already
// normalized identifiers.
type DirectoryRepository interface {
	FindAccountID(ctx context.Context, method LookupMethod, identifier string) (string, error)
}
