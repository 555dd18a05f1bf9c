package repository

import (
	"context"

	"github.com/mkasongo/kembo-wallet/internal/models"
)

type ReferralRepository interface {
	// EnsureLink returns the account's referral link, creating it with
	// the supplied code on first request.
	EnsureLink(ctx context.Context, ownerAccountID, code string) (*models.ReferralLink, error)
	GetByCode(ctx context.Context, code string) (*models.ReferralLink, error)
	AddEarnings(ctx context.Context, ownerAccountID string, earnings int64) error
}
