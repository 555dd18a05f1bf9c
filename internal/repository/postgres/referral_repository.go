package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/mkasongo/kembo-wallet/internal/models"
	pkgerrors "github.com/mkasongo/kembo-wallet/pkg/errors"
)

type ReferralRepository struct {
	db *sql.DB
}

func NewReferralRepository(db *sql.DB) *ReferralRepository {
	return &ReferralRepository{db: db}
}

func (r *ReferralRepository) EnsureLink(ctx context.Context, ownerAccountID, code string) (*models.ReferralLink, error) {
	query := `
		INSERT INTO referral_links (owner_account_id, code)
		VALUES ($1, $2)
		ON CONFLICT (owner_account_id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, ownerAccountID, code); err != nil {
		slog.Error("failed to ensure referral link", "owner", ownerAccountID, "error", err)
		return nil, fmt.Errorf("failed to ensure referral link: %w", err)
	}

	var link models.ReferralLink
	err := r.db.QueryRowContext(ctx,
		`SELECT owner_account_id, code, total_referrals, total_earnings, created_at
		 FROM referral_links WHERE owner_account_id = $1`, ownerAccountID).Scan(
		&link.OwnerAccountID, &link.Code, &link.TotalReferrals, &link.TotalEarnings, &link.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get referral link: %w", err)
	}
	return &link, nil
}

func (r *ReferralRepository) GetByCode(ctx context.Context, code string) (*models.ReferralLink, error) {
	var link models.ReferralLink
	err := r.db.QueryRowContext(ctx,
		`SELECT owner_account_id, code, total_referrals, total_earnings, created_at
		 FROM referral_links WHERE code = $1`, code).Scan(
		&link.OwnerAccountID, &link.Code, &link.TotalReferrals, &link.TotalEarnings, &link.CreatedAt)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrReferralNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get referral link: %w", err)
	}
	return &link, nil
}

func (r *ReferralRepository) AddEarnings(ctx context.Context, ownerAccountID string, earnings int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE referral_links
		 SET total_referrals = total_referrals + 1, total_earnings = total_earnings + $2
		 WHERE owner_account_id = $1`, ownerAccountID, earnings)
	if err != nil {
		return fmt.Errorf("failed to update referral earnings: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update referral earnings: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrReferralNotFound
	}
	return nil
}
