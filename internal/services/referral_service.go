package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/mkasongo/kembo-wallet/internal/models"
	"github.com/mkasongo/kembo-wallet/internal/repository"
	pkgerrors "github.com/mkasongo/kembo-wallet/pkg/errors"
)

// ReferralService hands out referral codes and pays the bonus when a
// new user redeems one. A user can be referred at most once and the
// bonus is credited exactly once per redemption.
type ReferralService struct {
	users     repository.UserRepository
	accounts  repository.AccountRepository
	ledger    repository.LedgerRepository
	referrals repository.ReferralRepository
	notifier  Notifier
	bonus     int64
	currency  string
}

func NewReferralService(
	users repository.UserRepository,
	accounts repository.AccountRepository,
	ledger repository.LedgerRepository,
	referrals repository.ReferralRepository,
	notifier Notifier,
	bonus int64,
	currency string,
) *ReferralService {
	return &ReferralService{
		users:     users,
		accounts:  accounts,
		ledger:    ledger,
		referrals: referrals,
		notifier:  notifier,
		bonus:     bonus,
		currency:  currency,
	}
}

// GenerateCode returns the caller's referral link, minting a code on
// first call. Repeated calls return the same link.
func (s *ReferralService) GenerateCode(ctx context.Context, callerID string) (*models.ReferralLink, error) {
	code := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	link, err := s.referrals.EnsureLink(ctx, callerID, code)
	if err != nil {
		return nil, err
	}
	return link, nil
}

// Redeem records the caller as referred by the code's owner and pays
// the owner the bonus. The referred-by column acts as the once-only
// guard: a second redemption by the same user fails before any money
// moves.
func (s *ReferralService) Redeem(ctx context.Context, callerID, code string) error {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return fmt.Errorf("%w: referral code is required", pkgerrors.ErrInvalidArgument)
	}

	link, err := s.referrals.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if link.OwnerAccountID == callerID {
		return pkgerrors.ErrSelfReferralNotAllowed
	}

	if err := s.users.SetReferredBy(ctx, callerID, link.OwnerAccountID); err != nil {
		return err
	}

	newBalance, _, err := s.accounts.AdjustBalance(ctx, link.OwnerAccountID, s.bonus, 0)
	if err != nil {
		slog.Error("failed to credit referral bonus", "owner", link.OwnerAccountID, "error", err)
		return fmt.Errorf("%w: failed to credit referral bonus", pkgerrors.ErrInternal)
	}

	rec := &models.TransactionRecord{
		ID:                    uuid.NewString(),
		AccountID:             link.OwnerAccountID,
		Kind:                  models.KindReferralBonus,
		Amount:                s.bonus,
		Currency:              s.currency,
		CounterpartyAccountID: callerID,
		PreviousBalance:       newBalance - s.bonus,
		NewBalance:            newBalance,
		Status:                models.StatusCompleted,
		Description:           fmt.Sprintf("referral bonus for code %s", code),
	}
	if _, err := s.ledger.Append(ctx, rec); err != nil {
		slog.Error("failed to append referral bonus record", "owner", link.OwnerAccountID, "error", err)
	}

	if err := s.referrals.AddEarnings(ctx, link.OwnerAccountID, s.bonus); err != nil {
		slog.Error("failed to update referral totals", "owner", link.OwnerAccountID, "error", err)
	}

	s.notifier.Notify(ctx, models.Notification{
		Kind:          models.NotifyReferralBonus,
		AccountID:     link.OwnerAccountID,
		Amount:        s.bonus,
		Currency:      s.currency,
		TransactionID: rec.ID,
		Message:       fmt.Sprintf("You earned %d %s for referring a new user", s.bonus, s.currency),
	})

	slog.Info("referral redeemed", "code", code, "owner", link.OwnerAccountID, "referred", callerID)
	return nil
}
