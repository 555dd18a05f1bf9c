package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mkasongo/kembo-wallet/internal/infrastructure/observability"
	"github.com/mkasongo/kembo-wallet/internal/infrastructure/redis"
	"github.com/mkasongo/kembo-wallet/internal/models"
	"github.com/mkasongo/kembo-wallet/internal/repository"
	pkgerrors "github.com/mkasongo/kembo-wallet/pkg/errors"
	"go.opentelemetry.io/otel"
)

const (
	// runClaimTTL is the initial lease on a scheduler dedup key. Short,
	// so a crash between claiming the key and committing the
	// contribution frees the goal for the next run instead of blocking
	// it until the long TTL expires.
	runClaimTTL = 10 * time.Minute
	// runGuardTTL is the extended TTL set once the contribution
	// commits. Longer than any contribution period so a processed
	// period never repeats.
	runGuardTTL = 45 * 24 * time.Hour
)

type CreateGoalRequest struct {
	Name            string               `json:"name"`
	TargetAmount    int64                `json:"target_amount"`
	Frequency       models.GoalFrequency `json:"frequency"`
	FrequencyAmount int64                `json:"frequency_amount"`
}

// SavingsService manages goals and the scheduled auto-debits feeding
// them. Goal money lives inside the goal record; moving it in or out
// always goes through the account store so the main balance and the
// ledger stay consistent.
type SavingsService struct {
	accounts    repository.AccountRepository
	ledger      repository.LedgerRepository
	goals       repository.GoalRepository
	redisClient redis.RedisClient
	requests    requestGuard
	notifier    Notifier
	now         func() time.Time
}

func NewSavingsService(
	accounts repository.AccountRepository,
	ledger repository.LedgerRepository,
	goals repository.GoalRepository,
	redisClient redis.RedisClient,
	notifier Notifier,
) *SavingsService {
	return &SavingsService{
		accounts:    accounts,
		ledger:      ledger,
		goals:       goals,
		redisClient: redisClient,
		requests:    requestGuard{redisClient: redisClient},
		notifier:    notifier,
		now:         time.Now,
	}
}

func (s *SavingsService) CreateGoal(ctx context.Context, callerID string, req CreateGoalRequest) (*models.SavingsGoal, error) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "CreateGoal")
	defer span.End()

	if req.Name == "" {
		return nil, fmt.Errorf("%w: goal name is required", pkgerrors.ErrInvalidArgument)
	}
	if req.TargetAmount <= 0 || req.FrequencyAmount <= 0 {
		return nil, fmt.Errorf("%w: target and contribution amounts must be positive", pkgerrors.ErrInvalidArgument)
	}
	if req.Frequency.Period() == 0 {
		return nil, fmt.Errorf("%w: unknown frequency %q", pkgerrors.ErrInvalidArgument, req.Frequency)
	}

	acc, err := s.accounts.GetByID(ctx, callerID)
	if err != nil {
		return nil, err
	}

	goal := &models.SavingsGoal{
		ID:                 uuid.NewString(),
		OwnerAccountID:     callerID,
		Name:               req.Name,
		TargetAmount:       req.TargetAmount,
		Currency:           acc.Currency,
		Frequency:          req.Frequency,
		FrequencyAmount:    req.FrequencyAmount,
		Status:             models.GoalActive,
		LastContributionAt: s.now().UTC(),
	}
	if err := s.goals.Create(ctx, goal); err != nil {
		span.RecordError(err)
		return nil, err
	}

	slog.Info("savings goal created", "goal_id", goal.ID, "owner", callerID, "target", goal.TargetAmount)
	return goal, nil
}

func (s *SavingsService) ListGoals(ctx context.Context, callerID string) ([]models.SavingsGoal, error) {
	return s.goals.ListByOwner(ctx, callerID)
}

// AddToGoal makes a manual contribution on top of the schedule. The
// amount is clamped to what the goal still needs; a retried request
// with the same idempotency key replays the first result instead of
// contributing again.
func (s *SavingsService) AddToGoal(ctx context.Context, callerID, goalID string, amount int64, idempotencyKey string) (*models.SavingsGoal, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", pkgerrors.ErrInvalidArgument)
	}

	var cached models.SavingsGoal
	key, replayed, err := s.requests.begin(ctx, idempotencyKey, &cached)
	if err != nil {
		return nil, err
	}
	if replayed {
		return &cached, nil
	}

	goal, err := s.ownedGoal(ctx, callerID, goalID)
	if err != nil {
		s.requests.fail(ctx, key)
		return nil, err
	}
	if goal.Status != models.GoalActive {
		s.requests.fail(ctx, key)
		return nil, pkgerrors.ErrGoalNotActive
	}
	if remaining := goal.Remaining(); amount > remaining {
		amount = remaining
	}
	if amount == 0 {
		s.requests.fail(ctx, key)
		return nil, pkgerrors.ErrGoalNotActive
	}

	updated, err := s.contribute(ctx, goal, amount, s.now().UTC(), "manual contribution")
	if err != nil {
		s.requests.fail(ctx, key)
		return nil, err
	}
	s.requests.finish(ctx, key, updated)
	return updated, nil
}

// WithdrawFromGoal moves accumulated savings back to the main balance.
// Only completed goals release money.
func (s *SavingsService) WithdrawFromGoal(ctx context.Context, callerID, goalID string, amount int64, idempotencyKey string) (*models.SavingsGoal, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", pkgerrors.ErrInvalidArgument)
	}

	var cached models.SavingsGoal
	key, replayed, err := s.requests.begin(ctx, idempotencyKey, &cached)
	if err != nil {
		return nil, err
	}
	if replayed {
		return &cached, nil
	}

	if _, err := s.ownedGoal(ctx, callerID, goalID); err != nil {
		s.requests.fail(ctx, key)
		return nil, err
	}

	updated, err := s.goals.Withdraw(ctx, goalID, amount)
	if err != nil {
		s.requests.fail(ctx, key)
		return nil, err
	}
	newBalance, _, err := s.accounts.AdjustBalance(ctx, callerID, amount, 0)
	if err != nil {
		// The goal already gave the money up; put it back.
		if _, addErr := s.goals.AddContribution(ctx, goalID, amount, updated.LastContributionAt); addErr != nil {
			slog.Error("failed to restore goal after credit failure", "goal_id", goalID, "error", addErr)
		}
		s.requests.fail(ctx, key)
		return nil, err
	}

	rec := &models.TransactionRecord{
		ID:              uuid.NewString(),
		AccountID:       callerID,
		Kind:            models.KindSavingsWithdrawal,
		Amount:          amount,
		Currency:        updated.Currency,
		PreviousBalance: newBalance - amount,
		NewBalance:      newBalance,
		Status:          models.StatusCompleted,
		Description:     fmt.Sprintf("withdrawal from goal %q", updated.Name),
	}
	if _, err := s.ledger.Append(ctx, rec); err != nil {
		slog.Error("failed to append savings withdrawal record", "goal_id", goalID, "error", err)
	}

	s.notifier.Notify(ctx, models.Notification{
		Kind:          models.NotifyTransaction,
		AccountID:     callerID,
		Amount:        amount,
		Currency:      updated.Currency,
		TransactionID: rec.ID,
		GoalID:        goalID,
		Message:       fmt.Sprintf("Withdrew %d %s from goal %q", amount, updated.Currency, updated.Name),
	})

	s.requests.finish(ctx, key, updated)
	slog.Info("goal withdrawal completed", "goal_id", goalID, "amount", amount)
	return updated, nil
}

func (s *SavingsService) PauseGoal(ctx context.Context, callerID, goalID string) error {
	if _, err := s.ownedGoal(ctx, callerID, goalID); err != nil {
		return err
	}
	return s.goals.UpdateStatus(ctx, goalID, models.GoalActive, models.GoalPaused)
}

func (s *SavingsService) ResumeGoal(ctx context.Context, callerID, goalID string) error {
	if _, err := s.ownedGoal(ctx, callerID, goalID); err != nil {
		return err
	}
	return s.goals.UpdateStatus(ctx, goalID, models.GoalPaused, models.GoalActive)
}

// DeleteGoal removes the goal, refunding whatever it accumulated.
func (s *SavingsService) DeleteGoal(ctx context.Context, callerID, goalID string) error {
	goal, err := s.ownedGoal(ctx, callerID, goalID)
	if err != nil {
		return err
	}

	if goal.CurrentAmount > 0 {
		newBalance, _, err := s.accounts.AdjustBalance(ctx, callerID, goal.CurrentAmount, 0)
		if err != nil {
			return err
		}
		rec := &models.TransactionRecord{
			ID:              uuid.NewString(),
			AccountID:       callerID,
			Kind:            models.KindSavingsWithdrawal,
			Amount:          goal.CurrentAmount,
			Currency:        goal.Currency,
			PreviousBalance: newBalance - goal.CurrentAmount,
			NewBalance:      newBalance,
			Status:          models.StatusCompleted,
			Description:     fmt.Sprintf("refund on deleting goal %q", goal.Name),
		}
		if _, err := s.ledger.Append(ctx, rec); err != nil {
			slog.Error("failed to append goal refund record", "goal_id", goalID, "error", err)
		}
	}

	if err := s.goals.Delete(ctx, goalID); err != nil {
		return err
	}
	slog.Info("savings goal deleted", "goal_id", goalID, "refunded", goal.CurrentAmount)
	return nil
}

// RunContributions is the scheduler entry point. Each due goal is
// processed at most once per period, guarded by a dedup key so
// overlapping runs (or multiple instances) never double-debit.
func (s *SavingsService) RunContributions(ctx context.Context) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "RunContributions")
	defer span.End()

	goals, err := s.goals.ListActive(ctx)
	if err != nil {
		slog.Error("failed to list active goals", "error", err)
		return
	}

	now := s.now().UTC()
	for i := range goals {
		goal := goals[i]
		if !goal.ContributionDue(now) {
			continue
		}

		guard := fmt.Sprintf("goal:%s:run:%d", goal.ID, goal.LastContributionAt.Unix())
		ok, err := s.redisClient.SetNX(ctx, guard, "1", runClaimTTL)
		if err != nil {
			slog.Error("scheduler guard unavailable", "goal_id", goal.ID, "error", err)
			continue
		}
		if !ok {
			continue
		}

		amount := goal.FrequencyAmount
		if remaining := goal.Remaining(); amount > remaining {
			amount = remaining
		}
		if amount == 0 {
			continue
		}

		if _, err := s.contribute(ctx, &goal, amount, now, "scheduled contribution"); err != nil {
			// Clearing the guard lets the next run retry within the
			// same period once funds are available.
			if delErr := s.redisClient.Del(ctx, guard); delErr != nil {
				slog.Error("failed to clear scheduler guard", "goal_id", goal.ID, "error", delErr)
			}
			observability.ScheduledContributions.WithLabelValues("failed").Inc()
			continue
		}
		// The period is committed; extend the claim so it outlives the
		// period even if a lagging peer still holds a stale goal list.
		if err := s.redisClient.Set(ctx, guard, "1", runGuardTTL); err != nil {
			slog.Error("failed to extend scheduler guard", "goal_id", goal.ID, "error", err)
		}
		observability.ScheduledContributions.WithLabelValues("completed").Inc()
	}
}

// contribute debits the owner and credits the goal, logging the
// movement. Insufficient funds leave both the balance and the goal
// untouched and notify the owner.
func (s *SavingsService) contribute(ctx context.Context, goal *models.SavingsGoal, amount int64, at time.Time, description string) (*models.SavingsGoal, error) {
	newBalance, err := s.debitOwner(ctx, goal.OwnerAccountID, amount)
	if err != nil {
		if stderrors.Is(err, pkgerrors.ErrInsufficientFunds) {
			s.notifier.Notify(ctx, models.Notification{
				Kind:      models.NotifyInsufficientFunds,
				AccountID: goal.OwnerAccountID,
				Amount:    amount,
				Currency:  goal.Currency,
				GoalID:    goal.ID,
				Message:   fmt.Sprintf("Contribution of %d %s to goal %q skipped: insufficient funds", amount, goal.Currency, goal.Name),
			})
			slog.Warn("goal contribution skipped", "goal_id", goal.ID, "amount", amount, "reason", "insufficient funds")
		}
		return nil, err
	}

	updated, err := s.goals.AddContribution(ctx, goal.ID, amount, at)
	if err != nil {
		// Goal flipped under us (paused or deleted); undo the debit.
		// Detached: the refund must not be lost to a canceled caller.
		if _, _, compErr := s.accounts.AdjustBalance(context.WithoutCancel(ctx), goal.OwnerAccountID, amount, 0); compErr != nil {
			slog.Error("failed to refund contribution", "goal_id", goal.ID, "error", compErr)
		}
		return nil, err
	}

	rec := &models.TransactionRecord{
		ID:              uuid.NewString(),
		AccountID:       goal.OwnerAccountID,
		Kind:            models.KindSavingsContribution,
		Amount:          amount,
		Currency:        goal.Currency,
		PreviousBalance: newBalance + amount,
		NewBalance:      newBalance,
		Status:          models.StatusCompleted,
		Description:     fmt.Sprintf("%s to goal %q", description, goal.Name),
	}
	if _, err := s.ledger.Append(ctx, rec); err != nil {
		slog.Error("failed to append contribution record", "goal_id", goal.ID, "error", err)
	}

	s.notifier.Notify(ctx, models.Notification{
		Kind:          models.NotifyGoalContribution,
		AccountID:     goal.OwnerAccountID,
		Amount:        amount,
		Currency:      goal.Currency,
		TransactionID: rec.ID,
		GoalID:        goal.ID,
		Message:       fmt.Sprintf("Saved %d %s towards %q", amount, goal.Currency, goal.Name),
	})
	if updated.Status == models.GoalCompleted {
		s.notifier.Notify(ctx, models.Notification{
			Kind:      models.NotifyGoalCompleted,
			AccountID: goal.OwnerAccountID,
			GoalID:    goal.ID,
			Message:   fmt.Sprintf("Goal %q reached its target of %d %s", goal.Name, updated.TargetAmount, goal.Currency),
		})
	}

	slog.Info("goal contribution completed", "goal_id", goal.ID, "amount", amount, "current", updated.CurrentAmount)
	return updated, nil
}

// debitOwner mirrors the transfer engine's debit policy: transient
// version conflicts retry a few times, then surface as internal.
func (s *SavingsService) debitOwner(ctx context.Context, accountID string, amount int64) (int64, error) {
	var newBalance int64
	var err error
	for attempt := 0; attempt < adjustRetries; attempt++ {
		newBalance, _, err = s.accounts.AdjustBalance(ctx, accountID, -amount, 0)
		if !stderrors.Is(err, pkgerrors.ErrVersionConflict) {
			return newBalance, err
		}
	}
	return 0, fmt.Errorf("%w: balance adjustment kept conflicting", pkgerrors.ErrInternal)
}

func (s *SavingsService) ownedGoal(ctx context.Context, callerID, goalID string) (*models.SavingsGoal, error) {
	goal, err := s.goals.GetByID(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if goal.OwnerAccountID != callerID {
		return nil, pkgerrors.ErrPermissionDenied
	}
	return goal, nil
}
