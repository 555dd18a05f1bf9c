package repository

import (
	"context"
	"time"

	"github.com/mkasongo/kembo-wallet/internal/models"
)

type GoalRepository interface {
	Create(ctx context.Context, goal *models.SavingsGoal) error
	GetByID(ctx context.Context, id string) (*models.SavingsGoal, error)
	ListByOwner(ctx context.Context, ownerAccountID string) ([]models.SavingsGoal, error)
	ListActive(ctx context.Context) ([]models.SavingsGoal, error)
	// AddContribution increments the accumulated amount, advances
	// last_contribution_at and flips the goal to completed when the
	// target is reached. Fails with ErrGoalNotActive unless the goal is
	// active.
	AddContribution(ctx context.Context, id string, amount int64, at time.Time) (*models.SavingsGoal, error)
	// Withdraw decrements the accumulated amount. Only allowed on
	// completed goals holding at least the requested amount.
	Withdraw(ctx context.Context, id string, amount int64) (*models.SavingsGoal, error)
	// UpdateStatus performs the transition from -> to; fails when the
	// stored status is not from.
	UpdateStatus(ctx context.Context, id string, from, to models.GoalStatus) error
	Delete(ctx context.Context, id string) error
}
