package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mkasongo/kembo-wallet/internal/models"
	pkgerrors "github.com/mkasongo/kembo-wallet/pkg/errors"
)

type GoalRepository struct {
	db *sql.DB
}

func NewGoalRepository(db *sql.DB) *GoalRepository {
	return &GoalRepository{db: db}
}

const goalColumns = `id, owner_account_id, name, target_amount, current_amount, currency,
	frequency, frequency_amount, status, last_contribution_at, created_at`

func (r *GoalRepository) Create(ctx context.Context, goal *models.SavingsGoal) error {
	if goal == nil {
		return fmt.Errorf("%w: goal is nil", pkgerrors.ErrInvalidArgument)
	}
	if goal.ID == "" {
		goal.ID = uuid.NewString()
	}
	query := `
		INSERT INTO savings_goals (id, owner_account_id, name, target_amount, current_amount,
			currency, frequency, frequency_amount, status, last_contribution_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6, $7, 'active', NOW())
		RETURNING current_amount, status, last_contribution_at, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		goal.ID, goal.OwnerAccountID, goal.Name, goal.TargetAmount,
		goal.Currency, goal.Frequency, goal.FrequencyAmount,
	).Scan(&goal.CurrentAmount, &goal.Status, &goal.LastContributionAt, &goal.CreatedAt)
	if err != nil {
		slog.Error("failed to create savings goal", "owner", goal.OwnerAccountID, "error", err)
		return fmt.Errorf("failed to create savings goal: %w", err)
	}
	slog.Info("savings goal created", "goal_id", goal.ID, "owner", goal.OwnerAccountID, "target", goal.TargetAmount)
	return nil
}

func (r *GoalRepository) GetByID(ctx context.Context, id string) (*models.SavingsGoal, error) {
	query := `SELECT ` + goalColumns + ` FROM savings_goals WHERE id = $1`
	goal, err := scanGoal(r.db.QueryRowContext(ctx, query, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrGoalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get savings goal: %w", err)
	}
	return goal, nil
}

func (r *GoalRepository) ListByOwner(ctx context.Context, ownerAccountID string) ([]models.SavingsGoal, error) {
	query := `SELECT ` + goalColumns + ` FROM savings_goals WHERE owner_account_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, query, ownerAccountID)
}

func (r *GoalRepository) ListActive(ctx context.Context) ([]models.SavingsGoal, error) {
	query := `SELECT ` + goalColumns + ` FROM savings_goals WHERE status = 'active' ORDER BY last_contribution_at ASC`
	return r.list(ctx, query)
}

func (r *GoalRepository) list(ctx context.Context, query string, args ...any) ([]models.SavingsGoal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list savings goals: %w", err)
	}
	defer rows.Close()

	var goals []models.SavingsGoal
	for rows.Next() {
		goal, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan savings goal: %w", err)
		}
		goals = append(goals, *goal)
	}
	return goals, rows.Err()
}

// AddContribution is guarded on status so that a paused or already
// completed goal can never be charged, and flips to completed in the
// same statement once the target is reached.
func (r *GoalRepository) AddContribution(ctx context.Context, id string, amount int64, at time.Time) (*models.SavingsGoal, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: contribution must be positive", pkgerrors.ErrInvalidArgument)
	}
	query := `
		UPDATE savings_goals
		SET current_amount = current_amount + $2,
			last_contribution_at = $3,
			status = CASE WHEN current_amount + $2 >= target_amount THEN 'completed' ELSE status END
		WHERE id = $1 AND status = 'active'
		RETURNING ` + goalColumns
	goal, err := scanGoal(r.db.QueryRowContext(ctx, query, id, amount, at))
	if stderrors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, pkgerrors.ErrGoalNotActive
	}
	if err != nil {
		return nil, fmt.Errorf("failed to add contribution: %w", err)
	}
	return goal, nil
}

func (r *GoalRepository) Withdraw(ctx context.Context, id string, amount int64) (*models.SavingsGoal, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: withdrawal must be positive", pkgerrors.ErrInvalidArgument)
	}
	query := `
		UPDATE savings_goals
		SET current_amount = current_amount - $2
		WHERE id = $1 AND status = 'completed' AND current_amount >= $2
		RETURNING ` + goalColumns
	goal, err := scanGoal(r.db.QueryRowContext(ctx, query, id, amount))
	if stderrors.Is(err, sql.ErrNoRows) {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return nil, getErr
		}
		return nil, pkgerrors.ErrGoalNotCompleted
	}
	if err != nil {
		return nil, fmt.Errorf("failed to withdraw from goal: %w", err)
	}
	return goal, nil
}

func (r *GoalRepository) UpdateStatus(ctx context.Context, id string, from, to models.GoalStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE savings_goals SET status = $3 WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return fmt.Errorf("failed to update goal status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update goal status: %w", err)
	}
	if affected == 0 {
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return pkgerrors.ErrGoalNotActive
	}
	return nil
}

func (r *GoalRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM savings_goals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete savings goal: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete savings goal: %w", err)
	}
	if affected == 0 {
		return pkgerrors.ErrGoalNotFound
	}
	return nil
}

func scanGoal(row rowScanner) (*models.SavingsGoal, error) {
	var goal models.SavingsGoal
	err := row.Scan(
		&goal.ID, &goal.OwnerAccountID, &goal.Name, &goal.TargetAmount, &goal.CurrentAmount,
		&goal.Currency, &goal.Frequency, &goal.FrequencyAmount, &goal.Status,
		&goal.LastContributionAt, &goal.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &goal, nil
}
