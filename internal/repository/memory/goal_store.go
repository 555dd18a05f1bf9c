package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mkasongo/kembo-wallet/internal/models"
	pkgerrors "github.com/mkasongo/kembo-wallet/pkg/errors"
)

type GoalStore struct {
	mu    sync.Mutex
	goals map[string]*models.SavingsGoal
}

func NewGoalStore() *GoalStore {
	return &GoalStore{goals: make(map[string]*models.SavingsGoal)}
}

func (s *GoalStore) Create(ctx context.Context, goal *models.SavingsGoal) error {
	if goal == nil {
		return pkgerrors.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if goal.ID == "" {
		goal.ID = uuid.NewString()
	}
	now := time.Now()
	goal.CurrentAmount = 0
	if goal.Status == "" {
		goal.Status = models.GoalActive
	}
	if goal.LastContributionAt.IsZero() {
		goal.LastContributionAt = now
	}
	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = now
	}
	stored := *goal
	s.goals[stored.ID] = &stored
	return nil
}

func (s *GoalStore) GetByID(ctx context.Context, id string) (*models.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	goal, ok := s.goals[id]
	if !ok {
		return nil, pkgerrors.ErrGoalNotFound
	}
	copy := *goal
	return &copy, nil
}

func (s *GoalStore) ListByOwner(ctx context.Context, ownerAccountID string) ([]models.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SavingsGoal
	for _, goal := range s.goals {
		if goal.OwnerAccountID == ownerAccountID {
			out = append(out, *goal)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *GoalStore) ListActive(ctx context.Context) ([]models.SavingsGoal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SavingsGoal
	for _, goal := range s.goals {
		if goal.Status == models.GoalActive {
			out = append(out, *goal)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastContributionAt.Before(out[j].LastContributionAt) })
	return out, nil
}

func (s *GoalStore) AddContribution(ctx context.Context, id string, amount int64, at time.Time) (*models.SavingsGoal, error) {
	if amount <= 0 {
		return nil, pkgerrors.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	goal, ok := s.goals[id]
	if !ok {
		return nil, pkgerrors.ErrGoalNotFound
	}
	if goal.Status != models.GoalActive {
		return nil, pkgerrors.ErrGoalNotActive
	}
	goal.CurrentAmount += amount
	goal.LastContributionAt = at
	if goal.CurrentAmount >= goal.TargetAmount {
		goal.Status = models.GoalCompleted
	}
	copy := *goal
	return &copy, nil
}

func (s *GoalStore) Withdraw(ctx context.Context, id string, amount int64) (*models.SavingsGoal, error) {
	if amount <= 0 {
		return nil, pkgerrors.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	goal, ok := s.goals[id]
	if !ok {
		return nil, pkgerrors.ErrGoalNotFound
	}
	if goal.Status != models.GoalCompleted || goal.CurrentAmount < amount {
		return nil, pkgerrors.ErrGoalNotCompleted
	}
	goal.CurrentAmount -= amount
	copy := *goal
	return &copy, nil
}

func (s *GoalStore) UpdateStatus(ctx context.Context, id string, from, to models.GoalStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	goal, ok := s.goals[id]
	if !ok {
		return pkgerrors.ErrGoalNotFound
	}
	if goal.Status != from {
		return pkgerrors.ErrGoalNotActive
	}
	goal.Status = to
	return nil
}

func (s *GoalStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.goals[id]; !ok {
		return pkgerrors.ErrGoalNotFound
	}
	delete(s.goals, id)
	return nil
}
