package models

import "time"

type GoalFrequency string

const (
	FrequencyDaily   GoalFrequency = "daily"
	FrequencyWeekly  GoalFrequency = "weekly"
	FrequencyMonthly GoalFrequency = "monthly"
)

// Period returns the contribution interval for the frequency.
func (f GoalFrequency) Period() time.Duration {
	switch f {
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	case FrequencyMonthly:
		return 30 * 24 * time.Hour
	}
	return 0
}

type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalPaused    GoalStatus = "paused"
	GoalCompleted GoalStatus = "completed"
)

// SavingsGoal accumulates periodic contributions debited from the
// owner's main balance. CurrentAmount only grows via contributions and
// shrinks via withdrawal, which is allowed once the goal is completed.
type SavingsGoal struct {
	ID                 string        `json:"id"`
	OwnerAccountID     string        `json:"owner_account_id"`
	Name               string        `json:"name"`
	TargetAmount       int64         `json:"target_amount"`
	CurrentAmount      int64         `json:"current_amount"`
	Currency           string        `json:"currency"`
	Frequency          GoalFrequency `json:"frequency"`
	FrequencyAmount    int64         `json:"frequency_amount"`
	Status             GoalStatus    `json:"status"`
	LastContributionAt time.Time     `json:"last_contribution_at"`
	CreatedAt          time.Time     `json:"created_at"`
}

// Remaining returns how much is still missing to reach the target.
func (g *SavingsGoal) Remaining() int64 {
	if g.CurrentAmount >= g.TargetAmount {
		return 0
	}
	return g.TargetAmount - g.CurrentAmount
}

// ContributionDue reports whether a scheduled contribution is due at now.
func (g *SavingsGoal) ContributionDue(now time.Time) bool {
	if g.Status != GoalActive {
		return false
	}
	return now.Sub(g.LastContributionAt) >= g.Frequency.Period()
}
