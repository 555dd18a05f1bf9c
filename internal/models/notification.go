package models

import "time"

type NotificationKind string

const (
	NotifyTransaction       NotificationKind = "transaction"
	NotifyInsufficientFunds NotificationKind = "insufficient_funds"
	NotifyGoalContribution  NotificationKind = "goal_contribution"
	NotifyGoalCompleted     NotificationKind = "goal_completed"
	NotifyReferralBonus     NotificationKind = "referral_bonus"
	NotifyWithdrawalSettled NotificationKind = "withdrawal_settled"
	NotifyWithdrawalFailed  NotificationKind = "withdrawal_failed"
)

// Notification is a user-facing event emitted after a committed
// mutation. Delivery is fire-and-forget; producing one never blocks or
// rolls back the mutation that caused it.
type Notification struct {
	Kind          NotificationKind `json:"kind"`
	AccountID     string           `json:"account_id"`
	Amount        int64            `json:"amount,omitempty"`
	Currency      string           `json:"currency,omitempty"`
	TransactionID string           `json:"transaction_id,omitempty"`
	GoalID        string           `json:"goal_id,omitempty"`
	Message       string           `json:"message"`
	CreatedAt     time.Time        `json:"created_at"`
}
