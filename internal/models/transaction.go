package models

import "time"

type TransactionKind string

const (
	KindDeposit             TransactionKind = "deposit"
	KindWithdrawal          TransactionKind = "withdrawal"
	KindTransferSent        TransactionKind = "transfer_sent"
	KindTransferReceived    TransactionKind = "transfer_received"
	KindPayment             TransactionKind = "payment"
	KindPaymentReceived     TransactionKind = "payment_received"
	KindReferralBonus       TransactionKind = "referral_bonus"
	KindSavingsContribution TransactionKind = "savings_contribution"
	KindSavingsWithdrawal   TransactionKind = "savings_withdrawal"
	KindRefund              TransactionKind = "refund"
)

// ValidKind reports whether k is one of the supported transaction kinds.
func ValidKind(k TransactionKind) bool {
	switch k {
	case KindDeposit, KindWithdrawal, KindTransferSent, KindTransferReceived,
		KindPayment, KindPaymentReceived, KindReferralBonus,
		KindSavingsContribution, KindSavingsWithdrawal, KindRefund:
		return true
	}
	return false
}

// Direction returns the sign applied to the record amount when summing
// completed records into a balance: +1 for credits, -1 for debits.
func (k TransactionKind) Direction() int64 {
	switch k {
	case KindDeposit, KindTransferReceived, KindPaymentReceived, KindReferralBonus,
		KindSavingsWithdrawal, KindRefund:
		return 1
	case KindWithdrawal, KindTransferSent, KindPayment, KindSavingsContribution:
		return -1
	}
	return 0
}

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
	StatusCancelled TransactionStatus = "cancelled"
)

// Terminal reports whether the status may no longer change.
func (s TransactionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// TransactionRecord is one immutable ledger entry for one account.
// A transfer writes exactly one record per side; the pair shares a
// RelatedTransactionID link. Amount is always positive, the kind
// carries the direction.
type TransactionRecord struct {
	ID                    string            `json:"id"`
	AccountID             string            `json:"account_id"`
	Kind                  TransactionKind   `json:"kind"`
	Amount                int64             `json:"amount"`
	Currency              string            `json:"currency"`
	CounterpartyAccountID string            `json:"counterparty_account_id,omitempty"`
	PreviousBalance       int64             `json:"previous_balance"`
	NewBalance            int64             `json:"new_balance"`
	Status                TransactionStatus `json:"status"`
	Description           string            `json:"description,omitempty"`
	Method                string            `json:"method,omitempty"`
	ExchangeRateMicros    int64             `json:"exchange_rate_micros,omitempty"`
	RelatedTransactionID  string            `json:"related_transaction_id,omitempty"`
	CreatedAt             time.Time         `json:"created_at"`
}
