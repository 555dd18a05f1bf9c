package models

import "time"

// ReferralLink is the one referral code owned by an account. Codes are
// created on first request and never reused.
type ReferralLink struct {
	OwnerAccountID string    `json:"owner_account_id"`
	Code           string    `json:"code"`
	TotalReferrals int64     `json:"total_referrals"`
	TotalEarnings  int64     `json:"total_earnings"`
	CreatedAt      time.Time `json:"created_at"`
}
