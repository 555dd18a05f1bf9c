package models

import "time"

// User is the identity behind an account. The account shares the user
// ID; the identifier columns feed the recipient resolver.
type User struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	PasswordHash  string    `json:"-"`
	Email         string    `json:"email,omitempty"`
	Phone         string    `json:"phone,omitempty"`
	AccountNumber string    `json:"account_number,omitempty"`
	CardNumber    string    `json:"card_number,omitempty"`
	Currency      string    `json:"currency"`
	ReferredBy    string    `json:"referred_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
