package models

import "time"

// Account holds the balance of one user in one reference currency.
// Balance is a fixed-point integer in minor currency units and must
// never go below zero after a committed mutation. Version increments
// on every successful mutation and backs optimistic concurrency.
type Account struct {
	ID        string    `json:"id"`
	Balance   int64     `json:"balance"`
	Currency  string    `json:"currency"`
	Version   int64     `json:"version"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
