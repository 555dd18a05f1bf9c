package errors

import "errors"

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrAccountNotFound   = errors.New("account not found")
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrInvalidMethod     = errors.New("invalid lookup method")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrVersionConflict   = errors.New("version conflict")
	ErrRateUnavailable   = errors.New("exchange rate unavailable")
	ErrInternal          = errors.New("internal error")

	ErrSelfTransferNotAllowed = errors.New("self transfer not allowed")
	ErrSelfReferralNotAllowed = errors.New("self referral not allowed")
	ErrAlreadyReferred        = errors.New("referral code already redeemed")
	ErrReferralNotFound       = errors.New("referral code not found")

	ErrGoalNotFound     = errors.New("savings goal not found")
	ErrGoalNotActive    = errors.New("savings goal is not active")
	ErrGoalNotCompleted = errors.New("savings goal is not completed")

	ErrTransactionNotFound = errors.New("transaction not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrUsernameExists      = errors.New("username already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrRequestInFlight     = errors.New("request with this idempotency key is still in flight")
)
