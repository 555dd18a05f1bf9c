package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/mkasongo/kembo-wallet/internal/repository"
	pkgerrors "github.com/mkasongo/kembo-wallet/pkg/errors"
)

// RecipientResolver maps a transfer identifier to a unique account id.
// Whether the resolved account is the caller's own is the transfer
// engine's concern, not the resolver's.
type RecipientResolver struct {
	directory repository.DirectoryRepository
}

func NewRecipientResolver(directory repository.DirectoryRepository) *RecipientResolver {
	return &RecipientResolver{directory: directory}
}

func (r *RecipientResolver) Resolve(ctx context.Context, method repository.LookupMethod, identifier string) (string, error) {
	normalized, err := NormalizeIdentifier(method, identifier)
	if err != nil {
		return "", err
	}
	if method == repository.LookupDirectID {
		return normalized, nil
	}
	return r.directory.FindAccountID(ctx, method, normalized)
}

// NormalizeIdentifier applies the per-method canonical form before the
// exact-match lookup: emails lower-cased, account numbers upper-cased,
// phone numbers stripped to digits with an optional leading plus.
func NormalizeIdentifier(method repository.LookupMethod, identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return "", fmt.Errorf("%w: recipient identifier is required", pkgerrors.ErrInvalidArgument)
	}

	switch method {
	case repository.LookupEmail:
		return strings.ToLower(identifier), nil
	case repository.LookupAccountNumber:
		return strings.ToUpper(identifier), nil
	case repository.LookupPhone:
		var b strings.Builder
		for i, r := range identifier {
			if r >= '0' && r <= '9' || (r == '+' && i == 0) {
				b.WriteRune(r)
			}
		}
		if b.Len() == 0 {
			return "", fmt.Errorf("%w: phone number has no digits", pkgerrors.ErrInvalidArgument)
		}
		return b.String(), nil
	case repository.LookupCardNumber:
		return strings.ReplaceAll(identifier, " ", ""), nil
	case repository.LookupDirectID:
		return identifier, nil
	default:
		return "", pkgerrors.ErrInvalidMethod
	}
}
