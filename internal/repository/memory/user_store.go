package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mkasongo/kembo-wallet/internal/models"
	"github.com/mkasongo/kembo-wallet/internal/repository"
	pkgerrors "github.com/mkasongo/kembo-wallet/pkg/errors"
)

type UserStore struct {
	mu         sync.Mutex
	users      map[string]*models.User
	byUsername map[string]string
	links      map[string]*models.ReferralLink
	byCode     map[string]string
}

func NewUserStore() *UserStore {
	return &UserStore{
		users:      make(map[string]*models.User),
		byUsername: make(map[string]string),
		links:      make(map[string]*models.ReferralLink),
		byCode:     make(map[string]string),
	}
}

func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	if user == nil || user.Username == "" || user.PasswordHash == "" {
		return pkgerrors.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byUsername[user.Username]; exists {
		return pkgerrors.ErrUsernameExists
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now()
	stored := *user
	s.users[stored.ID] = &stored
	s.byUsername[stored.Username] = stored.ID
	return nil
}

func (s *UserStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, pkgerrors.ErrUserNotFound
	}
	copy := *user
	return &copy, nil
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byUsername[username]
	if !ok {
		return nil, pkgerrors.ErrUserNotFound
	}
	copy := *s.users[id]
	return &copy, nil
}

func (s *UserStore) SetReferredBy(ctx context.Context, userID, referrerAccountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[userID]
	if !ok {
		return pkgerrors.ErrUserNotFound
	}
	if user.ReferredBy != "" {
		return pkgerrors.ErrAlreadyReferred
	}
	user.ReferredBy = referrerAccountID
	return nil
}

func (s *UserStore) FindAccountID(ctx context.Context, method repository.LookupMethod, identifier string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		var field string
		switch method {
		case repository.LookupAccountNumber:
			field = user.AccountNumber
		case repository.LookupPhone:
			field = user.Phone
		case repository.LookupEmail:
			field = user.Email
		case repository.LookupCardNumber:
			field = user.CardNumber
		default:
			return "", pkgerrors.ErrInvalidMethod
		}
		if field != "" && field == identifier {
			return user.ID, nil
		}
	}
	return "", pkgerrors.ErrRecipientNotFound
}

func (s *UserStore) EnsureLink(ctx context.Context, ownerAccountID, code string) (*models.ReferralLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[ownerAccountID]
	if !ok {
		link = &models.ReferralLink{
			OwnerAccountID: ownerAccountID,
			Code:           code,
			CreatedAt:      time.Now(),
		}
		s.links[ownerAccountID] = link
		s.byCode[code] = ownerAccountID
	}
	copy := *link
	return &copy, nil
}

func (s *UserStore) GetByCode(ctx context.Context, code string) (*models.ReferralLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.byCode[code]
	if !ok {
		return nil, pkgerrors.ErrReferralNotFound
	}
	copy := *s.links[owner]
	return &copy, nil
}

func (s *UserStore) AddEarnings(ctx context.Context, ownerAccountID string, earnings int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.links[ownerAccountID]
	if !ok {
		return pkgerrors.ErrReferralNotFound
	}
	link.TotalReferrals++
	link.TotalEarnings += earnings
	return nil
}
