package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/mkasongo/kembo-wallet/internal/models"
	"github.com/mkasongo/kembo-wallet/internal/repository"
	pkgerrors "github.com/mkasongo/kembo-wallet/pkg/errors"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, password_hash, COALESCE(email, ''), COALESCE(phone, ''),
	COALESCE(account_number, ''), COALESCE(card_number, ''), currency, COALESCE(referred_by, ''), created_at`

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user == nil {
		return fmt.Errorf("%w: user is nil", pkgerrors.ErrInvalidArgument)
	}
	if user.Username == "" || user.PasswordHash == "" {
		return fmt.Errorf("%w: username and password are required", pkgerrors.ErrInvalidArgument)
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	query := `
		INSERT INTO users (id, username, password_hash, email, phone, account_number, card_number, currency)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), NULLIF($7, ''), $8)
		RETURNING created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		user.ID, user.Username, user.PasswordHash,
		user.Email, user.Phone, user.AccountNumber, user.CardNumber, user.Currency,
	).Scan(&user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if stderrors.As(err, &pqErr) && pqErr.Code == "23505" {
			return pkgerrors.ErrUsernameExists
		}
		slog.Error("failed to create user", "username", user.Username, "error", err)
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.get(ctx, query, id)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if username == "" {
		return nil, fmt.Errorf("%w: username cannot be empty", pkgerrors.ErrInvalidArgument)
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return r.get(ctx, query, username)
}

func (r *UserRepository) get(ctx context.Context, query string, arg any) (*models.User, error) {
	var user models.User
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.Email, &user.Phone,
		&user.AccountNumber, &user.CardNumber, &user.Currency, &user.ReferredBy, &user.CreatedAt,
	)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, pkgerrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// SetReferredBy guards on referred_by being unset so a second
// redemption attempt fails without mutating anything.
func (r *UserRepository) SetReferredBy(ctx context.Context, userID, referrerAccountID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET referred_by = $2 WHERE id = $1 AND referred_by IS NULL`,
		userID, referrerAccountID)
	if err != nil {
		return fmt.Errorf("failed to set referrer: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set referrer: %w", err)
	}
	if affected == 0 {
		if _, getErr := r.GetByID(ctx, userID); getErr != nil {
			return getErr
		}
		return pkgerrors.ErrAlreadyReferred
	}
	return nil
}

// FindAccountID implements repository.DirectoryRepository over the
// users table. The account shares the user id.
func (r *UserRepository) FindAccountID(ctx context.Context, method repository.LookupMethod, identifier string) (string, error) {
	var column string
	switch method {
	case repository.LookupAccountNumber:
		column = "account_number"
	case repository.LookupPhone:
		column = "phone"
	case repository.LookupEmail:
		column = "email"
	case repository.LookupCardNumber:
		column = "card_number"
	default:
		return "", pkgerrors.ErrInvalidMethod
	}

	var id string
	query := fmt.Sprintf(`SELECT id FROM users WHERE %s = $1`, column)
	err := r.db.QueryRowContext(ctx, query, identifier).Scan(&id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", pkgerrors.ErrRecipientNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up recipient: %w", err)
	}
	return id, nil
}
