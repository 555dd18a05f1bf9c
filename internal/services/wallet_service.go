package services

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mkasongo/kembo-wallet/internal/infrastructure/auth"
	"github.com/mkasongo/kembo-wallet/internal/infrastructure/observability"
	"github.com/mkasongo/kembo-wallet/internal/infrastructure/redis"
	"github.com/mkasongo/kembo-wallet/internal/models"
	"github.com/mkasongo/kembo-wallet/internal/repository"
	pkgerrors "github.com/mkasongo/kembo-wallet/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/crypto/bcrypt"
)

// Converter is satisfied by fx.Converter; tests substitute a static
// rate table.
type Converter interface {
	Convert(ctx context.Context, amount int64, from, to string) (converted int64, rateMicros int64, err error)
}

const (
	adjustRetries   = 3
	balanceCacheTTL = 5 * time.Minute
)

type RegisterRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	Email         string `json:"email,omitempty"`
	Phone         string `json:"phone,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	CardNumber    string `json:"card_number,omitempty"`
	Currency      string `json:"currency,omitempty"`
}

type DepositRequest struct {
	AccountID      string `json:"account_id"`
	Amount         int64  `json:"amount"`
	Method         string `json:"method"`
	Description    string `json:"description,omitempty"`
	IdempotencyKey string `json:"-"`
}

type WithdrawRequest struct {
	AccountID      string `json:"account_id"`
	Amount         int64  `json:"amount"`
	Method         string `json:"method"`
	Description    string `json:"description,omitempty"`
	IdempotencyKey string `json:"-"`
}

type TransferRequest struct {
	SenderAccountID string                  `json:"sender_account_id"`
	Amount          int64                   `json:"amount"`
	Method          repository.LookupMethod `json:"method"`
	Recipient       string                  `json:"recipient"`
	Description     string                  `json:"description,omitempty"`
	IdempotencyKey  string                  `json:"-"`
}

type TransactionResult struct {
	TransactionID string                   `json:"transaction_id"`
	NewBalance    int64                    `json:"new_balance"`
	Status        models.TransactionStatus `json:"status"`
}

type TransferResult struct {
	SenderTransactionID    string `json:"sender_transaction_id"`
	RecipientTransactionID string `json:"recipient_transaction_id"`
	SenderBalance          int64  `json:"sender_balance"`
	AmountDebited          int64  `json:"amount_debited"`
	AmountCredited         int64  `json:"amount_credited"`
	SenderCurrency         string `json:"sender_currency"`
	RecipientCurrency      string `json:"recipient_currency"`
	ExchangeRateMicros     int64  `json:"exchange_rate_micros"`
}

// WalletService is the transfer engine and the single entry point for
// every balance mutation triggered by a caller. All mutations go
// through the account store; the ledger and notifier are strictly
// downstream of the commit.
type WalletService struct {
	users           repository.UserRepository
	accounts        repository.AccountRepository
	ledger          repository.LedgerRepository
	resolver        *RecipientResolver
	converter       Converter
	redisClient     redis.RedisClient
	requests        requestGuard
	notifier        Notifier
	jwtSecret       string
	defaultCurrency string
}

func NewWalletService(
	users repository.UserRepository,
	accounts repository.AccountRepository,
	ledger repository.LedgerRepository,
	resolver *RecipientResolver,
	converter Converter,
	redisClient redis.RedisClient,
	notifier Notifier,
	jwtSecret string,
	defaultCurrency string,
) *WalletService {
	return &WalletService{
		users:           users,
		accounts:        accounts,
		ledger:          ledger,
		resolver:        resolver,
		converter:       converter,
		redisClient:     redisClient,
		requests:        requestGuard{redisClient: redisClient},
		notifier:        notifier,
		jwtSecret:       jwtSecret,
		defaultCurrency: defaultCurrency,
	}
}

func (s *WalletService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "Register")
	defer span.End()

	if req.Username == "" || req.Password == "" {
		span.SetStatus(codes.Error, "empty username or password")
		return nil, fmt.Errorf("%w: username and password are required", pkgerrors.ErrInvalidArgument)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		span.RecordError(err)
		slog.Error("failed to hash password", "username", req.Username, "error", err)
		return nil, fmt.Errorf("%w: failed to hash password", pkgerrors.ErrInternal)
	}

	currency := req.Currency
	if currency == "" {
		currency = s.defaultCurrency
	}

	user := &models.User{
		Username:      req.Username,
		PasswordHash:  string(hash),
		Currency:      currency,
		AccountNumber: req.AccountNumber,
		CardNumber:    req.CardNumber,
	}
	if req.Email != "" {
		if user.Email, err = NormalizeIdentifier(repository.LookupEmail, req.Email); err != nil {
			return nil, err
		}
	}
	if req.Phone != "" {
		if user.Phone, err = NormalizeIdentifier(repository.LookupPhone, req.Phone); err != nil {
			return nil, err
		}
	}
	if req.AccountNumber != "" {
		user.AccountNumber, _ = NormalizeIdentifier(repository.LookupAccountNumber, req.AccountNumber)
	}

	if err := s.users.Create(ctx, user); err != nil {
		span.RecordError(err)
		slog.Error("failed to create user", "username", req.Username, "error", err)
		return nil, err
	}
	if _, err := s.accounts.Ensure(ctx, user.ID, currency); err != nil {
		span.RecordError(err)
		slog.Error("failed to create account for user", "user_id", user.ID, "error", err)
		return nil, fmt.Errorf("%w: failed to create account", pkgerrors.ErrInternal)
	}

	slog.Info("user registered", "user_id", user.ID, "username", user.Username, "currency", currency)
	return user, nil
}

func (s *WalletService) Login(ctx context.Context, username, password string) (string, error) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "Login")
	defer span.End()

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		slog.Warn("login failed", "username", username, "error", err)
		return "", pkgerrors.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.Warn("invalid password", "username", username)
		return "", pkgerrors.ErrInvalidCredentials
	}

	token, err := auth.IssueToken(user.ID, s.jwtSecret)
	if err != nil {
		slog.Error("failed to issue token", "user_id", user.ID, "error", err)
		return "", fmt.Errorf("%w: failed to issue token", pkgerrors.ErrInternal)
	}
	if err := s.redisClient.Set(ctx, fmt.Sprintf("account:%s:token", user.ID), token, auth.TokenTTL); err != nil {
		slog.Error("failed to cache session token", "user_id", user.ID, "error", err)
		return "", fmt.Errorf("%w: failed to store session", pkgerrors.ErrInternal)
	}

	slog.Info("user logged in", "user_id", user.ID, "username", username)
	return token, nil
}

func (s *WalletService) Balance(ctx context.Context, callerID, accountID string) (*models.Account, error) {
	if callerID != accountID {
		return nil, pkgerrors.ErrPermissionDenied
	}

	cacheKey := fmt.Sprintf("account:%s:balance", accountID)
	if cached, err := s.redisClient.Get(ctx, cacheKey); err == nil {
		var acc models.Account
		if err := json.Unmarshal([]byte(cached), &acc); err == nil {
			return &acc, nil
		}
	}

	acc, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if payload, err := json.Marshal(acc); err == nil {
		if err := s.redisClient.Set(ctx, cacheKey, string(payload), balanceCacheTTL); err != nil {
			slog.Warn("failed to cache balance", "account_id", accountID, "error", err)
		}
	}
	return acc, nil
}

func (s *WalletService) History(ctx context.Context, callerID, accountID string, limit int, cursor string) ([]models.TransactionRecord, string, error) {
	if callerID != accountID {
		return nil, "", pkgerrors.ErrPermissionDenied
	}
	return s.ledger.History(ctx, accountID, limit, cursor)
}

func (s *WalletService) Deposit(ctx context.Context, callerID string, req DepositRequest) (*TransactionResult, error) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "Deposit")
	defer span.End()

	if callerID != req.AccountID {
		return nil, pkgerrors.ErrPermissionDenied
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", pkgerrors.ErrInvalidArgument)
	}

	var cached TransactionResult
	key, replayed, err := s.requests.begin(ctx, req.IdempotencyKey, &cached)
	if err != nil {
		return nil, err
	}
	if replayed {
		return &cached, nil
	}

	if _, err := s.accounts.Ensure(ctx, req.AccountID, s.defaultCurrency); err != nil {
		s.requests.fail(ctx, key)
		return nil, err
	}
	acc, err := s.accounts.GetByID(ctx, req.AccountID)
	if err != nil {
		s.requests.fail(ctx, key)
		return nil, err
	}

	newBalance, _, err := s.accounts.AdjustBalance(ctx, req.AccountID, req.Amount, 0)
	if err != nil {
		s.requests.fail(ctx, key)
		span.RecordError(err)
		return nil, err
	}

	rec := &models.TransactionRecord{
		ID:              uuid.NewString(),
		AccountID:       req.AccountID,
		Kind:            models.KindDeposit,
		Amount:          req.Amount,
		Currency:        acc.Currency,
		PreviousBalance: newBalance - req.Amount,
		NewBalance:      newBalance,
		Status:          models.StatusCompleted,
		Description:     req.Description,
		Method:          req.Method,
	}
	s.appendRecord(ctx, rec)

	result := &TransactionResult{TransactionID: rec.ID, NewBalance: newBalance, Status: models.StatusCompleted}
	s.requests.finish(ctx, key, result)
	s.invalidateBalance(ctx, req.AccountID)
	s.notifier.Notify(ctx, models.Notification{
		Kind:          models.NotifyTransaction,
		AccountID:     req.AccountID,
		Amount:        req.Amount,
		Currency:      acc.Currency,
		TransactionID: rec.ID,
		Message:       fmt.Sprintf("Deposit of %d %s completed", req.Amount, acc.Currency),
	})

	slog.Info("deposit completed", "account_id", req.AccountID, "amount", req.Amount, "transaction_id", rec.ID)
	return result, nil
}

// routedMethod reports whether the withdrawal settles out of band via
// an external provider, leaving the record pending until the provider
// reports back.
func routedMethod(method string) bool {
	switch method {
	case "mobile_money", "bank_agent", "card":
		return true
	}
	return false
}

func (s *WalletService) Withdraw(ctx context.Context, callerID string, req WithdrawRequest) (*TransactionResult, error) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "Withdraw")
	defer span.End()

	if callerID != req.AccountID {
		return nil, pkgerrors.ErrPermissionDenied
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", pkgerrors.ErrInvalidArgument)
	}

	var cached TransactionResult
	key, replayed, err := s.requests.begin(ctx, req.IdempotencyKey, &cached)
	if err != nil {
		return nil, err
	}
	if replayed {
		return &cached, nil
	}

	acc, err := s.accounts.GetByID(ctx, req.AccountID)
	if err != nil {
		s.requests.fail(ctx, key)
		return nil, err
	}

	newBalance, err := s.debit(ctx, req.AccountID, req.Amount)
	if err != nil {
		s.requests.fail(ctx, key)
		span.RecordError(err)
		if stderrors.Is(err, pkgerrors.ErrInsufficientFunds) {
			s.notifier.Notify(ctx, models.Notification{
				Kind:      models.NotifyInsufficientFunds,
				AccountID: req.AccountID,
				Amount:    req.Amount,
				Currency:  acc.Currency,
				Message:   fmt.Sprintf("Withdrawal of %d %s failed: insufficient funds", req.Amount, acc.Currency),
			})
		}
		return nil, err
	}

	status := models.StatusCompleted
	if routedMethod(req.Method) {
		status = models.StatusPending
	}
	rec := &models.TransactionRecord{
		ID:              uuid.NewString(),
		AccountID:       req.AccountID,
		Kind:            models.KindWithdrawal,
		Amount:          req.Amount,
		Currency:        acc.Currency,
		PreviousBalance: newBalance + req.Amount,
		NewBalance:      newBalance,
		Status:          status,
		Description:     req.Description,
		Method:          req.Method,
	}
	s.appendRecord(ctx, rec)

	result := &TransactionResult{TransactionID: rec.ID, NewBalance: newBalance, Status: status}
	s.requests.finish(ctx, key, result)
	s.invalidateBalance(ctx, req.AccountID)
	s.notifier.Notify(ctx, models.Notification{
		Kind:          models.NotifyTransaction,
		AccountID:     req.AccountID,
		Amount:        req.Amount,
		Currency:      acc.Currency,
		TransactionID: rec.ID,
		Message:       fmt.Sprintf("Withdrawal of %d %s %s", req.Amount, acc.Currency, status),
	})

	slog.Info("withdrawal recorded", "account_id", req.AccountID, "amount", req.Amount, "status", status, "transaction_id", rec.ID)
	return result, nil
}

// Transfer runs the full engine: validate, resolve, convert, commit
// the debit/credit pair, append the linked ledger records, notify.
// The debit and credit are a compensating pair; a credit failure rolls
// the money back before the caller sees an error.
func (s *WalletService) Transfer(ctx context.Context, callerID string, req TransferRequest) (*TransferResult, error) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "Transfer")
	defer span.End()

	result, err := s.transfer(ctx, callerID, req)
	outcome := "completed"
	if err != nil {
		outcome = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	observability.TransfersTotal.WithLabelValues(outcome).Inc()
	return result, err
}

func (s *WalletService) transfer(ctx context.Context, callerID string, req TransferRequest) (*TransferResult, error) {
	// Validating
	if callerID != req.SenderAccountID {
		return nil, pkgerrors.ErrPermissionDenied
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", pkgerrors.ErrInvalidArgument)
	}

	var cached TransferResult
	key, replayed, err := s.requests.begin(ctx, req.IdempotencyKey, &cached)
	if err != nil {
		return nil, err
	}
	if replayed {
		return &cached, nil
	}

	// Resolving
	recipientID, err := s.resolver.Resolve(ctx, req.Method, req.Recipient)
	if err != nil {
		s.requests.fail(ctx, key)
		return nil, err
	}
	if recipientID == req.SenderAccountID {
		s.requests.fail(ctx, key)
		return nil, pkgerrors.ErrSelfTransferNotAllowed
	}

	sender, err := s.accounts.GetByID(ctx, req.SenderAccountID)
	if err != nil {
		s.requests.fail(ctx, key)
		return nil, err
	}
	recipientCurrency := s.defaultCurrency
	if recipientUser, err := s.users.GetByID(ctx, recipientID); err == nil && recipientUser.Currency != "" {
		recipientCurrency = recipientUser.Currency
	}
	recipient, err := s.accounts.Ensure(ctx, recipientID, recipientCurrency)
	if err != nil {
		s.requests.fail(ctx, key)
		return nil, err
	}

	// Converting: aborts before any balance mutation on rate failure.
	converted, rateMicros, err := s.converter.Convert(ctx, req.Amount, sender.Currency, recipient.Currency)
	if err != nil {
		s.requests.fail(ctx, key)
		return nil, err
	}
	if converted <= 0 {
		s.requests.fail(ctx, key)
		return nil, fmt.Errorf("%w: converted amount rounds to zero", pkgerrors.ErrInvalidArgument)
	}

	// Committing: the caller may give up mid-flight, but once money
	// starts moving the debit, credit and any compensation must all run
	// to completion or the sender stays debited with no trace.
	ctx = context.WithoutCancel(ctx)

	senderBalance, err := s.debit(ctx, req.SenderAccountID, req.Amount)
	if err != nil {
		s.requests.fail(ctx, key)
		return nil, err
	}

	senderRecID := uuid.NewString()
	recipientRecID := uuid.NewString()

	recipientBalance, _, err := s.accounts.AdjustBalance(ctx, recipientID, converted, 0)
	if err != nil {
		// Compensating credit: the sender must never stay debited
		// without a matching credit.
		compBalance, compErr := s.compensate(ctx, req.SenderAccountID, req.Amount)
		s.appendRecord(ctx, &models.TransactionRecord{
			ID:                    senderRecID,
			AccountID:             req.SenderAccountID,
			Kind:                  models.KindTransferSent,
			Amount:                req.Amount,
			Currency:              sender.Currency,
			CounterpartyAccountID: recipientID,
			PreviousBalance:       senderBalance + req.Amount,
			NewBalance:            senderBalance,
			Status:                models.StatusFailed,
			Description:           req.Description,
			ExchangeRateMicros:    rateMicros,
			RelatedTransactionID:  recipientRecID,
		})
		s.appendRecord(ctx, &models.TransactionRecord{
			ID:                    recipientRecID,
			AccountID:             recipientID,
			Kind:                  models.KindTransferReceived,
			Amount:                converted,
			Currency:              recipient.Currency,
			CounterpartyAccountID: req.SenderAccountID,
			PreviousBalance:       recipient.Balance,
			NewBalance:            recipient.Balance,
			Status:                models.StatusFailed,
			Description:           req.Description,
			ExchangeRateMicros:    rateMicros,
			RelatedTransactionID:  senderRecID,
		})
		if compErr == nil {
			s.appendRecord(ctx, &models.TransactionRecord{
				AccountID:            req.SenderAccountID,
				Kind:                 models.KindRefund,
				Amount:               req.Amount,
				Currency:             sender.Currency,
				PreviousBalance:      compBalance - req.Amount,
				NewBalance:           compBalance,
				Status:               models.StatusCompleted,
				Description:          "compensation for failed transfer",
				RelatedTransactionID: senderRecID,
			})
		}
		s.requests.fail(ctx, key)
		s.invalidateBalance(ctx, req.SenderAccountID)
		slog.Error("transfer credit failed, sender compensated",
			"sender", req.SenderAccountID, "recipient", recipientID, "error", err)
		return nil, fmt.Errorf("%w: transfer could not be completed", pkgerrors.ErrInternal)
	}

	s.appendRecord(ctx, &models.TransactionRecord{
		ID:                    senderRecID,
		AccountID:             req.SenderAccountID,
		Kind:                  models.KindTransferSent,
		Amount:                req.Amount,
		Currency:              sender.Currency,
		CounterpartyAccountID: recipientID,
		PreviousBalance:       senderBalance + req.Amount,
		NewBalance:            senderBalance,
		Status:                models.StatusCompleted,
		Description:           req.Description,
		Method:                string(req.Method),
		ExchangeRateMicros:    rateMicros,
		RelatedTransactionID:  recipientRecID,
	})
	s.appendRecord(ctx, &models.TransactionRecord{
		ID:                    recipientRecID,
		AccountID:             recipientID,
		Kind:                  models.KindTransferReceived,
		Amount:                converted,
		Currency:              recipient.Currency,
		CounterpartyAccountID: req.SenderAccountID,
		PreviousBalance:       recipientBalance - converted,
		NewBalance:            recipientBalance,
		Status:                models.StatusCompleted,
		Description:           req.Description,
		Method:                string(req.Method),
		ExchangeRateMicros:    rateMicros,
		RelatedTransactionID:  senderRecID,
	})

	result := &TransferResult{
		SenderTransactionID:    senderRecID,
		RecipientTransactionID: recipientRecID,
		SenderBalance:          senderBalance,
		AmountDebited:          req.Amount,
		AmountCredited:         converted,
		SenderCurrency:         sender.Currency,
		RecipientCurrency:      recipient.Currency,
		ExchangeRateMicros:     rateMicros,
	}
	s.requests.finish(ctx, key, result)
	s.invalidateBalance(ctx, req.SenderAccountID)
	s.invalidateBalance(ctx, recipientID)

	// Completed: notification failure does not roll back the transfer.
	s.notifier.Notify(ctx, models.Notification{
		Kind:          models.NotifyTransaction,
		AccountID:     req.SenderAccountID,
		Amount:        req.Amount,
		Currency:      sender.Currency,
		TransactionID: senderRecID,
		Message:       fmt.Sprintf("You sent %d %s", req.Amount, sender.Currency),
	})
	s.notifier.Notify(ctx, models.Notification{
		Kind:          models.NotifyTransaction,
		AccountID:     recipientID,
		Amount:        converted,
		Currency:      recipient.Currency,
		TransactionID: recipientRecID,
		Message:       fmt.Sprintf("You received %d %s", converted, recipient.Currency),
	})

	slog.Info("transfer completed",
		"sender", req.SenderAccountID,
		"recipient", recipientID,
		"amount", req.Amount,
		"converted", converted,
		"rate_micros", rateMicros)
	return result, nil
}

// SettleWithdrawal finalizes a pending routed withdrawal from a
// provider callback. A failed settlement credits the money back and
// logs the compensation as its own record.
func (s *WalletService) SettleWithdrawal(ctx context.Context, transactionID string, success bool, reason string) error {
	rec, err := s.ledger.GetByID(ctx, transactionID)
	if err != nil {
		return err
	}
	if rec.Kind != models.KindWithdrawal || rec.Status != models.StatusPending {
		return fmt.Errorf("%w: transaction %s is not a pending withdrawal", pkgerrors.ErrInvalidArgument, transactionID)
	}

	if success {
		if err := s.ledger.UpdateStatus(ctx, transactionID, models.StatusCompleted); err != nil {
			return err
		}
		s.notifier.Notify(ctx, models.Notification{
			Kind:          models.NotifyWithdrawalSettled,
			AccountID:     rec.AccountID,
			Amount:        rec.Amount,
			Currency:      rec.Currency,
			TransactionID: rec.ID,
			Message:       fmt.Sprintf("Withdrawal of %d %s settled", rec.Amount, rec.Currency),
		})
		return nil
	}

	if err := s.ledger.UpdateStatus(ctx, transactionID, models.StatusFailed); err != nil {
		return err
	}
	newBalance, err := s.compensate(ctx, rec.AccountID, rec.Amount)
	if err != nil {
		slog.Error("failed to compensate failed withdrawal", "transaction_id", transactionID, "error", err)
		return err
	}
	s.appendRecord(ctx, &models.TransactionRecord{
		AccountID:            rec.AccountID,
		Kind:                 models.KindRefund,
		Amount:               rec.Amount,
		Currency:             rec.Currency,
		PreviousBalance:      newBalance - rec.Amount,
		NewBalance:           newBalance,
		Status:               models.StatusCompleted,
		Description:          fmt.Sprintf("refund for failed withdrawal: %s", reason),
		RelatedTransactionID: rec.ID,
	})
	s.invalidateBalance(ctx, rec.AccountID)
	s.notifier.Notify(ctx, models.Notification{
		Kind:          models.NotifyWithdrawalFailed,
		AccountID:     rec.AccountID,
		Amount:        rec.Amount,
		Currency:      rec.Currency,
		TransactionID: rec.ID,
		Message:       fmt.Sprintf("Withdrawal of %d %s failed and was refunded", rec.Amount, rec.Currency),
	})
	return nil
}

// debit takes money out. A pure delta needs no version guard: the
// store's conditional update is the serialization boundary and two
// concurrent debits can never both pass the non-negative check.
// Transient version conflicts are retried a bounded number of times
// and then reported as internal, never as a business rejection.
func (s *WalletService) debit(ctx context.Context, accountID string, amount int64) (int64, error) {
	var newBalance int64
	var err error
	for attempt := 0; attempt < adjustRetries; attempt++ {
		newBalance, _, err = s.accounts.AdjustBalance(ctx, accountID, -amount, 0)
		if !stderrors.Is(err, pkgerrors.ErrVersionConflict) {
			return newBalance, err
		}
	}
	return 0, fmt.Errorf("%w: balance adjustment kept conflicting", pkgerrors.ErrInternal)
}

// compensate credits money back unconditionally. A pure credit cannot
// fail the non-negative check, so no version guard is needed. The
// credit runs detached from the caller's context: compensation must
// not be lost to a cancellation or timeout.
func (s *WalletService) compensate(ctx context.Context, accountID string, amount int64) (int64, error) {
	newBalance, _, err := s.accounts.AdjustBalance(context.WithoutCancel(ctx), accountID, amount, 0)
	return newBalance, err
}

// appendRecord writes a ledger entry after a committed mutation. The
// balance change is already durable at this point, so an append error
// is logged loudly instead of failing the whole operation.
func (s *WalletService) appendRecord(ctx context.Context, rec *models.TransactionRecord) {
	if _, err := s.ledger.Append(context.WithoutCancel(ctx), rec); err != nil {
		slog.Error("failed to append ledger record",
			"account_id", rec.AccountID, "kind", rec.Kind, "amount", rec.Amount, "error", err)
	}
}

func (s *WalletService) invalidateBalance(ctx context.Context, accountID string) {
	if err := s.redisClient.Del(context.WithoutCancel(ctx), fmt.Sprintf("account:%s:balance", accountID)); err != nil {
		slog.Warn("failed to invalidate balance cache", "account_id", accountID, "error", err)
	}
}
