package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mkasongo/kembo-wallet/internal/models"
	"github.com/mkasongo/kembo-wallet/internal/repository"
	"go.opentelemetry.io/otel"
)

const stalePendingBatch = 100

// Reconciler sweeps pending records that outlived the settlement bound.
// A stale debit means money left the account and nothing ever settled:
// the sweep fails the record and credits the money back. Stale credits
// only need the status flipped.
type Reconciler struct {
	accounts     repository.AccountRepository
	ledger       repository.LedgerRepository
	notifier     Notifier
	pendingBound time.Duration
	now          func() time.Time
}

func NewReconciler(
	accounts repository.AccountRepository,
	ledger repository.LedgerRepository,
	notifier Notifier,
	pendingBound time.Duration,
) *Reconciler {
	return &Reconciler{
		accounts:     accounts,
		ledger:       ledger,
		notifier:     notifier,
		pendingBound: pendingBound,
		now:          time.Now,
	}
}

func (r *Reconciler) Run(ctx context.Context) {
	tracer := otel.Tracer("wallet-service")
	ctx, span := tracer.Start(ctx, "Reconcile")
	defer span.End()

	bound := r.now().UTC().Add(-r.pendingBound)
	records, err := r.ledger.ListStalePending(ctx, bound, stalePendingBatch)
	if err != nil {
		slog.Error("failed to list stale pending records", "error", err)
		return
	}

	for i := range records {
		rec := records[i]
		if err := r.reconcile(ctx, &rec); err != nil {
			slog.Error("failed to reconcile record", "transaction_id", rec.ID, "error", err)
		}
	}
	if len(records) > 0 {
		slog.Info("reconciliation sweep finished", "records", len(records))
	}
}

func (r *Reconciler) reconcile(ctx context.Context, rec *models.TransactionRecord) error {
	// UpdateStatus is guarded on pending, so a settlement racing the
	// sweep wins and this call fails without double-handling.
	if err := r.ledger.UpdateStatus(ctx, rec.ID, models.StatusFailed); err != nil {
		return err
	}

	if rec.Kind.Direction() > 0 {
		return nil
	}

	newBalance, _, err := r.accounts.AdjustBalance(ctx, rec.AccountID, rec.Amount, 0)
	if err != nil {
		return err
	}
	refund := &models.TransactionRecord{
		AccountID:            rec.AccountID,
		Kind:                 models.KindRefund,
		Amount:               rec.Amount,
		Currency:             rec.Currency,
		PreviousBalance:      newBalance - rec.Amount,
		NewBalance:           newBalance,
		Status:               models.StatusCompleted,
		Description:          "refund for expired pending transaction",
		RelatedTransactionID: rec.ID,
	}
	if _, err := r.ledger.Append(ctx, refund); err != nil {
		slog.Error("failed to append reconciliation refund", "transaction_id", rec.ID, "error", err)
	}

	r.notifier.Notify(ctx, models.Notification{
		Kind:          models.NotifyWithdrawalFailed,
		AccountID:     rec.AccountID,
		Amount:        rec.Amount,
		Currency:      rec.Currency,
		TransactionID: rec.ID,
		Message:       fmt.Sprintf("Pending transaction of %d %s expired and was refunded", rec.Amount, rec.Currency),
	})

	slog.Warn("stale pending transaction refunded", "transaction_id", rec.ID, "amount", rec.Amount)
	return nil
}
