package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/mkasongo/kembo-wallet/internal/infrastructure/kafka"
	"github.com/mkasongo/kembo-wallet/internal/models"
)

// Notifier emits user-facing events. Implementations must never block
// the mutation path and their failures are non-fatal by contract.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

const notificationsTopic = "notifications"

// KafkaNotifier publishes notifications to the delivery pipeline. The
// send happens on its own goroutine with a bounded retry, detached from
// the caller's context so a finished request does not cancel delivery.
type KafkaNotifier struct {
	producer kafka.KafkaProducer
}

func NewKafkaNotifier(producer kafka.KafkaProducer) *KafkaNotifier {
	return &KafkaNotifier{producer: producer}
}

func (n *KafkaNotifier) Notify(ctx context.Context, notification models.Notification) {
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(notification)
	if err != nil {
		slog.Error("failed to marshal notification", "kind", notification.Kind, "account_id", notification.AccountID, "error", err)
		return
	}

	go func() {
		retries := 3
		for i := 0; i < retries; i++ {
			if err := n.producer.Send(context.Background(), notificationsTopic, notification.AccountID, payload); err == nil {
				return
			}
			time.Sleep(time.Second * time.Duration(i+1))
		}
		slog.Error("failed to send notification after retries",
			"kind", notification.Kind,
			"account_id", notification.AccountID)
	}()
}
