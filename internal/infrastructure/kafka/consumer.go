package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/segmentio/kafka-go"
)

// Settler finalizes a pending routed withdrawal once the provider
// reports a result. Implemented by the wallet service.
type Settler interface {
	SettleWithdrawal(ctx context.Context, transactionID string, success bool, reason string) error
}

// SettlementEvent is the message shape produced by mobile-money and
// bank-agent providers on the settlements topic.
type SettlementEvent struct {
	TransactionID string `json:"transaction_id"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
}

type Consumer struct {
	reader  *kafka.Reader
	settler Settler
}

func NewConsumer(brokers []string, topic, groupID string, settler Settler) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  brokers,
			Topic:    topic,
			GroupID:  groupID,
			MinBytes: 10e3,
			MaxBytes: 10e6,
		}),
		settler: settler,
	}
}

func (c *Consumer) Consume(ctx context.Context) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			slog.Error("failed to read Kafka message", "topic", c.reader.Config().Topic, "error", err)
			continue
		}

		var event SettlementEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			slog.Error("failed to unmarshal settlement event", "error", err)
			continue
		}
		if event.TransactionID == "" {
			slog.Error("settlement event missing transaction_id")
			continue
		}

		switch event.Status {
		case "completed", "failed":
		default:
			slog.Error("invalid settlement status", "status", event.Status)
			continue
		}

		if err := c.settler.SettleWithdrawal(ctx, event.TransactionID, event.Status == "completed", event.Reason); err != nil {
			slog.Error("failed to settle withdrawal", "transaction_id", event.TransactionID, "error", err)
			continue
		}

		slog.Info("withdrawal settled", "transaction_id", event.TransactionID, "status", event.Status)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
