// Package events publishes storefront domain events for downstream
// consumers (analytics, fulfillment projections).
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const ordersTopic = "order-events"

// OrderPlaced is emitted once per fully successful submission, after every
// cart line has a durable order record.
type OrderPlaced struct {
	SubmissionID string    `json:"submission_id"`
	UserID       int64     `json:"user_id"`
	OrderIDs     []int64   `json:"order_ids"`
	TotalCents   int64     `json:"total_cents"`
	Currency     string    `json:"currency"`
	PlacedAt     time.Time `json:"placed_at"`
}

type Publisher struct {
	writer *kafka.Writer
	log    *slog.Logger
}

// NewPublisher returns nil when no brokers are configured; a nil Publisher
// is a no-op sink.
func NewPublisher(log *slog.Logger, brokers ...string) *Publisher {
	if len(brokers) == 0 {
		return nil
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  ordersTopic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	return &Publisher{writer: w, log: log}
}

func (p *Publisher) OrdersPlaced(ctx context.Context, ev OrderPlaced) error {
	if p == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.SubmissionID),
		Value: payload,
	})
	if err != nil {
		p.log.Error("failed to publish order event", "submission_id", ev.SubmissionID, "error", err)
		return err
	}
	return nil
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if err := p.writer.Close(); err != nil {
		p.log.Error("failed to close kafka writer", "error", err)
	}
}
