// Package worker relays audit outbox rows to the message broker.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// OutboxEntry is one unpublished row of the outbox table.
type OutboxEntry struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStore reads and acknowledges outbox rows.
type OutboxStore interface {
	FetchUnpublished(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, ids []string) error
}

// Producer publishes a keyed message to a topic.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// Relay polls the outbox and publishes rows in creation order. A row is
// marked published only after the broker acknowledged it, so delivery is
// at-least-once.
type Relay struct {
	store     OutboxStore
	producer  Producer
	topic     string
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

func NewRelay(store OutboxStore, producer Producer, topic string, logger *slog.Logger) *Relay {
	return &Relay{
		store:     store,
		producer:  producer,
		topic:     topic,
		interval:  time.Second,
		batchSize: 100,
		logger:    logger,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil {
				r.logger.WarnContext(ctx, "outbox relay pass failed", "error", err)
			}
		}
	}
}

// RelayOnce publishes one batch and returns how many rows were acknowledged.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	entries, err := r.store.FetchUnpublished(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	published := make([]string, 0, len(entries))
	for _, e := range entries {
		if err := r.producer.Produce(ctx, r.topic, []byte(e.AggregateID), e.Payload); err != nil {
			// stop at the first failure to keep per-aggregate order
			break
		}
		published = append(published, e.ID)
	}
	if len(published) == 0 {
		return 0, nil
	}
	if err := r.store.MarkPublished(ctx, published); err != nil {
		return 0, err
	}
	return len(published), nil
}
