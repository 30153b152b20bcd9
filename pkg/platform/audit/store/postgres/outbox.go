package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"tradeledger/pkg/platform/audit/worker"
)

// FetchUnpublished returns up to limit outbox rows that have not been relayed,
// oldest first.
func (s *Store) FetchUnpublished(ctx context.Context, limit int) ([]worker.OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []worker.OutboxEntry
	for rows.Next() {
		var e worker.OutboxEntry
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkPublished stamps relayed rows in one round trip.
func (s *Store) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET published_at = $2 WHERE id = ANY($1::uuid[])`,
		pq.Array(ids), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}
