package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "tradeledger/pkg/domain"
	audit "tradeledger/pkg/platform/audit"
	txcontext "tradeledger/pkg/platform/tx"
)

// Store implements audit.Store on PostgreSQL. Every event is written to
// audit_events for querying and to the outbox table, from which the outbox
// relay publishes it to Kafka. Both inserts join the caller's transaction
// when one is present in ctx.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// outboxPayload is the JSON structure published to Kafka.
type outboxPayload struct {
	ID          string `json:"id"`
	Timestamp   string `json:"timestamp"`
	ActorID     string `json:"actor_id"`
	ActorRole   string `json:"actor_role"`
	Action      string `json:"action"`
	SubjectType string `json:"subject_type"`
	SubjectID   string `json:"subject_id"`
	From        string `json:"from,omitempty"`
	To          string `json:"to,omitempty"`
	Reason      string `json:"reason,omitempty"`
	RequestID   string `json:"request_id,omitempty"`
}

// Append writes an audit event and its outbox record.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()
	if event.ID != "" {
		parsed, err := uuid.Parse(event.ID)
		if err != nil {
			return fmt.Errorf("parse audit event id: %w", err)
		}
		eventID = parsed
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	exec := txcontext.ExecutorFrom(ctx, s.db)

	_, err := exec.ExecContext(ctx, `
		INSERT INTO audit_events (
			id, timestamp, actor_id, actor_role, action,
			subject_type, subject_id, from_value, to_value, reason, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`,
		eventID,
		event.Timestamp,
		uuid.UUID(event.ActorID),
		string(event.ActorRole),
		string(event.Action),
		event.SubjectType,
		event.SubjectID,
		event.From,
		event.To,
		event.Reason,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	payload, err := json.Marshal(outboxPayload{
		ID:          eventID.String(),
		Timestamp:   event.Timestamp.Format(time.RFC3339Nano),
		ActorID:     event.ActorID.String(),
		ActorRole:   string(event.ActorRole),
		Action:      string(event.Action),
		SubjectType: event.SubjectType,
		SubjectID:   event.SubjectID,
		From:        event.From,
		To:          event.To,
		Reason:      event.Reason,
		RequestID:   event.RequestID,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		uuid.New(),
		event.SubjectType,
		event.SubjectID,
		string(event.Action),
		string(payload),
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListBySubject returns events for one subject, oldest first.
func (s *Store) ListBySubject(ctx context.Context, subjectType, subjectID string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, actor_id, actor_role, action,
			   subject_type, subject_id, from_value, to_value, reason, request_id
		FROM audit_events
		WHERE subject_type = $1 AND subject_id = $2
		ORDER BY timestamp ASC
	`, subjectType, subjectID)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, timestamp, actor_id, actor_role, action,
			   subject_type, subject_id, from_value, to_value, reason, request_id
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event   audit.Event
			eventID uuid.UUID
			actorID uuid.UUID
			role    string
			action  string
		)
		if err := rows.Scan(
			&eventID,
			&event.Timestamp,
			&actorID,
			&role,
			&action,
			&event.SubjectType,
			&event.SubjectID,
			&event.From,
			&event.To,
			&event.Reason,
			&event.RequestID,
		); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.ID = eventID.String()
		event.ActorID = id.UserID(actorID)
		event.ActorRole = id.Role(role)
		event.Action = audit.Action(action)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
