package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"tradeledger/internal/ledger/models"
	id "tradeledger/pkg/domain"
	"tradeledger/pkg/platform/sentinel"
	txcontext "tradeledger/pkg/platform/tx"
)

// PostgresStore persists ledger entries. A trigger on ledger_entries rejects
// UPDATE and DELETE.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Append inserts entry only if its document exists and clamps CreatedAt to the
// document's latest entry. It joins a transaction carried in ctx.
func (s *PostgresStore) Append(ctx context.Context, entry *models.Entry) error {
	meta, err := json.Marshal(nonNil(entry.Metadata))
	if err != nil {
		return fmt.Errorf("marshal ledger metadata: %w", err)
	}
	err = txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO ledger_entries (id, document_id, action, actor_id, metadata, created_at)
		SELECT $1, d.id, $3, $4, $5,
		       GREATEST($6::timestamptz, COALESCE(
		           (SELECT max(created_at) FROM ledger_entries WHERE document_id = $2), $6::timestamptz))
		FROM documents d
		WHERE d.id = $2
		RETURNING seq, created_at
	`, entry.ID, entry.DocumentID, string(entry.Action), entry.ActorID, string(meta), entry.CreatedAt,
	).Scan(&entry.Sequence, &entry.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByDocument(ctx context.Context, documentID id.DocumentID) ([]*models.Entry, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT id, document_id, action, actor_id, metadata, created_at, seq
		FROM ledger_entries
		WHERE document_id = $1
		ORDER BY created_at ASC, seq ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	return scanEntries(rows)
}

func (s *PostgresStore) ListByDocuments(ctx context.Context, documentIDs []id.DocumentID) ([]*models.Entry, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	ids := make([]string, len(documentIDs))
	for i, d := range documentIDs {
		ids[i] = d.String()
	}
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT id, document_id, action, actor_id, metadata, created_at, seq
		FROM ledger_entries
		WHERE document_id = ANY($1::uuid[])
		ORDER BY created_at ASC, seq ASC
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("query ledger entries: %w", err)
	}
	return scanEntries(rows)
}

func scanEntries(rows *sql.Rows) ([]*models.Entry, error) {
	defer rows.Close()
	var out []*models.Entry
	for rows.Next() {
		var (
			e      models.Entry
			action string
			meta   []byte
		)
		if err := rows.Scan(&e.ID, &e.DocumentID, &action, &e.ActorID, &meta, &e.CreatedAt, &e.Sequence); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		e.Action = models.Action(action)
		if err := json.Unmarshal(meta, &e.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal ledger metadata: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger entries: %w", err)
	}
	return out, nil
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
