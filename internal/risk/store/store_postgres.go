package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tradeledger/internal/risk/models"
	id "tradeledger/pkg/domain"
	"tradeledger/pkg/platform/sentinel"
	txcontext "tradeledger/pkg/platform/tx"
)

// PostgresStore persists current scores and their history.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, score *models.Score) error {
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO risk_scores (user_id, score, category, rationale, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			score = EXCLUDED.score,
			category = EXCLUDED.category,
			rationale = EXCLUDED.rationale,
			last_updated = EXCLUDED.last_updated
	`, score.UserID, score.Score, string(score.Category), score.Rationale, score.LastUpdated)
	if err != nil {
		return fmt.Errorf("upsert risk score: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetByUser(ctx context.Context, userID id.UserID) (*models.Score, error) {
	row := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		SELECT user_id, score, category, rationale, last_updated
		FROM risk_scores WHERE user_id = $1
	`, userID)
	score, err := scanScore(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get risk score: %w", err)
	}
	return score, nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]*models.Score, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT user_id, score, category, rationale, last_updated
		FROM risk_scores ORDER BY score DESC, user_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list risk scores: %w", err)
	}
	defer rows.Close()

	var out []*models.Score
	for rows.Next() {
		score, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("scan risk score: %w", err)
		}
		out = append(out, score)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AppendHistory(ctx context.Context, record *models.HistoryRecord) error {
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO risk_score_history (id, user_id, score, category, rationale, trigger_reason, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, record.ID, record.UserID, record.Score, string(record.Category), record.Rationale,
		string(record.Trigger), record.RecordedAt)
	if err != nil {
		return fmt.Errorf("append risk history: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListHistory(ctx context.Context, userID id.UserID) ([]*models.HistoryRecord, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT id, user_id, score, category, rationale, trigger_reason, recorded_at
		FROM risk_score_history WHERE user_id = $1
		ORDER BY recorded_at, id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list risk history: %w", err)
	}
	defer rows.Close()

	var out []*models.HistoryRecord
	for rows.Next() {
		var (
			r        models.HistoryRecord
			category string
			trigger  string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.Score, &category, &r.Rationale, &trigger, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan risk history: %w", err)
		}
		r.Category = models.Category(category)
		r.Trigger = models.Trigger(trigger)
		r.RecordedAt = r.RecordedAt.UTC()
		out = append(out, &r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScore(row rowScanner) (*models.Score, error) {
	var (
		score    models.Score
		category string
	)
	if err := row.Scan(&score.UserID, &score.Score, &category, &score.Rationale, &score.LastUpdated); err != nil {
		return nil, err
	}
	score.Category = models.Category(category)
	score.LastUpdated = score.LastUpdated.UTC()
	return &score, nil
}
