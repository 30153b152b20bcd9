package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tradeledger/internal/identity/models"
	id "tradeledger/pkg/domain"
	"tradeledger/pkg/platform/sentinel"
	txcontext "tradeledger/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, user *models.User) error {
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO users (id, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET role = EXCLUDED.role, updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`, user.ID, string(user.Role), user.CreatedAt, user.UpdatedAt).Scan(&user.CreatedAt)
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	var (
		user models.User
		role string
	)
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT id, role, created_at, updated_at FROM users WHERE id = $1`, userID,
	).Scan(&user.ID, &role, &user.CreatedAt, &user.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	user.Role = id.Role(role)
	return &user, nil
}

func (s *PostgresStore) GetRole(ctx context.Context, userID id.UserID) (id.Role, error) {
	var role string
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT role FROM users WHERE id = $1`, userID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sentinel.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get role: %w", err)
	}
	return id.Role(role), nil
}
