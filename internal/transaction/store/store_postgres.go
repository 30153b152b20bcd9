package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"tradeledger/internal/transaction/models"
	id "tradeledger/pkg/domain"
	"tradeledger/pkg/platform/sentinel"
	txcontext "tradeledger/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists trade transactions. Execute locks the row with
// SELECT ... FOR UPDATE for the duration of the mutation.
type PostgresStore struct {
	db *sql.DB
	tx *txcontext.Postgres
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, tx: txcontext.NewPostgres(db)}
}

func (s *PostgresStore) Insert(ctx context.Context, tx *models.Transaction) error {
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO trade_transactions (id, buyer_id, seller_id, status, amount, currency, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, tx.ID, tx.BuyerID, tx.SellerID, string(tx.Status), decimal.NullDecimal{Decimal: amountOrZero(tx), Valid: tx.Amount != nil},
		tx.Currency, tx.Description, tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

const selectTransaction = `
	SELECT id, buyer_id, seller_id, status, amount, currency, description, created_at, updated_at
	FROM trade_transactions`

func (s *PostgresStore) GetByID(ctx context.Context, transactionID id.TransactionID) (*models.Transaction, error) {
	return s.get(ctx, selectTransaction+` WHERE id = $1`, transactionID)
}

func (s *PostgresStore) ListForUser(ctx context.Context, userID id.UserID) ([]*models.Transaction, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx,
		selectTransaction+` WHERE buyer_id = $1 OR seller_id = $1 ORDER BY created_at DESC, id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Parties(ctx context.Context, transactionID id.TransactionID) (id.UserID, id.UserID, error) {
	var buyer, seller id.UserID
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT buyer_id, seller_id FROM trade_transactions WHERE id = $1`, transactionID).Scan(&buyer, &seller)
	if errors.Is(err, sql.ErrNoRows) {
		return id.UserID{}, id.UserID{}, sentinel.ErrNotFound
	}
	if err != nil {
		return id.UserID{}, id.UserID{}, fmt.Errorf("get transaction parties: %w", err)
	}
	return buyer, seller, nil
}

// Execute runs fn against the row locked FOR UPDATE and writes back the new
// status and updated_at. It joins a transaction already carried in ctx.
func (s *PostgresStore) Execute(ctx context.Context, transactionID id.TransactionID, fn func(tx *models.Transaction) error) (*models.Transaction, error) {
	var out *models.Transaction
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		current, err := s.get(ctx, selectTransaction+` WHERE id = $1 FOR UPDATE`, transactionID)
		if err != nil {
			return err
		}
		if err := fn(current); err != nil {
			return err
		}
		if _, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx,
			`UPDATE trade_transactions SET status = $2, updated_at = $3 WHERE id = $1`,
			transactionID, string(current.Status), current.UpdatedAt); err != nil {
			return fmt.Errorf("update transaction status: %w", err)
		}
		out = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) get(ctx context.Context, query string, args ...any) (*models.Transaction, error) {
	row := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, args...)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		tx     models.Transaction
		status string
		amount decimal.NullDecimal
	)
	if err := row.Scan(&tx.ID, &tx.BuyerID, &tx.SellerID, &status, &amount,
		&tx.Currency, &tx.Description, &tx.CreatedAt, &tx.UpdatedAt); err != nil {
		return nil, err
	}
	tx.Status = models.Status(status)
	if amount.Valid {
		tx.Amount = &amount.Decimal
	}
	tx.CreatedAt = tx.CreatedAt.UTC()
	tx.UpdatedAt = tx.UpdatedAt.UTC()
	return &tx, nil
}

func amountOrZero(tx *models.Transaction) decimal.Decimal {
	if tx.Amount == nil {
		return decimal.Zero
	}
	return *tx.Amount
}
