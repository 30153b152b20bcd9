package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"tradeledger/internal/document/models"
	id "tradeledger/pkg/domain"
	"tradeledger/pkg/platform/sentinel"
	txcontext "tradeledger/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists documents. All statements join a transaction
// carried in ctx so an upload and its ISSUED entry commit together.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Insert(ctx context.Context, doc *models.Document) error {
	_, err := txcontext.ExecutorFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO documents (id, owner_id, doc_type, doc_number, content_hash, storage_path, issued_at, created_at, transaction_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, doc.ID, doc.OwnerID, string(doc.Type), doc.Number, doc.ContentHash, doc.StoragePath,
		doc.IssuedAt, doc.CreatedAt, nullableTx(doc.TransactionID))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

const selectDocument = `
	SELECT id, owner_id, doc_type, doc_number, content_hash, storage_path, issued_at, created_at, transaction_id
	FROM documents`

func (s *PostgresStore) GetByID(ctx context.Context, documentID id.DocumentID) (*models.Document, error) {
	row := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, selectDocument+` WHERE id = $1`, documentID)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (s *PostgresStore) ListByOwner(ctx context.Context, ownerID id.UserID) ([]*models.Document, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx,
		selectDocument+` WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var out []*models.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) OwnerOf(ctx context.Context, documentID id.DocumentID) (id.UserID, error) {
	var owner id.UserID
	err := txcontext.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT owner_id FROM documents WHERE id = $1`, documentID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return id.UserID{}, sentinel.ErrNotFound
	}
	if err != nil {
		return id.UserID{}, fmt.Errorf("get document owner: %w", err)
	}
	return owner, nil
}

// Discard deletes a document that has no ledger entries yet.
func (s *PostgresStore) Discard(ctx context.Context, documentID id.DocumentID) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM documents d
		WHERE d.id = $1 AND NOT EXISTS (SELECT 1 FROM ledger_entries l WHERE l.document_id = d.id)
	`, documentID)
	if err != nil {
		return fmt.Errorf("discard document: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*models.Document, error) {
	var (
		doc     models.Document
		docType string
		txID    *id.TransactionID
	)
	if err := row.Scan(&doc.ID, &doc.OwnerID, &docType, &doc.Number, &doc.ContentHash,
		&doc.StoragePath, &doc.IssuedAt, &doc.CreatedAt, &txID); err != nil {
		return nil, err
	}
	doc.Type = models.Type(docType)
	doc.TransactionID = txID
	return &doc, nil
}

func nullableTx(txID *id.TransactionID) any {
	if txID == nil {
		return nil
	}
	return *txID
}
