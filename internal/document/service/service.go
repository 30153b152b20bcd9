// Package service uploads trade documents and verifies their stored content
// against the hash recorded at upload.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"tradeledger/internal/document/metrics"
	"tradeledger/internal/document/models"
	"tradeledger/internal/integrity"
	ledgermodels "tradeledger/internal/ledger/models"
	riskmodels "tradeledger/internal/risk/models"
	id "tradeledger/pkg/domain"
	dErrors "tradeledger/pkg/domain-errors"
	"tradeledger/pkg/platform/sentinel"
	txcontext "tradeledger/pkg/platform/tx"
	"tradeledger/pkg/requestcontext"
)

// MaxContentBytes bounds a single upload.
const MaxContentBytes = 10 << 20

type Store interface {
	Insert(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, documentID id.DocumentID) (*models.Document, error)
	ListByOwner(ctx context.Context, ownerID id.UserID) ([]*models.Document, error)
	Discard(ctx context.Context, documentID id.DocumentID) error
}

type BlobStore interface {
	Write(ctx context.Context, path string, data []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

type LedgerAppender interface {
	Append(ctx context.Context, documentID id.DocumentID, action ledgermodels.Action, actorID id.UserID, metadata map[string]string) (*ledgermodels.Entry, error)
}

type RoleProvider interface {
	GetRole(ctx context.Context, userID id.UserID) (id.Role, error)
}

// Dispatcher requests asynchronous risk recalculation. It never blocks.
type Dispatcher interface {
	Dispatch(ctx context.Context, trigger riskmodels.Trigger, userIDs ...id.UserID)
}

// TxRunner groups the document insert and its ISSUED entry.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// TransactionParties resolves the buyer and seller of a trade transaction.
type TransactionParties interface {
	Parties(ctx context.Context, transactionID id.TransactionID) (buyer, seller id.UserID, err error)
}

type Service struct {
	store        Store
	blobs        BlobStore
	ledger       LedgerAppender
	roles        RoleProvider
	tx           TxRunner
	dispatcher   Dispatcher
	transactions TransactionParties
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTxRunner(tx TxRunner) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) {
		s.dispatcher = d
	}
}

// WithTransactions enables linking uploads to a trade transaction.
func WithTransactions(t TransactionParties) Option {
	return func(s *Service) {
		s.transactions = t
	}
}

func New(store Store, blobs BlobStore, ledger LedgerAppender, roles RoleProvider, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("document store is required")
	}
	if blobs == nil {
		return nil, errors.New("blob store is required")
	}
	if ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if roles == nil {
		return nil, errors.New("role provider is required")
	}
	s := &Service{
		store:      store,
		blobs:      blobs,
		ledger:     ledger,
		roles:      roles,
		tx:         txcontext.Passthrough{},
		dispatcher: noopDispatcher{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// UploadInput describes a new document.
type UploadInput struct {
	Type          models.Type
	Number        string
	IssuedAt      time.Time
	TransactionID *id.TransactionID
	Content       []byte
}

// Upload hashes and stores content, inserts the document and records ISSUED.
// The insert and the ledger entry succeed or fail together; on failure the
// stored blob is removed.
func (s *Service) Upload(ctx context.Context, actorID id.UserID, in UploadInput) (*models.Document, error) {
	requestID := requestcontext.RequestID(ctx)

	if err := s.requireRole(ctx, actorID, id.RoleCorporate, id.RoleBank, id.RoleAdmin); err != nil {
		return nil, err
	}
	docType, err := validateUpload(in)
	if err != nil {
		return nil, err
	}
	if in.TransactionID != nil {
		if err := s.checkTransactionParty(ctx, actorID, *in.TransactionID); err != nil {
			return nil, err
		}
	}

	now := requestcontext.Now(ctx).UTC()
	doc := &models.Document{
		ID:            id.NewDocumentID(),
		OwnerID:       actorID,
		Type:          docType,
		Number:        strings.TrimSpace(in.Number),
		ContentHash:   integrity.Compute(in.Content),
		IssuedAt:      in.IssuedAt.UTC(),
		CreatedAt:     now,
		TransactionID: in.TransactionID,
	}
	if doc.IssuedAt.IsZero() {
		doc.IssuedAt = now
	}
	doc.StoragePath = models.StoragePathFor(doc.OwnerID, doc.ID)

	if err := s.blobs.Write(ctx, doc.StoragePath, in.Content); err != nil {
		s.logger.ErrorContext(ctx, "document blob write failed",
			"request_id", requestID,
			"document_id", doc.ID,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to store document content")
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Insert(ctx, doc); err != nil {
			return dErrors.Wrap(err, dErrors.CodeStorage, "failed to save document")
		}
		_, err := s.ledger.Append(ctx, doc.ID, ledgermodels.ActionIssued, actorID, map[string]string{
			"content_hash": doc.ContentHash,
			"doc_type":     string(doc.Type),
			"doc_number":   doc.Number,
		})
		return err
	})
	if err != nil {
		s.compensateUpload(ctx, doc)
		s.logger.ErrorContext(ctx, "document upload failed",
			"request_id", requestID,
			"document_id", doc.ID,
			"error", err,
		)
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to save document")
		}
		return nil, err
	}

	s.metrics.ObserveUpload(string(doc.Type), len(in.Content))
	s.logger.InfoContext(ctx, "document uploaded",
		"request_id", requestID,
		"document_id", doc.ID,
		"owner_id", doc.OwnerID,
		"doc_type", doc.Type,
	)
	return doc, nil
}

// compensateUpload undoes a partially written upload. The Postgres runner has
// already rolled back the row, so Discard is a no-op there.
func (s *Service) compensateUpload(ctx context.Context, doc *models.Document) {
	s.metrics.IncrementRollback()
	ctx = requestcontext.Detach(ctx)
	if err := s.store.Discard(ctx, doc.ID); err != nil {
		s.logger.ErrorContext(ctx, "failed to discard document after failed upload",
			"document_id", doc.ID,
			"error", err,
		)
	}
	if err := s.blobs.Delete(ctx, doc.StoragePath); err != nil {
		s.logger.WarnContext(ctx, "failed to delete orphaned blob",
			"document_id", doc.ID,
			"path", doc.StoragePath,
			"error", err,
		)
	}
}

// Get returns a document to its owner or to a bank, auditor or admin.
func (s *Service) Get(ctx context.Context, actorID id.UserID, documentID id.DocumentID) (*models.Document, error) {
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID == actorID {
		return doc, nil
	}
	if err := s.requireRole(ctx, actorID, id.RoleBank, id.RoleAuditor, id.RoleAdmin); err != nil {
		return nil, err
	}
	return doc, nil
}

// Verify re-hashes the stored content and records the outcome as a VERIFIED
// ledger entry, then requests a risk recalculation for the owner. A mismatch
// is a normal result. A blob read failure is returned as a storage error and
// nothing is recorded.
func (s *Service) Verify(ctx context.Context, actorID id.UserID, documentID id.DocumentID) (*models.VerificationResult, error) {
	requestID := requestcontext.RequestID(ctx)

	if err := s.requireRole(ctx, actorID, id.RoleAuditor, id.RoleAdmin); err != nil {
		return nil, err
	}
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}

	check, err := integrity.VerifyBlob(ctx, s.blobs, doc.ContentHash, doc.StoragePath)
	if err != nil {
		s.metrics.IncrementVerification("error")
		s.logger.ErrorContext(ctx, "document content unavailable for verification",
			"request_id", requestID,
			"document_id", documentID,
			"error", err,
		)
		return nil, err
	}

	result := ledgermodels.ResultPass
	if !check.Verified {
		result = ledgermodels.ResultFail
	}
	if _, err := s.ledger.Append(ctx, doc.ID, ledgermodels.ActionVerified, actorID, map[string]string{
		ledgermodels.MetaResult:         result,
		ledgermodels.MetaVerified:       strconv.FormatBool(check.Verified),
		ledgermodels.MetaStoredHash:     check.StoredHash,
		ledgermodels.MetaRecomputedHash: check.RecomputedHash,
	}); err != nil {
		return nil, err
	}

	s.metrics.IncrementVerification(strings.ToLower(result))
	if !check.Verified {
		s.logger.WarnContext(ctx, "document integrity mismatch",
			"request_id", requestID,
			"document_id", documentID,
			"owner_id", doc.OwnerID,
		)
	}

	s.dispatcher.Dispatch(ctx, riskmodels.TriggerVerification, doc.OwnerID)

	return &models.VerificationResult{
		DocumentID:     doc.ID,
		Verified:       check.Verified,
		StoredHash:     check.StoredHash,
		RecomputedHash: check.RecomputedHash,
		VerifiedAt:     requestcontext.Now(ctx).UTC(),
	}, nil
}

func (s *Service) load(ctx context.Context, documentID id.DocumentID) (*models.Document, error) {
	doc, err := s.store.GetByID(ctx, documentID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "document not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to load document")
	}
	return doc, nil
}

func (s *Service) requireRole(ctx context.Context, actorID id.UserID, allowed ...id.Role) error {
	if actorID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	role, err := s.roles.GetRole(ctx, actorID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeForbidden, "no role assigned")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorage, "failed to resolve role")
	}
	if !role.In(allowed...) {
		return dErrors.New(dErrors.CodeForbidden, "role "+role.String()+" may not perform this action")
	}
	return nil
}

func (s *Service) checkTransactionParty(ctx context.Context, actorID id.UserID, transactionID id.TransactionID) error {
	if s.transactions == nil {
		return dErrors.New(dErrors.CodeValidation, "transaction linking is not available")
	}
	buyer, seller, err := s.transactions.Parties(ctx, transactionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeValidation, "unknown transaction_id")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeStorage, "failed to load transaction")
	}
	if actorID == buyer || actorID == seller {
		return nil
	}
	return s.requireRole(ctx, actorID, id.RoleBank, id.RoleAdmin)
}

// validateUpload checks the input and returns the canonical document type.
func validateUpload(in UploadInput) (models.Type, error) {
	if in.Type == "" {
		return "", dErrors.New(dErrors.CodeValidation, "doc_type is required")
	}
	docType, err := models.ParseType(string(in.Type))
	if err != nil {
		return "", err
	}
	number := strings.TrimSpace(in.Number)
	if number == "" {
		return "", dErrors.New(dErrors.CodeValidation, "doc_number is required")
	}
	if len(number) > 128 {
		return "", dErrors.New(dErrors.CodeValidation, "doc_number must be at most 128 characters")
	}
	if len(in.Content) == 0 {
		return "", dErrors.New(dErrors.CodeValidation, "content is required")
	}
	if len(in.Content) > MaxContentBytes {
		return "", dErrors.New(dErrors.CodeValidation, "content exceeds the upload limit")
	}
	return docType, nil
}

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(context.Context, riskmodels.Trigger, ...id.UserID) {}
