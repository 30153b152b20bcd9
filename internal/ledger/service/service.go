// Package service appends and reads the per-document audit ledger.
//
// The public surface has no update or delete operation; entries are written
// once and only ever listed.
package service

import (
	"context"
	"errors"
	"log/slog"
	"maps"

	"tradeledger/internal/ledger/metrics"
	"tradeledger/internal/ledger/models"
	id "tradeledger/pkg/domain"
	dErrors "tradeledger/pkg/domain-errors"
	"tradeledger/pkg/platform/sentinel"
	"tradeledger/pkg/requestcontext"
)

type Store interface {
	Append(ctx context.Context, entry *models.Entry) error
	ListByDocument(ctx context.Context, documentID id.DocumentID) ([]*models.Entry, error)
	ListByDocuments(ctx context.Context, documentIDs []id.DocumentID) ([]*models.Entry, error)
}

// DocumentLookup resolves the owner of a document. It returns
// sentinel.ErrNotFound when the document does not exist.
type DocumentLookup interface {
	OwnerOf(ctx context.Context, documentID id.DocumentID) (id.UserID, error)
}

type RoleProvider interface {
	GetRole(ctx context.Context, userID id.UserID) (id.Role, error)
}

type Service struct {
	store     Store
	documents DocumentLookup
	roles     RoleProvider
	logger    *slog.Logger
	metrics   *metrics.Metrics
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

// WithRoleProvider enables the caller-facing RecordAction and History.
func WithRoleProvider(roles RoleProvider) Option {
	return func(s *Service) {
		s.roles = roles
	}
}

func New(store Store, documents DocumentLookup, opts ...Option) *Service {
	s := &Service{store: store, documents: documents, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append records one action against an existing document. The timestamp is
// taken from the request context, never from the caller.
func (s *Service) Append(ctx context.Context, documentID id.DocumentID, action models.Action, actorID id.UserID, metadata map[string]string) (*models.Entry, error) {
	if !action.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown ledger action: "+string(action))
	}
	if actorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "actor_id is required")
	}
	if _, err := s.ownerOf(ctx, documentID); err != nil {
		return nil, err
	}

	entry := &models.Entry{
		ID:         id.NewEntryID(),
		DocumentID: documentID,
		Action:     action,
		ActorID:    actorID,
		Metadata:   maps.Clone(metadata),
		CreatedAt:  requestcontext.Now(ctx).UTC(),
	}
	if entry.Metadata == nil {
		entry.Metadata = map[string]string{}
	}

	if err := s.store.Append(ctx, entry); err != nil {
		s.metrics.IncrementAppendFailure()
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "document not found")
		}
		s.logger.ErrorContext(ctx, "ledger append failed",
			"request_id", requestcontext.RequestID(ctx),
			"document_id", documentID,
			"action", action,
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to append ledger entry")
	}
	s.metrics.IncrementAppended(string(action))
	return entry, nil
}

// List returns a document's entries, oldest first.
func (s *Service) List(ctx context.Context, documentID id.DocumentID) ([]*models.Entry, error) {
	if _, err := s.ownerOf(ctx, documentID); err != nil {
		return nil, err
	}
	entries, err := s.store.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to list ledger entries")
	}
	return entries, nil
}

// ListForDocuments returns the entries of several documents in one read.
func (s *Service) ListForDocuments(ctx context.Context, documentIDs []id.DocumentID) ([]*models.Entry, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	entries, err := s.store.ListByDocuments(ctx, documentIDs)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to list ledger entries")
	}
	return entries, nil
}

// RecordAction appends a user-authored action. Only the document owner, a
// bank or an admin may record, and only manual actions are accepted.
func (s *Service) RecordAction(ctx context.Context, actorID id.UserID, documentID id.DocumentID, action models.Action, metadata map[string]string) (*models.Entry, error) {
	if !action.IsManual() {
		return nil, dErrors.New(dErrors.CodeValidation, "action cannot be recorded manually: "+string(action))
	}
	if err := s.authorize(ctx, actorID, documentID, id.RoleBank, id.RoleAdmin); err != nil {
		return nil, err
	}
	return s.Append(ctx, documentID, action, actorID, metadata)
}

// History lists a document's entries for a caller who may read it: the owner,
// a bank, an auditor or an admin.
func (s *Service) History(ctx context.Context, actorID id.UserID, documentID id.DocumentID) ([]*models.Entry, error) {
	if err := s.authorize(ctx, actorID, documentID, id.RoleBank, id.RoleAuditor, id.RoleAdmin); err != nil {
		return nil, err
	}
	return s.List(ctx, documentID)
}

func (s *Service) authorize(ctx context.Context, actorID id.UserID, documentID id.DocumentID, privileged ...id.Role) error {
	if actorID.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	owner, err := s.ownerOf(ctx, documentID)
	if err != nil {
		return err
	}
	if owner == actorID {
		return nil
	}
	if s.roles == nil {
		return dErrors.New(dErrors.CodeForbidden, "not permitted for this document")
	}
	role, err := s.roles.GetRole(ctx, actorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeForbidden, "no role assigned")
		}
		return dErrors.Wrap(err, dErrors.CodeStorage, "failed to resolve role")
	}
	if !role.In(privileged...) {
		return dErrors.New(dErrors.CodeForbidden, "not permitted for this document")
	}
	return nil
}

func (s *Service) ownerOf(ctx context.Context, documentID id.DocumentID) (id.UserID, error) {
	owner, err := s.documents.OwnerOf(ctx, documentID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return id.UserID{}, dErrors.New(dErrors.CodeNotFound, "document not found")
	}
	if err != nil {
		return id.UserID{}, dErrors.Wrap(err, dErrors.CodeStorage, "failed to load document")
	}
	return owner, nil
}
