// Package service applies trade transaction lifecycle rules: who may open a
// transaction, who may move it, and which moves are allowed.
package service

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	riskmodels "tradeledger/internal/risk/models"
	"tradeledger/internal/transaction/metrics"
	"tradeledger/internal/transaction/models"
	id "tradeledger/pkg/domain"
	dErrors "tradeledger/pkg/domain-errors"
	audit "tradeledger/pkg/platform/audit"
	"tradeledger/pkg/platform/sentinel"
	"tradeledger/pkg/requestcontext"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

type Store interface {
	Insert(ctx context.Context, tx *models.Transaction) error
	GetByID(ctx context.Context, transactionID id.TransactionID) (*models.Transaction, error)
	ListForUser(ctx context.Context, userID id.UserID) ([]*models.Transaction, error)
	Execute(ctx context.Context, transactionID id.TransactionID, fn func(tx *models.Transaction) error) (*models.Transaction, error)
}

type RoleProvider interface {
	GetRole(ctx context.Context, userID id.UserID) (id.Role, error)
}

// Dispatcher requests asynchronous risk recalculation. It never blocks.
type Dispatcher interface {
	Dispatch(ctx context.Context, trigger riskmodels.Trigger, userIDs ...id.UserID)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store      Store
	roles      RoleProvider
	dispatcher Dispatcher
	auditor    AuditPublisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
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

func WithDispatcher(d Dispatcher) Option {
	return func(s *Service) {
		s.dispatcher = d
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

func New(store Store, roles RoleProvider, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("transaction store is required")
	}
	if roles == nil {
		return nil, errors.New("role provider is required")
	}
	s := &Service{store: store, roles: roles, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateInput describes a new transaction. The caller becomes the buyer.
type CreateInput struct {
	SellerID    id.UserID
	Amount      *decimal.Decimal
	Currency    string
	Description string
}

// Create opens a transaction in OPEN status. Only corporate users may open
// transactions and the seller must be a different corporate user.
func (s *Service) Create(ctx context.Context, actorID id.UserID, in CreateInput) (*models.Transaction, error) {
	if err := s.requireRole(ctx, actorID, id.RoleCorporate); err != nil {
		return nil, err
	}
	in.Currency = strings.ToUpper(strings.TrimSpace(in.Currency))
	in.Description = strings.TrimSpace(in.Description)
	if err := validateCreate(actorID, in); err != nil {
		return nil, err
	}
	sellerRole, err := s.roles.GetRole(ctx, in.SellerID)
	if err != nil || sellerRole != id.RoleCorporate {
		return nil, dErrors.New(dErrors.CodeValidation, "seller_id must be a registered corporate user")
	}

	now := requestcontext.Now(ctx).UTC()
	tx := &models.Transaction{
		ID:          id.NewTransactionID(),
		BuyerID:     actorID,
		SellerID:    in.SellerID,
		Status:      models.StatusOpen,
		Amount:      in.Amount,
		Currency:    in.Currency,
		Description: in.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Insert(ctx, tx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to save transaction")
	}

	s.metrics.IncrementCreated()
	s.logger.InfoContext(ctx, "transaction opened",
		"request_id", requestcontext.RequestID(ctx),
		"transaction_id", tx.ID,
		"buyer_id", tx.BuyerID,
		"seller_id", tx.SellerID,
	)
	return tx, nil
}

// Get returns a transaction to a party, bank, auditor or admin.
func (s *Service) Get(ctx context.Context, actorID id.UserID, transactionID id.TransactionID) (*models.Transaction, error) {
	if actorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	tx, err := s.store.GetByID(ctx, transactionID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "transaction not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to load transaction")
	}
	if tx.IsParty(actorID) {
		return tx, nil
	}
	if err := s.requireRole(ctx, actorID, id.RoleBank, id.RoleAuditor, id.RoleAdmin); err != nil {
		return nil, err
	}
	return tx, nil
}

// ListForUser lists the transactions userID takes part in, newest first.
func (s *Service) ListForUser(ctx context.Context, actorID, userID id.UserID) ([]*models.Transaction, error) {
	if actorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if actorID != userID {
		if err := s.requireRole(ctx, actorID, id.RoleBank, id.RoleAuditor, id.RoleAdmin); err != nil {
			return nil, err
		}
	}
	txs, err := s.store.ListForUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to list transactions")
	}
	return txs, nil
}

// Transition moves a transaction to next. Only bank and admin users may call
// it. The check and the write happen under the store's per-transaction lock.
// Admin changes are audited, and both parties are queued for risk
// recalculation; neither side effect can fail the transition.
func (s *Service) Transition(ctx context.Context, actorID id.UserID, transactionID id.TransactionID, next models.Status) (*models.Transaction, error) {
	requestID := requestcontext.RequestID(ctx)

	role, err := s.roleOf(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !role.In(id.RoleBank, id.RoleAdmin) {
		s.metrics.IncrementRejected(string(dErrors.CodeForbidden))
		return nil, dErrors.New(dErrors.CodeForbidden, "only bank or admin users may change transaction status")
	}
	if !next.IsValid() {
		s.metrics.IncrementRejected(string(dErrors.CodeValidation))
		return nil, dErrors.New(dErrors.CodeValidation, "unknown transaction status: "+string(next))
	}

	now := requestcontext.Now(ctx).UTC()
	var from models.Status
	updated, err := s.store.Execute(ctx, transactionID, func(tx *models.Transaction) error {
		if err := tx.ValidateTransition(next); err != nil {
			return err
		}
		from = tx.Status
		tx.Status = next
		tx.UpdatedAt = now
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			err = dErrors.New(dErrors.CodeNotFound, "transaction not found")
		} else if dErrors.CodeOf(err) == dErrors.CodeInternal {
			err = dErrors.Wrap(err, dErrors.CodeStorage, "failed to update transaction")
		}
		s.metrics.IncrementRejected(string(dErrors.CodeOf(err)))
		s.logger.WarnContext(ctx, "transaction transition rejected",
			"request_id", requestID,
			"transaction_id", transactionID,
			"to", next,
			"error", err,
		)
		return nil, err
	}

	s.metrics.IncrementTransition(string(from), string(next))
	s.logger.InfoContext(ctx, "transaction status changed",
		"request_id", requestID,
		"transaction_id", transactionID,
		"from", from,
		"to", next,
		"actor_id", actorID,
	)

	if role == id.RoleAdmin {
		s.emitAudit(ctx, actorID, role, updated, from)
	}
	if s.dispatcher != nil {
		s.dispatcher.Dispatch(ctx, riskmodels.TriggerTransactionStatusChange, updated.BuyerID, updated.SellerID)
	}
	return updated, nil
}

func (s *Service) emitAudit(ctx context.Context, actorID id.UserID, role id.Role, tx *models.Transaction, from models.Status) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Emit(ctx, audit.Event{
		ActorID:     actorID,
		ActorRole:   role,
		Action:      audit.ActionTransactionStatusChanged,
		SubjectType: "transaction",
		SubjectID:   tx.ID.String(),
		From:        string(from),
		To:          string(tx.Status),
		RequestID:   requestcontext.RequestID(ctx),
		Timestamp:   tx.UpdatedAt,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to audit admin status change",
			"request_id", requestcontext.RequestID(ctx),
			"transaction_id", tx.ID,
			"error", err,
		)
	}
}

func (s *Service) requireRole(ctx context.Context, actorID id.UserID, allowed ...id.Role) error {
	role, err := s.roleOf(ctx, actorID)
	if err != nil {
		return err
	}
	if !role.In(allowed...) {
		return dErrors.New(dErrors.CodeForbidden, "role "+role.String()+" may not perform this action")
	}
	return nil
}

func (s *Service) roleOf(ctx context.Context, actorID id.UserID) (id.Role, error) {
	if actorID.IsNil() {
		return "", dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	role, err := s.roles.GetRole(ctx, actorID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return "", dErrors.New(dErrors.CodeForbidden, "no role assigned")
	}
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeStorage, "failed to resolve role")
	}
	return role, nil
}

func validateCreate(buyerID id.UserID, in CreateInput) error {
	if in.SellerID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "seller_id is required")
	}
	if in.SellerID == buyerID {
		return dErrors.New(dErrors.CodeValidation, "buyer and seller must differ")
	}
	if in.Amount != nil {
		if in.Amount.IsNegative() {
			return dErrors.New(dErrors.CodeValidation, "amount must not be negative")
		}
		if !currencyPattern.MatchString(in.Currency) {
			return dErrors.New(dErrors.CodeValidation, "currency must be a three-letter ISO code when amount is set")
		}
	} else if in.Currency != "" && !currencyPattern.MatchString(in.Currency) {
		return dErrors.New(dErrors.CodeValidation, "currency must be a three-letter ISO code")
	}
	if len(in.Description) > 1024 {
		return dErrors.New(dErrors.CodeValidation, "description must be at most 1024 characters")
	}
	return nil
}
