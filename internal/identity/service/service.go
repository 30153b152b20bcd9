// Package service manages the identity directory: which role each user
// holds. Role assignment is an operator action and is audited.
package service

import (
	"context"
	"errors"
	"log/slog"

	"tradeledger/internal/identity/models"
	id "tradeledger/pkg/domain"
	dErrors "tradeledger/pkg/domain-errors"
	audit "tradeledger/pkg/platform/audit"
	"tradeledger/pkg/platform/sentinel"
	"tradeledger/pkg/requestcontext"
)

type Store interface {
	Save(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, userID id.UserID) (*models.User, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

type Service struct {
	store    Store
	operator id.UserID
	auditor  AuditPublisher
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = p
	}
}

// New builds the directory service. operator is recorded as the actor of
// role assignments made through the admin-token endpoint.
func New(store Store, operator id.UserID, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("user store is required")
	}
	s := &Service{store: store, operator: operator, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RegisterInput assigns Role to UserID. A nil UserID registers a new user.
type RegisterInput struct {
	UserID id.UserID
	Role   id.Role
}

// Register creates a user or changes an existing user's role. created
// reports whether the user was new.
func (s *Service) Register(ctx context.Context, in RegisterInput) (user *models.User, created bool, err error) {
	if !in.Role.In(id.RoleBank, id.RoleCorporate, id.RoleAuditor, id.RoleAdmin) {
		return nil, false, dErrors.New(dErrors.CodeValidation, "unknown role: "+string(in.Role))
	}

	var previous id.Role
	if in.UserID.IsNil() {
		in.UserID = id.NewUserID()
		created = true
	} else {
		existing, err := s.store.FindByID(ctx, in.UserID)
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			created = true
		case err != nil:
			return nil, false, dErrors.Wrap(err, dErrors.CodeStorage, "failed to load user")
		default:
			previous = existing.Role
		}
	}

	now := requestcontext.Now(ctx).UTC()
	user = &models.User{ID: in.UserID, Role: in.Role, CreatedAt: now, UpdatedAt: now}
	if err := s.store.Save(ctx, user); err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeStorage, "failed to save user")
	}

	s.logger.InfoContext(ctx, "user role assigned",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", user.ID,
		"role", user.Role,
		"previous_role", previous,
	)
	if created || previous != in.Role {
		s.emitAudit(ctx, user, previous)
	}
	return user, created, nil
}

func (s *Service) Get(ctx context.Context, userID id.UserID) (*models.User, error) {
	user, err := s.store.FindByID(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to load user")
	}
	return user, nil
}

func (s *Service) emitAudit(ctx context.Context, user *models.User, previous id.Role) {
	if s.auditor == nil {
		return
	}
	err := s.auditor.Emit(ctx, audit.Event{
		ActorID:     s.operator,
		ActorRole:   id.RoleSystem,
		Action:      audit.ActionUserRoleAssigned,
		SubjectType: "user",
		SubjectID:   user.ID.String(),
		From:        string(previous),
		To:          string(user.Role),
		RequestID:   requestcontext.RequestID(ctx),
		Timestamp:   user.UpdatedAt,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to audit role assignment",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", user.ID,
			"error", err,
		)
	}
}
