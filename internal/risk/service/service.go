// Package service exposes risk scoring to callers and applies role rules.
package service

import (
	"context"
	"errors"
	"log/slog"

	"tradeledger/internal/risk/models"
	id "tradeledger/pkg/domain"
	dErrors "tradeledger/pkg/domain-errors"
	"tradeledger/pkg/platform/sentinel"
	"tradeledger/pkg/requestcontext"
)

type Engine interface {
	ComputeScore(ctx context.Context, userID id.UserID, trigger models.Trigger) (*models.Result, error)
}

type Store interface {
	GetByUser(ctx context.Context, userID id.UserID) (*models.Score, error)
	ListAll(ctx context.Context) ([]*models.Score, error)
	ListHistory(ctx context.Context, userID id.UserID) ([]*models.HistoryRecord, error)
}

type RoleProvider interface {
	GetRole(ctx context.Context, userID id.UserID) (id.Role, error)
}

type Service struct {
	engine Engine
	store  Store
	roles  RoleProvider
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(engine Engine, store Store, roles RoleProvider, opts ...Option) (*Service, error) {
	if engine == nil {
		return nil, errors.New("risk engine is required")
	}
	if store == nil {
		return nil, errors.New("risk store is required")
	}
	if roles == nil {
		return nil, errors.New("role provider is required")
	}
	s := &Service{engine: engine, store: store, roles: roles, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ComputeRisk recalculates userID's score on behalf of actorID. Corporate
// users may only recalculate their own score.
func (s *Service) ComputeRisk(ctx context.Context, actorID, userID id.UserID, trigger models.Trigger) (*models.Result, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "user_id is required")
	}
	if err := s.authorizeSubject(ctx, actorID, userID); err != nil {
		return nil, err
	}
	result, err := s.engine.ComputeScore(ctx, userID, trigger)
	if err != nil {
		s.logger.ErrorContext(ctx, "risk computation failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"trigger", trigger,
			"error", err,
		)
		return nil, err
	}
	return result, nil
}

// ListRiskScores returns scores highest first. Corporate callers see only
// their own; everyone else may list all or filter by user.
func (s *Service) ListRiskScores(ctx context.Context, actorID id.UserID, filter *id.UserID) ([]*models.Score, error) {
	role, err := s.roleOf(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if role == id.RoleCorporate {
		if filter != nil && *filter != actorID {
			return nil, dErrors.New(dErrors.CodeForbidden, "corporate users may only view their own score")
		}
		filter = &actorID
	}

	if filter != nil {
		score, err := s.store.GetByUser(ctx, *filter)
		if errors.Is(err, sentinel.ErrNotFound) {
			return []*models.Score{}, nil
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to load risk score")
		}
		return []*models.Score{score}, nil
	}

	scores, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to list risk scores")
	}
	return scores, nil
}

// History returns every recorded recalculation for userID, oldest first.
func (s *Service) History(ctx context.Context, actorID, userID id.UserID) ([]*models.HistoryRecord, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "user_id is required")
	}
	if err := s.authorizeSubject(ctx, actorID, userID); err != nil {
		return nil, err
	}
	records, err := s.store.ListHistory(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to load risk history")
	}
	return records, nil
}

func (s *Service) authorizeSubject(ctx context.Context, actorID, userID id.UserID) error {
	role, err := s.roleOf(ctx, actorID)
	if err != nil {
		return err
	}
	if role == id.RoleCorporate && actorID != userID {
		return dErrors.New(dErrors.CodeForbidden, "corporate users may only access their own score")
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
