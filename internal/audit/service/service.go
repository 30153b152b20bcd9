// Package service reads the administrative audit log for operators.
package service

import (
	"context"
	"log/slog"

	dErrors "tradeledger/pkg/domain-errors"
	audit "tradeledger/pkg/platform/audit"
)

const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// Reader is the read side of the audit store.
type Reader interface {
	ListBySubject(ctx context.Context, subjectType, subjectID string) ([]audit.Event, error)
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
}

// Query selects either one subject's history (oldest first) or the most
// recent events overall (newest first).
type Query struct {
	SubjectType string
	SubjectID   string
	Limit       int
}

type Service struct {
	reader Reader
	logger *slog.Logger
}

func New(reader Reader, logger *slog.Logger) *Service {
	return &Service{reader: reader, logger: logger}
}

func (s *Service) List(ctx context.Context, q Query) ([]audit.Event, error) {
	if (q.SubjectType == "") != (q.SubjectID == "") {
		return nil, dErrors.New(dErrors.CodeValidation, "subject_type and subject_id must be given together")
	}
	if q.Limit < 0 || q.Limit > MaxLimit {
		return nil, dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 500")
	}
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}

	var (
		events []audit.Event
		err    error
	)
	if q.SubjectType != "" {
		events, err = s.reader.ListBySubject(ctx, q.SubjectType, q.SubjectID)
		if len(events) > q.Limit {
			events = events[len(events)-q.Limit:]
		}
	} else {
		events, err = s.reader.ListRecent(ctx, q.Limit)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "audit query failed", "error", err)
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to read audit log")
	}
	return events, nil
}
