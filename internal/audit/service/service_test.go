package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "tradeledger/pkg/domain"
	dErrors "tradeledger/pkg/domain-errors"
	audit "tradeledger/pkg/platform/audit"
	auditmemory "tradeledger/pkg/platform/audit/store/memory"
)

// =============================================================================
// Audit Service Test Suite
// =============================================================================
// Justification: the service owns query validation, limit defaults and the
// ordering contract of the two read paths.

type AuditServiceSuite struct {
	suite.Suite
	store   *auditmemory.InMemoryStore
	service *Service
	base    time.Time
}

func TestAuditServiceSuite(t *testing.T) {
	suite.Run(t, new(AuditServiceSuite))
}

func (s *AuditServiceSuite) SetupTest() {
	s.store = auditmemory.NewInMemoryStore()
	s.service = New(s.store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.base = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	actor := id.NewUserID()
	for i := 0; i < 3; i++ {
		require.NoError(s.T(), s.store.Append(context.Background(), audit.Event{
			Timestamp:   s.base.Add(time.Duration(i) * time.Minute),
			ActorID:     actor,
			ActorRole:   id.RoleAdmin,
			Action:      audit.ActionTransactionStatusChanged,
			SubjectType: "transaction",
			SubjectID:   "tx-1",
			To:          strconv.Itoa(i),
		}))
	}
	require.NoError(s.T(), s.store.Append(context.Background(), audit.Event{
		Timestamp:   s.base.Add(10 * time.Minute),
		ActorID:     actor,
		ActorRole:   id.RoleAdmin,
		Action:      audit.ActionUserRoleAssigned,
		SubjectType: "user",
		SubjectID:   "u-1",
	}))
}

func (s *AuditServiceSuite) TestSubjectHistoryIsOldestFirst() {
	events, err := s.service.List(context.Background(), Query{SubjectType: "transaction", SubjectID: "tx-1"})
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	s.Equal("0", events[0].To)
	s.Equal("2", events[2].To)
}

func (s *AuditServiceSuite) TestSubjectHistoryKeepsNewestWithinLimit() {
	events, err := s.service.List(context.Background(), Query{SubjectType: "transaction", SubjectID: "tx-1", Limit: 2})
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal("1", events[0].To)
	s.Equal("2", events[1].To)
}

func (s *AuditServiceSuite) TestRecentIsNewestFirst() {
	events, err := s.service.List(context.Background(), Query{Limit: 2})
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(audit.ActionUserRoleAssigned, events[0].Action)
	s.Equal("2", events[1].To)
}

func (s *AuditServiceSuite) TestRejectsInvalidQueries() {
	for name, q := range map[string]Query{
		"type without id": {SubjectType: "transaction"},
		"id without type": {SubjectID: "tx-1"},
		"negative limit":  {Limit: -1},
		"limit too large": {Limit: MaxLimit + 1},
	} {
		s.Run(name, func() {
			_, err := s.service.List(context.Background(), q)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

type failingReader struct{}

func (failingReader) ListBySubject(context.Context, string, string) ([]audit.Event, error) {
	return nil, errors.New("connection reset")
}

func (failingReader) ListRecent(context.Context, int) ([]audit.Event, error) {
	return nil, errors.New("connection reset")
}

func TestListWrapsStoreFailures(t *testing.T) {
	svc := New(failingReader{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := svc.List(context.Background(), Query{})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeStorage))
}
