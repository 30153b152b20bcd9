package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"tradeledger/internal/identity/store"
	id "tradeledger/pkg/domain"
	dErrors "tradeledger/pkg/domain-errors"
	audit "tradeledger/pkg/platform/audit"
)

type recordingAudit struct {
	events []audit.Event
	err    error
}

func (r *recordingAudit) Emit(_ context.Context, e audit.Event) error {
	r.events = append(r.events, e)
	return r.err
}

// =============================================================================
// Identity Directory Test Suite
// =============================================================================
// Justification: role assignment is the root of every authorization check
// and must leave an audit trail for each change.

type IdentityServiceSuite struct {
	suite.Suite
	store    *store.InMemoryStore
	audit    *recordingAudit
	operator id.UserID
	service  *Service
}

func TestIdentityServiceSuite(t *testing.T) {
	suite.Run(t, new(IdentityServiceSuite))
}

func (s *IdentityServiceSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	s.audit = &recordingAudit{}
	s.operator = id.NewUserID()
	var err error
	s.service, err = New(s.store, s.operator,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithAuditPublisher(s.audit),
	)
	s.Require().NoError(err)
}

func (s *IdentityServiceSuite) TestRegisterNewUser() {
	user, created, err := s.service.Register(context.Background(), RegisterInput{Role: id.RoleCorporate})
	s.Require().NoError(err)
	s.True(created)
	s.False(user.ID.IsNil())

	role, err := s.store.GetRole(context.Background(), user.ID)
	s.Require().NoError(err)
	s.Equal(id.RoleCorporate, role)

	s.Require().Len(s.audit.events, 1)
	e := s.audit.events[0]
	s.Equal(audit.ActionUserRoleAssigned, e.Action)
	s.Equal(s.operator, e.ActorID)
	s.Equal("", e.From)
	s.Equal("corporate", e.To)
}

func (s *IdentityServiceSuite) TestRegisterWithChosenID() {
	userID := id.NewUserID()
	user, created, err := s.service.Register(context.Background(), RegisterInput{UserID: userID, Role: id.RoleBank})
	s.Require().NoError(err)
	s.True(created)
	s.Equal(userID, user.ID)
}

func (s *IdentityServiceSuite) TestRoleChange() {
	user, _, err := s.service.Register(context.Background(), RegisterInput{Role: id.RoleCorporate})
	s.Require().NoError(err)

	_, created, err := s.service.Register(context.Background(), RegisterInput{UserID: user.ID, Role: id.RoleAuditor})
	s.Require().NoError(err)
	s.False(created)
	s.Require().Len(s.audit.events, 2)
	s.Equal("corporate", s.audit.events[1].From)
	s.Equal("auditor", s.audit.events[1].To)

	_, _, err = s.service.Register(context.Background(), RegisterInput{UserID: user.ID, Role: id.RoleAuditor})
	s.Require().NoError(err)
	s.Len(s.audit.events, 2, "unchanged role is not audited")
}

func (s *IdentityServiceSuite) TestRejectsUnknownRole() {
	_, _, err := s.service.Register(context.Background(), RegisterInput{Role: id.RoleSystem})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *IdentityServiceSuite) TestAuditFailureDoesNotFailRegistration() {
	s.audit.err = errors.New("audit down")
	_, _, err := s.service.Register(context.Background(), RegisterInput{Role: id.RoleAdmin})
	s.NoError(err)
}

func (s *IdentityServiceSuite) TestGet() {
	_, err := s.service.Get(context.Background(), id.NewUserID())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
