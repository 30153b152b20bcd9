package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tradeledger/internal/identity/models"
	id "tradeledger/pkg/domain"
	"tradeledger/pkg/platform/sentinel"
)

// Justification: every authorization decision depends on GetRole returning
// ErrNotFound for unknown users and the latest role for known ones.
type InMemoryUserStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func TestInMemoryUserStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryUserStoreSuite))
}

func (s *InMemoryUserStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func (s *InMemoryUserStoreSuite) TestGetRole() {
	ctx := context.Background()
	userID := id.NewUserID()

	_, err := s.store.GetRole(ctx, userID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.Save(ctx, &models.User{ID: userID, Role: id.RoleCorporate}))
	role, err := s.store.GetRole(ctx, userID)
	s.Require().NoError(err)
	s.Equal(id.RoleCorporate, role)
}

func (s *InMemoryUserStoreSuite) TestSaveReplacesRoleAndKeepsCreatedAt() {
	ctx := context.Background()
	userID := id.NewUserID()
	first := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Require().NoError(s.store.Save(ctx, &models.User{ID: userID, Role: id.RoleCorporate, CreatedAt: first}))

	later := &models.User{ID: userID, Role: id.RoleBank, CreatedAt: first.Add(time.Hour), UpdatedAt: first.Add(time.Hour)}
	s.Require().NoError(s.store.Save(ctx, later))
	s.Equal(first, later.CreatedAt)

	found, err := s.store.FindByID(ctx, userID)
	s.Require().NoError(err)
	s.Equal(id.RoleBank, found.Role)
	s.Equal(first, found.CreatedAt)
}
