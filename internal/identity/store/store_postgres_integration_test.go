//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tradeledger/internal/identity/models"
	"tradeledger/internal/identity/store"
	id "tradeledger/pkg/domain"
	"tradeledger/pkg/platform/sentinel"
	"tradeledger/pkg/testutil/containers"
)

type PostgresUserStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *store.PostgresStore
}

func TestPostgresUserStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresUserStoreSuite))
}

func (s *PostgresUserStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.pg.DB)
}

func (s *PostgresUserStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "users"))
}

func (s *PostgresUserStoreSuite) TestUpsertKeepsCreatedAt() {
	ctx := context.Background()
	userID := id.NewUserID()
	created := time.Now().UTC().Truncate(time.Microsecond)

	s.Require().NoError(s.store.Save(ctx, &models.User{ID: userID, Role: id.RoleAuditor, CreatedAt: created, UpdatedAt: created}))
	updated := &models.User{ID: userID, Role: id.RoleAdmin, CreatedAt: created.Add(time.Hour), UpdatedAt: created.Add(time.Hour)}
	s.Require().NoError(s.store.Save(ctx, updated))
	s.True(created.Equal(updated.CreatedAt))

	role, err := s.store.GetRole(ctx, userID)
	s.Require().NoError(err)
	s.Equal(id.RoleAdmin, role)

	_, err = s.store.GetRole(ctx, id.NewUserID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}
