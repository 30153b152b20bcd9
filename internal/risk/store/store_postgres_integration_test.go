//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"tradeledger/internal/risk/models"
	"tradeledger/internal/risk/store"
	id "tradeledger/pkg/domain"
	"tradeledger/pkg/platform/sentinel"
	"tradeledger/pkg/testutil/containers"
)

type PostgresRiskStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *store.PostgresStore
}

func TestPostgresRiskStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresRiskStoreSuite))
}

func (s *PostgresRiskStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.pg.DB)
}

func (s *PostgresRiskStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "risk_scores", "risk_score_history"))
}

func (s *PostgresRiskStoreSuite) TestUpsertAndList() {
	ctx := context.Background()
	a, b := id.NewUserID(), id.NewUserID()
	now := time.Now().UTC().Truncate(time.Microsecond)

	s.Require().NoError(s.store.Upsert(ctx, &models.Score{UserID: a, Score: 20, Category: models.CategoryLow, Rationale: "first", LastUpdated: now}))
	s.Require().NoError(s.store.Upsert(ctx, &models.Score{UserID: b, Score: 55, Category: models.CategoryMedium, Rationale: "b", LastUpdated: now}))
	s.Require().NoError(s.store.Upsert(ctx, &models.Score{UserID: a, Score: 90, Category: models.CategoryHigh, Rationale: "second", LastUpdated: now.Add(time.Second)}))

	got, err := s.store.GetByUser(ctx, a)
	s.Require().NoError(err)
	s.Equal(90, got.Score)
	s.Equal("second", got.Rationale)
	s.Equal(now.Add(time.Second), got.LastUpdated)

	all, err := s.store.ListAll(ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(a, all[0].UserID)
	s.Equal(b, all[1].UserID)

	_, err = s.store.GetByUser(ctx, id.NewUserID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresRiskStoreSuite) TestHistory() {
	ctx := context.Background()
	user := id.NewUserID()
	t0 := time.Now().UTC().Truncate(time.Microsecond)

	for i, trig := range []models.Trigger{models.TriggerManual, models.TriggerTransactionStatusChange} {
		s.Require().NoError(s.store.AppendHistory(ctx, &models.HistoryRecord{
			ID: uuid.New(), UserID: user, Score: 10 * i, Category: models.CategoryLow,
			Rationale: "r", Trigger: trig, RecordedAt: t0.Add(time.Duration(i) * time.Second),
		}))
	}

	records, err := s.store.ListHistory(ctx, user)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal(models.TriggerManual, records[0].Trigger)
	s.Equal(models.TriggerTransactionStatusChange, records[1].Trigger)
}
