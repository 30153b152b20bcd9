package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeledger/internal/transaction/models"
	id "tradeledger/pkg/domain"
	"tradeledger/pkg/platform/sentinel"
)

func newTx(buyer, seller id.UserID, at time.Time) *models.Transaction {
	amount := decimal.RequireFromString("1250.50")
	return &models.Transaction{
		ID:        id.NewTransactionID(),
		BuyerID:   buyer,
		SellerID:  seller,
		Status:    models.StatusOpen,
		Amount:    &amount,
		Currency:  "USD",
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestInsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	tx := newTx(id.NewUserID(), id.NewUserID(), time.Now())

	require.NoError(t, s.Insert(ctx, tx))
	assert.ErrorIs(t, s.Insert(ctx, tx), sentinel.ErrConflict)

	got, err := s.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, tx.Amount.Equal(*got.Amount))

	*got.Amount = decimal.Zero
	again, err := s.GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "1250.5", again.Amount.String())

	_, err = s.GetByID(ctx, id.NewTransactionID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestListForUserAndParties(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	alice, bob, carol := id.NewUserID(), id.NewUserID(), id.NewUserID()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first := newTx(alice, bob, t0)
	second := newTx(carol, alice, t0.Add(time.Hour))
	unrelated := newTx(bob, carol, t0)
	for _, tx := range []*models.Transaction{first, second, unrelated} {
		require.NoError(t, s.Insert(ctx, tx))
	}

	list, err := s.ListForUser(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	buyer, seller, err := s.Parties(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, carol, buyer)
	assert.Equal(t, alice, seller)
}

func TestExecute(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	tx := newTx(id.NewUserID(), id.NewUserID(), time.Now())
	require.NoError(t, s.Insert(ctx, tx))

	t.Run("error leaves the row unchanged", func(t *testing.T) {
		_, err := s.Execute(ctx, tx.ID, func(tx *models.Transaction) error {
			tx.Status = models.StatusCancelled
			return errors.New("rejected")
		})
		require.Error(t, err)
		got, _ := s.GetByID(ctx, tx.ID)
		assert.Equal(t, models.StatusOpen, got.Status)
	})

	t.Run("missing transaction", func(t *testing.T) {
		_, err := s.Execute(ctx, id.NewTransactionID(), func(*models.Transaction) error { return nil })
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("concurrent callers see each other's writes", func(t *testing.T) {
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.Execute(ctx, tx.ID, func(tx *models.Transaction) error {
					if err := tx.ValidateTransition(models.StatusInProgress); err != nil {
						return err
					}
					tx.Status = models.StatusInProgress
					return nil
				})
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})
}
