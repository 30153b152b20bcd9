package store

import (
	"context"
	"sort"
	"sync"

	"tradeledger/internal/transaction/models"
	id "tradeledger/pkg/domain"
	"tradeledger/pkg/platform/sentinel"
)

// InMemoryStore keeps transactions in a map. Execute holds the write lock
// for the whole read-modify-write so concurrent transitions serialize.
type InMemoryStore struct {
	mu  sync.RWMutex
	txs map[id.TransactionID]models.Transaction
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{txs: make(map[id.TransactionID]models.Transaction)}
}

func (s *InMemoryStore) Insert(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.txs[tx.ID]; exists {
		return sentinel.ErrConflict
	}
	s.txs[tx.ID] = clone(tx)
	return nil
}

func (s *InMemoryStore) GetByID(_ context.Context, transactionID id.TransactionID) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txs[transactionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := clone(&tx)
	return &out, nil
}

// ListForUser returns transactions where userID is buyer or seller, newest
// first.
func (s *InMemoryStore) ListForUser(_ context.Context, userID id.UserID) ([]*models.Transaction, error) {
	s.mu.RLock()
	out := make([]*models.Transaction, 0)
	for _, tx := range s.txs {
		if tx.IsParty(userID) {
			c := clone(&tx)
			out = append(out, &c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return out, nil
}

func (s *InMemoryStore) Parties(_ context.Context, transactionID id.TransactionID) (id.UserID, id.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.txs[transactionID]
	if !ok {
		return id.UserID{}, id.UserID{}, sentinel.ErrNotFound
	}
	return tx.BuyerID, tx.SellerID, nil
}

// Execute loads the transaction, lets fn mutate a copy and saves the copy
// when fn returns nil.
func (s *InMemoryStore) Execute(_ context.Context, transactionID id.TransactionID, fn func(tx *models.Transaction) error) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.txs[transactionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := clone(&current)
	if err := fn(&working); err != nil {
		return nil, err
	}
	s.txs[transactionID] = clone(&working)
	return &working, nil
}

func clone(tx *models.Transaction) models.Transaction {
	out := *tx
	if tx.Amount != nil {
		amount := *tx.Amount
		out.Amount = &amount
	}
	return out
}
