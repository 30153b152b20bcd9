package store

import (
	"context"
	"sync"

	"tradeledger/internal/identity/models"
	id "tradeledger/pkg/domain"
	"tradeledger/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu    sync.RWMutex
	users map[id.UserID]models.User
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{users: make(map[id.UserID]models.User)}
}

// Save inserts the user or replaces the role of an existing one. The
// original CreatedAt is kept.
func (s *InMemoryStore) Save(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[user.ID]; ok {
		user.CreatedAt = existing.CreatedAt
	}
	s.users[user.ID] = *user
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &user, nil
}

// GetRole implements the role lookup used by every domain service.
func (s *InMemoryStore) GetRole(ctx context.Context, userID id.UserID) (id.Role, error) {
	user, err := s.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}
