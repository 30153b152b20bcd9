package store

import (
	"context"
	"sort"
	"sync"

	"tradeledger/internal/document/models"
	id "tradeledger/pkg/domain"
	"tradeledger/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[id.DocumentID]models.Document
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{docs: make(map[id.DocumentID]models.Document)}
}

func (s *InMemoryStore) Insert(_ context.Context, doc *models.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[doc.ID]; exists {
		return sentinel.ErrConflict
	}
	s.docs[doc.ID] = *doc
	return nil
}

func (s *InMemoryStore) GetByID(_ context.Context, documentID id.DocumentID) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[documentID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &doc, nil
}

// ListByOwner returns the owner's documents, most recently created first.
func (s *InMemoryStore) ListByOwner(_ context.Context, ownerID id.UserID) ([]*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Document
	for _, doc := range s.docs {
		if doc.OwnerID == ownerID {
			d := doc
			out = append(out, &d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() > out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *InMemoryStore) OwnerOf(_ context.Context, documentID id.DocumentID) (id.UserID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[documentID]
	if !ok {
		return id.UserID{}, sentinel.ErrNotFound
	}
	return doc.OwnerID, nil
}

// Discard removes a document whose upload did not complete.
func (s *InMemoryStore) Discard(_ context.Context, documentID id.DocumentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, documentID)
	return nil
}
