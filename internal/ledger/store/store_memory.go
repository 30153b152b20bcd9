package store

import (
	"context"
	"maps"
	"sort"
	"sync"

	"tradeledger/internal/ledger/models"
	id "tradeledger/pkg/domain"
)

// InMemoryStore keeps ledger entries per document. There is no update or
// delete path.
type InMemoryStore struct {
	mu    sync.RWMutex
	byDoc map[id.DocumentID][]models.Entry
	seq   int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{byDoc: make(map[id.DocumentID][]models.Entry)}
}

// Append stores a copy of entry and assigns its Sequence. CreatedAt is
// clamped so a document's timestamps never decrease.
func (s *InMemoryStore) Append(_ context.Context, entry *models.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.byDoc[entry.DocumentID]
	if n := len(entries); n > 0 && entry.CreatedAt.Before(entries[n-1].CreatedAt) {
		entry.CreatedAt = entries[n-1].CreatedAt
	}
	s.seq++
	entry.Sequence = s.seq

	stored := *entry
	stored.Metadata = maps.Clone(entry.Metadata)
	s.byDoc[entry.DocumentID] = append(entries, stored)
	return nil
}

func (s *InMemoryStore) ListByDocument(_ context.Context, documentID id.DocumentID) ([]*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneEntries(s.byDoc[documentID]), nil
}

// ListByDocuments returns the entries of all given documents ordered by
// creation time, then insertion order.
func (s *InMemoryStore) ListByDocuments(_ context.Context, documentIDs []id.DocumentID) ([]*models.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.Entry
	for _, docID := range documentIDs {
		out = append(out, cloneEntries(s.byDoc[docID])...)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Sequence < out[j].Sequence
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func cloneEntries(entries []models.Entry) []*models.Entry {
	out := make([]*models.Entry, 0, len(entries))
	for i := range entries {
		e := entries[i]
		e.Metadata = maps.Clone(e.Metadata)
		out = append(out, &e)
	}
	return out
}
