package store

import (
	"context"
	"sort"
	"sync"

	"tradeledger/internal/risk/models"
	id "tradeledger/pkg/domain"
	"tradeledger/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	scores  map[id.UserID]models.Score
	history map[id.UserID][]models.HistoryRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		scores:  make(map[id.UserID]models.Score),
		history: make(map[id.UserID][]models.HistoryRecord),
	}
}

func (s *InMemoryStore) Upsert(_ context.Context, score *models.Score) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores[score.UserID] = *score
	return nil
}

func (s *InMemoryStore) GetByUser(_ context.Context, userID id.UserID) (*models.Score, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	score, ok := s.scores[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &score, nil
}

// ListAll returns every score, highest first. Ties are broken by user id so
// the order is stable.
func (s *InMemoryStore) ListAll(_ context.Context) ([]*models.Score, error) {
	s.mu.RLock()
	out := make([]*models.Score, 0, len(s.scores))
	for _, score := range s.scores {
		out = append(out, &score)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].UserID.String() < out[j].UserID.String()
	})
	return out, nil
}

func (s *InMemoryStore) AppendHistory(_ context.Context, record *models.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history[record.UserID] = append(s.history[record.UserID], *record)
	return nil
}

// ListHistory returns a user's records oldest first.
func (s *InMemoryStore) ListHistory(_ context.Context, userID id.UserID) ([]*models.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records := s.history[userID]
	out := make([]*models.HistoryRecord, 0, len(records))
	for i := range records {
		r := records[i]
		out = append(out, &r)
	}
	return out, nil
}
