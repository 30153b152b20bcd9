package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	audit "tradeledger/pkg/platform/audit"
)

// InMemoryStore keeps audit events in insertion order.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListBySubject(_ context.Context, subjectType, subjectID string) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.Event
	for _, e := range s.events {
		if e.SubjectType == subjectType && e.SubjectID == subjectID {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListRecent returns up to limit events, newest first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	all := append([]audit.Event(nil), s.events...)
	s.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.After(all[j].Timestamp)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Clear removes every event. Test helper.
func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}
