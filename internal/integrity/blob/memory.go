package blob

import (
	"context"
	"sync"
)

// MemoryStore keeps blobs in a map. Used in tests and single-process runs.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

func (s *MemoryStore) Write(_ context.Context, path string, data []byte) (err error) {
	defer func() { observe("memory", "write", err) }()
	path, err = cleanPath(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[path] = append([]byte(nil), data...)
	return nil
}

func (s *MemoryStore) Read(_ context.Context, path string) (data []byte, err error) {
	defer func() { observe("memory", "read", err) }()
	path, err = cleanPath(path)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[path]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), b...), nil
}

func (s *MemoryStore) Delete(_ context.Context, path string) (err error) {
	defer func() { observe("memory", "delete", err) }()
	path, err = cleanPath(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, path)
	return nil
}
