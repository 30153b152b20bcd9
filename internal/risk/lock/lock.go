// Package lock serializes risk recalculations per user.
package lock

import (
	"context"
	"sync"
	"time"

	dErrors "tradeledger/pkg/domain-errors"
)

const numShards = 128

// defaultWait bounds how long Lock waits when ctx carries no deadline.
const defaultWait = 5 * time.Second

// Unlock releases a lock obtained from Lock. It is safe to call once.
type Unlock func()

// Sharded is an in-process lock keyed by string. Keys hash onto a fixed set
// of mutexes, so unrelated keys may occasionally share a shard.
type Sharded struct {
	shards [numShards]chan struct{}
}

func NewSharded() *Sharded {
	s := &Sharded{}
	for i := range s.shards {
		s.shards[i] = make(chan struct{}, 1)
	}
	return s
}

// Lock blocks until the shard for key is free or ctx is done.
func (s *Sharded) Lock(ctx context.Context, key string) (Unlock, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultWait)
		defer cancel()
	}
	shard := s.shards[hashKey(key)%numShards]
	select {
	case shard <- struct{}{}:
	case <-ctx.Done():
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "timed out waiting for risk lock")
	}
	var once sync.Once
	return func() {
		once.Do(func() { <-shard })
	}, nil
}

// hashKey is FNV-1a.
func hashKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}
