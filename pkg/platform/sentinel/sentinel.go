package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: entity does not exist in the store
//   - ErrConflict: unique key already taken (duplicate insert)
//   - ErrInvalidState: entity in wrong state for the requested mutation
//   - ErrUnavailable: backing service (blob store, broker, lock) unreachable
//   - ErrLockHeld: a per-key lock could not be acquired before the deadline
//
// For validation failures use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
	ErrLockHeld     = errors.New("lock held")
)
