// Package publisher emits audit events to an audit.Store, either inline or
// through a bounded buffer drained by a background goroutine.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	audit "tradeledger/pkg/platform/audit"
)

var errBufferFull = errors.New("audit buffer full")

// Publisher writes audit events. In async mode Emit never blocks on the
// store; when the buffer is full the event is dropped and an error returned.
type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	buffer chan audit.Event
	wg     sync.WaitGroup
	once   sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with the given buffer size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.buffer = make(chan audit.Event, size)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event. Timestamp defaults to now.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if p.buffer == nil {
		return p.store.Append(ctx, event)
	}

	select {
	case p.buffer <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		if p.logger != nil {
			p.logger.WarnContext(ctx, "audit buffer full, dropping event",
				"action", event.Action,
				"subject_id", event.SubjectID,
			)
		}
		return errBufferFull
	}
}

// ListBySubject reads back events for one subject.
func (p *Publisher) ListBySubject(ctx context.Context, subjectType, subjectID string) ([]audit.Event, error) {
	return p.store.ListBySubject(ctx, subjectType, subjectID)
}

// ListRecent reads back the newest events across all subjects.
func (p *Publisher) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	return p.store.ListRecent(ctx, limit)
}

// Close stops accepting events and drains the buffer.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.store.Append(ctx, event); err != nil && p.logger != nil {
			p.logger.Error("failed to persist audit event",
				"action", event.Action,
				"subject_id", event.SubjectID,
				"error", err,
			)
		}
		cancel()
	}
}
