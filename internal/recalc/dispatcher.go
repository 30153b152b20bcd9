// Package recalc fans risk recalculation out of request paths. Dispatch never
// blocks the caller and never reports failure: outcomes are logged and
// counted only.
package recalc

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"tradeledger/internal/recalc/metrics"
	riskmodels "tradeledger/internal/risk/models"
	id "tradeledger/pkg/domain"
	"tradeledger/pkg/requestcontext"
)

const defaultTimeout = 5 * time.Second

// Computer runs one risk computation.
type Computer interface {
	ComputeScore(ctx context.Context, userID id.UserID, trigger riskmodels.Trigger) (*riskmodels.Result, error)
}

// Dispatcher runs each recalculation in its own goroutine with its own
// deadline, detached from the caller's context.
type Dispatcher struct {
	computer Computer
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type Option func(*Dispatcher)

func WithTimeout(d time.Duration) Option {
	return func(p *Dispatcher) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Dispatcher) {
		p.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Dispatcher) {
		p.metrics = m
	}
}

func NewDispatcher(computer Computer, opts ...Option) (*Dispatcher, error) {
	if computer == nil {
		return nil, errors.New("risk computer is required")
	}
	d := &Dispatcher{
		computer: computer,
		timeout:  defaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Dispatch schedules one recalculation per distinct user id and returns.
func (d *Dispatcher) Dispatch(ctx context.Context, trigger riskmodels.Trigger, userIDs ...id.UserID) {
	base := requestcontext.Detach(ctx)
	for _, userID := range dedupe(userIDs) {
		d.metrics.IncrementDispatched("inprocess")
		if !d.spawn(func() {
			_ = d.Execute(base, userID, trigger)
		}) {
			d.logger.WarnContext(ctx, "recalc dropped after shutdown",
				"request_id", requestcontext.RequestID(ctx),
				"user_id", userID,
				"trigger", trigger,
			)
		}
	}
}

// Execute runs one recalculation synchronously under the configured
// timeout. The error is returned for queue workers; Dispatch discards it.
func (d *Dispatcher) Execute(ctx context.Context, userID id.UserID, trigger riskmodels.Trigger) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	result, err := d.computer.ComputeScore(ctx, userID, trigger)
	switch {
	case err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded):
		d.metrics.IncrementOutcome("timeout")
		d.logger.WarnContext(ctx, "risk recalculation timed out",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"trigger", trigger,
			"timeout", d.timeout,
		)
	case err != nil:
		d.metrics.IncrementOutcome("error")
		d.logger.ErrorContext(ctx, "risk recalculation failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID,
			"trigger", trigger,
			"error", err,
		)
	case result.Skipped:
		d.metrics.IncrementOutcome("skipped")
	default:
		d.metrics.IncrementOutcome("computed")
		d.logger.DebugContext(ctx, "risk recalculated",
			"user_id", userID,
			"trigger", trigger,
			"score", result.Score.Score,
			"duration", time.Since(start),
		)
	}
	return err
}

// Close stops accepting work and waits for in-flight recalculations.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) spawn(fn func()) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn()
	}()
	return true
}

func dedupe(userIDs []id.UserID) []id.UserID {
	out := make([]id.UserID, 0, len(userIDs))
	seen := make(map[id.UserID]struct{}, len(userIDs))
	for _, userID := range userIDs {
		if userID.IsNil() {
			continue
		}
		if _, ok := seen[userID]; ok {
			continue
		}
		seen[userID] = struct{}{}
		out = append(out, userID)
	}
	return out
}
