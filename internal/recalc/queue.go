package recalc

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"tradeledger/internal/recalc/metrics"
	riskmodels "tradeledger/internal/risk/models"
	id "tradeledger/pkg/domain"
	"tradeledger/pkg/platform/circuit"
	"tradeledger/pkg/requestcontext"
)

const defaultProbeInterval = 10 * time.Second

// Producer publishes a keyed message to a topic.
type Producer interface {
	Produce(ctx context.Context, topic string, key, value []byte) error
}

// Queue publishes recalculation tasks to a topic consumed by Worker. While
// the broker is failing, the circuit opens and tasks run in process on the
// fallback dispatcher; one publish is attempted per probe interval to detect
// recovery.
type Queue struct {
	producer Producer
	topic    string
	fallback *Dispatcher
	breaker  *circuit.Breaker
	timeout  time.Duration
	probe    time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics

	lastProbe atomic.Int64
}

type QueueOption func(*Queue)

func WithBreaker(b *circuit.Breaker) QueueOption {
	return func(q *Queue) {
		q.breaker = b
	}
}

// WithProbeInterval sets how often an open circuit lets a publish through.
func WithProbeInterval(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d > 0 {
			q.probe = d
		}
	}
}

func WithPublishTimeout(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) {
		q.logger = logger
	}
}

func WithQueueMetrics(m *metrics.Metrics) QueueOption {
	return func(q *Queue) {
		q.metrics = m
	}
}

func NewQueue(producer Producer, topic string, fallback *Dispatcher, opts ...QueueOption) (*Queue, error) {
	if producer == nil {
		return nil, errors.New("producer is required")
	}
	if topic == "" {
		return nil, errors.New("recalc topic is required")
	}
	if fallback == nil {
		return nil, errors.New("fallback dispatcher is required")
	}
	q := &Queue{
		producer: producer,
		topic:    topic,
		fallback: fallback,
		timeout:  defaultTimeout,
		probe:    defaultProbeInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.breaker == nil {
		q.breaker = circuit.New("recalc-publish")
	}
	return q, nil
}

// Dispatch publishes one task per distinct user id without blocking the
// caller. Publishing runs on the fallback dispatcher's goroutines so Close
// waits for it.
func (q *Queue) Dispatch(ctx context.Context, trigger riskmodels.Trigger, userIDs ...id.UserID) {
	base := requestcontext.Detach(ctx)
	requestID := requestcontext.RequestID(ctx)
	for _, userID := range dedupe(userIDs) {
		task := Task{UserID: userID, Trigger: trigger, Attempt: 1, RequestID: requestID}
		if !q.fallback.spawn(func() { q.publish(base, task) }) {
			q.logger.WarnContext(ctx, "recalc dropped after shutdown",
				"request_id", requestID,
				"user_id", userID,
			)
		}
	}
}

func (q *Queue) publish(ctx context.Context, task Task) {
	if q.breaker.IsOpen() && !q.probeDue() {
		q.runFallback(ctx, task, "circuit open")
		return
	}

	payload, err := task.Encode()
	if err != nil {
		q.runFallback(ctx, task, err.Error())
		return
	}
	pubCtx, cancel := context.WithTimeout(ctx, q.timeout)
	err = q.producer.Produce(pubCtx, q.topic, []byte(task.UserID.String()), payload)
	cancel()
	if err != nil {
		_, change := q.breaker.RecordFailure()
		if change.Opened {
			q.lastProbe.Store(time.Now().UnixNano())
			q.logger.WarnContext(ctx, "recalc publish circuit opened", "topic", q.topic)
		}
		q.runFallback(ctx, task, err.Error())
		return
	}

	if _, change := q.breaker.RecordSuccess(); change.Closed {
		q.logger.InfoContext(ctx, "recalc publish circuit closed", "topic", q.topic)
	}
	q.metrics.IncrementDispatched("kafka")
}

func (q *Queue) runFallback(ctx context.Context, task Task, reason string) {
	q.metrics.IncrementFallback()
	q.metrics.IncrementDispatched("inprocess")
	q.logger.WarnContext(ctx, "recalc publish failed, running in process",
		"request_id", task.RequestID,
		"user_id", task.UserID,
		"reason", reason,
	)
	_ = q.fallback.Execute(ctx, task.UserID, task.Trigger)
}

// probeDue reports whether this caller may try the broker while the circuit
// is open. At most one caller wins per interval.
func (q *Queue) probeDue() bool {
	now := time.Now().UnixNano()
	last := q.lastProbe.Load()
	if now-last < q.probe.Nanoseconds() {
		return false
	}
	return q.lastProbe.CompareAndSwap(last, now)
}

// Close waits for pending publishes and fallback executions.
func (q *Queue) Close() {
	q.fallback.Close()
}
