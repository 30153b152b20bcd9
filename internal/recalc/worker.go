package recalc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"tradeledger/internal/platform/kafka"
	"tradeledger/internal/recalc/metrics"
	riskmodels "tradeledger/internal/risk/models"
	id "tradeledger/pkg/domain"
	dErrors "tradeledger/pkg/domain-errors"
	audit "tradeledger/pkg/platform/audit"
	"tradeledger/pkg/requestcontext"
)

// Executor runs one recalculation synchronously.
type Executor interface {
	Execute(ctx context.Context, userID id.UserID, trigger riskmodels.Trigger) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Worker consumes recalculation tasks. A failed task is republished with
// its attempt count incremented until MaxAttempts, then written to the
// dead-letter topic.
type Worker struct {
	executor    Executor
	producer    Producer
	topic       string
	deadTopic   string
	maxAttempts int
	systemActor id.UserID
	auditor     AuditPublisher
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type WorkerConfig struct {
	Topic       string
	DeadTopic   string
	MaxAttempts int
	// SystemActor is recorded as the actor of dead-letter audit events.
	SystemActor id.UserID
}

type WorkerOption func(*Worker)

func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithWorkerMetrics(m *metrics.Metrics) WorkerOption {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithAuditPublisher records an audit event for every dead-lettered task.
func WithAuditPublisher(p AuditPublisher) WorkerOption {
	return func(w *Worker) {
		w.auditor = p
	}
}

func NewWorker(executor Executor, producer Producer, cfg WorkerConfig, opts ...WorkerOption) (*Worker, error) {
	if executor == nil {
		return nil, errors.New("executor is required")
	}
	if producer == nil {
		return nil, errors.New("producer is required")
	}
	if cfg.Topic == "" || cfg.DeadTopic == "" {
		return nil, errors.New("recalc and dead-letter topics are required")
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	w := &Worker{
		executor:    executor,
		producer:    producer,
		topic:       cfg.Topic,
		deadTopic:   cfg.DeadTopic,
		maxAttempts: cfg.MaxAttempts,
		systemActor: cfg.SystemActor,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Handle processes one consumed record. It returns an error only when the
// retry or dead-letter publish itself failed.
func (w *Worker) Handle(ctx context.Context, msg kafka.Message) error {
	task, err := DecodeTask(msg.Value)
	if err != nil {
		return w.deadLetter(ctx, nil, msg.Value, err)
	}

	taskCtx := ctx
	if task.RequestID != "" {
		taskCtx = requestcontext.WithRequestID(taskCtx, task.RequestID)
	}
	execErr := w.executor.Execute(taskCtx, task.UserID, task.Trigger)
	if execErr == nil {
		return nil
	}
	if !retryable(execErr) || task.Attempt >= w.maxAttempts {
		return w.deadLetter(taskCtx, task, nil, execErr)
	}

	next := *task
	next.Attempt++
	payload, err := next.Encode()
	if err != nil {
		return fmt.Errorf("encode retry task: %w", err)
	}
	if err := w.producer.Produce(taskCtx, w.topic, []byte(next.UserID.String()), payload); err != nil {
		return fmt.Errorf("republish recalc task: %w", err)
	}
	w.metrics.IncrementRetry()
	w.logger.InfoContext(taskCtx, "recalc task requeued",
		"request_id", task.RequestID,
		"user_id", task.UserID,
		"attempt", next.Attempt,
		"max_attempts", w.maxAttempts,
	)
	return nil
}

func (w *Worker) deadLetter(ctx context.Context, task *Task, raw []byte, cause error) error {
	dl := DeadLetter{
		Task:     task,
		Error:    cause.Error(),
		FailedAt: requestcontext.Now(ctx).UTC(),
	}
	key := []byte("malformed")
	if task != nil {
		key = []byte(task.UserID.String())
	} else {
		dl.Raw = string(raw)
	}
	payload, err := json.Marshal(dl)
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}
	if err := w.producer.Produce(ctx, w.deadTopic, key, payload); err != nil {
		return fmt.Errorf("publish dead letter: %w", err)
	}

	w.metrics.IncrementDeadLettered()
	w.logger.ErrorContext(ctx, "recalc task dead-lettered",
		"request_id", requestcontext.RequestID(ctx),
		"key", string(key),
		"error", cause,
	)
	w.auditDeadLetter(ctx, task, dl)
	return nil
}

func (w *Worker) auditDeadLetter(ctx context.Context, task *Task, dl DeadLetter) {
	if w.auditor == nil {
		return
	}
	event := audit.Event{
		ActorID:     w.systemActor,
		ActorRole:   id.RoleSystem,
		Action:      audit.ActionRecalcDeadLettered,
		SubjectType: "user",
		Reason:      dl.Error,
		RequestID:   requestcontext.RequestID(ctx),
		Timestamp:   dl.FailedAt,
	}
	if task != nil {
		event.SubjectID = task.UserID.String()
		event.To = strconv.Itoa(task.Attempt)
	}
	if err := w.auditor.Emit(ctx, event); err != nil {
		w.logger.WarnContext(ctx, "failed to audit dead-lettered recalc", "error", err)
	}
}

// retryable excludes failures a retry cannot fix.
func retryable(err error) bool {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeBadRequest, dErrors.CodeForbidden:
		return false
	}
	return true
}

// Run consumes until ctx is cancelled.
func (w *Worker) Run(ctx context.Context, consumer *kafka.Consumer) error {
	w.logger.InfoContext(ctx, "recalc worker started", "topic", w.topic, "dead_topic", w.deadTopic)
	start := time.Now()
	err := consumer.Run(ctx, w.Handle)
	w.logger.InfoContext(ctx, "recalc worker stopped", "uptime", time.Since(start))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
