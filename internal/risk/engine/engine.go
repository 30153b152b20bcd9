// Package engine computes counterparty risk scores from a user's documents,
// ledger history and transactions.
package engine

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	docmodels "tradeledger/internal/document/models"
	ledgermodels "tradeledger/internal/ledger/models"
	"tradeledger/internal/risk/lock"
	"tradeledger/internal/risk/metrics"
	"tradeledger/internal/risk/models"
	txmodels "tradeledger/internal/transaction/models"
	id "tradeledger/pkg/domain"
	dErrors "tradeledger/pkg/domain-errors"
	"tradeledger/pkg/platform/sentinel"
	txcontext "tradeledger/pkg/platform/tx"
	"tradeledger/pkg/requestcontext"
)

var tracer = otel.Tracer("tradeledger/risk")

type RoleProvider interface {
	GetRole(ctx context.Context, userID id.UserID) (id.Role, error)
}

type Documents interface {
	ListByOwner(ctx context.Context, ownerID id.UserID) ([]*docmodels.Document, error)
}

type Ledger interface {
	ListForDocuments(ctx context.Context, documentIDs []id.DocumentID) ([]*ledgermodels.Entry, error)
	Append(ctx context.Context, documentID id.DocumentID, action ledgermodels.Action, actorID id.UserID, metadata map[string]string) (*ledgermodels.Entry, error)
}

type Transactions interface {
	ListForUser(ctx context.Context, userID id.UserID) ([]*txmodels.Transaction, error)
}

type Store interface {
	Upsert(ctx context.Context, score *models.Score) error
	AppendHistory(ctx context.Context, record *models.HistoryRecord) error
}

// Locker serializes computations for one user.
type Locker interface {
	Lock(ctx context.Context, key string) (lock.Unlock, error)
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Engine struct {
	roles        RoleProvider
	documents    Documents
	ledger       Ledger
	transactions Transactions
	store        Store
	systemActor  id.UserID
	locker       Locker
	tx           TxRunner
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLocker replaces the default in-process lock, e.g. with a Redis lock
// shared across replicas.
func WithLocker(l Locker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithTxRunner makes the score upsert and history append atomic.
func WithTxRunner(tx TxRunner) Option {
	return func(e *Engine) {
		e.tx = tx
	}
}

// New builds an engine. systemActor authors the RISK_RECALCULATED entries.
func New(roles RoleProvider, documents Documents, ledger Ledger, transactions Transactions, store Store, systemActor id.UserID, opts ...Option) (*Engine, error) {
	switch {
	case roles == nil:
		return nil, errors.New("role provider is required")
	case documents == nil:
		return nil, errors.New("document store is required")
	case ledger == nil:
		return nil, errors.New("ledger is required")
	case transactions == nil:
		return nil, errors.New("transaction store is required")
	case store == nil:
		return nil, errors.New("risk store is required")
	case systemActor.IsNil():
		return nil, errors.New("system actor is required")
	}
	e := &Engine{
		roles:        roles,
		documents:    documents,
		ledger:       ledger,
		transactions: transactions,
		store:        store,
		systemActor:  systemActor,
		locker:       lock.NewSharded(),
		tx:           txcontext.Passthrough{},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// ComputeScore recalculates and persists the score of userID. Users that are
// not corporate are skipped without error. Inputs are read only after the
// per-user lock is held, so a computation never persists a snapshot older
// than one already committed by a concurrent caller.
func (e *Engine) ComputeScore(ctx context.Context, userID id.UserID, trigger models.Trigger) (*models.Result, error) {
	if userID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "user_id is required")
	}
	if !trigger.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown trigger: "+string(trigger))
	}

	result, err := e.compute(ctx, userID, trigger)
	if err != nil {
		e.metrics.IncrementComputation(string(trigger), "error")
		return nil, err
	}
	return result, nil
}

func failSpan(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}

func (e *Engine) compute(ctx context.Context, userID id.UserID, trigger models.Trigger) (*models.Result, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "risk.ComputeScore", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(
		attribute.String("user.id", userID.String()),
		attribute.String("risk.trigger", string(trigger)),
	)

	role, err := e.roles.GetRole(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return e.skip(ctx, trigger, "user has no role"), nil
	}
	if err != nil {
		failSpan(span, err, "role lookup failed")
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to resolve role")
	}
	if role != id.RoleCorporate {
		return e.skip(ctx, trigger, "role "+role.String()+" is not scored"), nil
	}

	unlock, err := e.locker.Lock(ctx, userID.String())
	if err != nil {
		failSpan(span, err, "lock failed")
		return nil, err
	}
	defer unlock()

	in, docs, err := e.gather(ctx, userID)
	if err != nil {
		failSpan(span, err, "gather failed")
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to load risk inputs")
	}

	final, breakdown := Score(in)
	now := requestcontext.Now(ctx).UTC()
	score := &models.Score{
		UserID:      userID,
		Score:       final,
		Category:    models.CategoryFor(final),
		Rationale:   Rationale(in, final, breakdown),
		LastUpdated: now,
	}

	err = e.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := e.store.Upsert(ctx, score); err != nil {
			return err
		}
		return e.store.AppendHistory(ctx, &models.HistoryRecord{
			ID:         uuid.New(),
			UserID:     userID,
			Score:      score.Score,
			Category:   score.Category,
			Rationale:  score.Rationale,
			Trigger:    trigger,
			RecordedAt: now,
		})
	})
	if err != nil {
		failSpan(span, err, "persist failed")
		return nil, dErrors.Wrap(err, dErrors.CodeStorage, "failed to save risk score")
	}

	e.leaveBreadcrumb(ctx, docs, score, trigger)

	span.SetAttributes(attribute.Int("risk.score", score.Score), attribute.String("risk.category", string(score.Category)))
	e.metrics.IncrementComputation(string(trigger), "computed")
	e.metrics.ObserveCompute(time.Since(start), score.Score)
	e.logger.InfoContext(ctx, "risk score computed",
		"request_id", requestcontext.RequestID(ctx),
		"user_id", userID,
		"score", score.Score,
		"category", score.Category,
		"trigger", trigger,
	)
	return &models.Result{Score: score, Breakdown: breakdown}, nil
}

// gather loads documents with their ledger entries and the user's
// transactions concurrently.
func (e *Engine) gather(ctx context.Context, userID id.UserID) (Inputs, []*docmodels.Document, error) {
	g, gctx := errgroup.WithContext(ctx)

	var (
		in      Inputs
		docs    []*docmodels.Document
		entries []*ledgermodels.Entry
		txs     []*txmodels.Transaction
	)
	g.Go(func() error {
		var err error
		docs, err = e.documents.ListByOwner(gctx, userID)
		if err != nil {
			return err
		}
		ids := make([]id.DocumentID, 0, len(docs))
		for _, d := range docs {
			ids = append(ids, d.ID)
		}
		entries, err = e.ledger.ListForDocuments(gctx, ids)
		return err
	})
	g.Go(func() error {
		var err error
		txs, err = e.transactions.ListForUser(gctx, userID)
		return err
	})
	if err := g.Wait(); err != nil {
		return Inputs{}, nil, err
	}

	in.Documents = len(docs)
	CollectLedger(&in, entries)
	in.Transactions = txmodels.CountByStatus(txs)
	return in, docs, nil
}

// leaveBreadcrumb records the recalculation on the user's newest document.
// Failure is logged; the score is already saved.
func (e *Engine) leaveBreadcrumb(ctx context.Context, docs []*docmodels.Document, score *models.Score, trigger models.Trigger) {
	target := newest(docs)
	if target == nil {
		return
	}
	_, err := e.ledger.Append(ctx, target.ID, ledgermodels.ActionRiskRecalculated, e.systemActor, map[string]string{
		ledgermodels.MetaScore:    strconv.Itoa(score.Score),
		ledgermodels.MetaCategory: string(score.Category),
		ledgermodels.MetaTrigger:  string(trigger),
	})
	if err != nil {
		e.metrics.IncrementBreadcrumbFailure()
		e.logger.WarnContext(ctx, "failed to record risk recalculation in ledger",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", score.UserID,
			"document_id", target.ID,
			"error", err,
		)
	}
}

func (e *Engine) skip(ctx context.Context, trigger models.Trigger, reason string) *models.Result {
	e.metrics.IncrementComputation(string(trigger), "skipped")
	e.logger.DebugContext(ctx, "risk computation skipped", "reason", reason)
	return &models.Result{Skipped: true, SkipReason: reason}
}

func newest(docs []*docmodels.Document) *docmodels.Document {
	var out *docmodels.Document
	for _, d := range docs {
		if out == nil || d.CreatedAt.After(out.CreatedAt) {
			out = d
		}
	}
	return out
}
