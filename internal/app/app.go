// Package app builds the service graph from configuration. Stores are
// in-memory unless a database DSN is set; Redis, Kafka and GCS are wired
// only when configured.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/sync/errgroup"

	audithandler "tradeledger/internal/audit/handler"
	auditservice "tradeledger/internal/audit/service"
	dochandler "tradeledger/internal/document/handler"
	docmetrics "tradeledger/internal/document/metrics"
	docservice "tradeledger/internal/document/service"
	docstore "tradeledger/internal/document/store"
	idhandler "tradeledger/internal/identity/handler"
	idservice "tradeledger/internal/identity/service"
	idstore "tradeledger/internal/identity/store"
	"tradeledger/internal/integrity/blob"
	jwttoken "tradeledger/internal/jwt_token"
	ledgerhandler "tradeledger/internal/ledger/handler"
	ledgermetrics "tradeledger/internal/ledger/metrics"
	ledgerservice "tradeledger/internal/ledger/service"
	ledgerstore "tradeledger/internal/ledger/store"
	"tradeledger/internal/platform/config"
	"tradeledger/internal/platform/kafka"
	platformmetrics "tradeledger/internal/platform/metrics"
	"tradeledger/internal/platform/postgres"
	platformredis "tradeledger/internal/platform/redis"
	"tradeledger/internal/recalc"
	recalcmetrics "tradeledger/internal/recalc/metrics"
	"tradeledger/internal/risk/engine"
	riskhandler "tradeledger/internal/risk/handler"
	"tradeledger/internal/risk/lock"
	riskmetrics "tradeledger/internal/risk/metrics"
	riskmodels "tradeledger/internal/risk/models"
	riskservice "tradeledger/internal/risk/service"
	riskstore "tradeledger/internal/risk/store"
	txhandler "tradeledger/internal/transaction/handler"
	txmetrics "tradeledger/internal/transaction/metrics"
	txservice "tradeledger/internal/transaction/service"
	txstore "tradeledger/internal/transaction/store"
	httptransport "tradeledger/internal/transport/http"
	id "tradeledger/pkg/domain"
	audit "tradeledger/pkg/platform/audit"
	"tradeledger/pkg/platform/audit/publisher"
	auditmemory "tradeledger/pkg/platform/audit/store/memory"
	auditpostgres "tradeledger/pkg/platform/audit/store/postgres"
	"tradeledger/pkg/platform/audit/worker"
	"tradeledger/pkg/platform/middleware/ratelimit"
	txcontext "tradeledger/pkg/platform/tx"
)

// Metrics bundles the per-module collectors. Each constructor registers on
// the default registry, so build it once per process.
type Metrics struct {
	HTTP         *platformmetrics.Metrics
	Documents    *docmetrics.Metrics
	Ledger       *ledgermetrics.Metrics
	Risk         *riskmetrics.Metrics
	Transactions *txmetrics.Metrics
	Recalc       *recalcmetrics.Metrics
}

func NewMetrics() *Metrics {
	return &Metrics{
		HTTP:         platformmetrics.New(nil),
		Documents:    docmetrics.New(),
		Ledger:       ledgermetrics.New(),
		Risk:         riskmetrics.New(),
		Transactions: txmetrics.New(),
		Recalc:       recalcmetrics.New(),
	}
}

// Dispatcher is the recalculation entry point shared by the document and
// transaction services.
type Dispatcher interface {
	Dispatch(ctx context.Context, trigger riskmodels.Trigger, userIDs ...id.UserID)
	Close()
}

type stores struct {
	users        roleStore
	documents    documentStore
	ledger       ledgerservice.Store
	transactions transactionStore
	risk         riskStore
	audit        audit.Store
	tx           engine.TxRunner
}

type roleStore interface {
	idservice.Store
	GetRole(ctx context.Context, userID id.UserID) (id.Role, error)
}

type documentStore interface {
	docservice.Store
	ledgerservice.DocumentLookup
}

type transactionStore interface {
	txservice.Store
	docservice.TransactionParties
}

type riskStore interface {
	engine.Store
	riskservice.Store
}

// App owns the HTTP handler and every background worker.
type App struct {
	Handler http.Handler

	logger     *slog.Logger
	dispatcher Dispatcher
	background []func(ctx context.Context) error
	closers    []func() error
}

// New builds the application. A nil m disables module metrics.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, m *Metrics) (_ *App, err error) {
	if m == nil {
		m = &Metrics{}
	}
	app := &App{logger: logger}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	var db *sql.DB
	if cfg.Database.DSN != "" {
		db, err = postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		app.closers = append(app.closers, db.Close)
		if err = postgres.Migrate(ctx, db); err != nil {
			return nil, err
		}
	}
	st := buildStores(db)

	blobs, err := buildBlobStore(ctx, cfg.Blob, logger)
	if err != nil {
		return nil, err
	}
	if closer, ok := blobs.(interface{ Close() error }); ok {
		app.closers = append(app.closers, closer.Close)
	}

	auditPub := publisher.NewPublisher(st.audit, publisher.WithAsyncBuffer(256), publisher.WithLogger(logger))
	app.closers = append(app.closers, func() error { auditPub.Close(); return nil })

	health := map[string]httptransport.HealthCheck{}
	if db != nil {
		health["postgres"] = db.PingContext
	}

	ledgerSvc := ledgerservice.New(st.ledger, st.documents,
		ledgerservice.WithLogger(logger),
		ledgerservice.WithMetrics(m.Ledger),
		ledgerservice.WithRoleProvider(st.users),
	)

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMetrics(m.Risk),
		engine.WithTxRunner(st.tx),
	}
	redisClient, err := platformredis.Open(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if redisClient != nil {
		app.closers = append(app.closers, redisClient.Close)
		health["redis"] = platformredis.HealthCheck(redisClient)
		engineOpts = append(engineOpts, engine.WithLocker(lock.NewRedis(redisClient, cfg.Redis.LockTTL, lock.WithLogger(logger))))
	}
	riskEngine, err := engine.New(st.users, st.documents, ledgerSvc, st.transactions, st.risk, cfg.SystemActor(), engineOpts...)
	if err != nil {
		return nil, err
	}

	if err = app.buildDispatcher(ctx, cfg, riskEngine, auditPub, m.Recalc); err != nil {
		return nil, err
	}
	if db != nil && len(cfg.Kafka.Brokers) > 0 {
		if err = app.startOutboxRelay(db, cfg.Kafka); err != nil {
			return nil, err
		}
	}

	docSvc, err := docservice.New(st.documents, blobs, ledgerSvc, st.users,
		docservice.WithLogger(logger),
		docservice.WithMetrics(m.Documents),
		docservice.WithTxRunner(st.tx),
		docservice.WithDispatcher(app.dispatcher),
		docservice.WithTransactions(st.transactions),
	)
	if err != nil {
		return nil, err
	}
	txSvc, err := txservice.New(st.transactions, st.users,
		txservice.WithLogger(logger),
		txservice.WithMetrics(m.Transactions),
		txservice.WithDispatcher(app.dispatcher),
		txservice.WithAuditPublisher(auditPub),
	)
	if err != nil {
		return nil, err
	}
	riskSvc, err := riskservice.New(riskEngine, st.risk, st.users, riskservice.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	idSvc, err := idservice.New(st.users, cfg.SystemActor(),
		idservice.WithLogger(logger),
		idservice.WithAuditPublisher(auditPub),
	)
	if err != nil {
		return nil, err
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTIssuer)
	var limiter *ratelimit.Limiter
	if cfg.RateLimit.RPS > 0 {
		limiter = ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}
	app.Handler = httptransport.NewRouter(httptransport.Config{
		Logger:         logger,
		Metrics:        m.HTTP,
		Validator:      jwttoken.NewJWTServiceAdapter(jwtService),
		AdminToken:     cfg.AdminToken,
		AdminTokenHash: cfg.AdminTokenHash,
		RateLimiter:    limiter,
		API: []httptransport.Registrar{
			dochandler.New(docSvc, logger),
			ledgerhandler.New(ledgerSvc, logger),
			txhandler.New(txSvc, logger),
			riskhandler.New(riskSvc, logger),
		},
		Admin: []httptransport.Registrar{
			idhandler.New(idSvc, logger),
			audithandler.New(auditservice.New(auditPub, logger), logger),
		},
		Health: health,
	})
	return app, nil
}

func buildStores(db *sql.DB) stores {
	if db == nil {
		return stores{
			users:        idstore.NewInMemoryStore(),
			documents:    docstore.NewInMemoryStore(),
			ledger:       ledgerstore.NewInMemoryStore(),
			transactions: txstore.NewInMemoryStore(),
			risk:         riskstore.NewInMemoryStore(),
			audit:        auditmemory.NewInMemoryStore(),
			tx:           txcontext.Passthrough{},
		}
	}
	return stores{
		users:        idstore.NewPostgres(db),
		documents:    docstore.NewPostgres(db),
		ledger:       ledgerstore.NewPostgres(db),
		transactions: txstore.NewPostgres(db),
		risk:         riskstore.NewPostgres(db),
		audit:        auditpostgres.New(db),
		tx:           txcontext.NewPostgres(db),
	}
}

func buildBlobStore(ctx context.Context, cfg config.BlobConfig, logger *slog.Logger) (docservice.BlobStore, error) {
	switch strings.ToLower(cfg.Backend) {
	case config.BlobBackendFilesystem:
		return blob.NewFSStore(cfg.Dir)
	case config.BlobBackendGCS:
		opts := []blob.GCSOption{blob.WithGCSLogger(logger)}
		if cfg.CredentialsFile != "" {
			opts = append(opts, blob.WithCredentialsFile(cfg.CredentialsFile))
		}
		return blob.NewGCSStore(ctx, cfg.Bucket, opts...)
	default:
		return blob.NewMemoryStore(), nil
	}
}

// buildDispatcher wires in-process recalculation, and in kafka mode the
// task queue in front of it plus the consuming worker.
func (a *App) buildDispatcher(ctx context.Context, cfg *config.Config, computer recalc.Computer, auditPub recalc.AuditPublisher, m *recalcmetrics.Metrics) error {
	inproc, err := recalc.NewDispatcher(computer,
		recalc.WithTimeout(cfg.Recalc.Timeout),
		recalc.WithLogger(a.logger),
		recalc.WithMetrics(m),
	)
	if err != nil {
		return err
	}
	a.dispatcher = inproc
	if cfg.Recalc.Mode != config.RecalcModeKafka {
		return nil
	}

	kc := cfg.Kafka
	if err := kafka.EnsureTopics(ctx, kc.Brokers, kc.Partitions, kc.RecalcTopic, kc.DeadTopic, kc.AuditTopic); err != nil {
		return err
	}
	producer, err := kafka.NewProducer(kc.Brokers)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error { producer.Close(); return nil })

	queue, err := recalc.NewQueue(producer, kc.RecalcTopic, inproc,
		recalc.WithPublishTimeout(cfg.Recalc.Timeout),
		recalc.WithQueueLogger(a.logger),
		recalc.WithQueueMetrics(m),
	)
	if err != nil {
		return err
	}
	a.dispatcher = queue

	w, err := recalc.NewWorker(inproc, producer, recalc.WorkerConfig{
		Topic:       kc.RecalcTopic,
		DeadTopic:   kc.DeadTopic,
		MaxAttempts: cfg.Recalc.MaxAttempts,
		SystemActor: cfg.SystemActor(),
	}, recalc.WithWorkerLogger(a.logger), recalc.WithWorkerMetrics(m), recalc.WithAuditPublisher(auditPub))
	if err != nil {
		return err
	}
	consumer, err := kafka.NewConsumer(kc.Brokers, kc.ConsumerGroup, []string{kc.RecalcTopic}, a.logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error { consumer.Close(); return nil })
	a.background = append(a.background, func(ctx context.Context) error {
		return w.Run(ctx, consumer)
	})
	return nil
}

func (a *App) startOutboxRelay(db *sql.DB, kc config.KafkaConfig) error {
	producer, err := kafka.NewProducer(kc.Brokers)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error { producer.Close(); return nil })
	relay := worker.NewRelay(auditpostgres.New(db), producer, kc.AuditTopic, a.logger)
	a.background = append(a.background, relay.Run)
	return nil
}

// Run blocks until ctx is cancelled or a background worker fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, run := range a.background {
		g.Go(func() error {
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("background worker: %w", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Close drains in-flight recalculations and releases resources in reverse
// order of acquisition.
func (a *App) Close() {
	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
