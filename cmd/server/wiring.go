package main

import (
	"context"
	"database/sql"
	"log/slog"

	authzservice "insurely/internal/authz/service"
	authzstore "insurely/internal/authz/store"
	claimservice "insurely/internal/claim/service"
	claimstore "insurely/internal/claim/store"
	"insurely/internal/events"
	"insurely/internal/payout"
	"insurely/internal/payout/adapters/treasury"
	"insurely/internal/platform/config"
	"insurely/internal/platform/kafka"
	"insurely/internal/platform/lock"
	"insurely/internal/platform/metrics"
	"insurely/internal/platform/postgres"
	"insurely/internal/platform/redis"
	policyservice "insurely/internal/policy/service"
	policystore "insurely/internal/policy/store"
	httptransport "insurely/internal/transport/http"
	"insurely/pkg/platform/tx"
)

// ledger bundles the stores behind one transaction boundary.
type ledger struct {
	authz    authzservice.Store
	policies policyservice.Store
	claims   claimservice.Store
	runner   tx.Runner
	health   []httptransport.HealthCheck
	close    func()
}

// openLedger selects PostgreSQL when a database URL is configured and the
// in-memory stores otherwise.
func openLedger(ctx context.Context, cfg config.Server, log *slog.Logger) (*ledger, error) {
	if cfg.Database.URL == "" {
		log.Info("using in-memory ledger")
		return &ledger{
			authz:    authzstore.NewInMemory(),
			policies: policystore.NewInMemory(),
			claims:   claimstore.NewInMemory(),
			runner:   tx.NewLocalRunner(cfg.Database.TxTimeout),
			close:    func() {},
		}, nil
	}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	log.Info("using postgres ledger")
	return &ledger{
		authz:    authzstore.NewPostgres(db),
		policies: policystore.NewPostgres(db),
		claims:   claimstore.NewPostgres(db),
		runner:   postgres.NewTxRunner(db, cfg.Database.TxTimeout),
		health:   []httptransport.HealthCheck{{Name: "postgres", Check: pingDB(db)}},
		close: func() {
			if err := db.Close(); err != nil {
				log.Warn("close postgres", "error", err)
			}
		},
	}, nil
}

func pingDB(db *sql.DB) func(context.Context) error {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

// buildLocker returns Redis locks when Redis is configured so several
// instances can share one ledger.
func buildLocker(ctx context.Context, cfg config.Server, log *slog.Logger, l *ledger) (lock.Locker, func(), error) {
	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		if cfg.Database.URL != "" {
			log.Warn("postgres ledger with in-process locks; run a single instance")
		}
		return lock.NewKeyedMutex(), func() {}, nil
	}

	l.health = append(l.health, httptransport.HealthCheck{Name: "redis", Check: client.Health})
	locker := lock.NewRedisLocker(client.Client, cfg.Lock.TTL,
		lock.WithRetryBackoff(cfg.Lock.RetryBackoff),
		lock.WithLogger(log),
	)
	return locker, func() {
		if err := client.Close(); err != nil {
			log.Warn("close redis", "error", err)
		}
	}, nil
}

type eventBus struct {
	emitter *events.Emitter
	workers []*events.Worker
	close   func()
}

// buildEventBus always logs events and additionally publishes them to Kafka
// through an async buffer when brokers are configured.
func buildEventBus(ctx context.Context, cfg config.Server, log *slog.Logger, m *metrics.Metrics, l *ledger) (*eventBus, error) {
	sinks := []events.Sink{events.NewLogSink(log)}
	bus := &eventBus{close: func() {}}

	client, err := kafka.NewClient(cfg.Kafka)
	if err != nil {
		return nil, err
	}
	if client != nil {
		if err := kafka.EnsureTopic(ctx, client, cfg.Kafka); err != nil {
			client.Close()
			return nil, err
		}
		async := events.NewAsyncSink(events.NewKafkaSink(client, cfg.Kafka.Topic), cfg.Kafka.BufferSize, m)
		sinks = append(sinks, async)
		bus.workers = append(bus.workers, async.Worker(log))
		l.health = append(l.health, httptransport.HealthCheck{Name: "kafka", Check: client.Ping})
		bus.close = client.Close
		log.Info("publishing events to kafka", "topic", cfg.Kafka.Topic)
	}

	bus.emitter = events.NewEmitter(sinks, events.WithLogger(log), events.WithMetrics(m))
	return bus, nil
}

func buildTreasury(cfg config.Server, log *slog.Logger) payout.Treasury {
	if cfg.Treasury.URL == "" {
		log.Warn("no treasury configured; using simulated treasury")
		return treasury.NewSimulated()
	}
	return treasury.NewHTTP(cfg.Treasury.URL, cfg.Treasury.Timeout, treasury.WithLogger(log))
}
