package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"dossier/internal/attestation/adapters"
	ahandler "dossier/internal/attestation/handler"
	ametrics "dossier/internal/attestation/metrics"
	aservice "dossier/internal/attestation/service"
	astore "dossier/internal/attestation/store"
	httpapi "dossier/internal/http"
	"dossier/internal/identitysource"
	"dossier/internal/invalidation"
	"dossier/internal/platform/config"
	"dossier/internal/platform/kafka"
	platformmetrics "dossier/internal/platform/metrics"
	"dossier/internal/platform/postgres"
	"dossier/internal/platform/redis"
	phandler "dossier/internal/players/handler"
	pmetrics "dossier/internal/players/metrics"
	pservice "dossier/internal/players/service"
	pstore "dossier/internal/players/store"
	rhandler "dossier/internal/reports/handler"
	rmetrics "dossier/internal/reports/metrics"
	rservice "dossier/internal/reports/service"
	rstore "dossier/internal/reports/store"
	"dossier/pkg/platform/circuit"
	"dossier/pkg/platform/tx"
)

const publishTimeout = 2 * time.Second

type appOptions struct {
	// metrics registers Prometheus collectors; only one app per process may.
	metrics bool
	migrate bool
}

type playerStore interface {
	pservice.PlayerStore
	adapters.PlayerStore
}

type reportStore interface {
	rservice.ReportStore
	adapters.ReportStore
}

// app holds the constructed services and the resources they own.
type app struct {
	logger       *slog.Logger
	players      *pservice.Service
	reports      *rservice.Service
	attestations *aservice.Service
	dispatcher   *invalidation.Dispatcher
	httpMetrics  *platformmetrics.Metrics
	checks       map[string]httpapi.HealthCheck
	closers      []func() error
}

func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger, opts appOptions) (_ *app, err error) {
	a := &app{logger: logger, checks: map[string]httpapi.HealthCheck{}}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	var (
		players      playerStore
		reports      reportStore
		attestations aservice.Store
		runner       pservice.TxRunner
	)
	if cfg.Database.URL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory stores")
		players, reports, attestations = pstore.NewInMemory(), rstore.NewInMemory(), astore.NewInMemory()
		runner = tx.NewLockingRunner()
	} else {
		db, err := openDatabase(ctx, cfg.Database, logger, opts.migrate)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.checks["database"] = db.PingContext
		players, reports, attestations = pstore.NewPostgres(db), rstore.NewPostgres(db), astore.NewPostgres(db)
		runner = tx.NewPostgresRunner(db, cfg.Database.TxTimeout)
	}

	publishers, err := a.buildPublishers(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.dispatcher = invalidation.NewDispatcher(logger, publishTimeout, publishers...)

	var (
		playerOpts      = []pservice.Option{pservice.WithLogger(logger), pservice.WithLookupTimeout(cfg.IdentitySource.Timeout)}
		reportOpts      = []rservice.Option{rservice.WithLogger(logger)}
		attestationOpts = []aservice.Option{aservice.WithLogger(logger)}
		sourceMetrics   *identitysource.Metrics
	)
	if opts.metrics {
		a.httpMetrics = platformmetrics.New()
		sourceMetrics = identitysource.NewMetrics()
		playerOpts = append(playerOpts, pservice.WithMetrics(pmetrics.New()))
		reportOpts = append(reportOpts, rservice.WithMetrics(rmetrics.New()))
		attestationOpts = append(attestationOpts, aservice.WithMetrics(ametrics.New()))
	}

	a.players, err = pservice.New(players, buildSource(cfg.IdentitySource, logger, sourceMetrics), runner, playerOpts...)
	if err != nil {
		return nil, err
	}
	a.attestations, err = aservice.New(attestations, adapters.NewOwnerResolver(players, reports), attestationOpts...)
	if err != nil {
		return nil, err
	}
	reportOpts = append(reportOpts, rservice.WithVoteCounter(a.attestations))
	a.reports, err = rservice.New(reports, a.players, reportOpts...)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger, migrate bool) (*sql.DB, error) {
	db, err := postgres.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return db, nil
}

func buildSource(cfg config.IdentitySourceConfig, logger *slog.Logger, m *identitysource.Metrics) pservice.IdentitySource {
	if cfg.BaseURL == "" {
		logger.Warn("IDENTITY_SOURCE_URL not set, upstream lookups always miss")
		return identitysource.NewStaticSource()
	}
	breaker := circuit.New("identity-source",
		circuit.WithFailureThreshold(cfg.FailureThreshold),
		circuit.WithSuccessThreshold(cfg.SuccessThreshold),
		circuit.WithCooldown(cfg.Cooldown),
	)
	opts := []identitysource.Option{identitysource.WithBreaker(breaker), identitysource.WithLogger(logger)}
	if m != nil {
		opts = append(opts, identitysource.WithMetrics(m))
	}
	return identitysource.NewClient("identity-source", cfg.BaseURL, cfg.APIKey, cfg.Timeout, opts...)
}

func (a *app) buildPublishers(ctx context.Context, cfg config.Config) ([]invalidation.Publisher, error) {
	var publishers []invalidation.Publisher

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		a.closers = append(a.closers, rc.Close)
		a.checks["redis"] = rc.Health
		publishers = append(publishers, invalidation.NewRedisPublisher(rc.Client, cfg.Invalidation.RedisChannel))
	}

	if len(cfg.Kafka.Brokers) > 0 {
		kc, err := kafka.New(ctx, cfg.Kafka)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { kc.Close(); return nil })
		if err := kafka.EnsureTopics(ctx, kc, 1, 1, cfg.Invalidation.KafkaTopic); err != nil {
			return nil, fmt.Errorf("ensure invalidation topic: %w", err)
		}
		a.checks["kafka"] = kc.Ping
		publishers = append(publishers, invalidation.NewKafkaPublisher(kc, cfg.Invalidation.KafkaTopic))
	}
	return publishers, nil
}

func (a *app) modules() []httpapi.Module {
	return []httpapi.Module{
		phandler.New(a.players, a.dispatcher, a.logger),
		rhandler.New(a.reports, a.dispatcher, a.logger),
		ahandler.New(a.attestations, a.dispatcher, a.logger),
	}
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("failed to close resource", "error", err)
		}
	}
	a.closers = nil
}
