// Package app assembles the services from configuration for the binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/Wuchinator/learning-analytics/internal/analytics"
	"github.com/Wuchinator/learning-analytics/internal/config"
	"github.com/Wuchinator/learning-analytics/internal/event"
	"github.com/Wuchinator/learning-analytics/internal/lms"
	"github.com/Wuchinator/learning-analytics/internal/metrics"
	"github.com/Wuchinator/learning-analytics/internal/rollup"
	"github.com/Wuchinator/learning-analytics/internal/store"
	"github.com/Wuchinator/learning-analytics/internal/timerange"
	"github.com/Wuchinator/learning-analytics/pkg/logger"
	"github.com/Wuchinator/learning-analytics/pkg/mongodb"
	"github.com/Wuchinator/learning-analytics/pkg/sqldb"
	"go.uber.org/zap"
)

// Closer releases a resource opened by this package.
type Closer func(ctx context.Context) error

func noop(context.Context) error { return nil }

// OpenStore returns the configured document store backend.
func OpenStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (store.Store, Closer, error) {
	switch cfg.Store.Backend {
	case "memory", "":
		log.Warn("Using in-memory store, data is lost on exit")
		return store.NewMemoryStore(), noop, nil
	case "mongo":
		client, err := mongodb.New(ctx, mongodb.Config{
			URI:      cfg.Store.MongoURI,
			Database: cfg.Store.MongoDatabase,
			Timeout:  cfg.Store.MongoTimeout,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		s := store.NewMongoStore(client.Database(), logger.WithComponent(log, "store"))
		return s, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// NewEventService wires ingestion with the daily rollup aggregator.
func NewEventService(cfg *config.Config, s store.Store, m *metrics.Metrics, log *zap.Logger) (*event.Service, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	agg := rollup.NewAggregator(s, loc, cfg.Limits.MaxRollupKeys, logger.WithComponent(log, "rollup"))
	svc := event.NewService(s, agg, loc, logger.WithComponent(log, "ingestion")).WithMetrics(m)
	return svc, nil
}

// NewAggregator is used by maintenance tooling that rebuilds rollups.
func NewAggregator(cfg *config.Config, s store.Store, log *zap.Logger) (*rollup.Aggregator, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return rollup.NewAggregator(s, loc, cfg.Limits.MaxRollupKeys, logger.WithComponent(log, "rollup")), nil
}

// NewAnalyticsService wires the compute service with the configured profile
// and quiz attempt sources.
func NewAnalyticsService(cfg *config.Config, s store.Store, m *metrics.Metrics, log *zap.Logger) (*analytics.Service, Closer, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	profiles, attempts, closer, err := openSources(cfg, s, log)
	if err != nil {
		return nil, nil, err
	}

	compute := logger.WithComponent(log, "analytics")
	svc := analytics.NewService(
		s,
		rollup.NewReader(s, logger.WithComponent(log, "rollup")),
		profiles,
		attempts,
		timerange.NewResolver(time.Now, loc),
		Limits(cfg),
		compute,
	).
		WithEstimator(analytics.NewSessionEstimator(cfg.Session.Estimator, cfg.Session.IdleGap)).
		WithMetrics(m)

	return svc, closer, nil
}

func Limits(cfg *config.Config) analytics.Limits {
	return analytics.Limits{
		MaxProfiles:     cfg.Limits.MaxProfiles,
		MaxEvents:       cfg.Limits.MaxEvents,
		MaxPathEvents:   cfg.Limits.MaxPathEvents,
		MaxQuizAttempts: cfg.Limits.MaxQuizAttempts,
		TopN:            cfg.Limits.TopN,
	}
}

func openSources(cfg *config.Config, s store.Store, log *zap.Logger) (analytics.ProfileReader, analytics.AttemptReader, Closer, error) {
	switch cfg.Sources.Profiles {
	case "store", "":
		source := analytics.NewDocumentSource(s, logger.WithComponent(log, "sources"))
		return source, source, noop, nil
	case "sql":
		db, err := sqldb.New(sqldb.Config{
			Driver:          cfg.SQL.Driver,
			DSN:             cfg.SQL.DSN(),
			MaxOpenConns:    cfg.SQL.MaxOpenConns,
			MaxIdleConns:    cfg.SQL.MaxIdleConns,
			ConnMaxLifetime: cfg.SQL.ConnMaxLifetime,
		}, log)
		if err != nil {
			return nil, nil, nil, err
		}
		repo := lms.NewRepository(db.DB, logger.WithComponent(log, "lms"))
		return repo, repo, func(context.Context) error { return db.Close() }, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown profile source %q", cfg.Sources.Profiles)
	}
}
