// Package app wires configuration, stores, and services into a running
// engine instance.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"tabgate/internal/catalog"
	"tabgate/internal/config"
	"tabgate/internal/db"
	"tabgate/internal/engine"
	"tabgate/internal/service"
)

// App holds the wired engine components.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Catalog *catalog.Catalog
	Query   *service.QueryService
	Ingest  *service.IngestService
	Sweeper *service.RetentionSweeper

	duck      *sql.DB
	metaWrite *sql.DB
	metaRead  *sql.DB
	limiter   *service.CallerLimiter
}

// New opens the backing store and metastore, runs migrations, rebuilds the
// catalog, and wires the services. Callers own the returned App and must
// Close it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	duck, err := engine.Open(cfg.DuckDBPath)
	if err != nil {
		return nil, err
	}

	metaWrite, metaRead, err := db.OpenSQLitePair(cfg.MetaDBPath, 4)
	if err != nil {
		duck.Close()
		return nil, err
	}
	if err := db.RunMigrations(metaWrite); err != nil {
		duck.Close()
		metaWrite.Close()
		metaRead.Close()
		return nil, fmt.Errorf("migrate metastore: %w", err)
	}

	store := db.NewCatalogStore(metaWrite, metaRead)
	audit := db.NewAuditRepo(metaWrite, metaRead)

	cat := catalog.New(store, logger)
	if err := cat.Load(ctx); err != nil {
		duck.Close()
		metaWrite.Close()
		metaRead.Close()
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	eng := engine.New(duck, logger)
	limiter := service.NewCallerLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	// One sweep at startup catches tables that expired while the process
	// was down. Long-running embedders also call Sweeper.Start.
	sweeper := service.NewRetentionSweeper(eng, cat, cfg.RetentionTTL, cfg.RetentionSchedule, logger)
	sweeper.Sweep(ctx)

	return &App{
		Config:    cfg,
		Logger:    logger,
		Catalog:   cat,
		Query:     service.NewQueryService(eng, cat, audit, limiter, logger),
		Ingest:    service.NewIngestService(eng, cat, audit, logger),
		Sweeper:   sweeper,
		duck:      duck,
		metaWrite: metaWrite,
		metaRead:  metaRead,
		limiter:   limiter,
	}, nil
}

// Close releases all connections and background workers.
func (a *App) Close() {
	a.Sweeper.Stop()
	a.limiter.Close()
	a.metaRead.Close()
	a.metaWrite.Close()
	a.duck.Close()
}
