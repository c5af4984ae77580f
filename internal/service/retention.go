package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"tabgate/internal/catalog"
	"tabgate/internal/engine"
	"tabgate/internal/ident"
)

// RetentionSweeper drops uploaded tables older than a TTL on a cron
// schedule. A zero TTL disables sweeping entirely.
type RetentionSweeper struct {
	engine   *engine.Engine
	catalog  *catalog.Catalog
	ttl      time.Duration
	schedule string
	cron     *cron.Cron
	logger   *slog.Logger
}

// NewRetentionSweeper creates a sweeper. schedule is a standard cron
// expression ("*/5 * * * *"); ttl <= 0 disables the sweeper.
func NewRetentionSweeper(eng *engine.Engine, cat *catalog.Catalog, ttl time.Duration, schedule string, logger *slog.Logger) *RetentionSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &RetentionSweeper{
		engine:   eng,
		catalog:  cat,
		ttl:      ttl,
		schedule: schedule,
		cron:     cron.New(),
		logger:   logger.With("component", "retention"),
	}
}

// Start registers the sweep job and starts the scheduler.
func (s *RetentionSweeper) Start() error {
	if s.ttl <= 0 {
		s.logger.Info("retention disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.Sweep(context.Background())
	}); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("retention started", "ttl", s.ttl, "schedule", s.schedule)
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *RetentionSweeper) Stop() {
	<-s.cron.Stop().Done()
}

// Sweep drops every registered table older than the TTL. Each table is
// dropped atomically with respect to readers: backing store first, then
// the catalog entry.
func (s *RetentionSweeper) Sweep(ctx context.Context) {
	if s.ttl <= 0 {
		return
	}
	cutoff := time.Now().Add(-s.ttl)
	for _, t := range s.catalog.List() {
		if !t.CreatedAt.Before(cutoff) {
			continue
		}
		id, err := ident.Validate(t.Name, ident.KindTable)
		if err != nil {
			s.logger.Error("skipping unvalidatable table", "table", t.Name, "error", err)
			continue
		}
		if err := s.engine.DropTable(ctx, id); err != nil {
			s.logger.Error("retention drop failed", "table", t.Name, "error", err)
			continue
		}
		if err := s.catalog.Remove(ctx, id); err != nil {
			s.logger.Error("retention remove failed", "table", t.Name, "error", err)
			continue
		}
		s.logger.Info("expired table dropped", "table", t.Name, "created_at", t.CreatedAt)
	}
}
