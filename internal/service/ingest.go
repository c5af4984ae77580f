package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"tabgate/internal/catalog"
	"tabgate/internal/domain"
	"tabgate/internal/engine"
	"tabgate/internal/ident"
	"tabgate/internal/ingest"
)

// ingestConcurrency bounds how many uploads a batch loads at once.
const ingestConcurrency = 4

// IngestService loads uploads into the backing store and registers them.
// Each ingest is all-or-nothing: create table, bulk insert, register; a
// failure at any point drops the partial table.
type IngestService struct {
	engine  *engine.Engine
	catalog *catalog.Catalog
	audit   domain.AuditRepository
	logger  *slog.Logger
}

// NewIngestService creates an IngestService. audit may be nil.
func NewIngestService(eng *engine.Engine, cat *catalog.Catalog, audit domain.AuditRepository, logger *slog.Logger) *IngestService {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestService{
		engine:  eng,
		catalog: cat,
		audit:   audit,
		logger:  logger.With("component", "ingest"),
	}
}

// Ingest parses one upload and makes it queryable.
func (s *IngestService) Ingest(ctx context.Context, caller string, req domain.IngestRequest) (*domain.IngestResult, error) {
	start := time.Now()

	result, err := s.ingest(ctx, req)
	if err != nil {
		s.logAudit(ctx, caller, "INGEST", req.TableName, "ERROR", err.Error(), start, 0)
		return nil, err
	}

	s.logAudit(ctx, caller, "INGEST", result.TableName, "ALLOWED", "", start, int64(result.RowCount))
	return result, nil
}

func (s *IngestService) ingest(ctx context.Context, req domain.IngestRequest) (*domain.IngestResult, error) {
	ds, err := ingest.Parse(req)
	if err != nil {
		return nil, err
	}

	// The cleanup below drops the table on failure, so an existing name
	// must be refused before anything is created under it.
	if s.catalog.Has(ds.Name.String()) {
		return nil, domain.ErrAlreadyExists("table %q already exists", ds.Name)
	}

	if err := s.engine.CreateTable(ctx, ds.Name, ds.Columns); err != nil {
		return nil, err
	}
	if err := s.engine.InsertRows(ctx, ds.Name, ds.Columns, ds.Rows); err != nil {
		s.cleanup(ctx, ds.Name)
		return nil, err
	}

	table := domain.Table{
		Columns:   ds.Columns,
		RowCount:  int64(len(ds.Rows)),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.catalog.Register(ctx, ds.Name, table); err != nil {
		s.cleanup(ctx, ds.Name)
		return nil, err
	}

	return &domain.IngestResult{
		TableName: ds.Name.String(),
		Schema:    ds.Columns,
		RowCount:  len(ds.Rows),
		Sample:    ds.Sample(),
	}, nil
}

// IngestMany loads several uploads concurrently. Each upload keeps the
// all-or-nothing contract individually; the first failure cancels the rest
// and already-registered uploads stay registered.
func (s *IngestService) IngestMany(ctx context.Context, caller string, reqs []domain.IngestRequest) ([]*domain.IngestResult, error) {
	results := make([]*domain.IngestResult, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ingestConcurrency)
	for i, req := range reqs {
		g.Go(func() error {
			res, err := s.Ingest(gctx, caller, req)
			if err != nil {
				return fmt.Errorf("ingest %q: %w", req.TableName, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Drop removes a table from the backing store, the metastore, and the
// in-memory catalog.
func (s *IngestService) Drop(ctx context.Context, caller, name string) error {
	start := time.Now()

	id, err := ident.Validate(name, ident.KindTable)
	if err != nil {
		s.logAudit(ctx, caller, "DROP", name, "ERROR", err.Error(), start, 0)
		return err
	}
	if !s.catalog.Has(id.String()) {
		err := domain.ErrNotFound("table %q is not registered", name)
		s.logAudit(ctx, caller, "DROP", name, "ERROR", err.Error(), start, 0)
		return err
	}

	if err := s.engine.DropTable(ctx, id); err != nil {
		s.logAudit(ctx, caller, "DROP", name, "ERROR", err.Error(), start, 0)
		return err
	}
	if err := s.catalog.Remove(ctx, id); err != nil {
		s.logAudit(ctx, caller, "DROP", name, "ERROR", err.Error(), start, 0)
		return err
	}

	s.logAudit(ctx, caller, "DROP", name, "ALLOWED", "", start, 0)
	return nil
}

// cleanup drops a half-created table. Best-effort.
func (s *IngestService) cleanup(ctx context.Context, name ident.Identifier) {
	if err := s.engine.DropTable(ctx, name); err != nil {
		s.logger.Error("cleanup after failed ingest", "table", name.String(), "error", err)
	}
}

func (s *IngestService) logAudit(ctx context.Context, caller, action, table, status, errMsg string, start time.Time, rows int64) {
	if s.audit == nil {
		return
	}
	entry := &domain.AuditEntry{
		Caller:       caller,
		Action:       action,
		QueryText:    table,
		Status:       status,
		ErrorMessage: errMsg,
		DurationMs:   time.Since(start).Milliseconds(),
		RowsReturned: rows,
	}
	if err := s.audit.Insert(ctx, entry); err != nil {
		s.logger.Error("audit write failed", "error", err)
	}
}
