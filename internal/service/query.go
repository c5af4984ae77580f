// Package service orchestrates the guard, catalog, and engine into the
// operations callers actually invoke: run a query, ingest an upload, drop
// a table, sweep expired tables. Every outcome is audited.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"tabgate/internal/catalog"
	"tabgate/internal/domain"
	"tabgate/internal/engine"
	"tabgate/internal/guard"
	"tabgate/internal/ident"
)

// QueryService screens and executes query text on behalf of callers.
type QueryService struct {
	engine  *engine.Engine
	catalog *catalog.Catalog
	audit   domain.AuditRepository
	limiter *CallerLimiter // nil disables rate limiting
	logger  *slog.Logger
}

// NewQueryService creates a QueryService. audit and limiter may be nil.
func NewQueryService(eng *engine.Engine, cat *catalog.Catalog, audit domain.AuditRepository, limiter *CallerLimiter, logger *slog.Logger) *QueryService {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryService{
		engine:  eng,
		catalog: cat,
		audit:   audit,
		limiter: limiter,
		logger:  logger.With("component", "query"),
	}
}

// Run executes one untrusted query. This is the entrypoint exposed to
// machine-generated SQL: the guard runs without any DDL capability, writes
// are always refused, and every outcome lands in the audit trail.
func (s *QueryService) Run(ctx context.Context, caller string, req domain.QueryRequest) (*domain.ExecutionResult, error) {
	return s.run(ctx, caller, req, guard.Options{})
}

// RunPrivileged executes a query with the DDL capability. It exists for
// trusted maintenance paths only and must never be reachable from
// machine-generated input.
func (s *QueryService) RunPrivileged(ctx context.Context, caller string, req domain.QueryRequest) (*domain.ExecutionResult, error) {
	return s.run(ctx, caller, req, guard.Options{AllowDDL: true})
}

func (s *QueryService) run(ctx context.Context, caller string, req domain.QueryRequest, opts guard.Options) (*domain.ExecutionResult, error) {
	text := strings.TrimSpace(req.Text)
	start := time.Now()

	if s.limiter != nil && !s.limiter.Allow(caller) {
		s.logAudit(ctx, caller, "QUERY", text, "REJECTED", "RATE_LIMITED", "", start, 0)
		return nil, domain.ErrRateLimited("caller %q exceeded its query rate", caller)
	}

	verdict := guard.Screen(text, opts)
	if !verdict.Allowed {
		s.logger.Warn("query rejected", "caller", caller, "reason", verdict.Reason, "detail", verdict.Detail)
		s.logAudit(ctx, caller, "QUERY", text, "REJECTED", string(verdict.Reason), verdict.Detail, start, 0)
		return nil, domain.ErrQueryRejected(verdict.Reason, "%s", verdict.Detail)
	}

	if req.Table != "" {
		if _, err := ident.Validate(req.Table, ident.KindTable); err != nil {
			s.logAudit(ctx, caller, "QUERY", text, "REJECTED", "", err.Error(), start, 0)
			return nil, err
		}
		if !s.catalog.Has(req.Table) {
			err := domain.ErrNotFound("table %q is not registered", req.Table)
			s.logAudit(ctx, caller, "QUERY", text, "REJECTED", "", err.Error(), start, 0)
			return nil, err
		}
	}

	result, err := s.engine.Execute(ctx, text, nil, req.Values)
	if err != nil {
		s.logAudit(ctx, caller, "QUERY", text, "ERROR", "", err.Error(), start, 0)
		return nil, err
	}

	s.logAudit(ctx, caller, "QUERY", text, "ALLOWED", "", "", start, int64(result.RowCount))
	return result, nil
}

// Audit returns the newest audit entries, most recent first.
func (s *QueryService) Audit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if s.audit == nil {
		return nil, nil
	}
	return s.audit.ListRecent(ctx, limit)
}

// logAudit records one outcome. Best-effort: a failed audit write is logged
// and never fails the request it describes.
func (s *QueryService) logAudit(ctx context.Context, caller, action, text, status, reason, errMsg string, start time.Time, rows int64) {
	if s.audit == nil {
		return
	}
	entry := &domain.AuditEntry{
		Caller:       caller,
		Action:       action,
		QueryText:    text,
		Status:       status,
		Reason:       reason,
		ErrorMessage: errMsg,
		DurationMs:   time.Since(start).Milliseconds(),
		RowsReturned: rows,
	}
	if err := s.audit.Insert(ctx, entry); err != nil {
		s.logger.Error("audit write failed", "error", err)
	}
}
