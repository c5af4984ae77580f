package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tabgate/internal/domain"
)

// Compile-time check.
var _ domain.AuditRepository = (*AuditRepo)(nil)

// AuditRepo records engine operation outcomes in the metastore. Inserts go
// through the write pool; listing uses the read pool.
type AuditRepo struct {
	write *sql.DB
	read  *sql.DB
}

// NewAuditRepo creates an AuditRepo over a write/read pool pair.
func NewAuditRepo(writeDB, readDB *sql.DB) *AuditRepo {
	return &AuditRepo{write: writeDB, read: readDB}
}

// Insert stores one audit entry, assigning ID and CreatedAt when unset.
func (r *AuditRepo) Insert(ctx context.Context, entry *domain.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.write.ExecContext(ctx, `
		INSERT INTO audit_log (id, caller, action, query_text, status, reason, error_message, duration_ms, rows_returned, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Caller, entry.Action, entry.QueryText, entry.Status,
		entry.Reason, entry.ErrorMessage, entry.DurationMs, entry.RowsReturned, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListRecent returns the newest entries, most recent first.
func (r *AuditRepo) ListRecent(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.read.QueryContext(ctx, `
		SELECT id, caller, action, query_text, status, reason, error_message, duration_ms, rows_returned, created_at
		FROM audit_log ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var entries []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		if err := rows.Scan(&e.ID, &e.Caller, &e.Action, &e.QueryText, &e.Status,
			&e.Reason, &e.ErrorMessage, &e.DurationMs, &e.RowsReturned, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
