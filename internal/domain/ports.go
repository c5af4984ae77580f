package domain

import "context"

// CatalogStore persists table metadata so the in-memory catalog can be
// rebuilt after a restart. Implementations must make UpsertTable and
// DeleteTable atomic per table.
type CatalogStore interface {
	UpsertTable(ctx context.Context, table Table) error
	DeleteTable(ctx context.Context, name string) error
	LoadTables(ctx context.Context) ([]Table, error)
}

// AuditRepository records engine operation outcomes.
type AuditRepository interface {
	Insert(ctx context.Context, entry *AuditEntry) error
	ListRecent(ctx context.Context, limit int) ([]AuditEntry, error)
}
