// Package catalog holds the set of registered tables and their schemas.
// It is the single source of truth consulted before any identifier is
// substituted into executable query text.
package catalog

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"tabgate/internal/domain"
	"tabgate/internal/ident"
)

// Catalog maps table name to schema. Registration and removal swap a fully
// built entry under a short-held lock, so concurrent readers observe either
// the old complete schema or the new complete schema, never a partial one.
// The optional store persists entries across restarts; store writes happen
// before the in-memory swap and outside the lock.
type Catalog struct {
	mu     sync.RWMutex
	tables map[string]domain.Table
	store  domain.CatalogStore // nil for a purely in-memory catalog
	logger *slog.Logger
}

// New creates a Catalog. store may be nil.
func New(store domain.CatalogStore, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		tables: make(map[string]domain.Table),
		store:  store,
		logger: logger.With("component", "catalog"),
	}
}

// Load rebuilds the in-memory map from the store. No-op without a store.
func (c *Catalog) Load(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	tables, err := c.store.LoadTables(ctx)
	if err != nil {
		return err
	}
	next := make(map[string]domain.Table, len(tables))
	for _, t := range tables {
		next[t.Name] = t
	}

	c.mu.Lock()
	c.tables = next
	c.mu.Unlock()

	c.logger.Info("catalog loaded", "tables", len(next))
	return nil
}

// Register makes a table visible under the given validated name. The entry
// is persisted first, then swapped in; the name parameter's type guarantees
// it already passed identifier validation.
func (c *Catalog) Register(ctx context.Context, name ident.Identifier, table domain.Table) error {
	table.Name = name.String()

	if c.store != nil {
		if err := c.store.UpsertTable(ctx, table); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.tables[table.Name] = table
	c.mu.Unlock()

	c.logger.Info("table registered", "table", table.Name, "columns", len(table.Columns), "rows", table.RowCount)
	return nil
}

// Remove deletes a table entry. Returns NotFound when the name is not
// registered.
func (c *Catalog) Remove(ctx context.Context, name ident.Identifier) error {
	key := name.String()

	c.mu.RLock()
	_, ok := c.tables[key]
	c.mu.RUnlock()
	if !ok {
		return domain.ErrNotFound("table %q not found", key)
	}

	if c.store != nil {
		if err := c.store.DeleteTable(ctx, key); err != nil {
			return err
		}
	}

	c.mu.Lock()
	delete(c.tables, key)
	c.mu.Unlock()

	c.logger.Info("table removed", "table", key)
	return nil
}

// Get returns the schema for one table.
func (c *Catalog) Get(name string) (domain.Table, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	return t, ok
}

// Has reports whether a table is registered.
func (c *Catalog) Has(name string) bool {
	_, ok := c.Get(name)
	return ok
}

// Snapshot returns a copy of the full name-to-schema map, for callers that
// describe the schema to an external query writer.
func (c *Catalog) Snapshot() map[string]domain.Table {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]domain.Table, len(c.tables))
	for name, t := range c.tables {
		out[name] = t
	}
	return out
}

// List returns all registered tables sorted by name. The returned slice is
// a copy; callers may hold it across later catalog mutations.
func (c *Catalog) List() []domain.Table {
	c.mu.RLock()
	out := make([]domain.Table, 0, len(c.tables))
	for _, t := range c.tables {
		out = append(out, t)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
