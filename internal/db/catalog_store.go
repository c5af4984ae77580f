package db

import (
	"context"
	"database/sql"
	"fmt"

	"tabgate/internal/domain"
)

// Compile-time check.
var _ domain.CatalogStore = (*CatalogStore)(nil)

// CatalogStore persists table metadata in the SQLite metastore. Mutations
// go through the single-connection write pool; loads use the read pool.
type CatalogStore struct {
	write *sql.DB
	read  *sql.DB
}

// NewCatalogStore creates a CatalogStore over a write/read pool pair.
func NewCatalogStore(writeDB, readDB *sql.DB) *CatalogStore {
	return &CatalogStore{write: writeDB, read: readDB}
}

// UpsertTable replaces the stored schema for one table in a single
// transaction, so a reload never observes a half-written entry.
func (s *CatalogStore) UpsertTable(ctx context.Context, table domain.Table) error {
	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM catalog_tables WHERE name = ?`, table.Name); err != nil {
		return fmt.Errorf("clear table row: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO catalog_tables (name, row_count, created_at) VALUES (?, ?, ?)`,
		table.Name, table.RowCount, table.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert table row: %w", err)
	}

	for i, col := range table.Columns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO catalog_columns (table_name, ord, name, col_type, source_path) VALUES (?, ?, ?, ?, ?)`,
			table.Name, i, col.Name, string(col.Type), col.SourcePath,
		); err != nil {
			return fmt.Errorf("insert column %q: %w", col.Name, err)
		}
	}

	return tx.Commit()
}

// DeleteTable removes one table and its columns (via FK cascade).
func (s *CatalogStore) DeleteTable(ctx context.Context, name string) error {
	if _, err := s.write.ExecContext(ctx, `DELETE FROM catalog_tables WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete table %q: %w", name, err)
	}
	return nil
}

// LoadTables reads every stored table with its ordered column list.
func (s *CatalogStore) LoadTables(ctx context.Context) ([]domain.Table, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT name, row_count, created_at FROM catalog_tables ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("load tables: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var tables []domain.Table
	for rows.Next() {
		var t domain.Table
		if err := rows.Scan(&t.Name, &t.RowCount, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan table row: %w", err)
		}
		tables = append(tables, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range tables {
		cols, err := s.loadColumns(ctx, tables[i].Name)
		if err != nil {
			return nil, err
		}
		tables[i].Columns = cols
	}
	return tables, nil
}

func (s *CatalogStore) loadColumns(ctx context.Context, tableName string) ([]domain.Column, error) {
	rows, err := s.read.QueryContext(ctx,
		`SELECT name, col_type, source_path FROM catalog_columns WHERE table_name = ? ORDER BY ord`,
		tableName)
	if err != nil {
		return nil, fmt.Errorf("load columns for %q: %w", tableName, err)
	}
	defer rows.Close() //nolint:errcheck

	var cols []domain.Column
	for rows.Next() {
		var c domain.Column
		var colType string
		if err := rows.Scan(&c.Name, &colType, &c.SourcePath); err != nil {
			return nil, fmt.Errorf("scan column row: %w", err)
		}
		c.Type = domain.ColumnType(colType)
		cols = append(cols, c)
	}
	return cols, rows.Err()
}
