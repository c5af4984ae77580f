// Package engine executes screened queries against the DuckDB backing store.
// It is the only package that touches query text and the store together, and
// it only ever interpolates validated identifiers: values travel as bound
// parameters, identifiers through the %I marker substitution.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"tabgate/internal/domain"
	"tabgate/internal/guard"
	"tabgate/internal/ident"
)

// identMarker is the positional placeholder replaced by a quoted, validated
// identifier. Value placeholders (?) are left for database/sql binding.
const identMarker = "%I"

// Engine wraps a DuckDB connection.
type Engine struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens a DuckDB database. An empty path opens an in-memory store.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}
	return db, nil
}

// New creates an Engine over an open DuckDB connection.
func New(db *sql.DB, logger *slog.Logger) *Engine {
	return &Engine{db: db, logger: logger.With("component", "engine")}
}

// Execute runs one screened statement. Each %I marker in text is replaced
// positionally by the corresponding quoted identifier; values bind through
// database/sql placeholders. Backing-store failures come back as
// *domain.ExecutionError so a bad query never takes the engine down.
func (e *Engine) Execute(ctx context.Context, text string, idents []ident.Identifier, values []any) (*domain.ExecutionResult, error) {
	expanded, err := expandIdentifiers(text, idents)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, expanded, values...)
	if err != nil {
		e.logger.Warn("query failed", "error", err)
		return nil, domain.ErrExecution("execute query: %v", err)
	}
	defer rows.Close() //nolint:errcheck

	result, err := scanRows(rows)
	if err != nil {
		return nil, domain.ErrExecution("scan results: %v", err)
	}
	result.Elapsed = time.Since(start)

	e.logger.Debug("query executed", "rows", result.RowCount, "elapsed", result.Elapsed)
	return result, nil
}

// expandIdentifiers substitutes %I markers left to right. Markers are
// located on the literal-stripped text so `LIKE '%I%'` stays a plain string
// literal; stripping is length-preserving, so indices carry back to the
// original. The marker count must match the identifier count exactly; a
// mismatch means the caller's template and parameters disagree, which is
// never recoverable downstream.
func expandIdentifiers(text string, idents []ident.Identifier) (string, error) {
	stripped := guard.StripLiterals(text)
	if n := strings.Count(stripped, identMarker); n != len(idents) {
		return "", domain.ErrMalformedInput("query text has %d identifier markers, %d identifiers supplied", n, len(idents))
	}
	var b strings.Builder
	last := 0
	for _, id := range idents {
		if id.IsZero() {
			return "", domain.ErrInvalidIdentifier("unvalidated identifier passed to engine")
		}
		idx := strings.Index(stripped[last:], identMarker) + last
		b.WriteString(text[last:idx])
		b.WriteString(id.Quote())
		last = idx + len(identMarker)
	}
	b.WriteString(text[last:])
	return b.String(), nil
}

// CreateTable creates a table from an inferred schema. Column names are
// re-validated here so the engine never trusts strings that arrive through
// a struct field rather than the ident type.
func (e *Engine) CreateTable(ctx context.Context, name ident.Identifier, columns []domain.Column) error {
	if len(columns) == 0 {
		return domain.ErrEmptyDataset("cannot create table %s with no columns", name)
	}
	defs := make([]string, 0, len(columns))
	for _, col := range columns {
		id, err := ident.Validate(col.Name, ident.KindColumn)
		if err != nil {
			return err
		}
		defs = append(defs, id.Quote()+" "+string(col.Type))
	}
	stmt := "CREATE TABLE " + name.Quote() + " (" + strings.Join(defs, ", ") + ")"
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return domain.ErrExecution("create table %s: %v", name, err)
	}
	e.logger.Info("table created", "table", name.String(), "columns", len(columns))
	return nil
}

// InsertRows bulk-loads rectangular rows with a prepared statement inside a
// single transaction. Values for TEXT columns are stringified so a column
// widened to TEXT still accepts the numeric cells seen in other rows.
func (e *Engine) InsertRows(ctx context.Context, name ident.Identifier, columns []domain.Column, rows []domain.FlatRecord) error {
	if len(rows) == 0 {
		return nil
	}

	cols := make([]ident.Identifier, 0, len(columns))
	for _, col := range columns {
		id, err := ident.Validate(col.Name, ident.KindColumn)
		if err != nil {
			return err
		}
		cols = append(cols, id)
	}

	quoted := make([]string, len(cols))
	marks := make([]string, len(cols))
	for i, id := range cols {
		quoted[i] = id.Quote()
		marks[i] = "?"
	}
	stmt := "INSERT INTO " + name.Quote() + " (" + strings.Join(quoted, ", ") + ") VALUES (" + strings.Join(marks, ", ") + ")"

	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.ErrExecution("begin insert tx: %v", err)
	}
	defer tx.Rollback() //nolint:errcheck

	prepared, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return domain.ErrExecution("prepare insert: %v", err)
	}
	defer prepared.Close() //nolint:errcheck

	args := make([]any, len(columns))
	for ri, row := range rows {
		for ci, col := range columns {
			args[ci] = bindValue(row[col.Name], col.Type)
		}
		if _, err := prepared.ExecContext(ctx, args...); err != nil {
			return domain.ErrExecution("insert row %d into %s: %v", ri+1, name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.ErrExecution("commit insert: %v", err)
	}
	e.logger.Info("rows inserted", "table", name.String(), "rows", len(rows))
	return nil
}

// DropTable removes a table. Idempotent: dropping an absent table is a no-op
// so removal can be retried as cleanup after a partial ingest.
func (e *Engine) DropTable(ctx context.Context, name ident.Identifier) error {
	if _, err := e.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+name.Quote()); err != nil {
		return domain.ErrExecution("drop table %s: %v", name, err)
	}
	e.logger.Info("table dropped", "table", name.String())
	return nil
}

// bindValue adapts one flattened cell to the column's declared type. nil
// stays NULL; TEXT columns stringify non-string scalars picked up before
// the column widened.
func bindValue(v any, t domain.ColumnType) any {
	if v == nil {
		return nil
	}
	if t == domain.TypeText {
		if s, ok := v.(string); ok {
			return s
		}
		return fmt.Sprint(v)
	}
	if t == domain.TypeReal {
		if n, ok := v.(int64); ok {
			return float64(n)
		}
	}
	return v
}

func scanRows(rows *sql.Rows) (*domain.ExecutionResult, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]any, len(vals))
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				row[i] = string(b)
			} else {
				row[i] = v
			}
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &domain.ExecutionResult{Columns: cols, Rows: out, RowCount: len(out)}, nil
}
