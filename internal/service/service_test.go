package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabgate/internal/catalog"
	"tabgate/internal/db"
	"tabgate/internal/domain"
	"tabgate/internal/engine"
	"tabgate/internal/ident"
)

type fixture struct {
	engine  *engine.Engine
	catalog *catalog.Catalog
	audit   *db.AuditRepo
	query   *QueryService
	ingest  *IngestService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	duck, err := engine.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { duck.Close() })
	eng := engine.New(duck, logger)

	writeDB, readDB := db.OpenTestSQLite(t)
	store := db.NewCatalogStore(writeDB, readDB)
	audit := db.NewAuditRepo(writeDB, readDB)

	cat := catalog.New(store, logger)
	require.NoError(t, cat.Load(context.Background()))

	return &fixture{
		engine:  eng,
		catalog: cat,
		audit:   audit,
		query:   NewQueryService(eng, cat, audit, nil, logger),
		ingest:  NewIngestService(eng, cat, audit, logger),
	}
}

const tripsCSV = "city,fare,riders\nnyc,12.5,2\nsf,9,1\nla,,3\n"

func ingestTrips(t *testing.T, f *fixture) *domain.IngestResult {
	t.Helper()
	res, err := f.ingest.Ingest(context.Background(), "tester", domain.IngestRequest{
		Kind:      domain.SourceCSV,
		Data:      []byte(tripsCSV),
		TableName: "trips.csv",
	})
	require.NoError(t, err)
	return res
}

func TestIngestThenQuery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res := ingestTrips(t, f)
	assert.Equal(t, "trips_csv", res.TableName)
	assert.Equal(t, 3, res.RowCount)
	assert.Len(t, res.Sample, 3)
	require.True(t, f.catalog.Has("trips_csv"))

	out, err := f.query.Run(ctx, "tester", domain.QueryRequest{
		Text:  "SELECT city FROM trips_csv WHERE riders > ? ORDER BY city",
		Table: "trips_csv",
		Values: []any{
			int64(1),
		},
	})
	require.NoError(t, err)
	require.Equal(t, 2, out.RowCount)
	assert.Equal(t, "la", out.Rows[0][0])
	assert.Equal(t, "nyc", out.Rows[1][0])
}

func TestRunRejectsAndAudits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ingestTrips(t, f)

	_, err := f.query.Run(ctx, "tester", domain.QueryRequest{Text: "DROP TABLE trips_csv"})
	var rejected *domain.QueryRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, domain.ReasonDDLForbidden, rejected.Reason)

	// The table survives the attempt.
	out, err := f.query.Run(ctx, "tester", domain.QueryRequest{Text: "SELECT count(*) FROM trips_csv"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, out.Rows[0][0])

	entries, err := f.query.Audit(ctx, 10)
	require.NoError(t, err)
	statuses := make(map[string]int)
	for _, e := range entries {
		statuses[e.Status]++
	}
	assert.GreaterOrEqual(t, statuses["REJECTED"], 1)
	assert.GreaterOrEqual(t, statuses["ALLOWED"], 2)
}

func TestRunPrivilegedAllowsDDLOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ingestTrips(t, f)

	_, err := f.query.RunPrivileged(ctx, "admin", domain.QueryRequest{Text: "DROP TABLE trips_csv"})
	require.NoError(t, err)

	// Writes stay forbidden even on the privileged path.
	_, err = f.query.RunPrivileged(ctx, "admin", domain.QueryRequest{Text: "DELETE FROM trips_csv"})
	var rejected *domain.QueryRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, domain.ReasonWriteForbidden, rejected.Reason)
}

func TestRunUnknownTableHint(t *testing.T) {
	f := newFixture(t)

	_, err := f.query.Run(context.Background(), "tester", domain.QueryRequest{
		Text:  "SELECT 1",
		Table: "nope",
	})
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestRunExecutionFailureIsData(t *testing.T) {
	f := newFixture(t)

	_, err := f.query.Run(context.Background(), "tester", domain.QueryRequest{
		Text: "SELECT missing_col FROM missing_table",
	})
	var execErr *domain.ExecutionError
	require.ErrorAs(t, err, &execErr)
}

func TestRateLimitRejects(t *testing.T) {
	f := newFixture(t)
	limiter := NewCallerLimiter(1, 1)
	defer limiter.Close()
	q := NewQueryService(f.engine, f.catalog, f.audit, limiter, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	_, err := q.Run(ctx, "greedy", domain.QueryRequest{Text: "SELECT 1"})
	require.NoError(t, err)

	_, err = q.Run(ctx, "greedy", domain.QueryRequest{Text: "SELECT 1"})
	var limited *domain.RateLimitedError
	require.ErrorAs(t, err, &limited)

	// Other callers keep their own bucket.
	_, err = q.Run(ctx, "patient", domain.QueryRequest{Text: "SELECT 1"})
	require.NoError(t, err)
}

func TestIngestConflictLeavesOriginal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ingestTrips(t, f)

	_, err := f.ingest.Ingest(ctx, "tester", domain.IngestRequest{
		Kind:      domain.SourceCSV,
		Data:      []byte("a\n1\n"),
		TableName: "trips.csv",
	})
	var exists *domain.AlreadyExistsError
	require.ErrorAs(t, err, &exists)

	out, err := f.query.Run(ctx, "tester", domain.QueryRequest{Text: "SELECT count(*) FROM trips_csv"})
	require.NoError(t, err)
	assert.EqualValues(t, 3, out.Rows[0][0])
}

func TestIngestFailureLeavesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.ingest.Ingest(ctx, "tester", domain.IngestRequest{
		Kind:      domain.SourceJSONArray,
		Data:      []byte(`[{"a": 1}, "not an object"]`),
		TableName: "broken",
	})
	require.Error(t, err)
	assert.False(t, f.catalog.Has("broken"))

	_, err = f.query.Run(ctx, "tester", domain.QueryRequest{Text: "SELECT * FROM broken"})
	var execErr *domain.ExecutionError
	require.ErrorAs(t, err, &execErr)
}

func TestIngestMany(t *testing.T) {
	f := newFixture(t)

	reqs := []domain.IngestRequest{
		{Kind: domain.SourceCSV, Data: []byte("a\n1\n"), TableName: "one"},
		{Kind: domain.SourceCSV, Data: []byte("b\n2\n"), TableName: "two"},
		{Kind: domain.SourceJSONLines, Data: []byte(`{"c": 3}`), TableName: "three"},
	}
	results, err := f.ingest.IngestMany(context.Background(), "tester", reqs)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, name := range []string{"one", "two", "three"} {
		assert.True(t, f.catalog.Has(name))
	}
}

func TestDrop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ingestTrips(t, f)

	require.NoError(t, f.ingest.Drop(ctx, "tester", "trips_csv"))
	assert.False(t, f.catalog.Has("trips_csv"))

	err := f.ingest.Drop(ctx, "tester", "trips_csv")
	var notFound *domain.NotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestCatalogRebuiltFromMetastore(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	writeDB, readDB := db.OpenTestSQLite(t)
	store := db.NewCatalogStore(writeDB, readDB)

	duck, err := engine.Open("")
	require.NoError(t, err)
	t.Cleanup(func() { duck.Close() })
	eng := engine.New(duck, logger)

	cat := catalog.New(store, logger)
	ing := NewIngestService(eng, cat, nil, logger)
	_, err = ing.Ingest(context.Background(), "tester", domain.IngestRequest{
		Kind:      domain.SourceCSV,
		Data:      []byte(tripsCSV),
		TableName: "trips",
	})
	require.NoError(t, err)

	// A fresh catalog over the same metastore sees the table.
	reborn := catalog.New(store, logger)
	require.NoError(t, reborn.Load(context.Background()))
	tbl, ok := reborn.Get("trips")
	require.True(t, ok)
	assert.EqualValues(t, 3, tbl.RowCount)
	assert.Len(t, tbl.Columns, 3)
}

func TestRetentionSweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ingestTrips(t, f)

	// Backdate the entry so it is already expired.
	tbl, ok := f.catalog.Get("trips_csv")
	require.True(t, ok)
	tbl.CreatedAt = time.Now().Add(-2 * time.Hour)
	id := mustTableIdent(t, "trips_csv")
	require.NoError(t, f.catalog.Register(ctx, id, tbl))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sweeper := NewRetentionSweeper(f.engine, f.catalog, time.Hour, "* * * * *", logger)
	sweeper.Sweep(ctx)

	assert.False(t, f.catalog.Has("trips_csv"))
	_, err := f.query.Run(ctx, "tester", domain.QueryRequest{Text: "SELECT * FROM trips_csv"})
	var execErr *domain.ExecutionError
	require.ErrorAs(t, err, &execErr)
}

func TestRetentionDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ingestTrips(t, f)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sweeper := NewRetentionSweeper(f.engine, f.catalog, 0, "* * * * *", logger)
	require.NoError(t, sweeper.Start())
	sweeper.Sweep(ctx)

	assert.True(t, f.catalog.Has("trips_csv"))
}

func mustTableIdent(t *testing.T, name string) ident.Identifier {
	t.Helper()
	id, err := ident.Validate(name, ident.KindTable)
	require.NoError(t, err)
	return id
}
