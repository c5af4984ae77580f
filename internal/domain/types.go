package domain

import "time"

// ColumnType is the inferred scalar type of a column. Booleans are stored
// as text ("true"/"false"); every type is null-allowed.
type ColumnType string

// Column types supported by the engine.
const (
	TypeText    ColumnType = "TEXT"
	TypeInteger ColumnType = "INTEGER"
	TypeReal    ColumnType = "REAL"
)

// Column describes one column of a registered table.
type Column struct {
	Name string
	Type ColumnType
	// SourcePath is the dotted/indexed origin of a flattened nested field,
	// e.g. "addr.city" or "tags[0]". Equal to Name for flat sources.
	SourcePath string
}

// Table describes one registered table. A Table is either fully present in
// the catalog or not present at all; partial registration is never visible.
type Table struct {
	Name      string
	Columns   []Column
	RowCount  int64
	CreatedAt time.Time
}

// FlatRecord maps column name to scalar value for one flattened source
// record. Within one ingestion run, every FlatRecord carries the full
// column set of the run; absent fields are present with a nil value.
type FlatRecord map[string]any

// SourceKind identifies the format of uploaded bytes.
type SourceKind string

// Supported source kinds.
const (
	SourceCSV       SourceKind = "csv"
	SourceJSONArray SourceKind = "json"
	SourceJSONLines SourceKind = "jsonl"
)

// Operation is the classified kind of a query.
type Operation string

// Query operation kinds.
const (
	OpRead    Operation = "READ"
	OpWrite   Operation = "WRITE"
	OpDDL     Operation = "DDL"
	OpUnknown Operation = "UNKNOWN"
)

// RejectReason is a stable code attached to a REJECT verdict so callers can
// log and decide without re-deriving the cause.
type RejectReason string

// Reject reason codes.
const (
	ReasonMultiStatement   RejectReason = "MULTI_STATEMENT"
	ReasonCommentInjection RejectReason = "COMMENT_INJECTION"
	ReasonWriteForbidden   RejectReason = "WRITE_FORBIDDEN"
	ReasonDDLForbidden     RejectReason = "DDL_FORBIDDEN"
	ReasonUnknownOperation RejectReason = "UNKNOWN_OPERATION"
	ReasonPatternMatch     RejectReason = "PATTERN_MATCH"
)

// QueryVerdict is the guard's classification of one query text. Transient:
// produced and consumed within a single request.
type QueryVerdict struct {
	Allowed   bool
	Operation Operation
	Reason    RejectReason // empty when Allowed
	Detail    string       // human-readable context for the reason
}

// QueryRequest carries raw query text plus an optional target table hint.
// Never persisted.
type QueryRequest struct {
	Text   string
	Table  string // optional hint; checked against the catalog when set
	Values []any  // bound to value placeholders, never interpolated
}

// ExecutionResult holds the structured output of an executed query.
// Column order matches the underlying result order.
type ExecutionResult struct {
	Columns  []string
	Rows     [][]any
	RowCount int
	Elapsed  time.Duration
}

// IngestRequest carries uploaded bytes plus the declared source kind and a
// suggested table name (derived from the filename by the caller).
type IngestRequest struct {
	Kind      SourceKind
	Data      []byte
	TableName string
}

// IngestResult reports a completed ingestion.
type IngestResult struct {
	TableName string
	Schema    []Column
	RowCount  int
	Sample    []FlatRecord // bounded preview, at most SampleLimit rows
}

// SampleLimit bounds the row sample returned by ingestion.
const SampleLimit = 10

// AuditEntry records one engine operation outcome in the metastore.
type AuditEntry struct {
	ID           string
	Caller       string
	Action       string // QUERY, INGEST, DROP
	QueryText    string
	Status       string // ALLOWED, REJECTED, ERROR
	Reason       string // reject reason code, when rejected
	ErrorMessage string
	DurationMs   int64
	RowsReturned int64
	CreatedAt    time.Time
}
