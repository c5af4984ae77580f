package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabgate/internal/domain"
)

func TestScreenAllows(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"plain select", "SELECT * FROM trips"},
		{"trailing semicolon", "SELECT * FROM trips;"},
		{"semicolon inside literal", "SELECT * FROM trips WHERE note = 'a; b'"},
		{"keyword inside literal", "SELECT * FROM trips WHERE name = 'DROP TABLE trips'"},
		{"dashes inside literal", "SELECT * FROM trips WHERE note = 'x -- y'"},
		{"cte", "WITH recent AS (SELECT * FROM trips WHERE day > 3) SELECT count(*) FROM recent"},
		{"value placeholders", "SELECT * FROM trips WHERE fare > ? AND city = ?"},
		{"lowercase", "select id, fare from trips order by fare desc limit 5"},
		{"honest inequality", "SELECT * FROM trips WHERE 1 = 2"},
		{"or against column", "SELECT * FROM trips WHERE city = 'nyc' OR fare > 10"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Screen(tt.text, Options{})
			require.True(t, v.Allowed, "detail: %s", v.Detail)
			assert.Equal(t, domain.OpRead, v.Operation)
		})
	}
}

func TestScreenRejects(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		reason domain.RejectReason
	}{
		{"stacked statements", "SELECT * FROM t; DROP TABLE t", domain.ReasonMultiStatement},
		{"stacked after semicolon", "SELECT 1; SELECT 2", domain.ReasonMultiStatement},
		{"line comment", "SELECT * FROM t -- DROP TABLE t", domain.ReasonCommentInjection},
		{"block comment", "SELECT /* hidden */ * FROM t", domain.ReasonCommentInjection},
		{"numeric tautology", "SELECT * FROM t WHERE name = '' OR 1=1", domain.ReasonPatternMatch},
		{"string tautology", "SELECT * FROM t WHERE id = 5 OR 'a'='a'", domain.ReasonPatternMatch},
		{"union chain", "SELECT id FROM t UNION SELECT password FROM secrets", domain.ReasonPatternMatch},
		{"union all chain", "SELECT id FROM t UNION ALL SELECT token FROM keys", domain.ReasonPatternMatch},
		{"read_csv escape", "SELECT * FROM read_csv('/etc/passwd')", domain.ReasonPatternMatch},
		{"getenv escape", "SELECT getenv('HOME')", domain.ReasonPatternMatch},
		{"delete", "DELETE FROM t", domain.ReasonWriteForbidden},
		{"insert", "INSERT INTO t VALUES (1)", domain.ReasonWriteForbidden},
		{"update", "UPDATE t SET a = 1", domain.ReasonWriteForbidden},
		{"cte hiding delete", "WITH x AS (SELECT 1) DELETE FROM t", domain.ReasonWriteForbidden},
		{"drop", "DROP TABLE t", domain.ReasonDDLForbidden},
		{"create", "CREATE TABLE t (a INT)", domain.ReasonDDLForbidden},
		{"attach", "ATTACH 'other.db'", domain.ReasonDDLForbidden},
		{"grant", "GRANT ALL ON t TO x", domain.ReasonUnknownOperation},
		{"pragma", "PRAGMA database_list", domain.ReasonUnknownOperation},
		{"empty", "   ", domain.ReasonUnknownOperation},
		{"bare cte", "WITH x AS (SELECT 1)", domain.ReasonUnknownOperation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Screen(tt.text, Options{})
			require.False(t, v.Allowed)
			assert.Equal(t, tt.reason, v.Reason)
			assert.NotEmpty(t, v.Detail)
		})
	}
}

// Checks fire in a fixed order, so a query that trips several of them
// reports the earliest.
func TestScreenCheckOrder(t *testing.T) {
	v := Screen("DELETE FROM t; DROP TABLE u -- boom", Options{})
	require.False(t, v.Allowed)
	assert.Equal(t, domain.ReasonMultiStatement, v.Reason)

	v = Screen("DELETE FROM t -- boom", Options{})
	require.False(t, v.Allowed)
	assert.Equal(t, domain.ReasonCommentInjection, v.Reason)
}

func TestScreenDDLCapability(t *testing.T) {
	v := Screen("DROP TABLE t", Options{AllowDDL: true})
	require.True(t, v.Allowed)
	assert.Equal(t, domain.OpDDL, v.Operation)

	// The capability never unlocks writes.
	v = Screen("DELETE FROM t", Options{AllowDDL: true})
	require.False(t, v.Allowed)
	assert.Equal(t, domain.ReasonWriteForbidden, v.Reason)
}

func TestScreenClassification(t *testing.T) {
	assert.Equal(t, domain.OpRead, classify("SELECT 1"))
	assert.Equal(t, domain.OpRead, classify("WITH a AS (SELECT 1), b AS (SELECT 2) SELECT * FROM a"))
	assert.Equal(t, domain.OpWrite, classify("MERGE INTO t USING s ON t.id = s.id"))
	assert.Equal(t, domain.OpDDL, classify("TRUNCATE t"))
	assert.Equal(t, domain.OpUnknown, classify("VACUUM"))
}

func TestStripLiterals(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", `SELECT 'abc'`, `SELECT '   '`},
		{"doubled quote escape", `SELECT 'a''b'`, `SELECT '    '`},
		{"quoted identifier", `SELECT "weird name" FROM t`, `SELECT "          " FROM t`},
		{"unterminated", `SELECT 'abc`, `SELECT '   `},
		{"no literals", `SELECT a FROM t`, `SELECT a FROM t`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := StripLiterals(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, len(tt.in))
		})
	}
}
