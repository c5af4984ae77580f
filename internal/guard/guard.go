// Package guard performs static, pre-execution screening of query text.
// It is a sound gate, not an interpreter: a heuristic token scanner over
// quote-stripped text, ordered so that each check can assume the earlier
// ones already hold (statement count, then comments, then classification,
// then policy, then pattern denylist).
package guard

import (
	"fmt"
	"regexp"
	"strings"

	"tabgate/internal/domain"
)

// Options carries the caller's capabilities. AllowDDL is an explicit
// capability granted only by trusted, non-LLM-facing callers; it is never
// derived from the query text itself.
type Options struct {
	AllowDDL bool
}

// Screen classifies and screens one query text. The returned verdict
// carries a stable reason code on rejection.
func Screen(text string, opts Options) domain.QueryVerdict {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return reject(domain.OpUnknown, domain.ReasonUnknownOperation, "empty query text")
	}

	stripped := StripLiterals(trimmed)

	// 1. Statement count: a separator anywhere outside a string literal is
	// a stacked-query attempt. One trailing semicolon is tolerated.
	if idx := strings.IndexByte(stripped, ';'); idx >= 0 {
		if strings.TrimSpace(stripped[idx+1:]) != "" {
			return reject(domain.OpUnknown, domain.ReasonMultiStatement, "multiple statements are not permitted")
		}
		trimmed = strings.TrimSpace(trimmed[:idx])
		stripped = stripped[:idx]
	}

	// 2. Comment tokens outside literals truncate and smuggle payloads;
	// they are never permitted, even in benign read queries.
	for _, tok := range []string{"--", "/*", "*/"} {
		if strings.Contains(stripped, tok) {
			return reject(domain.OpUnknown, domain.ReasonCommentInjection, "comment token %q is not permitted", tok)
		}
	}

	// 3. Operation classification from the leading keyword(s).
	op := classify(stripped)

	// 4. Policy gate.
	switch op {
	case domain.OpWrite:
		return reject(op, domain.ReasonWriteForbidden, "write statements are not permitted on this path")
	case domain.OpDDL:
		if !opts.AllowDDL {
			return reject(op, domain.ReasonDDLForbidden, "DDL requires an explicit capability")
		}
	case domain.OpUnknown:
		return reject(op, domain.ReasonUnknownOperation, "unrecognized leading keyword")
	}

	// 5. Pattern denylist: payloads smuggled inside a syntactically valid
	// single statement.
	if reason, ok := matchDenylist(trimmed, stripped); !ok {
		return reject(op, domain.ReasonPatternMatch, "%s", reason)
	}

	return domain.QueryVerdict{Allowed: true, Operation: op}
}

func reject(op domain.Operation, reason domain.RejectReason, format string, args ...any) domain.QueryVerdict {
	detail := format
	if len(args) > 0 {
		detail = fmt.Sprintf(format, args...)
	}
	return domain.QueryVerdict{Operation: op, Reason: reason, Detail: detail}
}

// classify buckets the statement by its leading keyword. WITH resolves to
// READ only when the first depth-zero keyword after the CTE list is SELECT.
func classify(stripped string) domain.Operation {
	tokens := tokenize(stripped)
	if len(tokens) == 0 {
		return domain.OpUnknown
	}

	switch tokens[0].word {
	case "SELECT":
		return domain.OpRead
	case "INSERT", "UPDATE", "DELETE", "MERGE", "REPLACE":
		return domain.OpWrite
	case "CREATE", "DROP", "ALTER", "TRUNCATE", "ATTACH", "DETACH":
		return domain.OpDDL
	case "WITH":
		for _, tok := range tokens[1:] {
			if tok.depth != 0 {
				continue
			}
			switch tok.word {
			case "SELECT":
				return domain.OpRead
			case "INSERT", "UPDATE", "DELETE":
				return domain.OpWrite
			}
		}
		return domain.OpUnknown
	default:
		return domain.OpUnknown
	}
}

// token is one upper-cased word with the parenthesis depth it occurs at.
type token struct {
	word  string
	depth int
}

// tokenize splits literal-stripped text into upper-cased word tokens,
// tracking parenthesis depth. Non-word characters are separators.
func tokenize(stripped string) []token {
	var tokens []token
	depth := 0
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, token{word: strings.ToUpper(cur.String()), depth: depth})
			cur.Reset()
		}
	}
	for _, r := range stripped {
		switch {
		case r == '(':
			flush()
			depth++
		case r == ')':
			flush()
			depth--
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
			cur.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// StripLiterals blanks the contents of quoted string literals and quoted
// identifiers, preserving length and the quote characters themselves so
// later index math and regex scans cannot be confused by quoted payloads.
// Doubled quotes inside a literal are handled as escapes.
func StripLiterals(text string) string {
	out := []byte(text)
	i := 0
	for i < len(out) {
		q := out[i]
		if q != '\'' && q != '"' {
			i++
			continue
		}
		j := i + 1
		for j < len(out) {
			if out[j] == q {
				if j+1 < len(out) && out[j+1] == q {
					// Doubled quote escape; still part of the literal.
					out[j], out[j+1] = ' ', ' '
					j += 2
					continue
				}
				break
			}
			out[j] = ' '
			j++
		}
		if j >= len(out) {
			// Unterminated literal: everything after the quote is blanked,
			// which is the conservative reading for a screener.
			return string(out)
		}
		i = j + 1
	}
	return string(out)
}

// literalPattern matches a number or an (already stripped) string literal.
const literalPattern = `(?:\d+(?:\.\d+)?|'\s*')`

var (
	tautologyRe   = regexp.MustCompile(`(?i)\b(?:OR|AND)\s+(` + literalPattern + `)\s*(?:=|==)\s*(` + literalPattern + `)`)
	unionRe       = regexp.MustCompile(`(?i)\bUNION\b(?:\s+ALL)?\s+SELECT\b`)
	boolCommentRe = regexp.MustCompile(`(?i)\b(?:OR|AND)\b\s*(?:--|/\*)`)
)

// dangerousFunctions is the blocklist of backing-store functions that can
// read the filesystem, environment, or engine internals from inside an
// otherwise benign SELECT.
var dangerousFunctions = []string{
	"read_csv", "read_csv_auto", "read_parquet", "read_json",
	"read_json_auto", "read_text", "read_blob", "glob", "getenv",
	"sqlite_scan", "query_table", "duckdb_extensions", "duckdb_settings",
	"duckdb_databases", "duckdb_secrets", "pragma_database_list",
}

var dangerousFnRe = regexp.MustCompile(`(?i)\b(` + strings.Join(dangerousFunctions, "|") + `)\s*\(`)

// matchDenylist scans an approved single-statement query for classic
// injection idioms. Returns the failure description and ok=false on a hit.
func matchDenylist(raw, stripped string) (string, bool) {
	if m := tautologyRe.FindStringSubmatch(stripped); m != nil && literalEqual(m[1], m[2]) {
		return "boolean tautology pattern", false
	}
	if unionRe.MatchString(stripped) {
		return "UNION SELECT chain", false
	}
	if boolCommentRe.MatchString(raw) {
		return "boolean operator adjacent to comment token", false
	}
	if m := dangerousFnRe.FindStringSubmatch(stripped); m != nil {
		return "prohibited function " + strings.ToLower(m[1]), false
	}
	return "", true
}

// literalEqual compares the two sides of a comparison after whitespace
// normalization; stripped string literals compare by their quoting alone.
func literalEqual(a, b string) bool {
	norm := func(s string) string { return strings.Join(strings.Fields(s), "") }
	return norm(a) == norm(b)
}
