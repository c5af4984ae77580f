// Package ident validates and quotes SQL identifiers. A raw string becomes
// usable in query text only by passing Validate, which returns the opaque
// Identifier type; downstream code accepts Identifier, never raw strings,
// so an unvalidated name is a compile-time error.
package ident

import (
	"regexp"
	"strings"

	"tabgate/internal/domain"
)

// Kind distinguishes the role an identifier plays in query text.
type Kind int

// Identifier kinds.
const (
	KindTable Kind = iota
	KindColumn
)

func (k Kind) String() string {
	if k == KindColumn {
		return "column"
	}
	return "table"
}

// identifierRe allows alphanumeric + underscores, starting with a letter or underscore.
var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// maxLen is the maximum length allowed for an identifier.
const maxLen = 128

// reserved is the case-insensitive denylist of operation keywords that may
// not be used as identifiers even though they are syntactically valid.
// Some backing stores permit keyword identifiers when quoted, which would
// make query text ambiguous to the guard.
var reserved = map[string]struct{}{
	"select": {}, "insert": {}, "update": {}, "delete": {}, "merge": {},
	"create": {}, "drop": {}, "alter": {}, "truncate": {}, "replace": {},
	"union": {}, "intersect": {}, "except": {},
	"from": {}, "where": {}, "join": {}, "table": {}, "index": {}, "view": {},
	"grant": {}, "revoke": {}, "attach": {}, "detach": {},
	"pragma": {}, "call": {}, "exec": {}, "execute": {},
	"with": {}, "values": {}, "set": {}, "copy": {},
	"begin": {}, "commit": {}, "rollback": {}, "transaction": {},
}

// Identifier is a table or column name that has passed validation. The
// zero value is not valid; obtain one through Validate.
type Identifier struct {
	raw string
}

// String returns the validated name without quoting.
func (id Identifier) String() string { return id.raw }

// IsZero reports whether the identifier was never validated.
func (id Identifier) IsZero() bool { return id.raw == "" }

// Quote returns the identifier wrapped in double quotes with embedded
// double quotes doubled (standard SQL). Validation already rejects quote
// characters, so quoting can never change statement structure.
func (id Identifier) Quote() string {
	return `"` + strings.ReplaceAll(id.raw, `"`, `""`) + `"`
}

// Validate checks that candidate is a safe identifier of the given kind:
//   - non-empty after trimming
//   - at most 128 characters
//   - matches [A-Za-z_][A-Za-z0-9_]*
//   - not a reserved operation keyword (case-insensitive)
//
// Validation is pure: the same input always yields the same Identifier.
func Validate(candidate string, kind Kind) (Identifier, error) {
	name := strings.TrimSpace(candidate)
	if name == "" {
		return Identifier{}, domain.ErrInvalidIdentifier("%s name is required", kind)
	}
	if len(name) > maxLen {
		return Identifier{}, domain.ErrInvalidIdentifier("%s name must be at most %d characters", kind, maxLen)
	}
	if !identifierRe.MatchString(name) {
		return Identifier{}, domain.ErrInvalidIdentifier("%s name %q must match [A-Za-z_][A-Za-z0-9_]*", kind, name)
	}
	if _, ok := reserved[strings.ToLower(name)]; ok {
		return Identifier{}, domain.ErrInvalidIdentifier("%s name %q is a reserved keyword", kind, name)
	}
	return Identifier{raw: name}, nil
}
