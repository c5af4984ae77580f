package ingest

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// pathSep joins nested map keys in generated column names. Distinct source
// keys can collapse to the same generated path ("a b" and "a-b" both
// sanitize to "a_b"), so everything downstream is keyed by the unique
// source path and colliding column names get numeric suffixes.
const pathSep = "__"

// columnPath pairs the generated column name path with its source origin
// (dotted for maps, indexed for arrays, e.g. "addr.city" or "tags[0]").
type columnPath struct {
	Col    string
	Source string
}

// flatten converts irregular nested records into a rectangular dataset in
// two passes. Pass one walks every record and accumulates the union of
// column paths in first-seen order; pass two re-walks each record over the
// complete path set, filling absent fields with nil. Single-pass flattening
// would yield ragged per-record shapes that cannot form one table; the
// extra O(n) traversal buys the rectangularity the executor depends on.
func flatten(records []map[string]any) ([]columnPath, []map[string]any, error) {
	var union []columnPath
	seen := make(map[string]struct{})

	// Pass one: discover the full column set, keyed by source path so two
	// fields whose generated names collide stay distinct columns.
	for i, rec := range records {
		flat, err := walkRecord(rec)
		if err != nil {
			return nil, nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		for _, p := range flat.order {
			if _, ok := seen[p.Source]; !ok {
				seen[p.Source] = struct{}{}
				union = append(union, p)
			}
		}
	}

	// Pass two: rectangular rows over the union, keyed by source path.
	rows := make([]map[string]any, 0, len(records))
	for i, rec := range records {
		flat, err := walkRecord(rec)
		if err != nil {
			return nil, nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		row := make(map[string]any, len(union))
		for _, p := range union {
			if v, ok := flat.values[p.Source]; ok {
				row[p.Source] = v
			} else {
				row[p.Source] = nil
			}
		}
		rows = append(rows, row)
	}

	return union, rows, nil
}

// flatRecord is the result of walking one source record. values is keyed
// by source path, which is unique within a record even when generated
// column paths collide.
type flatRecord struct {
	order  []columnPath
	values map[string]any
}

// walkRecord recursively flattens one record. Map keys are visited in
// sorted order so path discovery is deterministic across runs.
func walkRecord(rec map[string]any) (*flatRecord, error) {
	out := &flatRecord{values: make(map[string]any)}
	if err := walkValue(rec, "", "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func walkValue(v any, colPath, sourcePath string, out *flatRecord) error {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			col := sanitizeSegment(k)
			if colPath != "" {
				col = colPath + pathSep + col
			}
			src := k
			if sourcePath != "" {
				src = sourcePath + "." + k
			}
			if err := walkValue(val[k], col, src, out); err != nil {
				return err
			}
		}
		return nil
	case []any:
		if colPath == "" {
			return fmt.Errorf("top-level value must be an object, got array")
		}
		for i, elem := range val {
			col := fmt.Sprintf("%s%s%d", colPath, pathSep, i)
			src := fmt.Sprintf("%s[%d]", sourcePath, i)
			if err := walkValue(elem, col, src, out); err != nil {
				return err
			}
		}
		return nil
	default:
		if colPath == "" {
			return fmt.Errorf("top-level value must be an object, got %T", v)
		}
		scalar, err := normalizeScalar(val)
		if err != nil {
			return fmt.Errorf("field %s: %w", sourcePath, err)
		}
		out.order = append(out.order, columnPath{Col: colPath, Source: sourcePath})
		out.values[sourcePath] = scalar
		return nil
	}
}

// normalizeScalar maps decoded JSON scalars onto the engine's value model:
// nil, int64, float64, or string. Booleans become text.
func normalizeScalar(v any) (any, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return val, nil
	case bool:
		if val {
			return "true", nil
		}
		return "false", nil
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n, nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("unparseable number %q", val.String())
		}
		return f, nil
	case float64:
		return val, nil
	case int64:
		return val, nil
	default:
		return nil, fmt.Errorf("unsupported scalar type %T", v)
	}
}

// sanitizeSegment makes one path segment identifier-safe: lower-cased,
// every run of non-alphanumeric characters collapsed to an underscore.
func sanitizeSegment(s string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := b.String()
	if out == "" {
		return "_"
	}
	return out
}
