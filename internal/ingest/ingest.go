// Package ingest converts uploaded semi-structured records into a
// well-defined relational schema: decoded, flattened, rectangular, with
// validated identifiers throughout.
package ingest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"tabgate/internal/domain"
	"tabgate/internal/ident"
)

// Dataset is a fully parsed upload, ready to be loaded into the backing
// store and registered in the catalog. Rows are rectangular: every record
// carries every column, absent fields as nil.
type Dataset struct {
	Name    ident.Identifier
	Columns []domain.Column
	Rows    []domain.FlatRecord
}

// Parse decodes req.Data according to req.Kind, flattens nested structures,
// infers column types, and validates the table and column names. It is
// pure: no catalog or backing-store side effects.
func Parse(req domain.IngestRequest) (*Dataset, error) {
	name, err := DeriveTableName(req.TableName)
	if err != nil {
		return nil, err
	}

	switch req.Kind {
	case domain.SourceCSV:
		return parseCSV(name, req.Data)
	case domain.SourceJSONArray:
		return parseJSONArray(name, req.Data)
	case domain.SourceJSONLines:
		return parseJSONLines(name, req.Data)
	default:
		return nil, domain.ErrUnsupportedFormat("unsupported source kind %q", req.Kind)
	}
}

// DeriveTableName sanitizes a caller-suggested name (typically a filename
// stem): non-alphanumeric runs become underscores and a leading digit gets
// an underscore prefix. The result must still pass identifier validation —
// a reserved-keyword filename fails loudly instead of being renamed to
// something the caller cannot predict.
func DeriveTableName(suggested string) (ident.Identifier, error) {
	name := sanitizeSegment(suggested)
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return ident.Validate(name, ident.KindTable)
}

func parseCSV(name ident.Identifier, data []byte) (*Dataset, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, domain.ErrEmptyDataset("csv input has no header row")
	}
	if err != nil {
		return nil, domain.ErrMalformedInput("read csv header: %v", err)
	}

	columns, err := csvColumns(header)
	if err != nil {
		return nil, err
	}

	var rows []domain.FlatRecord
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domain.ErrMalformedInput("read csv row %d: %v", len(rows)+2, err)
		}
		// Short rows pad with nulls; extra cells have no column to land in
		// and must not be dropped silently.
		if len(record) > len(columns) {
			return nil, domain.ErrMalformedInput("csv row %d has %d cells, header has %d columns", len(rows)+2, len(record), len(columns))
		}
		row := make(domain.FlatRecord, len(columns))
		for i, col := range columns {
			if i < len(record) {
				row[col.Name] = csvValue(record[i])
			} else {
				row[col.Name] = nil
			}
		}
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil, domain.ErrEmptyDataset("csv input has a header but no data rows")
	}

	inferColumnTypes(columns, rows)
	return &Dataset{Name: name, Columns: columns, Rows: rows}, nil
}

// csvColumns lower-cases headers, replaces spaces with underscores,
// validates each result, and resolves duplicates with numeric suffixes.
func csvColumns(header []string) ([]domain.Column, error) {
	columns := make([]domain.Column, 0, len(header))
	taken := make(map[string]struct{}, len(header))
	for i, h := range header {
		normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(h)), " ", "_")
		id, err := ident.Validate(normalized, ident.KindColumn)
		if err != nil {
			return nil, domain.ErrInvalidIdentifier("csv header %d (%q): %v", i+1, h, err)
		}
		final := dedupeName(id.String(), taken)
		taken[final] = struct{}{}
		columns = append(columns, domain.Column{
			Name:       final,
			Type:       domain.TypeText,
			SourcePath: h,
		})
	}
	if len(columns) == 0 {
		return nil, domain.ErrEmptyDataset("csv header row is empty")
	}
	return columns, nil
}

// csvValue converts one CSV cell: empty cells become nil, numeric text
// becomes int64/float64, everything else stays text.
func csvValue(cell string) any {
	if cell == "" {
		return nil
	}
	if n, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return f
	}
	return cell
}

func parseJSONArray(name ident.Identifier, data []byte) (*Dataset, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, domain.ErrMalformedInput("decode json array: %v", err)
	}
	records := make([]map[string]any, 0, len(raw))
	for i, elem := range raw {
		rec, ok := elem.(map[string]any)
		if !ok {
			return nil, domain.ErrMalformedInput("json array element %d is %T, want object", i+1, elem)
		}
		records = append(records, rec)
	}
	return buildDataset(name, records)
}

func parseJSONLines(name ident.Identifier, data []byte) (*Dataset, error) {
	var records []map[string]any
	for i, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			return nil, domain.ErrMalformedInput("decode json line %d: %v", i+1, err)
		}
		records = append(records, rec)
	}
	return buildDataset(name, records)
}

// buildDataset flattens the records, maps discovered paths onto unique
// validated column names, and infers types.
func buildDataset(name ident.Identifier, records []map[string]any) (*Dataset, error) {
	if len(records) == 0 {
		return nil, domain.ErrEmptyDataset("input contains no records")
	}

	paths, flatRows, err := flatten(records)
	if err != nil {
		return nil, domain.ErrMalformedInput("%v", err)
	}
	if len(paths) == 0 {
		return nil, domain.ErrEmptyDataset("input records contain no fields")
	}

	columns := make([]domain.Column, 0, len(paths))
	finalName := make(map[string]string, len(paths)) // source path -> deduped column name
	taken := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		id, err := ident.Validate(p.Col, ident.KindColumn)
		if err != nil {
			return nil, domain.ErrInvalidIdentifier("flattened field %q: %v", p.Source, err)
		}
		final := dedupeName(id.String(), taken)
		taken[final] = struct{}{}
		finalName[p.Source] = final
		columns = append(columns, domain.Column{
			Name:       final,
			Type:       domain.TypeText,
			SourcePath: p.Source,
		})
	}

	rows := make([]domain.FlatRecord, 0, len(flatRows))
	for _, flat := range flatRows {
		row := make(domain.FlatRecord, len(columns))
		for path, v := range flat {
			row[finalName[path]] = v
		}
		rows = append(rows, row)
	}

	inferColumnTypes(columns, rows)
	return &Dataset{Name: name, Columns: columns, Rows: rows}, nil
}

// dedupeName resolves a collision deterministically with a numeric suffix:
// name, name_2, name_3, ...
func dedupeName(name string, taken map[string]struct{}) string {
	if _, ok := taken[name]; !ok {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}

// inferColumnTypes widens each column over all rows: integer-only values
// stay INTEGER, mixed integer/real widens to REAL, anything textual (or a
// column of nothing but nulls) is TEXT.
func inferColumnTypes(columns []domain.Column, rows []domain.FlatRecord) {
	for i := range columns {
		sawInt, sawReal, sawText := false, false, false
		for _, row := range rows {
			switch row[columns[i].Name].(type) {
			case nil:
			case int64:
				sawInt = true
			case float64:
				sawReal = true
			default:
				sawText = true
			}
		}
		switch {
		case sawText || (!sawInt && !sawReal):
			columns[i].Type = domain.TypeText
		case sawReal:
			columns[i].Type = domain.TypeReal
		default:
			columns[i].Type = domain.TypeInteger
		}
	}
}

// Sample returns at most domain.SampleLimit rows for the ingest preview.
func (d *Dataset) Sample() []domain.FlatRecord {
	n := len(d.Rows)
	if n > domain.SampleLimit {
		n = domain.SampleLimit
	}
	sample := make([]domain.FlatRecord, n)
	copy(sample, d.Rows[:n])
	return sample
}
