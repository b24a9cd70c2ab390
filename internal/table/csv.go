package table

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
)

// NormalizeSchema coerces an arbitrary ingested grid into the canonical
// schema. header names are matched case-insensitively; missing text columns
// default to "", missing flag columns to false, and loosely-typed flag cells
// ("Yes", "1", "TRUE", ...) coerce to strict bools. Extra columns are
// dropped. Malformed data is coerced, never rejected, and the operation is
// idempotent.
func NormalizeSchema(header []string, cells [][]string) *Table {
	col := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := col[name]; !dup {
			col[name] = i
		}
	}

	cell := func(row []string, name string) (string, bool) {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return "", false
		}
		return row[i], true
	}

	rows := make([]Record, 0, len(cells))
	for _, raw := range cells {
		var r Record
		for _, c := range TextColumns {
			if v, ok := cell(raw, c); ok {
				r.SetText(c, strings.TrimSpace(v))
			}
		}
		for _, c := range FlagColumns {
			if v, ok := cell(raw, c); ok {
				r.SetFlag(c, ParseFlag(v))
			}
		}
		rows = append(rows, r)
	}
	return New(rows)
}

// ParseCSV decodes a remote CSV blob into a normalized table. An empty blob
// yields an empty table. Ragged rows are tolerated; only a malformed CSV
// stream itself is an error.
func ParseCSV(data []byte) (*Table, error) {
	if len(data) == 0 {
		return Empty(), nil
	}
	rd := csv.NewReader(bytes.NewReader(data))
	rd.FieldsPerRecord = -1
	rd.TrimLeadingSpace = true
	all, err := rd.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(all) == 0 {
		return Empty(), nil
	}
	return NormalizeSchema(all[0], all[1:]), nil
}

// MarshalCSV serializes a table to the persisted wire format: a header row
// naming exactly the canonical columns, flags written as 0/1.
func MarshalCSV(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(Columns()); err != nil {
		return nil, err
	}
	for i := 0; i < t.Len(); i++ {
		r := t.Row(i)
		row := make([]string, 0, len(TextColumns)+len(FlagColumns))
		for _, c := range TextColumns {
			v, _ := r.Text(c)
			row = append(row, v)
		}
		for _, c := range FlagColumns {
			v, _ := r.Flag(c)
			row = append(row, FormatFlag(v))
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("marshal csv: %w", err)
	}
	return buf.Bytes(), nil
}
