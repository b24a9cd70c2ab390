package table

// CellEdit is one pending field-level edit produced by the edit surface:
// the record key it targets, the column name, and the new value.
type CellEdit struct {
	Key   string `json:"key"`
	Field string `json:"field"`
	Text  string `json:"text,omitempty"`
	Flag  bool   `json:"flag,omitempty"`
}

// TextEdit builds a text-column edit for the record identified by key.
func TextEdit(key, field, value string) CellEdit {
	return CellEdit{Key: key, Field: field, Text: value}
}

// FlagEdit builds a flag-column edit for the record identified by key.
func FlagEdit(key, field string, value bool) CellEdit {
	return CellEdit{Key: key, Field: field, Flag: value}
}

// Delta is a sparse set of pending edits. It is transient: collected from the
// edit surface, folded into the working table, never persisted.
type Delta []CellEdit

// Empty reports whether the delta carries no edits.
func (d Delta) Empty() bool {
	return len(d) == 0
}

// Apply folds the delta into the table in place, locating each target row by
// key. Edits whose key matches no row are dropped: a partial delta cannot
// fabricate a row. Unaffected rows and unaffected fields of affected rows are
// left untouched. Returns the number of edits applied.
//
// Edits that change an identity field re-key the row, so the table index is
// rebuilt afterwards.
func (t *Table) Apply(d Delta) int {
	if d.Empty() {
		return 0
	}
	applied := 0
	rekeyed := false
	for _, e := range d {
		i, ok := t.index[e.Key]
		if !ok {
			continue
		}
		switch {
		case IsTextColumn(e.Field):
			t.rows[i].SetText(e.Field, e.Text)
			rekeyed = true
		case IsFlagColumn(e.Field):
			t.rows[i].SetFlag(e.Field, e.Flag)
		default:
			continue
		}
		applied++
	}
	if rekeyed {
		t.reindex()
	}
	return applied
}
