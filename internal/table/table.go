package table

import "sort"

// Table is an ordered collection of records. A session mutates exactly one
// working Table in place; every other Table (base snapshot, fetched remote
// copy, merge output) is treated as an immutable value snapshot.
type Table struct {
	rows  []Record
	index map[string]int // key -> first row with that key
}

// New builds a table from rows. When duplicate keys occur the first
// occurrence wins for lookups; merge output never contains duplicates.
func New(rows []Record) *Table {
	t := &Table{rows: rows}
	t.reindex()
	return t
}

// Empty returns a table with no rows.
func Empty() *Table {
	return New(nil)
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.rows))
	for i := range t.rows {
		k := t.rows[i].Key()
		if _, ok := t.index[k]; !ok {
			t.index[k] = i
		}
	}
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Row returns a copy of the i-th row.
func (t *Table) Row(i int) Record {
	return t.rows[i]
}

// Rows returns a copy of all rows in order.
func (t *Table) Rows() []Record {
	out := make([]Record, len(t.rows))
	copy(out, t.rows)
	return out
}

// Lookup returns a copy of the row with the given key.
func (t *Table) Lookup(key string) (Record, bool) {
	i, ok := t.index[key]
	if !ok {
		return Record{}, false
	}
	return t.rows[i], true
}

// Keys returns the set of record keys present in the table.
func (t *Table) Keys() map[string]struct{} {
	keys := make(map[string]struct{}, len(t.rows))
	for i := range t.rows {
		keys[t.rows[i].Key()] = struct{}{}
	}
	return keys
}

// Clone returns an independent deep copy, used for base snapshots.
func (t *Table) Clone() *Table {
	return New(t.Rows())
}

// Equal reports whether two tables hold the same rows for the same keys,
// regardless of row order.
func (t *Table) Equal(other *Table) bool {
	if t.Len() != other.Len() {
		return false
	}
	for i := range t.rows {
		got, ok := other.Lookup(t.rows[i].Key())
		if !ok || got != t.rows[i] {
			return false
		}
	}
	return true
}

// SortByKey orders rows by record key in place. Merge output is sorted so the
// result depends only on content, never on input iteration order.
func (t *Table) SortByKey() {
	sort.Slice(t.rows, func(i, j int) bool {
		return t.rows[i].Key() < t.rows[j].Key()
	})
	t.reindex()
}
