// Package merge implements the three-way reconciliation between the last
// known remote state (base), the session's working table (ours) and a freshly
// fetched remote copy (theirs).
package merge

import (
	"sort"

	"github.com/Faroukdata/fairsync/internal/table"
)

// Conflict records one field on one record that was changed on both sides
// relative to base. Conflicts are data-resolution outcomes, not errors: the
// merge still succeeds and the policy decides the surviving value.
type Conflict struct {
	Key   string `json:"key"`
	Field string `json:"field"`
}

// Policy resolves double-edits. Text edits and flag edits carry different
// risk profiles, so the two are resolved independently.
type Policy interface {
	// ResolveText picks the surviving value when both sides changed a text
	// field relative to base.
	ResolveText(key, field, base, ours, theirs string) string
	// ResolveFlag picks the surviving value when both sides changed a flag.
	ResolveFlag(key, field string, base, ours, theirs bool) bool
}

// DefaultPolicy is the stock resolution: ours wins for text fields (rare,
// intentional edits attributable to the active session), logical OR for
// flags (cooperative progress markers where losing a true is worse than a
// spurious true).
type DefaultPolicy struct{}

func (DefaultPolicy) ResolveText(_, _, _, ours, _ string) string {
	return ours
}

func (DefaultPolicy) ResolveFlag(_, _ string, _, ours, theirs bool) bool {
	return ours || theirs
}

// Merge reconciles the three tables and returns the merged table plus the
// list of double-edit conflicts. Keys absent from a table compare as the
// zero record (empty text, false flags). The output contains one row per
// surviving key, sorted by key, so it depends only on table content and
// never on input row order. Rows that end up fully zero are dropped rather
// than kept through the key union: a row that vanished from theirs and was
// not touched locally reads as a remote deletion and stays deleted, while
// any local change to it survives as a partial resurrection.
//
// A nil policy means DefaultPolicy.
func Merge(base, ours, theirs *table.Table, policy Policy) (*table.Table, []Conflict) {
	if policy == nil {
		policy = DefaultPolicy{}
	}

	keys := make(map[string]struct{})
	for k := range base.Keys() {
		keys[k] = struct{}{}
	}
	for k := range ours.Keys() {
		keys[k] = struct{}{}
	}
	for k := range theirs.Keys() {
		keys[k] = struct{}{}
	}

	ordered := make([]string, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, k)
	}
	sort.Strings(ordered)

	var rows []table.Record
	var conflicts []Conflict

	for _, key := range ordered {
		b, _ := base.Lookup(key)
		o, _ := ours.Lookup(key)
		t, _ := theirs.Lookup(key)

		var out table.Record
		for _, col := range table.TextColumns {
			bv, _ := b.Text(col)
			ov, _ := o.Text(col)
			tv, _ := t.Text(col)
			changedOurs := ov != bv
			changedTheirs := tv != bv
			switch {
			case changedOurs && changedTheirs:
				conflicts = append(conflicts, Conflict{Key: key, Field: col})
				out.SetText(col, policy.ResolveText(key, col, bv, ov, tv))
			case changedOurs:
				out.SetText(col, ov)
			default:
				// theirs changed it, or nobody did and theirs equals both
				out.SetText(col, tv)
			}
		}
		for _, col := range table.FlagColumns {
			bv, _ := b.Flag(col)
			ov, _ := o.Flag(col)
			tv, _ := t.Flag(col)
			changedOurs := ov != bv
			changedTheirs := tv != bv
			switch {
			case changedOurs && changedTheirs:
				conflicts = append(conflicts, Conflict{Key: key, Field: col})
				out.SetFlag(col, policy.ResolveFlag(key, col, bv, ov, tv))
			case changedOurs:
				out.SetFlag(col, ov)
			default:
				out.SetFlag(col, tv)
			}
		}
		if out.IsZero() {
			continue
		}
		rows = append(rows, out)
	}

	merged := table.New(rows)
	merged.SortByKey()
	return merged, conflicts
}
