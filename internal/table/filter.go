package table

import (
	"fmt"
	"strings"
)

// View is a derived, disposable projection of a working table under a search
// query. It is recomputed from the table whenever the table or the query
// changes; it never feeds back into the table.
type View struct {
	Query string   `json:"query"`
	Key   string   `json:"key"`
	Rows  []Record `json:"rows"`
}

// Filter computes the filtered view for a multi-token query. Matching is
// accent- and case-insensitive over the combined "first last" name; every
// token must match. An empty query returns all rows.
//
// The view key changes whenever the query or the matched row count changes,
// which is what an edit surface uses to decide when its grid must be rebuilt.
func (t *Table) Filter(query string) *View {
	q := Normalize(query)
	v := &View{Query: query}
	if q == "" {
		v.Rows = t.Rows()
	} else {
		tokens := strings.Fields(q)
		for i := range t.rows {
			full := t.rows[i].SearchText()
			match := true
			for _, tok := range tokens {
				if !strings.Contains(full, tok) {
					match = false
					break
				}
			}
			if match {
				v.Rows = append(v.Rows, t.rows[i])
			}
		}
	}
	v.Key = fmt.Sprintf("q::%s::n%d", q, len(v.Rows))
	return v
}
