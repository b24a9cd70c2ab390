// Package table holds the in-memory candidate dataset: typed records, stable
// record keys, schema coercion, CSV round-tripping and sparse delta application.
package table

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical column names, as written to the CSV header.
const (
	ColFirstName  = "first_name"
	ColLastName   = "last_name"
	ColFileName   = "file_name"
	ColSeen       = "seen"
	ColIntendView = "intend_view"
	ColCVSaved    = "cv_saved"
	ColContacted  = "contacted"
)

// TextColumns and FlagColumns list the canonical columns by kind, in header order.
var (
	TextColumns = []string{ColFirstName, ColLastName, ColFileName}
	FlagColumns = []string{ColSeen, ColIntendView, ColCVSaved, ColContacted}
)

// Columns returns the full canonical header: text columns then flag columns.
func Columns() []string {
	cols := make([]string, 0, len(TextColumns)+len(FlagColumns))
	cols = append(cols, TextColumns...)
	cols = append(cols, FlagColumns...)
	return cols
}

// IsTextColumn reports whether name is a canonical text column.
func IsTextColumn(name string) bool {
	for _, c := range TextColumns {
		if c == name {
			return true
		}
	}
	return false
}

// IsFlagColumn reports whether name is a canonical boolean flag column.
func IsFlagColumn(name string) bool {
	for _, c := range FlagColumns {
		if c == name {
			return true
		}
	}
	return false
}

// Record is one candidate entry. Identity is not a surrogate id; it is the
// normalized composite of (first name, last name, file name).
type Record struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	FileName  string `json:"file_name"`

	Seen       bool `json:"seen"`
	IntendView bool `json:"intend_view"`
	CVSaved    bool `json:"cv_saved"`
	Contacted  bool `json:"contacted"`
}

// Key returns the stable identity key for this record.
func (r *Record) Key() string {
	return KeyOf(r.FirstName, r.LastName, r.FileName)
}

// Text returns the value of a text column. ok is false for unknown columns.
func (r *Record) Text(col string) (value string, ok bool) {
	switch col {
	case ColFirstName:
		return r.FirstName, true
	case ColLastName:
		return r.LastName, true
	case ColFileName:
		return r.FileName, true
	}
	return "", false
}

// Flag returns the value of a boolean flag column. ok is false for unknown columns.
func (r *Record) Flag(col string) (value, ok bool) {
	switch col {
	case ColSeen:
		return r.Seen, true
	case ColIntendView:
		return r.IntendView, true
	case ColCVSaved:
		return r.CVSaved, true
	case ColContacted:
		return r.Contacted, true
	}
	return false, false
}

// SetText sets a text column by name. Unknown columns are ignored.
func (r *Record) SetText(col, value string) {
	switch col {
	case ColFirstName:
		r.FirstName = value
	case ColLastName:
		r.LastName = value
	case ColFileName:
		r.FileName = value
	}
}

// SetFlag sets a flag column by name. Unknown columns are ignored.
func (r *Record) SetFlag(col string, value bool) {
	switch col {
	case ColSeen:
		r.Seen = value
	case ColIntendView:
		r.IntendView = value
	case ColCVSaved:
		r.CVSaved = value
	case ColContacted:
		r.Contacted = value
	}
}

// IsZero reports whether every field carries its default value.
func (r *Record) IsZero() bool {
	return r.FirstName == "" && r.LastName == "" && r.FileName == "" &&
		!r.Seen && !r.IntendView && !r.CVSaved && !r.Contacted
}

// SearchText returns the normalized "first last" string used for filtering.
func (r *Record) SearchText() string {
	return Normalize(r.FirstName + " " + r.LastName)
}

// stripMarks decomposes to NFKD and removes combining marks, so "Kádri"
// normalizes to "Kadri".
var stripMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

// Normalize lower-cases, trims, collapses internal whitespace runs and strips
// diacritics. Used for record keys and for search matching, so lookups are
// accent- and case-insensitive.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	if out, _, err := transform.String(stripMarks, s); err == nil {
		s = out
	}
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// KeyOf derives the stable record key from its identity fields. Names are
// fully normalized; the file reference is trimmed and lower-cased but keeps
// its internal spacing and diacritics, it still has to resolve as a URL or
// filename.
func KeyOf(first, last, file string) string {
	return Normalize(first) + "||" + Normalize(last) + "||" + strings.ToLower(strings.TrimSpace(file))
}

// ParseFlag coerces a loosely-typed boolean cell to a strict bool.
// Unrecognized values coerce to false, never to an error.
func ParseFlag(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y":
		return true
	}
	return false
}

// FormatFlag serializes a flag the way the remote CSV stores it.
func FormatFlag(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
