package table

import "testing"

func sampleTable() *Table {
	return New([]Record{
		{FirstName: "Marie", LastName: "Curie", FileName: "m.pdf"},
		{FirstName: "Ada", LastName: "Lovelace", FileName: "ada.pdf", Seen: true},
	})
}

func TestApplyFlagEdit(t *testing.T) {
	tb := sampleTable()
	key := KeyOf("Marie", "Curie", "m.pdf")
	n := tb.Apply(Delta{FlagEdit(key, ColContacted, true)})
	if n != 1 {
		t.Fatalf("applied = %d, want 1", n)
	}
	r, _ := tb.Lookup(key)
	if !r.Contacted {
		t.Error("flag edit not applied")
	}
	// Untouched row must be bit-identical.
	ada, _ := tb.Lookup(KeyOf("Ada", "Lovelace", "ada.pdf"))
	if ada != (Record{FirstName: "Ada", LastName: "Lovelace", FileName: "ada.pdf", Seen: true}) {
		t.Error("untouched row changed")
	}
}

func TestApplyUnknownKeyDropped(t *testing.T) {
	tb := sampleTable()
	n := tb.Apply(Delta{
		FlagEdit(KeyOf("No", "Body", "x.pdf"), ColSeen, true),
		TextEdit("garbage||key||", ColFirstName, "X"),
	})
	if n != 0 {
		t.Fatalf("applied = %d, want 0; a delta cannot fabricate rows", n)
	}
	if tb.Len() != 2 {
		t.Fatalf("row count changed to %d", tb.Len())
	}
}

func TestApplyUnknownFieldDropped(t *testing.T) {
	tb := sampleTable()
	key := KeyOf("Marie", "Curie", "m.pdf")
	if n := tb.Apply(Delta{{Key: key, Field: "salary", Text: "1e9"}}); n != 0 {
		t.Fatalf("applied = %d, want 0", n)
	}
}

func TestApplyIdentityEditRekeys(t *testing.T) {
	tb := sampleTable()
	oldKey := KeyOf("Marie", "Curie", "m.pdf")
	tb.Apply(Delta{TextEdit(oldKey, ColLastName, "Sklodowska")})

	if _, ok := tb.Lookup(oldKey); ok {
		t.Error("old key should no longer resolve after identity edit")
	}
	r, ok := tb.Lookup(KeyOf("Marie", "Sklodowska", "m.pdf"))
	if !ok {
		t.Fatal("row not reachable under its new key")
	}
	if r.LastName != "Sklodowska" {
		t.Errorf("LastName = %q", r.LastName)
	}
}

func TestApplyMultipleEditsSameRow(t *testing.T) {
	tb := sampleTable()
	key := KeyOf("Ada", "Lovelace", "ada.pdf")
	n := tb.Apply(Delta{
		FlagEdit(key, ColIntendView, true),
		FlagEdit(key, ColCVSaved, true),
		FlagEdit(key, ColContacted, true),
	})
	if n != 3 {
		t.Fatalf("applied = %d, want 3", n)
	}
	r, _ := tb.Lookup(key)
	if !r.IntendView || !r.CVSaved || !r.Contacted {
		t.Error("not all edits applied")
	}
}
