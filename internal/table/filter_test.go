package table

import "testing"

func filterFixture() *Table {
	return New([]Record{
		{FirstName: "Marie", LastName: "Curie", FileName: "m.pdf"},
		{FirstName: "Pierre", LastName: "Curie", FileName: "p.pdf"},
		{FirstName: "Kádri", LastName: "Öztürk", FileName: "k.pdf"},
	})
}

func TestFilterEmptyQueryReturnsAll(t *testing.T) {
	v := filterFixture().Filter("")
	if len(v.Rows) != 3 {
		t.Fatalf("expected all 3 rows, got %d", len(v.Rows))
	}
}

func TestFilterMultiToken(t *testing.T) {
	v := filterFixture().Filter("curie ma")
	if len(v.Rows) != 1 || v.Rows[0].FirstName != "Marie" {
		t.Fatalf("expected only Marie Curie, got %+v", v.Rows)
	}
}

func TestFilterAccentInsensitive(t *testing.T) {
	for _, q := range []string{"kadri", "KÁDRI", "ozturk"} {
		v := filterFixture().Filter(q)
		if len(v.Rows) != 1 || v.Rows[0].FirstName != "Kádri" {
			t.Fatalf("query %q: got %+v", q, v.Rows)
		}
	}
}

func TestFilterViewKeyTracksQueryAndCount(t *testing.T) {
	tb := filterFixture()
	a := tb.Filter("curie")
	b := tb.Filter("curie ma")
	if a.Key == b.Key {
		t.Error("different queries must yield different view keys")
	}
	if a.Key != tb.Filter("Curie").Key {
		t.Error("view key should depend on the normalized query")
	}

	// Same query, different matched count -> different key.
	tb.Apply(Delta{TextEdit(KeyOf("Pierre", "Curie", "p.pdf"), ColLastName, "Joliot")})
	c := tb.Filter("curie")
	if c.Key == a.Key {
		t.Error("changed row count must change the view key")
	}
}
