package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/Faroukdata/fairsync/internal/table"
)

// fakeRemote is an in-memory Remote. The fingerprint is a version counter
// bumped on every Put, mimicking a content hash that changes with the blob.
type fakeRemote struct {
	mu      sync.Mutex
	data    *table.Table
	version int

	fetchErr error
	putErr   error

	fetches int
	puts    int
}

func newFakeRemote(t *table.Table) *fakeRemote {
	return &fakeRemote{data: t, version: 1}
}

func (r *fakeRemote) Fetch(_ context.Context) (*table.Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches++
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	if r.data == nil {
		return table.Empty(), nil
	}
	return r.data.Clone(), nil
}

func (r *fakeRemote) Put(_ context.Context, t *table.Table) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.putErr != nil {
		return r.putErr
	}
	r.puts++
	r.data = t.Clone()
	r.version++
	return nil
}

func (r *fakeRemote) Fingerprint(_ context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("v%d", r.version), nil
}

func (r *fakeRemote) table() *table.Table {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.data.Clone()
}

var testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testConfig() Config {
	return Config{
		Debounce:      350 * time.Millisecond,
		BatchInterval: 30 * time.Second,
		PollInterval:  3 * time.Second,
	}
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func seedTable() *table.Table {
	return table.New([]table.Record{
		{FirstName: "Marie", LastName: "Curie", FileName: "m.pdf"},
		{FirstName: "Ada", LastName: "Lovelace", FileName: "ada.pdf"},
	})
}

func loadedSession(t *testing.T, remote Remote) *Session {
	t.Helper()
	s := New(remote, testConfig(), testLogger())
	if err := s.Load(context.Background(), testStart); err != nil {
		t.Fatal(err)
	}
	return s
}

func key(first, last, file string) string {
	return table.KeyOf(first, last, file)
}

func TestLoadAdoptsRemote(t *testing.T) {
	s := loadedSession(t, newFakeRemote(seedTable()))
	if got := s.Working().Len(); got != 2 {
		t.Fatalf("working rows = %d, want 2", got)
	}
	if s.Status().PendingDirty {
		t.Fatal("fresh session should have nothing pending")
	}
}

func TestSubmitBuffersWithoutFilter(t *testing.T) {
	remote := newFakeRemote(seedTable())
	s := loadedSession(t, remote)

	res := s.Submit(context.Background(), testStart.Add(time.Second),
		table.Delta{table.FlagEdit(key("Marie", "Curie", "m.pdf"), table.ColSeen, true)})
	if res.Applied != 1 || res.Flushed {
		t.Fatalf("res = %+v, want applied=1 flushed=false", res)
	}

	// Applied locally, not uploaded.
	r, _ := s.Working().Lookup(key("Marie", "Curie", "m.pdf"))
	if !r.Seen {
		t.Fatal("edit not applied to working table")
	}
	if remote.puts != 0 {
		t.Fatal("unfiltered edit must buffer, not upload")
	}
	if !s.Status().PendingDirty {
		t.Fatal("edit should be pending")
	}
}

func TestBatchTickFlushesBufferedEdits(t *testing.T) {
	remote := newFakeRemote(seedTable())
	s := loadedSession(t, remote)

	s.Submit(context.Background(), testStart.Add(time.Second),
		table.Delta{table.FlagEdit(key("Marie", "Curie", "m.pdf"), table.ColSeen, true)})

	s.Tick(context.Background(), testStart.Add(10*time.Second))
	if remote.puts != 0 {
		t.Fatal("batch interval not elapsed; nothing should upload")
	}

	s.Tick(context.Background(), testStart.Add(31*time.Second))
	if remote.puts != 1 {
		t.Fatalf("puts = %d, want 1 after batch interval", remote.puts)
	}
	r, _ := remote.table().Lookup(key("Marie", "Curie", "m.pdf"))
	if !r.Seen {
		t.Fatal("buffered edit did not reach the remote")
	}
	if s.Status().PendingDirty {
		t.Fatal("flush should clear pending state")
	}
}

func TestFilteredEditFlushesImmediately(t *testing.T) {
	remote := newFakeRemote(seedTable())
	s := loadedSession(t, remote)

	s.SetQuery(context.Background(), testStart.Add(time.Second), "curie")
	res := s.Submit(context.Background(), testStart.Add(2*time.Second),
		table.Delta{table.FlagEdit(key("Marie", "Curie", "m.pdf"), table.ColContacted, true)})
	if !res.Flushed {
		t.Fatal("filtered edit past debounce should flush immediately")
	}
	if remote.puts != 1 {
		t.Fatalf("puts = %d, want 1", remote.puts)
	}
}

func TestFilterOnTransitionFlushesPending(t *testing.T) {
	remote := newFakeRemote(seedTable())
	s := loadedSession(t, remote)

	s.Submit(context.Background(), testStart.Add(time.Second),
		table.Delta{table.FlagEdit(key("Ada", "Lovelace", "ada.pdf"), table.ColSeen, true)})
	if remote.puts != 0 {
		t.Fatal("edit should still be buffered")
	}

	// Entering a filter writes the buffer out first.
	s.SetQuery(context.Background(), testStart.Add(2*time.Second), "ada")
	if remote.puts != 1 {
		t.Fatalf("puts = %d, want 1 on filter-on transition", remote.puts)
	}
	v := s.View()
	if len(v.Rows) != 1 || !v.Rows[0].Seen {
		t.Fatalf("narrowed view should reflect the flushed edit: %+v", v.Rows)
	}
}

func TestFilterOffTransitionSaves(t *testing.T) {
	remote := newFakeRemote(seedTable())
	s := loadedSession(t, remote)

	s.SetQuery(context.Background(), testStart.Add(time.Second), "curie")
	puts := remote.puts

	// Clearing the filter saves unconditionally.
	s.SetQuery(context.Background(), testStart.Add(2*time.Second), "")
	if remote.puts != puts+1 {
		t.Fatalf("puts = %d, want %d after filter-off", remote.puts, puts+1)
	}
	if len(s.View().Rows) != 2 {
		t.Fatal("cleared filter should restore the full view")
	}
}

func TestSaveNow(t *testing.T) {
	remote := newFakeRemote(seedTable())
	s := loadedSession(t, remote)

	s.Submit(context.Background(), testStart.Add(time.Second),
		table.Delta{table.FlagEdit(key("Marie", "Curie", "m.pdf"), table.ColCVSaved, true)})
	stats, err := s.SaveNow(context.Background(), testStart.Add(2*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Rows != 2 {
		t.Fatalf("stats.Rows = %d", stats.Rows)
	}
	if remote.puts != 1 {
		t.Fatal("save-now must upload immediately")
	}

	// The batch timer was reset: an edit right after does not ride an old timer.
	s.Submit(context.Background(), testStart.Add(3*time.Second),
		table.Delta{table.FlagEdit(key("Marie", "Curie", "m.pdf"), table.ColSeen, true)})
	s.Tick(context.Background(), testStart.Add(20*time.Second))
	if remote.puts != 1 {
		t.Fatal("batch timer should have restarted at save-now")
	}
}

func TestFlushFailureIsLocalNoOp(t *testing.T) {
	remote := newFakeRemote(seedTable())
	s := loadedSession(t, remote)

	s.Submit(context.Background(), testStart.Add(time.Second),
		table.Delta{table.FlagEdit(key("Marie", "Curie", "m.pdf"), table.ColSeen, true)})

	remote.putErr = errors.New("upload refused")
	before := s.Working()
	if _, err := s.SaveNow(context.Background(), testStart.Add(2*time.Second)); err == nil {
		t.Fatal("expected save error")
	}
	if !s.Working().Equal(before) {
		t.Fatal("failed flush must leave the working table untouched")
	}
	st := s.Status()
	if !st.PendingDirty {
		t.Fatal("edits must stay pending after a failed flush")
	}
	if st.LastError == "" {
		t.Fatal("status should surface the flush error")
	}

	// Remote recovers; the next trigger retries and succeeds.
	remote.putErr = nil
	if _, err := s.SaveNow(context.Background(), testStart.Add(3*time.Second)); err != nil {
		t.Fatal(err)
	}
	r, _ := remote.table().Lookup(key("Marie", "Curie", "m.pdf"))
	if !r.Seen {
		t.Fatal("edit lost across the retry")
	}
	if s.Status().LastError != "" {
		t.Fatal("successful flush should clear the last error")
	}
}

func TestTickMergesExternalChange(t *testing.T) {
	remote := newFakeRemote(seedTable())
	s := loadedSession(t, remote)

	// First due tick baselines the fingerprint.
	s.Tick(context.Background(), testStart.Add(time.Second))

	// Another writer uploads a change.
	other := remote.table()
	other.Apply(table.Delta{table.FlagEdit(key("Ada", "Lovelace", "ada.pdf"), table.ColContacted, true)})
	if err := remote.Put(context.Background(), other); err != nil {
		t.Fatal(err)
	}
	puts := remote.puts

	s.Tick(context.Background(), testStart.Add(5*time.Second))

	r, _ := s.Working().Lookup(key("Ada", "Lovelace", "ada.pdf"))
	if !r.Contacted {
		t.Fatal("external change not merged into the working table")
	}
	if remote.puts != puts {
		t.Fatal("pulling an external change must not upload")
	}
}

func TestExternalMergePreservesLocalUnflushedEdits(t *testing.T) {
	remote := newFakeRemote(seedTable())
	s := loadedSession(t, remote)
	s.Tick(context.Background(), testStart.Add(time.Second)) // baseline

	// Local edit, still buffered.
	s.Submit(context.Background(), testStart.Add(2*time.Second),
		table.Delta{table.FlagEdit(key("Marie", "Curie", "m.pdf"), table.ColSeen, true)})

	// External edit on a different row.
	other := remote.table()
	other.Apply(table.Delta{table.FlagEdit(key("Ada", "Lovelace", "ada.pdf"), table.ColContacted, true)})
	if err := remote.Put(context.Background(), other); err != nil {
		t.Fatal(err)
	}

	s.Tick(context.Background(), testStart.Add(5*time.Second))

	w := s.Working()
	marie, _ := w.Lookup(key("Marie", "Curie", "m.pdf"))
	ada, _ := w.Lookup(key("Ada", "Lovelace", "ada.pdf"))
	if !marie.Seen {
		t.Fatal("local unflushed edit lost in the external merge")
	}
	if !ada.Contacted {
		t.Fatal("external edit missing after the merge")
	}
}

func TestOwnUploadDoesNotSignalChange(t *testing.T) {
	remote := newFakeRemote(seedTable())
	s := loadedSession(t, remote)
	s.Tick(context.Background(), testStart.Add(time.Second)) // baseline

	s.Submit(context.Background(), testStart.Add(2*time.Second),
		table.Delta{table.FlagEdit(key("Marie", "Curie", "m.pdf"), table.ColSeen, true)})
	if _, err := s.SaveNow(context.Background(), testStart.Add(3*time.Second)); err != nil {
		t.Fatal(err)
	}

	fetches := remote.fetches
	s.Tick(context.Background(), testStart.Add(6*time.Second))
	if remote.fetches != fetches {
		t.Fatal("our own upload must not trigger a remote-change merge fetch")
	}
}

func TestSubmitToUnknownKeyIsDropped(t *testing.T) {
	remote := newFakeRemote(seedTable())
	s := loadedSession(t, remote)

	res := s.Submit(context.Background(), testStart.Add(time.Second),
		table.Delta{table.FlagEdit(key("No", "Body", "x.pdf"), table.ColSeen, true)})
	if res.Applied != 0 {
		t.Fatalf("applied = %d, want 0", res.Applied)
	}
	if s.Working().Len() != 2 {
		t.Fatal("a delta cannot fabricate rows")
	}
}

// Two sessions, interleaved edits on the same sheet: both sets of progress
// markers survive regardless of upload order.
func TestTwoSessionsConverge(t *testing.T) {
	remote := newFakeRemote(seedTable())
	a := loadedSession(t, remote)
	b := loadedSession(t, remote)

	marie := key("Marie", "Curie", "m.pdf")
	ada := key("Ada", "Lovelace", "ada.pdf")

	// A marks Marie seen, B marks Ada contacted; both buffered.
	a.Submit(context.Background(), testStart.Add(time.Second),
		table.Delta{table.FlagEdit(marie, table.ColSeen, true)})
	b.Submit(context.Background(), testStart.Add(time.Second),
		table.Delta{table.FlagEdit(ada, table.ColContacted, true)})

	// A saves first, then B: B's flush fetches A's upload and merges before
	// overwriting, so A's edit is not clobbered.
	if _, err := a.SaveNow(context.Background(), testStart.Add(2*time.Second)); err != nil {
		t.Fatal(err)
	}
	if _, err := b.SaveNow(context.Background(), testStart.Add(3*time.Second)); err != nil {
		t.Fatal(err)
	}

	final := remote.table()
	m, _ := final.Lookup(marie)
	ad, _ := final.Lookup(ada)
	if !m.Seen {
		t.Fatal("session A's edit lost")
	}
	if !ad.Contacted {
		t.Fatal("session B's edit lost")
	}

	// A polls and picks up B's write.
	a.Tick(context.Background(), testStart.Add(10*time.Second))
	got, _ := a.Working().Lookup(ada)
	if !got.Contacted {
		t.Fatal("session A did not converge onto B's edit")
	}
}

func TestTwoSessionsSameFlagDoubleEdit(t *testing.T) {
	remote := newFakeRemote(seedTable())
	a := loadedSession(t, remote)
	b := loadedSession(t, remote)

	marie := key("Marie", "Curie", "m.pdf")
	a.Submit(context.Background(), testStart.Add(time.Second),
		table.Delta{table.FlagEdit(marie, table.ColSeen, true)})
	b.Submit(context.Background(), testStart.Add(time.Second),
		table.Delta{table.FlagEdit(marie, table.ColSeen, true)})

	if _, err := a.SaveNow(context.Background(), testStart.Add(2*time.Second)); err != nil {
		t.Fatal(err)
	}
	stats, err := b.SaveNow(context.Background(), testStart.Add(3*time.Second))
	if err != nil {
		t.Fatal(err)
	}
	if stats.Conflicts != 1 {
		t.Fatalf("conflicts = %d, want 1 (double-set of the same flag)", stats.Conflicts)
	}
	m, _ := remote.table().Lookup(marie)
	if !m.Seen {
		t.Fatal("true must survive the double-edit")
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []FlushEvent
}

func (r *recordingSink) RecordFlush(ev FlushEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func TestRecorderReceivesFlushEvents(t *testing.T) {
	remote := newFakeRemote(seedTable())
	sink := &recordingSink{}
	s := New(remote, testConfig(), testLogger())
	s.SetRecorder(sink)
	if err := s.Load(context.Background(), testStart); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SaveNow(context.Background(), testStart.Add(time.Second)); err != nil {
		t.Fatal(err)
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 2 {
		t.Fatalf("events = %d, want load + save", len(sink.events))
	}
	if sink.events[0].Trigger != TriggerInitialLoad {
		t.Errorf("first event = %s", sink.events[0].Trigger)
	}
	if sink.events[1].Trigger != TriggerSaveNow {
		t.Errorf("second event = %s", sink.events[1].Trigger)
	}
}
