package session

import (
	"testing"
	"time"
)

var policyStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func startedPolicy() *SavePolicy {
	p := NewSavePolicy(350*time.Millisecond, 30*time.Second)
	p.Start(policyStart)
	return p
}

func TestPolicyFilteredEditFlushesAfterDebounce(t *testing.T) {
	p := startedPolicy()
	if !p.OnEdit(policyStart.Add(time.Second), true) {
		t.Fatal("filtered edit past the debounce window should flush")
	}
}

func TestPolicyFilteredEditsDebounced(t *testing.T) {
	p := startedPolicy()
	now := policyStart.Add(time.Second)
	p.OnEdit(now, true)
	p.NoteSuccess(now)

	// A second edit 100ms later is inside the window.
	if p.OnEdit(now.Add(100*time.Millisecond), true) {
		t.Fatal("edit inside the debounce window must not flush")
	}
	if !p.Pending() {
		t.Fatal("the held-back edit must stay pending")
	}
	// It rides along with a later tick.
	if !p.OnTick(now.Add(500*time.Millisecond), true) {
		t.Fatal("pending edit should flush once the window elapses")
	}
}

func TestPolicyUnfilteredEditsBuffer(t *testing.T) {
	p := startedPolicy()
	if p.OnEdit(policyStart.Add(time.Second), false) {
		t.Fatal("unfiltered edits must buffer, not flush")
	}
	if !p.Pending() {
		t.Fatal("buffered edit should be pending")
	}
	if p.OnTick(policyStart.Add(10*time.Second), false) {
		t.Fatal("batch interval has not elapsed yet")
	}
	if !p.OnTick(policyStart.Add(31*time.Second), false) {
		t.Fatal("batch interval elapsed; buffered edits should flush")
	}
}

func TestPolicyNoPendingNoFlush(t *testing.T) {
	p := startedPolicy()
	if p.OnTick(policyStart.Add(time.Hour), false) {
		t.Fatal("nothing pending, nothing to flush")
	}
	if p.OnTick(policyStart.Add(time.Hour), true) {
		t.Fatal("nothing pending, nothing to flush")
	}
}

func TestPolicyNoteAttemptResetsTimers(t *testing.T) {
	p := startedPolicy()
	p.OnEdit(policyStart.Add(time.Second), false)

	// A failed flush at t+31s resets the batch timer but keeps the edits.
	p.NoteAttempt(policyStart.Add(31 * time.Second))
	if !p.Pending() {
		t.Fatal("failed flush must keep edits pending")
	}
	if p.OnTick(policyStart.Add(32*time.Second), false) {
		t.Fatal("retry should wait for the next full interval")
	}
	if !p.OnTick(policyStart.Add(62*time.Second), false) {
		t.Fatal("retry should fire after another interval")
	}
}

func TestPolicyNoteSuccessClearsPending(t *testing.T) {
	p := startedPolicy()
	p.OnEdit(policyStart.Add(time.Second), false)
	p.NoteSuccess(policyStart.Add(2 * time.Second))
	if p.Pending() {
		t.Fatal("successful flush must clear pending state")
	}
}
