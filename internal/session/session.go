// Package session owns the per-user state of one editing session: the working
// table, the base snapshot it will merge against, the pending-edit queue, the
// save policy and the remote-change poller. Each session is an independently
// owned struct; sessions share nothing except the remote store.
package session

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/Faroukdata/fairsync/internal/merge"
	"github.com/Faroukdata/fairsync/internal/table"
)

// Remote is the table-level view of the remote store (see sync.Manager).
type Remote interface {
	Fetch(ctx context.Context) (*table.Table, error)
	Put(ctx context.Context, t *table.Table) error
	Fingerprint(ctx context.Context) (string, error)
}

// FlushEvent describes one reconciliation attempt, for logging and history.
type FlushEvent struct {
	At          time.Time
	Trigger     FlushTrigger
	Rows        int
	Conflicts   int
	Fingerprint string
	Err         string
}

// Recorder receives flush events. Implementations must not block for long;
// they run on the session's tick path.
type Recorder interface {
	RecordFlush(ev FlushEvent)
}

// Config carries the session timing knobs and the merge policy.
type Config struct {
	Debounce      time.Duration
	BatchInterval time.Duration
	PollInterval  time.Duration
	// Resolve picks winners for double-edits; nil means merge.DefaultPolicy.
	Resolve merge.Policy
}

// FlushStats summarizes one successful flush.
type FlushStats struct {
	Rows      int `json:"rows"`
	Conflicts int `json:"conflicts"`
}

// SubmitResult reports what happened to a submitted delta.
type SubmitResult struct {
	Applied   int  `json:"applied"`
	Flushed   bool `json:"flushed"`
	Conflicts int  `json:"conflicts"`
}

// Status is a point-in-time snapshot of session state for the status API.
type Status struct {
	Rows           int       `json:"rows"`
	Query          string    `json:"query,omitempty"`
	FilterActive   bool      `json:"filter_active"`
	PendingDirty   bool      `json:"pending_dirty"`
	LastFlushAt    time.Time `json:"last_flush_at,omitempty"`
	TotalConflicts int       `json:"total_conflicts"`
	LastError      string    `json:"last_error,omitempty"`
}

// Session reconciles one user's optimistic local copy against the shared
// remote blob. Methods serialize on an internal mutex; remote calls happen
// under it, which is fine because a session serves exactly one user and all
// remote calls carry bounded timeouts.
type Session struct {
	mu      sync.Mutex
	remote  Remote
	policy  *SavePolicy
	poller  *Poller
	resolve merge.Policy
	logger  *log.Logger

	recorder Recorder
	onChange func(reason string)

	working *table.Table
	base    *table.Table
	query   string
	view    *table.View
	queue   table.Delta

	lastFlushAt    time.Time
	totalConflicts int
	lastErr        string
}

// New creates a session. Call Load before anything else.
func New(remote Remote, cfg Config, logger *log.Logger) *Session {
	return &Session{
		remote:  remote,
		policy:  NewSavePolicy(cfg.Debounce, cfg.BatchInterval),
		poller:  NewPoller(cfg.PollInterval),
		resolve: cfg.Resolve,
		logger:  logger,
		working: table.Empty(),
		base:    table.Empty(),
	}
}

// SetRecorder attaches an optional flush-history sink.
func (s *Session) SetRecorder(r Recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder = r
}

// OnChange registers a callback invoked (outside the session lock) whenever
// the working table changes: after edits, flushes and external merges.
func (s *Session) OnChange(fn func(reason string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Load bootstraps the session: fetch the current remote table, make it the
// working copy, and snapshot it as the merge base.
func (s *Session) Load(ctx context.Context, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.remote.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("session load: %w", err)
	}
	s.working = t
	s.base = t.Clone()
	s.policy.Start(now)
	s.refreshViewLocked()
	s.record(FlushEvent{At: now, Trigger: TriggerInitialLoad, Rows: t.Len()})
	return nil
}

// Working returns an independent copy of the working table.
func (s *Session) Working() *table.Table {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.working.Clone()
}

// View returns the current filtered view.
func (s *Session) View() *table.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Status reports the current session state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Rows:           s.working.Len(),
		Query:          s.query,
		FilterActive:   s.filterActiveLocked(),
		PendingDirty:   s.policy.Pending(),
		LastFlushAt:    s.lastFlushAt,
		TotalConflicts: s.totalConflicts,
		LastError:      s.lastErr,
	}
}

func (s *Session) filterActiveLocked() bool {
	return strings.TrimSpace(s.query) != ""
}

func (s *Session) refreshViewLocked() {
	s.view = s.working.Filter(s.query)
}

// Submit queues a delta from the edit surface, folds it into the working
// table, and lets the save policy decide whether to flush now. A failed
// flush does not fail the submit: the edits are applied locally and retried
// on the next trigger.
func (s *Session) Submit(ctx context.Context, now time.Time, d table.Delta) SubmitResult {
	s.mu.Lock()
	var res SubmitResult
	notify := ""
	if !d.Empty() {
		s.queue = append(s.queue, d...)
		res.Applied = s.drainQueueLocked()
		if res.Applied > 0 {
			s.refreshViewLocked()
			notify = "edit"
		}
		if res.Applied > 0 && s.policy.OnEdit(now, s.filterActiveLocked()) {
			if stats, err := s.flushLocked(ctx, now, TriggerDebounce); err == nil {
				res.Flushed = true
				res.Conflicts = stats.Conflicts
				notify = "flush"
			}
		}
	}
	s.mu.Unlock()
	s.notify(notify)
	return res
}

// drainQueueLocked folds every queued edit into the working table and clears
// the queue. Edits for unknown keys are dropped by Apply.
func (s *Session) drainQueueLocked() int {
	if s.queue.Empty() {
		return 0
	}
	applied := s.working.Apply(s.queue)
	s.queue = nil
	return applied
}

// SetQuery changes the active filter. Transitions flush per policy: entering
// a filter writes out buffered edits first so the narrowed view reflects the
// latest state; clearing a filter drains any in-flight edits and saves
// unconditionally, because the edit surface resets its grid on this
// transition and buffered edits would otherwise be lost.
func (s *Session) SetQuery(ctx context.Context, now time.Time, query string) {
	s.mu.Lock()
	wasActive := s.filterActiveLocked()
	nowActive := strings.TrimSpace(query) != ""

	if !wasActive && nowActive && s.policy.Pending() {
		s.flushLocked(ctx, now, TriggerFilterOn)
	}
	if wasActive && !nowActive {
		if s.drainQueueLocked() > 0 {
			s.refreshViewLocked()
		}
		s.flushLocked(ctx, now, TriggerFilterOff)
	}

	s.query = query
	s.refreshViewLocked()
	s.mu.Unlock()
	s.notify("query")
}

// SaveNow flushes unconditionally, preempting and resetting the batch timer.
func (s *Session) SaveNow(ctx context.Context, now time.Time) (FlushStats, error) {
	s.mu.Lock()
	s.drainQueueLocked()
	stats, err := s.flushLocked(ctx, now, TriggerSaveNow)
	s.mu.Unlock()
	if err == nil {
		s.notify("flush")
	}
	return stats, err
}

// Tick runs one evaluation pass: poll the remote fingerprint if a check is
// due, and flush buffered edits if their interval elapsed. Remote failures
// abandon the cycle silently; the next tick retries.
func (s *Session) Tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	notify := ""

	if s.poller.Due(now) {
		fp, err := s.remote.Fingerprint(ctx)
		if err == nil && s.poller.Observe(fp) {
			if s.mergeRemoteLocked(ctx, now, fp) {
				notify = "remote"
			}
		}
	}

	if s.policy.OnTick(now, s.filterActiveLocked()) {
		trigger := TriggerBatch
		if s.filterActiveLocked() {
			trigger = TriggerDebounce
		}
		if _, err := s.flushLocked(ctx, now, trigger); err == nil {
			notify = "flush"
		}
	}

	s.mu.Unlock()
	s.notify(notify)
}

// flushLocked is the full reconciliation: fetch theirs, three-way merge
// against base and the working copy, upload the merged result, and only on
// upload success adopt it locally and re-baseline. On any failure local
// state is untouched and the edits stay pending for the next trigger.
func (s *Session) flushLocked(ctx context.Context, now time.Time, trigger FlushTrigger) (FlushStats, error) {
	theirs, err := s.remote.Fetch(ctx)
	if err != nil {
		s.policy.NoteAttempt(now)
		s.failLocked(now, trigger, err)
		return FlushStats{}, err
	}

	merged, conflicts := merge.Merge(s.base, s.working, theirs, s.resolve)
	if err := s.remote.Put(ctx, merged); err != nil {
		s.policy.NoteAttempt(now)
		s.failLocked(now, trigger, err)
		return FlushStats{}, err
	}

	s.adoptLocked(merged, len(conflicts))
	s.policy.NoteSuccess(now)
	s.lastFlushAt = now
	s.lastErr = ""

	// Our own upload changed the remote fingerprint; advance the poller so
	// the next poll does not report our write as an external change.
	var newFP string
	if fp, err := s.remote.Fingerprint(ctx); err == nil {
		newFP = fp
		s.poller.Advance(fp)
	}

	stats := FlushStats{Rows: merged.Len(), Conflicts: len(conflicts)}
	s.record(FlushEvent{At: now, Trigger: trigger, Rows: stats.Rows, Conflicts: stats.Conflicts, Fingerprint: newFP})
	if len(conflicts) > 0 {
		s.logger.Printf("flush (%s): %d conflict(s) resolved automatically", trigger, len(conflicts))
	}
	return stats, nil
}

// mergeRemoteLocked pulls another session's write in without uploading:
// fetch, merge, adopt, re-baseline. The filtered view is recomputed under
// the currently active query. Returns false when the fetch failed.
func (s *Session) mergeRemoteLocked(ctx context.Context, now time.Time, fp string) bool {
	theirs, err := s.remote.Fetch(ctx)
	if err != nil {
		return false
	}
	merged, conflicts := merge.Merge(s.base, s.working, theirs, s.resolve)
	s.adoptLocked(merged, len(conflicts))
	s.record(FlushEvent{At: now, Trigger: TriggerRemotePoll, Rows: merged.Len(), Conflicts: len(conflicts), Fingerprint: fp})
	s.logger.Printf("external change merged: %d row(s), %d conflict(s)", merged.Len(), len(conflicts))
	return true
}

func (s *Session) adoptLocked(merged *table.Table, conflicts int) {
	s.working = merged
	s.base = merged.Clone()
	s.totalConflicts += conflicts
	s.refreshViewLocked()
}

func (s *Session) failLocked(now time.Time, trigger FlushTrigger, err error) {
	s.lastErr = err.Error()
	s.logger.Printf("flush (%s) failed: %v", trigger, err)
	s.record(FlushEvent{At: now, Trigger: trigger, Err: err.Error()})
}

func (s *Session) record(ev FlushEvent) {
	if s.recorder != nil {
		s.recorder.RecordFlush(ev)
	}
}

func (s *Session) notify(reason string) {
	if reason == "" {
		return
	}
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()
	if fn != nil {
		fn(reason)
	}
}
