package session

import "time"

// FlushTrigger names what caused a flush, for logging and the audit history.
type FlushTrigger string

const (
	TriggerDebounce    FlushTrigger = "debounce"     // edit while filtering
	TriggerBatch       FlushTrigger = "batch"        // periodic buffered save
	TriggerSaveNow     FlushTrigger = "save_now"     // explicit save request
	TriggerFilterOn    FlushTrigger = "filter_on"    // pending edits before narrowing
	TriggerFilterOff   FlushTrigger = "filter_off"   // drain + save when filter clears
	TriggerRemotePoll  FlushTrigger = "remote_poll"  // external fingerprint change
	TriggerInitialLoad FlushTrigger = "initial_load" // session bootstrap
)

// SavePolicy decides when local edits are pushed to the remote store.
// While a filter is active the user is working a narrow, committed-to subset,
// so edits save near-instantly (debounced); without a filter edits buffer and
// a periodic tick writes them out. All decisions take now as a parameter;
// the policy never reads the wall clock.
type SavePolicy struct {
	debounce      time.Duration
	batchInterval time.Duration

	lastFlush    time.Time
	lastSave     time.Time
	pendingDirty bool
}

// NewSavePolicy creates a policy with the given debounce window and buffered
// batch interval.
func NewSavePolicy(debounce, batchInterval time.Duration) *SavePolicy {
	return &SavePolicy{debounce: debounce, batchInterval: batchInterval}
}

// Start anchors the batch timer at session load, so the first buffered save
// happens one full interval after start rather than immediately.
func (p *SavePolicy) Start(now time.Time) {
	p.lastFlush = now
	p.lastSave = now.Add(-p.debounce)
}

// Pending reports whether buffered edits are waiting for a flush.
func (p *SavePolicy) Pending() bool {
	return p.pendingDirty
}

// OnEdit records a non-empty delta and reports whether it should flush right
// away. Edits held back by the debounce window stay pending and ride along
// with a later trigger.
func (p *SavePolicy) OnEdit(now time.Time, filterActive bool) bool {
	p.pendingDirty = true
	if !filterActive {
		return false
	}
	return now.Sub(p.lastSave) >= p.debounce
}

// OnTick reports whether a periodic tick should flush pending edits at now.
func (p *SavePolicy) OnTick(now time.Time, filterActive bool) bool {
	if !p.pendingDirty {
		return false
	}
	if filterActive {
		return now.Sub(p.lastSave) >= p.debounce
	}
	return now.Sub(p.lastFlush) >= p.batchInterval
}

// NoteAttempt marks a flush attempt at now. Timers reset on failure too:
// the edits stay pending, but an unreachable remote is retried on the next
// scheduled trigger instead of every tick.
func (p *SavePolicy) NoteAttempt(now time.Time) {
	p.lastFlush = now
	p.lastSave = now
}

// NoteSuccess marks a completed flush: timers reset and nothing is pending.
func (p *SavePolicy) NoteSuccess(now time.Time) {
	p.NoteAttempt(now)
	p.pendingDirty = false
}
