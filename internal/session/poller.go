package session

import "time"

// Poller tracks the last remote fingerprint seen by this session and decides
// when an out-of-band change happened. It never talks to the network itself;
// the serve loop fetches tokens and feeds them in, so the logic stays pure
// and testable.
type Poller struct {
	interval  time.Duration
	lastCheck time.Time
	lastSeen  string
	baselined bool
}

// NewPoller creates a poller with the given check interval.
func NewPoller(interval time.Duration) *Poller {
	return &Poller{interval: interval}
}

// Due reports whether a fingerprint check is owed at now, and if so consumes
// the slot so the next check is a full interval away.
func (p *Poller) Due(now time.Time) bool {
	if !p.lastCheck.IsZero() && now.Sub(p.lastCheck) < p.interval {
		return false
	}
	p.lastCheck = now
	return true
}

// Observe feeds a fingerprint token in and reports whether it signals an
// external change. The first non-empty token only establishes the baseline.
// A repeated token never signals twice: one distinct fingerprint value, one
// signal. Empty tokens (fingerprint unavailable this cycle) are ignored.
func (p *Poller) Observe(token string) bool {
	if token == "" {
		return false
	}
	if !p.baselined {
		p.baselined = true
		p.lastSeen = token
		return false
	}
	if token == p.lastSeen {
		return false
	}
	p.lastSeen = token
	return true
}

// Advance records that the session itself produced the given fingerprint
// state (after its own successful upload was observed), without signaling.
func (p *Poller) Advance(token string) {
	if token == "" {
		return
	}
	p.baselined = true
	p.lastSeen = token
}
