package scrollsync

import (
	"time"

	"github.com/lotas/chatnav/internal/clock"
)

// DefaultActiveInterval is the minimum time between two visible
// active-marker changes.
const DefaultActiveInterval = 120 * time.Millisecond

// DebounceState names the debouncer's two states.
type DebounceState int

const (
	// Settled: the committed index is current, no timer is pending.
	Settled DebounceState = iota
	// Pending: a newer index waits for the interval to elapse.
	Pending
)

func (s DebounceState) String() string {
	if s == Pending {
		return "pending"
	}
	return "settled"
}

// ActiveDebouncer rate-limits active-marker changes. A change is held for
// one interval and the latest observed value is committed when it ends, so
// a burst of changes yields a single commit, a burst that returns to the
// committed value yields none, and commits are at least one interval apart.
//
// Not safe for concurrent use; pair it with clock.Serial when timers fire
// on other goroutines.
type ActiveDebouncer struct {
	clock    clock.Clock
	interval time.Duration
	onCommit func(prev, next int)

	state    DebounceState
	active   int
	pending  int
	deadline time.Time
	timer    clock.Timer
}

// NewActiveDebouncer creates a debouncer with no active marker (-1).
// onCommit runs for every committed change.
func NewActiveDebouncer(c clock.Clock, interval time.Duration, onCommit func(prev, next int)) *ActiveDebouncer {
	if interval <= 0 {
		interval = DefaultActiveInterval
	}
	return &ActiveDebouncer{clock: c, interval: interval, onCommit: onCommit, active: -1, pending: -1}
}

// Active returns the committed index.
func (d *ActiveDebouncer) Active() int { return d.active }

// State returns the current state and, when pending, the waiting index and
// the time it will be committed.
func (d *ActiveDebouncer) State() (DebounceState, int, time.Time) {
	return d.state, d.pending, d.deadline
}

// Observe feeds a freshly computed active index.
func (d *ActiveDebouncer) Observe(idx int) {
	if idx == d.active {
		// Settled back before the timer fired: nothing to commit.
		d.cancel()
		return
	}
	d.pending = idx
	if d.state == Pending {
		return
	}
	d.state = Pending
	d.deadline = d.clock.Now().Add(d.interval)
	d.timer = d.clock.AfterFunc(d.interval, d.fire)
}

// Force commits idx immediately, dropping any pending value. Used when the
// marker set is rebuilt.
func (d *ActiveDebouncer) Force(idx int) {
	d.cancel()
	if idx != d.active {
		d.commit(idx)
	}
}

// Stop cancels a pending commit.
func (d *ActiveDebouncer) Stop() {
	d.cancel()
}

func (d *ActiveDebouncer) fire() {
	if d.state != Pending {
		return
	}
	next := d.pending
	d.state = Settled
	d.timer = nil
	d.pending = -1
	if next != d.active {
		d.commit(next)
	}
}

func (d *ActiveDebouncer) commit(idx int) {
	prev := d.active
	d.active = idx
	if d.onCommit != nil {
		d.onCommit(prev, idx)
	}
}

func (d *ActiveDebouncer) cancel() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.state = Settled
	d.pending = -1
}
