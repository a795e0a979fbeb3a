package clock

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Timer is a pending callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// Clock abstracts time so timer-driven state machines can be tested
// without sleeping.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real is the wall clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Serial wraps a Clock so every timer callback runs while holding mu.
// Owners that guard their state with mu get event-loop semantics: a
// callback never interleaves with a method call already holding the lock.
func Serial(c Clock, mu sync.Locker) Clock {
	return serial{c: c, mu: mu}
}

type serial struct {
	c  Clock
	mu sync.Locker
}

func (s serial) Now() time.Time { return s.c.Now() }

// AfterFunc returns a timer whose Stop, called with mu held, also
// cancels a callback that already fired and is waiting for mu.
func (s serial) AfterFunc(d time.Duration, f func()) Timer {
	t := &serialTimer{}
	t.inner = s.c.AfterFunc(d, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if t.state.CompareAndSwap(timerPending, timerRan) {
			f()
		}
	})
	return t
}

const (
	timerPending int32 = iota
	timerRan
	timerStopped
)

type serialTimer struct {
	inner Timer
	state atomic.Int32
}

// Stop reports whether the callback was prevented from running.
func (t *serialTimer) Stop() bool {
	t.inner.Stop()
	return t.state.CompareAndSwap(timerPending, timerStopped)
}

// Fake is a manually advanced clock. Callbacks fire synchronously from
// Advance, in deadline order.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *Fake
	at      time.Time
	seq     int
	f       func()
	stopped bool
	fired   bool
}

// NewFake returns a Fake clock starting at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Fake) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{clock: c, at: c.now.Add(d), seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Pending reports how many timers are waiting to fire.
func (c *Fake) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Advance moves the clock forward by d, firing every timer whose deadline
// is reached. Timers scheduled by callbacks fire too if they fall inside
// the window.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	end := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.nextDue(end)
		if next == nil {
			c.now = end
			c.mu.Unlock()
			return
		}
		c.now = next.at
		next.fired = true
		c.mu.Unlock()
		next.f()
	}
}

func (c *Fake) nextDue(end time.Time) *fakeTimer {
	live := c.timers[:0]
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	c.timers = live
	sort.SliceStable(c.timers, func(i, j int) bool {
		if c.timers[i].at.Equal(c.timers[j].at) {
			return c.timers[i].seq < c.timers[j].seq
		}
		return c.timers[i].at.Before(c.timers[j].at)
	})
	if len(c.timers) == 0 || c.timers[0].at.After(end) {
		return nil
	}
	return c.timers[0]
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}
