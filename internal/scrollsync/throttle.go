package scrollsync

import (
	"math"
	"time"

	"github.com/lotas/chatnav/internal/clock"
)

// FrameInterval approximates one display frame.
const FrameInterval = 16 * time.Millisecond

// FrameThrottle runs at most one pass per frame. Requests arriving while a
// pass is scheduled are coalesced; the pass reads whatever state is latest
// when it runs.
type FrameThrottle struct {
	clock     clock.Clock
	interval  time.Duration
	fn        func()
	scheduled bool
	timer     clock.Timer
}

// NewFrameThrottle wraps fn. interval <= 0 uses FrameInterval.
func NewFrameThrottle(c clock.Clock, interval time.Duration, fn func()) *FrameThrottle {
	if interval <= 0 {
		interval = FrameInterval
	}
	return &FrameThrottle{clock: c, interval: interval, fn: fn}
}

// Request schedules a pass unless one is already scheduled.
func (t *FrameThrottle) Request() {
	if t.scheduled {
		return
	}
	t.scheduled = true
	t.timer = t.clock.AfterFunc(t.interval, t.run)
}

// Scheduled reports whether a pass is waiting.
func (t *FrameThrottle) Scheduled() bool { return t.scheduled }

// Stop drops a scheduled pass.
func (t *FrameThrottle) Stop() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.scheduled = false
}

func (t *FrameThrottle) run() {
	if !t.scheduled {
		return
	}
	// Cleared first so fn may request the next frame.
	t.scheduled = false
	t.timer = nil
	t.fn()
}

// EaseInOutQuad maps linear progress t in [0,1] to eased progress.
func EaseInOutQuad(t float64) float64 {
	t = clamp01(t)
	if t < 0.5 {
		return 2 * t * t
	}
	return -1 + (4-2*t)*t
}

// DefaultSmoothDuration is the length of a jump animation.
const DefaultSmoothDuration = 600 * time.Millisecond

// SmoothScroll animates a host from one offset to another, one frame at a
// time, on the given clock. Starting a new animation cancels the previous one.
type SmoothScroll struct {
	clock    clock.Clock
	duration time.Duration
	set      func(float64)

	from, to float64
	start    time.Time
	timer    clock.Timer
	gen      uint64
	done     func()
}

// NewSmoothScroll animates by calling set with intermediate offsets.
func NewSmoothScroll(c clock.Clock, duration time.Duration, set func(float64)) *SmoothScroll {
	if duration <= 0 {
		duration = DefaultSmoothDuration
	}
	return &SmoothScroll{clock: c, duration: duration, set: set}
}

// Running reports whether an animation is in flight.
func (s *SmoothScroll) Running() bool { return s.timer != nil }

// Start animates from from to to. done, if set, runs after the final frame.
func (s *SmoothScroll) Start(from, to float64, done func()) {
	s.Cancel()
	s.from, s.to, s.done = from, to, done
	s.start = s.clock.Now()
	if math.Abs(to-from) < 0.5 {
		s.set(to)
		if done != nil {
			done()
		}
		return
	}
	s.schedule(s.gen)
}

// Cancel stops the running animation where it is.
func (s *SmoothScroll) Cancel() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.done = nil
}

func (s *SmoothScroll) schedule(gen uint64) {
	s.timer = s.clock.AfterFunc(FrameInterval, func() { s.step(gen) })
}

func (s *SmoothScroll) step(gen uint64) {
	if gen != s.gen {
		return
	}
	p := float64(s.clock.Now().Sub(s.start)) / float64(s.duration)
	if p >= 1 {
		s.timer = nil
		s.set(s.to)
		if done := s.done; done != nil {
			s.done = nil
			done()
		}
		return
	}
	s.set(s.from + (s.to-s.from)*EaseInOutQuad(p))
	s.schedule(gen)
}
