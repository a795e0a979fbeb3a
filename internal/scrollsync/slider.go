package scrollsync

import (
	"math"
	"time"

	"github.com/lotas/chatnav/internal/clock"
)

// DefaultFadeDelay is how long the slider stays up after the pointer leaves.
const DefaultFadeDelay = 1000 * time.Millisecond

// SliderState is the visibility of the external slider.
type SliderState int

const (
	SliderHidden SliderState = iota
	SliderVisible
	SliderFading
)

func (s SliderState) String() string {
	switch s {
	case SliderVisible:
		return "visible"
	case SliderFading:
		return "fading"
	default:
		return "hidden"
	}
}

// Slider tracks whether the external slider is shown.
//
// Pointer-enter on the track or the control shows it. Leaving both starts
// the fade countdown; the slider is hidden once the countdown elapses
// uninterrupted. While the content is scrollable the slider is sticky and
// never fades. A drag keeps it visible until the drag ends.
type Slider struct {
	clock    clock.Clock
	delay    time.Duration
	onChange func(SliderState)

	state    SliderState
	overBar  bool
	overCtl  bool
	sticky   bool
	dragging bool
	timer    clock.Timer
}

// NewSlider returns a hidden slider. onChange, if set, runs on every state
// transition.
func NewSlider(c clock.Clock, fadeDelay time.Duration, onChange func(SliderState)) *Slider {
	if fadeDelay <= 0 {
		fadeDelay = DefaultFadeDelay
	}
	return &Slider{clock: c, delay: fadeDelay, onChange: onChange}
}

// State returns the current visibility.
func (s *Slider) State() SliderState { return s.state }

// Visible reports whether the slider is drawn (visible or fading).
func (s *Slider) Visible() bool { return s.state != SliderHidden }

// Dragging reports whether a drag is in progress.
func (s *Slider) Dragging() bool { return s.dragging }

// Sticky reports whether the slider is pinned because content overflows.
func (s *Slider) Sticky() bool { return s.sticky }

// EnterBar records the pointer entering the timeline bar.
func (s *Slider) EnterBar() { s.overBar = true; s.show() }

// LeaveBar records the pointer leaving the timeline bar.
func (s *Slider) LeaveBar() { s.overBar = false; s.maybeFade() }

// EnterControl records the pointer entering the slider itself.
func (s *Slider) EnterControl() { s.overCtl = true; s.show() }

// LeaveControl records the pointer leaving the slider itself.
func (s *Slider) LeaveControl() { s.overCtl = false; s.maybeFade() }

// SetScrollable pins the slider when the track content exceeds its viewport
// and unpins it otherwise. An unpinned slider with no pointer over it is
// hidden straight away.
func (s *Slider) SetScrollable(scrollable bool) {
	s.sticky = scrollable
	if scrollable {
		s.show()
		return
	}
	if s.overBar || s.overCtl || s.dragging {
		return
	}
	s.cancel()
	s.set(SliderHidden)
}

// BeginDrag marks the start of a handle drag.
func (s *Slider) BeginDrag() {
	s.dragging = true
	s.show()
}

// EndDrag clears the drag flag and lets the slider fade if nothing holds it.
func (s *Slider) EndDrag() {
	s.dragging = false
	s.maybeFade()
}

// Nudge shows the slider briefly, as a wheel or keyboard scroll does. It
// fades again unless something holds it.
func (s *Slider) Nudge() {
	s.show()
	s.maybeFade()
}

// Stop cancels a pending fade.
func (s *Slider) Stop() { s.cancel() }

func (s *Slider) show() {
	s.cancel()
	s.set(SliderVisible)
}

func (s *Slider) maybeFade() {
	if s.dragging || s.sticky || s.overBar || s.overCtl || s.state == SliderHidden {
		return
	}
	s.cancel()
	s.set(SliderFading)
	s.timer = s.clock.AfterFunc(s.delay, func() {
		if s.state != SliderFading {
			return
		}
		s.timer = nil
		s.set(SliderHidden)
	})
}

func (s *Slider) set(st SliderState) {
	if s.state == st {
		return
	}
	s.state = st
	if s.onChange != nil {
		s.onChange(st)
	}
}

func (s *Slider) cancel() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Rail describes the slider rail and its handle, in track units.
type Rail struct {
	Length float64
	Handle float64
}

// RailFor sizes a rail for a bar of the given height: 45% of it, kept
// between minLen and maxLen.
func RailFor(barHeight, minLen, maxLen, handle float64) Rail {
	l := math.Floor(barHeight * 0.45)
	l = math.Max(minLen, math.Min(maxLen, l))
	return Rail{Length: l, Handle: handle}
}

func (r Rail) travel() float64 { return math.Max(0, r.Length-r.Handle) }

// HandleTop places the handle for a track scroll offset.
func (r Rail) HandleTop(trackScroll, contentExtent, trackHeight float64) float64 {
	rng := math.Max(1, contentExtent-trackHeight)
	return math.Round(clamp01(trackScroll/rng) * r.travel())
}

// TrackScroll converts a handle position back to a track scroll offset.
func (r Rail) TrackScroll(handleTop, contentExtent, trackHeight float64) float64 {
	t := r.travel()
	ratio := 0.0
	if t > 0 {
		ratio = clamp01(handleTop / t)
	}
	return math.Round(ratio * math.Max(1, contentExtent-trackHeight))
}
