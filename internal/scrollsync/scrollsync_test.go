package scrollsync

import (
	"math"
	"testing"
	"time"

	"github.com/lotas/chatnav/internal/clock"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestMappingRoundTrip(t *testing.T) {
	m := Mapping{FirstOffset: 200, Span: 5000, ContentExtent: 2000, TrackHeight: 400}
	const vh, total = 800.0, 6000.0

	for top := 0.0; top <= 4800; top += 37 {
		back := m.Reverse(m.Synthetic(top, vh), vh, total)
		if math.Abs(back-top) > 1e-6 {
			t.Fatalf("exact round trip of %v gave %v", top, back)
		}
		back = m.Reverse(m.Forward(top, vh), vh, total)
		if math.Abs(back-top) > 2 {
			t.Fatalf("rounded round trip of %v gave %v", top, back)
		}
	}
}

func TestReverseClamps(t *testing.T) {
	m := Mapping{FirstOffset: 0, Span: 1000, ContentExtent: 500, TrackHeight: 100}
	if got := m.Reverse(-50, 200, 800); got != 0 {
		t.Errorf("Reverse(-50) = %v, want 0", got)
	}
	if got := m.Reverse(10000, 200, 800); got != 800 {
		t.Errorf("Reverse(10000) = %v, want 800", got)
	}
}

func TestScrolledToBottom(t *testing.T) {
	tops := []float64{100, 900, 1700, 2500, 3300}
	const vh, contentHeight = 800.0, 4000.0
	total := contentHeight - vh
	m := Mapping{FirstOffset: tops[0], Span: tops[4] - tops[0], ContentExtent: 300, TrackHeight: 120}

	if got := m.Forward(total, vh); got != 180 {
		t.Errorf("synthetic at bottom = %v, want 180", got)
	}
	ref := ReferenceLine(total, vh)
	if got := ActiveIndex(tops, ref, nil); got != len(tops)-1 {
		t.Errorf("active at bottom = %d, want %d", got, len(tops)-1)
	}
}

func TestSyntheticMaxNeverNegative(t *testing.T) {
	m := Mapping{FirstOffset: 0, Span: 0, ContentExtent: 100, TrackHeight: 300}
	if got := m.Forward(500, 100); got != 0 {
		t.Errorf("Forward on short track = %v, want 0", got)
	}
	if got := m.Reverse(50, 100, 400); got != 0 {
		t.Errorf("Reverse on short track = %v, want 0", got)
	}
}

func TestShouldApply(t *testing.T) {
	if ShouldApply(100, 101) {
		t.Error("1 unit difference should not be applied")
	}
	if !ShouldApply(100, 102) {
		t.Error("2 unit difference should be applied")
	}
}

func TestActiveIndex(t *testing.T) {
	tops := []float64{0, 100, 200, 300}
	tests := []struct {
		name    string
		ref     float64
		visible []int
		want    int
	}{
		{"no markers", 0, nil, -1},
		{"above first", -10, nil, 0},
		{"linear scan", 250, nil, 2},
		{"exactly on top", 300, nil, 3},
		{"visible above line wins", 250, []int{1, 2, 3}, 2},
		{"visible subset", 250, []int{0, 1}, 1},
		{"only below line falls back", 250, []int{3}, 2},
		{"out of range ignored", 250, []int{-1, 9}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := tops
			if tt.want == -1 {
				in = nil
			}
			if got := ActiveIndex(in, tt.ref, tt.visible); got != tt.want {
				t.Errorf("ActiveIndex = %d, want %d", got, tt.want)
			}
		})
	}
}

type commitLog struct {
	at   []time.Time
	next []int
}

func newDebouncer(c *clock.Fake) (*ActiveDebouncer, *commitLog) {
	log := &commitLog{}
	d := NewActiveDebouncer(c, DefaultActiveInterval, func(_, next int) {
		log.at = append(log.at, c.Now())
		log.next = append(log.next, next)
	})
	return d, log
}

func TestDebounceBurstCollapses(t *testing.T) {
	c := clock.NewFake(epoch)
	d, log := newDebouncer(c)
	d.Force(0)
	log.next = nil

	for i := 1; i <= 5; i++ {
		c.Advance(10 * time.Millisecond)
		d.Observe(i)
	}
	if len(log.next) != 0 {
		t.Fatalf("committed during burst: %v", log.next)
	}
	if c.Pending() != 1 {
		t.Fatalf("pending timers = %d, want 1", c.Pending())
	}
	st, idx, _ := d.State()
	if st != Pending || idx != 5 {
		t.Errorf("state = %v(%d), want pending(5)", st, idx)
	}

	c.Advance(200 * time.Millisecond)
	if len(log.next) != 1 || log.next[0] != 5 {
		t.Fatalf("commits = %v, want [5]", log.next)
	}
	// Held for one interval from the first change of the burst.
	if got := log.at[0].Sub(epoch); got != 10*time.Millisecond+DefaultActiveInterval {
		t.Errorf("committed at %v, want %v", got, 10*time.Millisecond+DefaultActiveInterval)
	}
	if d.Active() != 5 {
		t.Errorf("Active() = %d, want 5", d.Active())
	}
}

func TestDebounceSettleBack(t *testing.T) {
	c := clock.NewFake(epoch)
	d, log := newDebouncer(c)
	d.Force(2)
	log.next = nil

	for _, idx := range []int{3, 4, 3, 2} {
		c.Advance(10 * time.Millisecond)
		d.Observe(idx)
	}
	if c.Pending() != 0 {
		t.Errorf("pending timers = %d after settling back, want 0", c.Pending())
	}
	c.Advance(time.Second)
	if len(log.next) != 0 {
		t.Errorf("commits = %v, want none", log.next)
	}
	if d.Active() != 2 {
		t.Errorf("Active() = %d, want 2", d.Active())
	}
}

func TestDebounceAtMostOnePerInterval(t *testing.T) {
	c := clock.NewFake(epoch)
	d, log := newDebouncer(c)

	for i := 0; i < 100; i++ {
		d.Observe(i % 7)
		c.Advance(7 * time.Millisecond)
	}
	c.Advance(time.Second)

	for i := 1; i < len(log.at); i++ {
		if gap := log.at[i].Sub(log.at[i-1]); gap < DefaultActiveInterval {
			t.Fatalf("commits %d and %d only %v apart", i-1, i, gap)
		}
	}
	if d.Active() != 99%7 {
		t.Errorf("final active = %d, want %d", d.Active(), 99%7)
	}
}

func TestDebounceSingleChange(t *testing.T) {
	c := clock.NewFake(epoch)
	d, log := newDebouncer(c)
	d.Observe(1)
	c.Advance(DefaultActiveInterval - time.Millisecond)
	if len(log.next) != 0 {
		t.Fatalf("committed before the interval: %v", log.next)
	}
	c.Advance(time.Millisecond)
	if len(log.next) != 1 || log.next[0] != 1 || c.Pending() != 0 {
		t.Errorf("commits = %v pending = %d, want [1]", log.next, c.Pending())
	}
}

func TestSliderFade(t *testing.T) {
	c := clock.NewFake(epoch)
	var seen []SliderState
	s := NewSlider(c, DefaultFadeDelay, func(st SliderState) { seen = append(seen, st) })

	s.EnterBar()
	if s.State() != SliderVisible {
		t.Fatalf("after enter: %v", s.State())
	}
	s.LeaveBar()
	if s.State() != SliderFading {
		t.Fatalf("after leave: %v", s.State())
	}
	c.Advance(500 * time.Millisecond)
	s.EnterControl()
	c.Advance(2 * time.Second)
	if s.State() != SliderVisible {
		t.Fatalf("re-entry did not cancel fade: %v", s.State())
	}
	s.LeaveControl()
	c.Advance(DefaultFadeDelay)
	if s.State() != SliderHidden {
		t.Fatalf("after fade delay: %v", s.State())
	}

	want := []SliderState{SliderVisible, SliderFading, SliderVisible, SliderFading, SliderHidden}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("transition %d = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestSliderStickyAndDrag(t *testing.T) {
	c := clock.NewFake(epoch)
	s := NewSlider(c, 0, nil)

	s.SetScrollable(true)
	s.EnterBar()
	s.LeaveBar()
	c.Advance(5 * time.Second)
	if s.State() != SliderVisible {
		t.Errorf("sticky slider faded: %v", s.State())
	}

	s.SetScrollable(false)
	if s.State() != SliderHidden {
		t.Errorf("unpinned slider still shown: %v", s.State())
	}

	s.BeginDrag()
	c.Advance(5 * time.Second)
	if !s.Dragging() || s.State() != SliderVisible {
		t.Errorf("drag: dragging=%v state=%v", s.Dragging(), s.State())
	}
	s.EndDrag()
	c.Advance(DefaultFadeDelay)
	if s.State() != SliderHidden {
		t.Errorf("after drag end: %v", s.State())
	}
}

func TestRail(t *testing.T) {
	r := RailFor(1000, 120, 240, 22)
	if r.Length != 240 {
		t.Errorf("rail length = %v, want 240", r.Length)
	}
	if r = RailFor(100, 120, 240, 22); r.Length != 120 {
		t.Errorf("rail length = %v, want 120", r.Length)
	}
	top := r.HandleTop(450, 1000, 100)
	if top != 49 {
		t.Errorf("HandleTop = %v, want 49", top)
	}
	if got := r.TrackScroll(top, 1000, 100); math.Abs(got-450) > 10 {
		t.Errorf("TrackScroll = %v, want about 450", got)
	}
}

func TestFrameThrottleCoalesces(t *testing.T) {
	c := clock.NewFake(epoch)
	runs := 0
	th := NewFrameThrottle(c, 0, func() { runs++ })

	for i := 0; i < 10; i++ {
		th.Request()
	}
	if !th.Scheduled() || c.Pending() != 1 {
		t.Fatalf("scheduled=%v pending=%d", th.Scheduled(), c.Pending())
	}
	c.Advance(FrameInterval)
	if runs != 1 || th.Scheduled() {
		t.Errorf("runs = %d scheduled = %v, want 1 run", runs, th.Scheduled())
	}
	th.Request()
	th.Stop()
	c.Advance(time.Second)
	if runs != 1 {
		t.Errorf("stopped throttle ran: %d", runs)
	}
}

func TestEaseInOutQuad(t *testing.T) {
	for _, tc := range []struct{ in, want float64 }{
		{0, 0}, {0.25, 0.125}, {0.5, 0.5}, {0.75, 0.875}, {1, 1}, {2, 1}, {-1, 0},
	} {
		if got := EaseInOutQuad(tc.in); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("EaseInOutQuad(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSmoothScroll(t *testing.T) {
	c := clock.NewFake(epoch)
	var offsets []float64
	done := false
	s := NewSmoothScroll(c, 0, func(v float64) { offsets = append(offsets, v) })

	s.Start(0, 1000, func() { done = true })
	c.Advance(300 * time.Millisecond)
	if done {
		t.Fatal("finished early")
	}
	mid := offsets[len(offsets)-1]
	if mid < 400 || mid > 600 {
		t.Errorf("offset at half time = %v, want near 500", mid)
	}
	c.Advance(400 * time.Millisecond)
	if !done || offsets[len(offsets)-1] != 1000 {
		t.Errorf("done=%v last=%v", done, offsets[len(offsets)-1])
	}
	for i := 1; i < len(offsets); i++ {
		if offsets[i] < offsets[i-1] {
			t.Fatalf("offsets not monotonic at %d: %v", i, offsets)
		}
	}
	if s.Running() {
		t.Error("still running after completion")
	}
}

func TestSmoothScrollRestart(t *testing.T) {
	c := clock.NewFake(epoch)
	last := 0.0
	s := NewSmoothScroll(c, 0, func(v float64) { last = v })
	first := false
	s.Start(0, 1000, func() { first = true })
	c.Advance(100 * time.Millisecond)
	s.Start(last, 0, nil)
	c.Advance(time.Second)
	if first {
		t.Error("cancelled animation called done")
	}
	if last != 0 {
		t.Errorf("last = %v, want 0", last)
	}
}
