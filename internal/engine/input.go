package engine

import (
	"math"

	"github.com/lotas/chatnav/internal/applog"
	"github.com/lotas/chatnav/internal/scrollsync"
)

// Part identifies the element under the pointer.
type Part int

const (
	PartBar Part = iota
	PartSlider
)

// JumpTo smoothly scrolls the host so marker i sits at the top of the
// viewport. It reports false when the marker does not exist or a long press
// just fired.
func (e *Engine) JumpTo(i int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || e.clock.Now().Before(e.suppressUntil) {
		return false
	}
	m, ok := e.reg.At(i)
	if !ok {
		return false
	}
	to := clampScroll(m.Offset, e.host.TotalScrollable())
	e.smooth.Start(e.host.ScrollTop(), to, nil)
	return true
}

// JumpRelative moves delta markers away from the active one.
func (e *Engine) JumpRelative(delta int) bool {
	e.mu.Lock()
	cur := e.active.Active()
	n := e.reg.Len()
	e.mu.Unlock()
	if n == 0 {
		return false
	}
	if cur < 0 {
		cur = n - 1
	}
	next := max(0, min(n-1, cur+delta))
	if next == cur {
		return false
	}
	return e.JumpTo(next)
}

// Wheel scrolls the host by delta, as a wheel over the timeline does.
func (e *Engine) Wheel(delta float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.smooth.Cancel()
	e.host.SetScrollTop(clampScroll(e.host.ScrollTop()+delta, e.host.TotalScrollable()))
	e.slider.Nudge()
	e.frame.Request()
}

// ScrollTrack scrolls the synthetic track directly and maps the new offset
// back onto the host.
func (e *Engine) ScrollTrack(offset float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || e.reg.Len() == 0 {
		return
	}
	e.setTrack(offset)
	e.frame.Request()
}

// BeginDrag starts a slider drag. Forward mapping is suspended until EndDrag.
func (e *Engine) BeginDrag() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.smooth.Cancel()
	e.slider.BeginDrag()
}

// DragTo moves the slider handle to handleTop, in rail units.
func (e *Engine) DragTo(handleTop float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || !e.slider.Dragging() || e.reg.Len() == 0 {
		return
	}
	rail := e.rail()
	e.setTrack(rail.TrackScroll(handleTop, e.layout.ContentExtent, e.trackHeight))
}

// EndDrag finishes a slider drag.
func (e *Engine) EndDrag() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.slider.EndDrag()
	if e.running {
		e.frame.Request()
	}
}

// PointerEnter records the pointer entering part.
func (e *Engine) PointerEnter(p Part) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p == PartSlider {
		e.slider.EnterControl()
	} else {
		e.slider.EnterBar()
	}
}

// PointerLeave records the pointer leaving part.
func (e *Engine) PointerLeave(p Part) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p == PartSlider {
		e.slider.LeaveControl()
	} else {
		e.slider.LeaveBar()
	}
}

// PressStart begins a press on marker i at pointer position (x, y). Holding
// it for the long-press time toggles the star.
func (e *Engine) PressStart(i int, x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelPress()
	if !e.running || i < 0 || i >= e.reg.Len() {
		return
	}
	p := &press{index: i, x: x, y: y}
	e.press = p
	e.refresh(i)
	p.timer = e.clock.AfterFunc(e.opts.Timing.LongPress, func() {
		if e.press != p {
			return
		}
		p.timer = nil
		e.press = nil
		e.toggleStar(i)
		e.suppressUntil = e.clock.Now().Add(e.opts.Timing.ClickSuppress)
		e.refresh(i)
	})
	e.notify()
}

// PressMove cancels the press once the pointer travels past the tolerance.
func (e *Engine) PressMove(x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.press == nil {
		return
	}
	dx, dy := x-e.press.x, y-e.press.y
	tol := e.opts.PressTolerance
	if dx*dx+dy*dy > tol*tol {
		e.cancelPress()
	}
}

// PressEnd cancels a press that has not yet fired.
func (e *Engine) PressEnd() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cancelPress()
}

func (e *Engine) cancelPress() {
	p := e.press
	if p == nil {
		return
	}
	if p.timer != nil {
		p.timer.Stop()
	}
	e.press = nil
	e.refresh(p.index)
	e.notify()
}

// ToggleStar flips the star on marker i and persists the star set.
func (e *Engine) ToggleStar(i int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.toggleStar(i)
}

func (e *Engine) toggleStar(i int) bool {
	m, ok := e.reg.At(i)
	if !ok {
		return false
	}
	on := !m.Starred
	e.reg.SetStarred(m.ID, on)
	if on {
		e.stars[m.ID] = true
	} else {
		delete(e.stars, m.ID)
	}
	e.saveStars()
	e.refresh(i)
	e.notify()
	return true
}

// ApplyStars replaces the star set with one persisted by another context.
func (e *Engine) ApplyStars(set map[string]bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sameSet(e.stars, set) {
		return
	}
	e.stars = make(map[string]bool, len(set))
	for id, on := range set {
		if on {
			e.stars[id] = true
		}
	}
	for _, i := range e.reg.ApplyStars(e.stars) {
		e.refresh(i)
	}
	e.notify()
}

func (e *Engine) saveStars() {
	id := e.opts.ConversationID
	if e.opts.Store == nil || id == "" {
		return
	}
	cp := make(map[string]bool, len(e.stars))
	for k := range e.stars {
		cp[k] = true
	}
	if err := e.opts.Store.SaveStars(id, cp); err != nil {
		applog.Error("store.save_stars", err, "conversation", id)
	}
}

func (e *Engine) setTrack(offset float64) {
	e.trackScroll = math.Max(0, math.Min(offset, e.mapping.SyntheticMax()))
	top := e.mapping.Reverse(e.trackScroll, e.host.ViewportHeight(), e.host.TotalScrollable())
	e.host.SetScrollTop(top)
	e.reconcile()
	e.notify()
}

func (e *Engine) rail() scrollsync.Rail {
	r := e.opts.Rail
	return scrollsync.RailFor(e.trackHeight, r.Min, r.Max, r.Handle)
}

func clampScroll(v, total float64) float64 {
	return math.Max(0, math.Min(v, math.Max(0, total)))
}

func sameSet(a, b map[string]bool) bool {
	n := 0
	for id, on := range b {
		if !on {
			continue
		}
		if !a[id] {
			return false
		}
		n++
	}
	return n == len(a)
}
