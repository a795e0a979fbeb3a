// Package engine drives one conversation's timeline: it rebuilds markers
// from a message source, lays them out on the synthetic track, keeps the
// track in step with the host scroll, and renders the visible window.
package engine

import (
	"math"
	"sync"
	"time"

	"github.com/lotas/chatnav/internal/applog"
	"github.com/lotas/chatnav/internal/clock"
	"github.com/lotas/chatnav/internal/geometry"
	"github.com/lotas/chatnav/internal/registry"
	"github.com/lotas/chatnav/internal/scrollsync"
	"github.com/lotas/chatnav/internal/virtualize"
)

// Engine is safe for concurrent use. Every method and every timer callback
// runs under one lock, so state changes never interleave.
type Engine struct {
	mu    sync.Mutex
	opts  Options
	clock clock.Clock

	src    registry.MessageSource
	host   ScrollHost
	reg    *registry.Registry
	virt   *virtualize.Virtualizer
	layout geometry.Layout
	tops   []float64

	mapping     scrollsync.Mapping
	trackHeight float64
	trackScroll float64
	visible     []int

	active   *scrollsync.ActiveDebouncer
	slider   *scrollsync.Slider
	frame    *scrollsync.FrameThrottle
	smooth   *scrollsync.SmoothScroll
	activeID string

	rebuildTimer clock.Timer
	zeroTimer    clock.Timer
	zeroRetries  int

	press         *press
	suppressUntil time.Time

	stars        map[string]bool
	sumState     SummarizerState
	useSummaries bool
	progress     float64

	running bool
	updates chan struct{}
}

type press struct {
	index int
	x, y  float64
	timer clock.Timer
}

// New creates an engine. It does nothing until Start.
func New(src registry.MessageSource, host ScrollHost, target virtualize.Target, opts Options) *Engine {
	opts = opts.withDefaults()
	e := &Engine{
		opts:     opts,
		src:      src,
		host:     host,
		reg:      registry.New(),
		virt:     virtualize.New(target, opts.Geometry),
		stars:    make(map[string]bool),
		sumState: SummarizerIdle,
		updates:  make(chan struct{}, 1),
	}
	e.clock = clock.Serial(opts.Clock, &e.mu)
	e.active = scrollsync.NewActiveDebouncer(e.clock, opts.Timing.ActiveInterval, e.onActive)
	e.slider = scrollsync.NewSlider(e.clock, opts.Timing.FadeDelay, func(scrollsync.SliderState) { e.notify() })
	e.frame = scrollsync.NewFrameThrottle(e.clock, opts.Timing.Frame, e.onFrame)
	e.smooth = scrollsync.NewSmoothScroll(e.clock, opts.Timing.Smooth, func(v float64) {
		e.host.SetScrollTop(v)
		e.frame.Request()
	})
	return e
}

// Updates delivers a signal whenever the rendered state may have changed.
// Signals coalesce; receivers should call Snapshot.
func (e *Engine) Updates() <-chan struct{} { return e.updates }

// ConversationID returns the conversation this engine belongs to.
func (e *Engine) ConversationID() string { return e.opts.ConversationID }

// Start loads persisted annotations and builds the first marker set.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return
	}
	e.running = true
	e.loadAnnotations()
	e.rebuild()
}

// Stop cancels every timer and destroys all render handles.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	e.running = false
	stopTimer(&e.rebuildTimer)
	stopTimer(&e.zeroTimer)
	e.cancelPress()
	e.active.Stop()
	e.slider.Stop()
	e.frame.Stop()
	e.smooth.Cancel()
	e.virt.Reset(0)
	e.notify()
}

// ContentChanged reports a structural change in the host. Bursts collapse
// into one rebuild after the rebuild delay.
func (e *Engine) ContentChanged() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return
	}
	stopTimer(&e.rebuildTimer)
	e.rebuildTimer = e.clock.AfterFunc(e.opts.Timing.RebuildDelay, func() {
		e.rebuildTimer = nil
		if e.running {
			e.rebuild()
		}
	})
}

// Rebuild rescans the source immediately.
func (e *Engine) Rebuild() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.rebuild()
	}
}

// Resize sets the height of the timeline track.
func (e *Engine) Resize(trackHeight float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if trackHeight == e.trackHeight {
		return
	}
	e.trackHeight = math.Max(0, trackHeight)
	if !e.running || e.reg.Len() == 0 {
		return
	}
	e.relayout()
	e.syncTrack()
	e.reconcile()
	e.notify()
}

// Scrolled reports that the host scroll offset changed. The work runs at
// most once per frame.
func (e *Engine) Scrolled() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.frame.Request()
	}
}

// SetVisible reports which messages currently intersect the host viewport.
func (e *Engine) SetVisible(ids []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.visible = e.visible[:0]
	for _, id := range ids {
		if i := e.reg.IndexOf(id); i >= 0 {
			e.visible = append(e.visible, i)
		}
	}
	if e.running {
		e.frame.Request()
	}
}

func (e *Engine) loadAnnotations() {
	id := e.opts.ConversationID
	if e.opts.Store == nil || id == "" {
		return
	}
	stars, err := e.opts.Store.LoadStars(id)
	if err != nil {
		applog.Error("store.load_stars", err, "conversation", id)
		stars = nil
	}
	e.stars = make(map[string]bool, len(stars))
	for k, v := range stars {
		if v {
			e.stars[k] = true
		}
	}

	rec, err := e.opts.Store.LoadSummaries(id)
	if err != nil {
		applog.Error("store.load_summaries", err, "conversation", id)
		return
	}
	switch rec.State {
	case SummarizerCompleted, SummarizerOriginal:
		e.sumState = rec.State
	default:
		e.sumState = SummarizerIdle
	}
	e.useSummaries = rec.UseSummaries
	e.reg.SetPendingSummaries(rec.Labels)
}

func (e *Engine) rebuild() {
	done := applog.Timed("timeline.rebuild", "conversation", e.opts.ConversationID)
	defer done()

	nodes := e.src.UserMessageNodes()
	if len(nodes) == 0 {
		e.retryEmpty()
		return
	}
	stopTimer(&e.zeroTimer)
	e.zeroRetries = 0

	e.reg.RebuildNodes(nodes, e.src.DisplayText, e.stars)
	e.tops = e.reg.Offsets()
	e.visible = e.visible[:0]
	e.virt.Reset(e.reg.Len())
	e.relayout()

	idx := e.reg.IndexOf(e.activeID)
	if idx < 0 {
		ref := scrollsync.ReferenceLine(e.host.ScrollTop(), e.host.ViewportHeight())
		idx = scrollsync.ActiveIndex(e.tops, ref, nil)
	}
	e.active.Force(idx)

	e.syncTrack()
	e.reconcile()
	e.frame.Request()
	e.notify()
}

// retryEmpty keeps the current markers while the source is empty and
// rescans a bounded number of times before giving up.
func (e *Engine) retryEmpty() {
	if e.zeroTimer != nil {
		return
	}
	if e.zeroRetries >= e.opts.Timing.ZeroRetryMax {
		if e.reg.Len() > 0 {
			e.reg.RebuildNodes(nil, e.src.DisplayText, e.stars)
			e.tops = nil
			e.virt.Reset(0)
			e.relayout()
			e.active.Force(-1)
			e.notify()
		}
		applog.Info("timeline.empty", "conversation", e.opts.ConversationID, "retries", e.zeroRetries)
		return
	}
	e.zeroRetries++
	e.zeroTimer = e.clock.AfterFunc(e.opts.Timing.ZeroRetryDelay, func() {
		e.zeroTimer = nil
		if e.running {
			e.rebuild()
		}
	})
}

func (e *Engine) relayout() {
	e.layout = geometry.Compute(e.reg.RawFractions(), e.trackHeight, e.opts.Geometry)
	e.mapping = scrollsync.Mapping{
		FirstOffset:   e.reg.FirstOffset(),
		Span:          e.reg.Span(),
		ContentExtent: e.layout.ContentExtent,
		TrackHeight:   e.trackHeight,
	}
	e.trackScroll = math.Max(0, math.Min(e.trackScroll, e.mapping.SyntheticMax()))
	e.slider.SetScrollable(e.reg.Len() > 0 && e.layout.Scrollable(e.trackHeight))
}

// syncTrack applies the forward mapping unless a drag owns the track.
func (e *Engine) syncTrack() {
	if e.slider.Dragging() || e.reg.Len() == 0 {
		return
	}
	target := e.mapping.Forward(e.host.ScrollTop(), e.host.ViewportHeight())
	if scrollsync.ShouldApply(e.trackScroll, target) {
		e.trackScroll = target
	}
}

func (e *Engine) reconcile() {
	plan := e.virt.Plan(e.layout.Positions, e.trackScroll, e.trackHeight)
	st, ok := e.virt.Commit(plan, e.stateOf)
	if !ok {
		return
	}
	if st.Created > 0 || st.Destroyed > 0 {
		applog.Debug("timeline.reconcile", "start", plan.Range.Start, "end", plan.Range.End,
			"created", st.Created, "destroyed", st.Destroyed)
	}
}

func (e *Engine) onFrame() {
	if !e.running || e.reg.Len() == 0 {
		return
	}
	e.syncTrack()
	e.reconcile()
	ref := scrollsync.ReferenceLine(e.host.ScrollTop(), e.host.ViewportHeight())
	e.active.Observe(scrollsync.ActiveIndex(e.tops, ref, e.visible))
	e.notify()
}

func (e *Engine) onActive(prev, next int) {
	if m, ok := e.reg.At(next); ok {
		e.activeID = m.ID
	} else {
		e.activeID = ""
	}
	e.refresh(prev)
	e.refresh(next)
	e.notify()
}

func (e *Engine) stateOf(i int) virtualize.State {
	m, _ := e.reg.At(i)
	return virtualize.State{
		Active:  i == e.active.Active(),
		Starred: m.Starred,
		Holding: e.press != nil && e.press.index == i,
	}
}

func (e *Engine) refresh(i int) {
	if i < 0 || i >= len(e.layout.Positions) {
		return
	}
	e.virt.Refresh(i, e.layout.Positions[i], e.stateOf(i))
}

func (e *Engine) notify() {
	select {
	case e.updates <- struct{}{}:
	default:
	}
}

func stopTimer(t *clock.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
