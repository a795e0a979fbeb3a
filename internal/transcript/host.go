package transcript

import (
	"math"
	"sync"
)

// Host is the transcript's scroll state in rows. The engine scrolls it from
// its own goroutines, so the pane reads the offset back before drawing.
type Host struct {
	mu     sync.Mutex
	top    float64
	height float64
	total  float64
}

// NewHost creates a host for a pane of the given height.
func NewHost(viewportHeight, contentHeight float64) *Host {
	return &Host{height: viewportHeight, total: contentHeight}
}

func (h *Host) ScrollTop() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.top
}

// SetScrollTop clamps v into range. It does not notify the engine.
func (h *Host) SetScrollTop(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.top = h.clamp(v)
}

func (h *Host) ViewportHeight() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.height
}

func (h *Host) TotalScrollable() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return math.Max(0, h.total-h.height)
}

// Resize sets the pane and content heights and reports whether the offset
// had to move.
func (h *Host) Resize(viewportHeight, contentHeight float64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.height = viewportHeight
	h.total = contentHeight
	top := h.clamp(h.top)
	moved := top != h.top
	h.top = top
	return moved
}

// ScrollTo moves to v for a user action and reports whether it moved. The
// caller tells the engine with Scrolled.
func (h *Host) ScrollTo(v float64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	v = h.clamp(v)
	if v == h.top {
		return false
	}
	h.top = v
	return true
}

// ScrollBy moves by delta rows.
func (h *Host) ScrollBy(delta float64) bool {
	return h.ScrollTo(h.ScrollTop() + delta)
}

func (h *Host) clamp(v float64) float64 {
	return math.Max(0, math.Min(v, math.Max(0, h.total-h.height)))
}
