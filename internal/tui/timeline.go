package tui

import (
	"math"
	"sort"
	"strings"
	"sync"

	"github.com/muesli/reflow/truncate"

	"github.com/lotas/chatnav/internal/engine"
	"github.com/lotas/chatnav/internal/scrollsync"
	"github.com/lotas/chatnav/internal/virtualize"
)

const (
	glyphMarker  = "○"
	glyphActive  = "●"
	glyphStar    = "★"
	glyphHolding = "◎"
	glyphRail    = "│"
	glyphHandle  = "┃"
)

// mark is the render handle of one marker.
type mark struct {
	index int
	pos   float64
	st    virtualize.State
}

// Timeline is the marker column. The engine creates, moves and destroys
// marks from its own goroutines, under its lock, so Timeline never calls
// back into the engine.
type Timeline struct {
	mu     sync.Mutex
	marks  map[*mark]struct{}
	width  int
	height int
}

func NewTimeline() *Timeline {
	return &Timeline{marks: make(map[*mark]struct{})}
}

// Create implements virtualize.Target.
func (t *Timeline) Create(index int, pos float64, st virtualize.State) virtualize.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	m := &mark{index: index, pos: pos, st: st}
	t.marks[m] = struct{}{}
	return m
}

// Update implements virtualize.Target.
func (t *Timeline) Update(h virtualize.Handle, pos float64, st virtualize.State) {
	m, ok := h.(*mark)
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	m.pos, m.st = pos, st
}

// Destroy implements virtualize.Target.
func (t *Timeline) Destroy(h virtualize.Handle) {
	m, ok := h.(*mark)
	if !ok {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.marks, m)
}

// SetSize sets the column size in cells.
func (t *Timeline) SetSize(width, height int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.width, t.height = width, height
}

// TrackHeight is the column height, the engine's track height.
func (t *Timeline) TrackHeight() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return float64(t.height)
}

// Len is the number of live marks.
func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.marks)
}

func (t *Timeline) snapshot() []mark {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]mark, 0, len(t.marks))
	for m := range t.marks {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out
}

// MarkerAt returns the marker drawn on row, if any.
func (t *Timeline) MarkerAt(row int, trackScroll float64) (int, bool) {
	for _, m := range t.snapshot() {
		if markRow(m.pos, trackScroll) == row {
			return m.index, true
		}
	}
	return -1, false
}

// OnRail reports whether column x is the slider rail.
func (t *Timeline) OnRail(x int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return x == t.width-1
}

// RailTop is the first row of the rail.
func (t *Timeline) RailTop(r scrollsync.Rail) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return railTop(t.height, r)
}

func railTop(height int, r scrollsync.Rail) int {
	return max(0, (height-int(r.Length))/2)
}

func markRow(pos, trackScroll float64) int {
	return int(math.Round(pos - trackScroll))
}

// View draws the column for snap.
func (t *Timeline) View(snap engine.Snapshot, theme Theme) string {
	t.mu.Lock()
	width, height := t.width, t.height
	t.mu.Unlock()
	if width <= 0 || height <= 0 {
		return ""
	}

	rows := make([]string, height)
	labelWidth := max(0, width-5)
	for _, m := range t.snapshot() {
		row := markRow(m.pos, snap.TrackScroll)
		if row < 0 || row >= height {
			continue
		}
		label := ""
		if m.index < len(snap.Markers) {
			label = snap.Markers[m.index].Label
		}
		label = truncate.StringWithTail(oneLine(label), uint(labelWidth), "…")
		glyph, style := glyphMarker, theme.Muted
		switch {
		case m.st.Holding:
			glyph, style = glyphHolding, theme.Accent
		case m.st.Starred:
			glyph, style = glyphStar, theme.Star
		case m.st.Active:
			glyph, style = glyphActive, theme.Accent
		}
		text := style.Render(glyph)
		if m.st.Active {
			text += " " + theme.Accent.Render(label)
		} else {
			text += " " + label
		}
		rows[row] = " " + text
	}

	rail := railColumn(height, snap)
	for i := range rows {
		rows[i] = padCells(rows[i], width-1)
		switch rail[i] {
		case glyphHandle:
			rows[i] += theme.Accent.Render(glyphHandle)
		case glyphRail:
			rows[i] += theme.Muted.Render(glyphRail)
		default:
			rows[i] += " "
		}
	}
	return strings.Join(rows, "\n")
}

func railColumn(height int, snap engine.Snapshot) []string {
	col := make([]string, height)
	if snap.Slider == scrollsync.SliderHidden || snap.Rail.Length <= 0 {
		return col
	}
	top := railTop(height, snap.Rail)
	end := min(height, top+int(snap.Rail.Length))
	for i := top; i < end; i++ {
		col[i] = glyphRail
	}
	h0 := top + int(math.Round(snap.HandleTop))
	for i := h0; i < h0+max(1, int(snap.Rail.Handle)) && i < end; i++ {
		if i >= 0 {
			col[i] = glyphHandle
		}
	}
	return col
}
