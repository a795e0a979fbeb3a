package engine

import (
	"github.com/lotas/chatnav/internal/scrollsync"
	"github.com/lotas/chatnav/internal/virtualize"
)

// MarkerView is one marker as a renderer sees it.
type MarkerView struct {
	ID       string
	Index    int
	Label    string
	Text     string
	Offset   float64 // host offset of the message
	Position float64 // solved track position
	Starred  bool
	Active   bool
	Holding  bool
	Rendered bool
}

// Snapshot is a consistent copy of the engine state.
type Snapshot struct {
	ConversationID string
	Running        bool
	Markers        []MarkerView
	Active         int
	Range          virtualize.Range
	TrackScroll    float64
	TrackHeight    float64
	ContentExtent  float64
	Slider         scrollsync.SliderState
	Dragging       bool
	Rail           scrollsync.Rail
	HandleTop      float64
	Summarizer     SummarizerState
	Progress       float64
	UseSummaries   bool
}

// Starred returns the starred markers in order.
func (s Snapshot) Starred() []MarkerView {
	var out []MarkerView
	for _, m := range s.Markers {
		if m.Starred {
			out = append(out, m)
		}
	}
	return out
}

// Snapshot copies the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	useAI := e.useSummaries && !e.opts.DisableAI
	rng := e.virt.Range()
	ms := e.reg.Markers()
	views := make([]MarkerView, len(ms))
	for i, m := range ms {
		st := e.stateOf(i)
		pos := 0.0
		if i < len(e.layout.Positions) {
			pos = e.layout.Positions[i]
		}
		views[i] = MarkerView{
			ID:       m.ID,
			Index:    i,
			Label:    m.Label(useAI),
			Text:     m.OriginalText,
			Offset:   m.Offset,
			Position: pos,
			Starred:  st.Starred,
			Active:   st.Active,
			Holding:  st.Holding,
			Rendered: rng.Contains(i),
		}
	}

	rail := e.rail()
	return Snapshot{
		ConversationID: e.opts.ConversationID,
		Running:        e.running,
		Markers:        views,
		Active:         e.active.Active(),
		Range:          rng,
		TrackScroll:    e.trackScroll,
		TrackHeight:    e.trackHeight,
		ContentExtent:  e.layout.ContentExtent,
		Slider:         e.slider.State(),
		Dragging:       e.slider.Dragging(),
		Rail:           rail,
		HandleTop:      rail.HandleTop(e.trackScroll, e.layout.ContentExtent, e.trackHeight),
		Summarizer:     e.sumState,
		Progress:       e.progress,
		UseSummaries:   useAI,
	}
}
