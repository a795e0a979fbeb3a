// Package registry owns the ordered list of timeline markers, one per user
// message, and rebuilds it from a message source.
package registry

import "math"

// Node is one user message as seen by a message source.
type Node interface {
	// TurnID returns the id attached to the node, or "".
	TurnID() string
	// SetTurnID attaches a derived id so later scans reuse it.
	SetTurnID(id string)
	// Offset is the node's top in the host's scroll coordinates.
	Offset() float64
}

// MessageSource lists user messages in document order.
type MessageSource interface {
	UserMessageNodes() []Node
	DisplayText(n Node) string
}

// Marker is one timeline entry.
type Marker struct {
	ID           string
	Node         Node
	Index        int
	Offset       float64
	RawFraction  float64
	Starred      bool
	OriginalText string
	AISummary    string
}

// Label is the text shown for the marker.
func (m Marker) Label(useSummary bool) string {
	if useSummary && m.AISummary != "" {
		return m.AISummary
	}
	return m.OriginalText
}

// Registry holds the current markers. It is not safe for concurrent use.
type Registry struct {
	markers []Marker
	byID    map[string]int
	first   float64
	span    float64
	pending map[string]string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{byID: make(map[string]int), span: 1}
}

// SetPendingSummaries stages persisted summaries. The next Rebuild applies
// them to markers that have no summary yet, then drops them.
func (r *Registry) SetPendingSummaries(s map[string]string) {
	if len(s) == 0 {
		r.pending = nil
		return
	}
	r.pending = make(map[string]string, len(s))
	for id, text := range s {
		r.pending[id] = text
	}
}

// Rebuild replaces the marker list with the source's current messages.
// starred reports persisted stars by id. Summaries survive by id.
func (r *Registry) Rebuild(src MessageSource, starred map[string]bool) []Marker {
	return r.RebuildNodes(src.UserMessageNodes(), src.DisplayText, starred)
}

// RebuildNodes is Rebuild for nodes already listed by the caller.
func (r *Registry) RebuildNodes(nodes []Node, textOf func(Node) string, starred map[string]bool) []Marker {
	prev := r.markers
	prevByID := r.byID

	r.markers = make([]Marker, 0, len(nodes))
	r.byID = make(map[string]int, len(nodes))
	r.first, r.span = 0, 1
	if len(nodes) == 0 {
		return nil
	}

	r.first = nodes[0].Offset()
	if len(nodes) > 1 {
		r.span = nodes[len(nodes)-1].Offset() - r.first
	}
	if r.span <= 0 || math.IsNaN(r.span) {
		r.span = 1
	}

	seen := occurrences{}
	for _, n := range nodes {
		if id := n.TurnID(); id != "" {
			seen.reserve(id)
		}
	}
	for i, n := range nodes {
		text := NormalizeText(textOf(n))
		id := n.TurnID()
		if id == "" {
			id = seen.next(StableHash(text))
			n.SetTurnID(id)
		}

		m := Marker{
			ID:           id,
			Node:         n,
			Index:        i,
			Offset:       n.Offset(),
			RawFraction:  clamp01((n.Offset() - r.first) / r.span),
			Starred:      starred[id],
			OriginalText: text,
		}
		if j, ok := prevByID[id]; ok && j < len(prev) {
			m.AISummary = prev[j].AISummary
		}
		if m.AISummary == "" {
			m.AISummary = r.pending[id]
		}
		r.byID[id] = i
		r.markers = append(r.markers, m)
	}
	r.pending = nil
	return r.markers
}

// Len returns the number of markers.
func (r *Registry) Len() int { return len(r.markers) }

// Markers returns the marker list. Callers must not modify it.
func (r *Registry) Markers() []Marker { return r.markers }

// At returns marker i.
func (r *Registry) At(i int) (Marker, bool) {
	if i < 0 || i >= len(r.markers) {
		return Marker{}, false
	}
	return r.markers[i], true
}

// IndexOf returns the index of the marker with id, or -1.
func (r *Registry) IndexOf(id string) int {
	if i, ok := r.byID[id]; ok {
		return i
	}
	return -1
}

// FirstOffset is the offset of the first marker.
func (r *Registry) FirstOffset() float64 { return r.first }

// Span is the distance between the first and last marker, at least 1.
func (r *Registry) Span() float64 { return r.span }

// Offsets returns marker offsets in order.
func (r *Registry) Offsets() []float64 {
	out := make([]float64, len(r.markers))
	for i, m := range r.markers {
		out[i] = m.Offset
	}
	return out
}

// RawFractions returns marker raw fractions in order.
func (r *Registry) RawFractions() []float64 {
	out := make([]float64, len(r.markers))
	for i, m := range r.markers {
		out[i] = m.RawFraction
	}
	return out
}

// SetStarred updates a marker's star. It reports whether the value changed.
func (r *Registry) SetStarred(id string, starred bool) bool {
	i := r.IndexOf(id)
	if i < 0 || r.markers[i].Starred == starred {
		return false
	}
	r.markers[i].Starred = starred
	return true
}

// ApplyStars sets every marker's star from set and returns the indices
// that changed.
func (r *Registry) ApplyStars(set map[string]bool) []int {
	var changed []int
	for i := range r.markers {
		s := set[r.markers[i].ID]
		if r.markers[i].Starred != s {
			r.markers[i].Starred = s
			changed = append(changed, i)
		}
	}
	return changed
}

// Stars returns the starred ids.
func (r *Registry) Stars() map[string]bool {
	out := make(map[string]bool)
	for _, m := range r.markers {
		if m.Starred {
			out[m.ID] = true
		}
	}
	return out
}

// SetSummary stores an AI label for a marker.
func (r *Registry) SetSummary(id, text string) bool {
	i := r.IndexOf(id)
	if i < 0 {
		return false
	}
	r.markers[i].AISummary = text
	return true
}

// Summaries returns the AI labels by id.
func (r *Registry) Summaries() map[string]string {
	out := make(map[string]string)
	for _, m := range r.markers {
		if m.AISummary != "" {
			out[m.ID] = m.AISummary
		}
	}
	return out
}

// ClearSummaries drops every AI label.
func (r *Registry) ClearSummaries() {
	for i := range r.markers {
		r.markers[i].AISummary = ""
	}
	r.pending = nil
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
