// Package export renders conversation timelines and conversation lists as
// markdown or JSON.
package export

import (
	"github.com/lotas/chatnav/internal/engine"
	"github.com/lotas/chatnav/internal/types"
)

// Entry is one user message on the timeline.
type Entry struct {
	Index   int
	ID      string
	Text    string
	Label   string // AI headline when one is shown, else the text
	Starred bool
}

// Timeline is an exportable view of one conversation.
type Timeline struct {
	Route      types.Route
	Title      string
	Summarizer engine.SummarizerState
	Entries    []Entry
}

// FromSnapshot builds a Timeline from the engine's read model.
func FromSnapshot(r types.Route, title string, snap engine.Snapshot) *Timeline {
	t := &Timeline{Route: r, Title: title, Summarizer: snap.Summarizer}
	for _, m := range snap.Markers {
		t.Entries = append(t.Entries, Entry{
			Index:   m.Index,
			ID:      m.ID,
			Text:    m.Text,
			Label:   m.Label,
			Starred: m.Starred,
		})
	}
	return t
}

// Starred returns the starred entries in order.
func (t *Timeline) Starred() []Entry {
	var out []Entry
	for _, e := range t.Entries {
		if e.Starred {
			out = append(out, e)
		}
	}
	return out
}
