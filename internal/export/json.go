package export

import (
	"encoding/json"
	"time"
)

type jsonExport struct {
	Provider       string      `json:"provider"`
	ConversationID string      `json:"conversation_id"`
	Title          string      `json:"title"`
	URL            string      `json:"url,omitempty"`
	ExportedAt     time.Time   `json:"exported_at"`
	Summarizer     string      `json:"summarizer_state,omitempty"`
	Messages       []jsonEntry `json:"messages"`
}

type jsonEntry struct {
	Index   int    `json:"index"`
	ID      string `json:"id"`
	Text    string `json:"text"`
	Label   string `json:"label,omitempty"`
	Starred bool   `json:"starred,omitempty"`
}

// JSON formats a timeline as a JSON document.
func JSON(t *Timeline) (string, error) {
	out := jsonExport{
		Provider:       string(t.Route.Provider),
		ConversationID: t.Route.ConversationID,
		Title:          t.Title,
		URL:            t.Route.URL,
		ExportedAt:     time.Now(),
		Summarizer:     string(t.Summarizer),
		Messages:       make([]jsonEntry, 0, len(t.Entries)),
	}
	for _, e := range t.Entries {
		je := jsonEntry{
			Index:   e.Index,
			ID:      e.ID,
			Text:    e.Text,
			Starred: e.Starred,
		}
		if e.Label != e.Text {
			je.Label = e.Label
		}
		out.Messages = append(out.Messages, je)
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b) + "\n", nil
}
