package export

import (
	"encoding/json"
	"testing"

	"github.com/lotas/chatnav/internal/engine"
	"github.com/lotas/chatnav/internal/types"
)

func TestJSON(t *testing.T) {
	result, err := JSON(sampleTimeline())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed jsonExport
	if err := json.Unmarshal([]byte(result), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v\noutput:\n%s", err, result)
	}
	if parsed.Provider != "chatgpt" || parsed.ConversationID != "abc" {
		t.Errorf("header = %+v", parsed)
	}
	if parsed.Summarizer != "completed" {
		t.Errorf("summarizer = %q", parsed.Summarizer)
	}
	if len(parsed.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(parsed.Messages))
	}
	if parsed.Messages[0].Label != "Lisbon trip in May" {
		t.Errorf("label = %q", parsed.Messages[0].Label)
	}
	if parsed.Messages[1].Label != "" {
		t.Errorf("label equal to text should be omitted, got %q", parsed.Messages[1].Label)
	}
	if !parsed.Messages[1].Starred || parsed.Messages[0].Starred {
		t.Errorf("stars = %v, %v", parsed.Messages[0].Starred, parsed.Messages[1].Starred)
	}
	if parsed.ExportedAt.IsZero() {
		t.Error("exported_at is zero")
	}
}

func TestJSON_EmptyTimeline(t *testing.T) {
	result, err := JSON(&Timeline{Route: types.Route{Provider: types.ProviderGemini, ConversationID: "g"}})
	if err != nil {
		t.Fatal(err)
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(result), &parsed); err != nil {
		t.Fatal(err)
	}
	msgs, ok := parsed["messages"].([]any)
	if !ok || len(msgs) != 0 {
		t.Errorf("messages = %v, want empty list", parsed["messages"])
	}
}

func TestFromSnapshot(t *testing.T) {
	snap := engine.Snapshot{
		Summarizer: engine.SummarizerOriginal,
		Markers: []engine.MarkerView{
			{ID: "a", Index: 0, Label: "one", Text: "one"},
			{ID: "b", Index: 1, Label: "two", Text: "two", Starred: true},
		},
	}
	r := types.Route{Provider: types.ProviderChatGPT, ConversationID: "abc"}
	tl := FromSnapshot(r, "Title", snap)
	if len(tl.Entries) != 2 || tl.Entries[1].ID != "b" || !tl.Entries[1].Starred {
		t.Errorf("entries = %+v", tl.Entries)
	}
	if got := tl.Starred(); len(got) != 1 || got[0].ID != "b" {
		t.Errorf("Starred = %+v", got)
	}
	if tl.Summarizer != engine.SummarizerOriginal {
		t.Errorf("summarizer = %q", tl.Summarizer)
	}
}
