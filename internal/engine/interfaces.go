package engine

import "context"

// ScrollHost is the real scroll container the timeline follows. Hosts call
// Engine.Scrolled whenever their offset changes, but never from inside
// SetScrollTop: the engine holds its lock while it scrolls the host.
type ScrollHost interface {
	ScrollTop() float64
	SetScrollTop(v float64)
	ViewportHeight() float64
	TotalScrollable() float64
}

// Store persists per-conversation annotations.
type Store interface {
	LoadStars(conversationID string) (map[string]bool, error)
	SaveStars(conversationID string, stars map[string]bool) error
	LoadSummaries(conversationID string) (SummaryRecord, error)
	SaveSummaries(conversationID string, rec SummaryRecord) error
}

// Summarizer condenses a user message into a short label.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
	Available(ctx context.Context) bool
}

// SummarizerState is the state of the AI label feature for a conversation.
type SummarizerState string

const (
	SummarizerIdle       SummarizerState = "idle"
	SummarizerProcessing SummarizerState = "processing"
	SummarizerCompleted  SummarizerState = "completed"
	SummarizerOriginal   SummarizerState = "original"
)

// SummaryRecord is what a Store keeps for the label feature.
type SummaryRecord struct {
	State        SummarizerState   `json:"summarizerState"`
	UseSummaries bool              `json:"useSummarization"`
	Labels       map[string]string `json:"summaries"`
}
