package types

import (
	"strings"
	"time"
)

// Provider identifies a supported chat site.
type Provider string

const (
	ProviderChatGPT  Provider = "chatgpt"
	ProviderDeepSeek Provider = "deepseek"
	ProviderGemini   Provider = "gemini"
)

// Providers lists every supported provider in display order.
var Providers = []Provider{ProviderChatGPT, ProviderDeepSeek, ProviderGemini}

// ProviderForHost maps a page host to its provider.
func ProviderForHost(host string) (Provider, bool) {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	if h, _, ok := strings.Cut(host, ":"); ok {
		host = h
	}
	switch host {
	case "chatgpt.com", "chat.openai.com":
		return ProviderChatGPT, true
	case "chat.deepseek.com":
		return ProviderDeepSeek, true
	case "gemini.google.com":
		return ProviderGemini, true
	}
	return "", false
}

// Route is a conversation page on a provider.
type Route struct {
	Provider       Provider
	ConversationID string
	URL            string
}

// StoreKey namespaces the conversation id by provider.
func (r Route) StoreKey() string {
	return string(r.Provider) + ":" + r.ConversationID
}

// Settings are the user's timeline switches.
type Settings struct {
	TimelineActive bool              `json:"timelineActive"`
	Providers      map[Provider]bool `json:"timelineProviders"`
	AIModeEnabled  bool              `json:"aiModeEnabled"`
}

// DefaultSettings has everything switched on.
func DefaultSettings() Settings {
	return Settings{
		TimelineActive: true,
		Providers: map[Provider]bool{
			ProviderChatGPT:  true,
			ProviderDeepSeek: true,
			ProviderGemini:   true,
		},
		AIModeEnabled: true,
	}
}

// Enabled reports whether the timeline should run on p. Providers missing
// from the map count as enabled.
func (s Settings) Enabled(p Provider) bool {
	if !s.TimelineActive {
		return false
	}
	on, ok := s.Providers[p]
	return !ok || on
}

// ChangeKind says what part of the store changed.
type ChangeKind int

const (
	ChangeStars ChangeKind = iota
	ChangeSummaries
	ChangeSettings
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeStars:
		return "stars"
	case ChangeSummaries:
		return "summaries"
	default:
		return "settings"
	}
}

// Change is a store notification. ConversationID is empty for settings.
type Change struct {
	Kind           ChangeKind
	ConversationID string
}

// Tab represents a single browser tab.
type Tab struct {
	URL          string
	Title        string
	LastAccessed time.Time
	WindowIndex  int
	TabIndex     int
}

// Conversation is an open chat tab recognised as a conversation route.
type Conversation struct {
	Route
	Title        string
	LastAccessed time.Time
}

// Profile represents a Firefox profile.
type Profile struct {
	Name       string
	Path       string // absolute path to profile directory
	IsDefault  bool
	IsRelative bool
}

// SessionData holds all parsed data from a Firefox session.
type SessionData struct {
	AllTabs  []*Tab
	Profile  Profile
	ParsedAt time.Time
}
