package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/lotas/chatnav/internal/registry"
	"github.com/lotas/chatnav/internal/types"
)

// Markdown formats a timeline as a markdown document.
func Markdown(t *Timeline) string {
	var b strings.Builder

	title := t.Title
	if title == "" {
		title = t.Route.ConversationID
	}
	fmt.Fprintf(&b, "# %s\n", title)
	fmt.Fprintf(&b, "> %s · exported %s\n", providerName(t.Route.Provider), time.Now().Format("2006-01-02 15:04"))
	if t.Route.URL != "" {
		fmt.Fprintf(&b, "> %s\n", t.Route.URL)
	}

	if starred := t.Starred(); len(starred) > 0 {
		fmt.Fprintf(&b, "\n## Starred (%d)\n\n", len(starred))
		for _, e := range starred {
			fmt.Fprintf(&b, "- #%d %s\n", e.Index+1, oneLine(e.Label))
		}
	}

	n := len(t.Entries)
	noun := "messages"
	if n == 1 {
		noun = "message"
	}
	fmt.Fprintf(&b, "\n## Timeline (%d %s)\n\n", n, noun)
	for _, e := range t.Entries {
		mark := ""
		if e.Starred {
			mark = "★ "
		}
		fmt.Fprintf(&b, "%d. %s%s\n", e.Index+1, mark, oneLine(e.Label))
		if text := registry.NormalizeText(e.Text); text != "" && text != oneLine(e.Label) {
			fmt.Fprintf(&b, "   > %s\n", text)
		}
	}

	return b.String()
}

// ConversationList formats known conversations, most recent first.
func ConversationList(convs []types.Conversation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Conversations\n")
	fmt.Fprintf(&b, "> Exported %s\n\n", time.Now().Format("2006-01-02 15:04"))
	for _, c := range convs {
		title := c.Title
		if title == "" {
			title = c.URL
		}
		fmt.Fprintf(&b, "- [%s](%s) · %s, %s\n", title, c.URL, providerName(c.Provider), relativeTime(c.LastAccessed))
	}
	return b.String()
}

func providerName(p types.Provider) string {
	switch p {
	case types.ProviderChatGPT:
		return "ChatGPT"
	case types.ProviderDeepSeek:
		return "DeepSeek"
	case types.ProviderGemini:
		return "Gemini"
	}
	return string(p)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
