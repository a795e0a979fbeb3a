package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/chatnav/internal/engine"
	"github.com/lotas/chatnav/internal/session"
	"github.com/lotas/chatnav/internal/types"
)

// TimelineGap separates the transcript from the timeline column.
const TimelineGap = 1

// navbar is what the top bar shows.
type navbar struct {
	Mode      Mode
	Connected bool
	Port      int
	State     session.State
	Route     types.Route
	Title     string
	Snap      engine.Snapshot
	Spinner   string
}

var providerNames = map[types.Provider]string{
	types.ProviderChatGPT:  "ChatGPT",
	types.ProviderDeepSeek: "DeepSeek",
	types.ProviderGemini:   "Gemini",
}

func renderNavbar(n navbar, theme Theme, width int) string {
	titleStyle := lipgloss.NewStyle().Bold(true)

	left := " "
	if name, ok := providerNames[n.Route.Provider]; ok && n.State != session.StateIdle {
		left += theme.Accent.Render(name) + " "
	}
	title := n.Title
	if title == "" {
		title = "chatnav"
	}
	left += titleStyle.Render(title)

	var stats string
	if n.State == session.StateActive {
		stats = fmt.Sprintf("%d messages", len(n.Snap.Markers))
		if s := len(n.Snap.Starred()); s > 0 {
			stats += fmt.Sprintf(" · %d starred", s)
		}
		switch n.Snap.Summarizer {
		case engine.SummarizerProcessing:
			stats += fmt.Sprintf(" · %s labelling %d%%", n.Spinner, int(n.Snap.Progress*100))
		case engine.SummarizerCompleted:
			stats += " · AI labels"
		case engine.SummarizerOriginal:
			stats += " · original text"
		}
	} else {
		stats = n.State.String()
	}
	left += "   " + theme.Muted.Render(stats)

	var right string
	if n.Mode == ModeLive {
		if n.Connected {
			right = "Live ● connected"
		} else {
			right = fmt.Sprintf("Live ○ waiting on :%d", n.Port)
		}
	} else {
		right = "offline"
	}
	right = theme.Muted.Render(right)

	gap := width - lipgloss.Width(left) - lipgloss.Width(right) - 1
	if gap < 1 {
		gap = 1
	}
	padding := lipgloss.NewStyle().Width(gap)

	return left + padding.Render("") + right + " "
}
