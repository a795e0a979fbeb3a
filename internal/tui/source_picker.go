package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/chatnav/internal/types"
)

// Source is something the picker can open.
type Source struct {
	Label  string
	Detail string
	URL    string // conversation page to fetch, empty for live mode
	IsLive bool
}

// SourcePicker is an overlay for choosing live mode or a conversation.
type SourcePicker struct {
	Sources []Source
	Cursor  int
	Offset  int
	Width   int
	Height  int
}

func NewSourcePicker(convs []types.Conversation) SourcePicker {
	sources := []Source{
		{Label: "Live (browser extension)", IsLive: true},
	}
	for _, c := range convs {
		label := c.Title
		if label == "" {
			label = c.ConversationID
		}
		sources = append(sources, Source{
			Label:  label,
			Detail: string(c.Provider),
			URL:    c.URL,
		})
	}
	return SourcePicker{Sources: sources}
}

func (m *SourcePicker) MoveUp() {
	if m.Cursor > 0 {
		m.Cursor--
	}
	m.follow()
}

func (m *SourcePicker) MoveDown() {
	if m.Cursor < len(m.Sources)-1 {
		m.Cursor++
	}
	m.follow()
}

func (m SourcePicker) Selected() Source {
	return m.Sources[m.Cursor]
}

func (m *SourcePicker) SelectByNumber(n int) bool {
	idx := m.Offset + n - 1
	if n >= 1 && idx < len(m.Sources) {
		m.Cursor = idx
		return true
	}
	return false
}

// rows is how many entries fit in the box.
func (m SourcePicker) rows() int {
	return max(3, m.Height-10)
}

func (m *SourcePicker) follow() {
	n := m.rows()
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+n {
		m.Offset = m.Cursor - n + 1
	}
}

func (m SourcePicker) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	selectedStyle := lipgloss.NewStyle().Bold(true).Reverse(true).Padding(0, 1)
	normalStyle := lipgloss.NewStyle().Padding(0, 1)
	detailStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2)

	labelWidth := max(20, min(60, m.Width-24))

	var b strings.Builder
	b.WriteString(titleStyle.Render("Open:") + "\n\n")

	end := min(len(m.Sources), m.Offset+m.rows())
	for i := m.Offset; i < end; i++ {
		src := m.Sources[i]
		num := i - m.Offset + 1
		text := padCells(src.Label, labelWidth)
		prefix := "   "
		if num <= 9 {
			prefix = fmt.Sprintf("%d  ", num)
		}
		if i == m.Cursor {
			b.WriteString(selectedStyle.Render(prefix + text))
		} else {
			b.WriteString(normalStyle.Render("  " + prefix + text))
		}
		if src.Detail != "" {
			b.WriteString(" " + detailStyle.Render(src.Detail))
		}
		b.WriteString("\n")
	}
	if end < len(m.Sources) {
		b.WriteString(detailStyle.Render(fmt.Sprintf("  … %d more", len(m.Sources)-end)) + "\n")
	}

	b.WriteString("\n" + normalStyle.Render("↑↓ navigate · enter open · 1-9 quick select · esc back"))

	return boxStyle.Render(b.String())
}
