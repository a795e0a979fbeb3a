package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/lotas/chatnav/internal/config"
)

// Theme holds the styles every pane draws with.
type Theme struct {
	Accent   lipgloss.Style
	Star     lipgloss.Style
	Muted    lipgloss.Style
	User     lipgloss.Style
	Header   lipgloss.Style
	Selected lipgloss.Style
	Border   lipgloss.Color
}

// NewTheme builds styles from the configured colors.
func NewTheme(c config.ThemeConfig) Theme {
	return Theme{
		Accent:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(c.Accent)),
		Star:     lipgloss.NewStyle().Foreground(lipgloss.Color(c.Star)),
		Muted:    lipgloss.NewStyle().Foreground(lipgloss.Color(c.Muted)),
		User:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(c.User)),
		Header:   lipgloss.NewStyle().Bold(true),
		Selected: lipgloss.NewStyle().Bold(true).Reverse(true),
		Border:   lipgloss.Color(c.Accent),
	}
}
