package tui

import (
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Preview is an overlay showing the exported timeline as rendered
// markdown.
type Preview struct {
	vp viewport.Model
}

// NewPreview renders md for a box of the given outer size. When glamour
// cannot render, the raw markdown is shown.
func NewPreview(md string, width, height int) Preview {
	inner := max(10, width-6)
	content := md
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(inner),
	)
	if err == nil {
		if rendered, err := r.Render(md); err == nil {
			content = rendered
		}
	}
	vp := viewport.New(inner, max(3, height-4))
	vp.SetContent(content)
	return Preview{vp: vp}
}

func (p Preview) Update(msg tea.Msg) (Preview, tea.Cmd) {
	var cmd tea.Cmd
	p.vp, cmd = p.vp.Update(msg)
	return p, cmd
}

func (p Preview) View() string {
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(0, 1)
	return boxStyle.Render(p.vp.View())
}
