package tui

import (
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"

	"github.com/lotas/chatnav/internal/engine"
	"github.com/lotas/chatnav/internal/source"
	"github.com/lotas/chatnav/internal/transcript"
)

// decor is how a user turn header is decorated.
type decor struct {
	active  bool
	starred bool
}

// Pane draws the transcript. The transcript host owns the scroll offset;
// the viewport only renders the rows it is told to.
type Pane struct {
	vp     viewport.Model
	theme  Theme
	doc    *transcript.Document
	decors map[int]decor
}

func NewPane(theme Theme) Pane {
	return Pane{vp: viewport.New(0, 0), theme: theme}
}

func (p *Pane) SetSize(width, height int) {
	p.vp.Width = width
	p.vp.Height = height
}

// Refresh re-renders the content when the document or the marker
// decorations changed.
func (p *Pane) Refresh(doc *transcript.Document, markers []engine.MarkerView) {
	if doc == nil {
		return
	}
	decors := make(map[int]decor, len(markers))
	for _, m := range markers {
		turn := doc.TurnAt(int(math.Round(m.Offset)))
		if turn >= 0 {
			decors[turn] = decor{active: m.Active, starred: m.Starred}
		}
	}
	if doc == p.doc && sameDecors(decors, p.decors) {
		return
	}
	p.doc, p.decors = doc, decors
	p.vp.SetContent(p.render())
}

func (p *Pane) render() string {
	var b strings.Builder
	for i, l := range p.doc.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		if !l.Header {
			b.WriteString(l.Text)
			continue
		}
		d := p.decors[l.Turn]
		text := l.Text
		if d.starred {
			text += " " + glyphStar
		}
		switch {
		case d.active:
			b.WriteString(p.theme.Accent.Render("▌" + text))
		case l.Role == source.RoleUser:
			b.WriteString(p.theme.User.Render(text))
		default:
			b.WriteString(p.theme.Muted.Render(text))
		}
	}
	return b.String()
}

// View renders the rows starting at top.
func (p *Pane) View(top float64) string {
	p.vp.SetYOffset(int(math.Round(top)))
	return p.vp.View()
}

func sameDecors(a, b map[int]decor) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
