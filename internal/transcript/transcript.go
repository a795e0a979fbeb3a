// Package transcript lays a parsed conversation out as terminal lines and
// exposes it to the timeline engine as a message source and scroll host.
package transcript

import (
	"fmt"
	"strings"

	"github.com/muesli/reflow/wordwrap"
	"github.com/muesli/reflow/wrap"

	"github.com/lotas/chatnav/internal/source"
)

const minWidth = 20

// Line is one rendered row of the transcript.
type Line struct {
	Text   string
	Turn   int
	Role   source.Role
	Header bool
}

// Document is a conversation laid out at a fixed width.
type Document struct {
	Conversation *source.Conversation
	Width        int
	Lines        []Line
	// Starts holds the first line of each turn.
	Starts []int
}

// Layout wraps every turn to width. Each turn is a header row followed by
// its body and one blank row.
func Layout(c *source.Conversation, width int) *Document {
	if width < minWidth {
		width = minWidth
	}
	d := &Document{Conversation: c, Width: width}
	userNo := 0
	for i, t := range c.Turns {
		d.Starts = append(d.Starts, len(d.Lines))

		header := "Assistant"
		if t.Role == source.RoleUser {
			userNo++
			header = fmt.Sprintf("You #%d", userNo)
		}
		d.Lines = append(d.Lines, Line{Text: header, Turn: i, Role: t.Role, Header: true})

		body := t.Body
		if strings.TrimSpace(body) == "" {
			body = strings.TrimSpace(t.Text)
		}
		for _, row := range strings.Split(wrapText(body, width), "\n") {
			d.Lines = append(d.Lines, Line{Text: row, Turn: i, Role: t.Role})
		}
		d.Lines = append(d.Lines, Line{Turn: i, Role: t.Role})
	}
	return d
}

// Height is the number of rows.
func (d *Document) Height() int { return len(d.Lines) }

// TurnAt returns the turn shown on row y, or -1.
func (d *Document) TurnAt(y int) int {
	if y < 0 || y >= len(d.Lines) {
		return -1
	}
	return d.Lines[y].Turn
}

func wrapText(s string, width int) string {
	return wrap.String(wordwrap.String(s, width), width)
}
