package server

import (
	"encoding/json"
	"fmt"
	"math"
)

type wireMessage struct {
	ID   string  `json:"id"`
	Text string  `json:"text"`
	Top  float64 `json:"top"`
	Role string  `json:"role"`
}

// Message is one chat message on the remote page. Top is its offset in
// the page's scroll coordinates.
type Message struct {
	ID   string
	Text string
	Top  float64
	Role string
}

// Metrics describe the remote scroll container.
type Metrics struct {
	ScrollTop      float64
	ViewportHeight float64
	ScrollHeight   float64
}

// TotalScrollable is the largest scroll offset.
func (m Metrics) TotalScrollable() float64 {
	return math.Max(0, m.ScrollHeight-m.ViewportHeight)
}

// Page is the state carried by a page or mutation message.
type Page struct {
	URL      string
	Title    string
	Messages []Message
	Metrics  Metrics
}

// ParsePage converts an IncomingMsg of type "page" or "mutation".
func ParsePage(msg IncomingMsg) (*Page, error) {
	var wire []wireMessage
	if len(msg.Messages) > 0 {
		if err := json.Unmarshal(msg.Messages, &wire); err != nil {
			return nil, fmt.Errorf("parse messages: %w", err)
		}
	}
	p := &Page{
		URL:     msg.URL,
		Title:   msg.Title,
		Metrics: ParseMetrics(msg),
	}
	for _, w := range wire {
		role := w.Role
		if role == "" {
			role = "user"
		}
		p.Messages = append(p.Messages, Message{ID: w.ID, Text: w.Text, Top: w.Top, Role: role})
	}
	return p, nil
}

// ParseMetrics reads the scroll fields of a message.
func ParseMetrics(msg IncomingMsg) Metrics {
	return Metrics{
		ScrollTop:      msg.ScrollTop,
		ViewportHeight: msg.ViewportHeight,
		ScrollHeight:   msg.ScrollHeight,
	}
}
