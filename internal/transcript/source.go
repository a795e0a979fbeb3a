package transcript

import (
	"math"
	"sync"

	"github.com/lotas/chatnav/internal/registry"
	"github.com/lotas/chatnav/internal/source"
)

// Source serves the user turns of a Document to the engine. Ids derived by
// the engine stick to their turn until its text changes.
type Source struct {
	mu    sync.Mutex
	doc   *Document
	ids   map[int]string
	texts map[int]string
}

// NewSource creates a Source over doc.
func NewSource(doc *Document) *Source {
	s := &Source{ids: make(map[int]string), texts: make(map[int]string)}
	s.SetDocument(doc)
	return s
}

// Document returns the current document.
func (s *Source) Document() *Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// SetDocument replaces the document. Callers tell the engine with
// ContentChanged afterwards.
func (s *Source) SetDocument(doc *Document) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc = doc
	texts := make(map[int]string, len(doc.Conversation.Turns))
	for i, t := range doc.Conversation.Turns {
		texts[i] = t.Text
		switch {
		case t.ID != "":
			s.ids[i] = t.ID
		case s.texts[i] != t.Text:
			delete(s.ids, i)
		}
	}
	for i := range s.ids {
		if _, ok := texts[i]; !ok {
			delete(s.ids, i)
		}
	}
	s.texts = texts
}

// UserMessageNodes implements registry.MessageSource.
func (s *Source) UserMessageNodes() []registry.Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	var nodes []registry.Node
	for i, t := range s.doc.Conversation.Turns {
		if t.Role != source.RoleUser {
			continue
		}
		nodes = append(nodes, &node{src: s, turn: i, offset: float64(s.doc.Starts[i])})
	}
	return nodes
}

// DisplayText implements registry.MessageSource.
func (s *Source) DisplayText(n registry.Node) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	tn, ok := n.(*node)
	if !ok || tn.turn >= len(s.doc.Conversation.Turns) {
		return ""
	}
	return s.doc.Conversation.Turns[tn.turn].Text
}

// Turn returns the turn behind a marker offset, or -1.
func (s *Source) Turn(offset float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.TurnAt(int(math.Round(offset)))
}

type node struct {
	src    *Source
	turn   int
	offset float64
}

func (n *node) TurnID() string {
	n.src.mu.Lock()
	defer n.src.mu.Unlock()
	return n.src.ids[n.turn]
}

func (n *node) SetTurnID(id string) {
	n.src.mu.Lock()
	defer n.src.mu.Unlock()
	n.src.ids[n.turn] = id
}

func (n *node) Offset() float64 { return n.offset }
