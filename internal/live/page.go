package live

import (
	"context"
	"math"
	"sync"

	"github.com/google/uuid"

	"github.com/lotas/chatnav/internal/applog"
	"github.com/lotas/chatnav/internal/registry"
	"github.com/lotas/chatnav/internal/server"
)

type remoteSource struct{ b *Bridge }

// UserMessageNodes lists the user messages of the last page update.
func (s *remoteSource) UserMessageNodes() []registry.Node {
	s.b.mu.Lock()
	defer s.b.mu.Unlock()
	var nodes []registry.Node
	for i, m := range s.b.messages {
		if m.Role != "user" {
			continue
		}
		nodes = append(nodes, &node{b: s.b, index: i, id: m.ID, text: m.Text, top: m.Top})
	}
	return nodes
}

func (s *remoteSource) DisplayText(n registry.Node) string {
	if rn, ok := n.(*node); ok {
		return rn.text
	}
	return ""
}

type node struct {
	b     *Bridge
	index int
	id    string
	text  string
	top   float64
}

func (n *node) TurnID() string { return n.id }

// SetTurnID also asks the extension to stamp the id on the element, so the
// next page update carries it.
func (n *node) SetTurnID(id string) {
	n.id = id
	n.b.out.tag(server.OutgoingMsg{
		ID:     uuid.NewString(),
		Action: server.ActionTagTurn,
		Index:  n.index,
		TurnID: id,
	})
}

func (n *node) Offset() float64 { return n.top }

type remoteHost struct{ b *Bridge }

func (h *remoteHost) ScrollTop() float64 {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	return h.b.metrics.ScrollTop
}

// SetScrollTop records the offset locally and queues a scroll command. A
// newer offset replaces one that has not been sent yet.
func (h *remoteHost) SetScrollTop(v float64) {
	h.b.mu.Lock()
	v = math.Max(0, math.Min(v, h.b.metrics.TotalScrollable()))
	h.b.metrics.ScrollTop = v
	url := h.b.url
	h.b.mu.Unlock()
	h.b.out.scroll(url, v)
}

func (h *remoteHost) ViewportHeight() float64 {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	return h.b.metrics.ViewportHeight
}

func (h *remoteHost) TotalScrollable() float64 {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	return h.b.metrics.TotalScrollable()
}

// outbox sends commands from a single goroutine so callers holding the
// engine lock never wait on the socket.
type outbox struct {
	mu      sync.Mutex
	pending *server.OutgoingMsg
	tags    []server.OutgoingMsg
	wake    chan struct{}
}

func newOutbox() *outbox {
	return &outbox{wake: make(chan struct{}, 1)}
}

func (o *outbox) scroll(url string, top float64) {
	o.mu.Lock()
	o.pending = &server.OutgoingMsg{ID: uuid.NewString(), Action: server.ActionScrollTo, URL: url, Top: top}
	o.mu.Unlock()
	o.signal()
}

func (o *outbox) tag(msg server.OutgoingMsg) {
	o.mu.Lock()
	o.tags = append(o.tags, msg)
	o.mu.Unlock()
	o.signal()
}

func (o *outbox) signal() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

func (o *outbox) take() []server.OutgoingMsg {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.tags
	o.tags = nil
	if o.pending != nil {
		out = append(out, *o.pending)
		o.pending = nil
	}
	return out
}

func (o *outbox) run(ctx context.Context, conn Conn) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.wake:
		}
		for _, msg := range o.take() {
			if err := conn.Send(msg); err != nil {
				applog.Error("live.send", err, "action", msg.Action)
			}
		}
	}
}
