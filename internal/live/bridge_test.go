package live

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/lotas/chatnav/internal/engine"
	"github.com/lotas/chatnav/internal/server"
	"github.com/lotas/chatnav/internal/session"
	"github.com/lotas/chatnav/internal/virtualize"
)

type fakeConn struct {
	msgs chan server.IncomingMsg
	mu   sync.Mutex
	sent []server.OutgoingMsg
}

func newFakeConn() *fakeConn {
	return &fakeConn{msgs: make(chan server.IncomingMsg, 16)}
}

func (c *fakeConn) Messages() <-chan server.IncomingMsg { return c.msgs }

func (c *fakeConn) Send(msg server.OutgoingMsg) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return nil
}

func (c *fakeConn) lastScroll() (server.OutgoingMsg, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.sent) - 1; i >= 0; i-- {
		if c.sent[i].Action == server.ActionScrollTo {
			return c.sent[i], true
		}
	}
	return server.OutgoingMsg{}, false
}

type nopTarget struct{}

func (nopTarget) Create(int, float64, virtualize.State) virtualize.Handle { return new(int) }
func (nopTarget) Update(virtualize.Handle, float64, virtualize.State)     {}
func (nopTarget) Destroy(virtualize.Handle)                               {}

func pageMsg(t *testing.T, url string, msgs ...map[string]any) server.IncomingMsg {
	t.Helper()
	raw, err := json.Marshal(msgs)
	if err != nil {
		t.Fatal(err)
	}
	return server.IncomingMsg{
		Type:           server.TypePage,
		URL:            url,
		Title:          "Chat",
		Messages:       raw,
		ScrollTop:      0,
		ViewportHeight: 800,
		ScrollHeight:   4000,
	}
}

func threeTurns(t *testing.T, url string) server.IncomingMsg {
	return pageMsg(t, url,
		map[string]any{"id": "a", "text": "first question", "top": 100, "role": "user"},
		map[string]any{"id": "b", "text": "answer", "top": 400, "role": "assistant"},
		map[string]any{"id": "c", "text": "second question", "top": 1500, "role": "user"},
		map[string]any{"id": "d", "text": "third question", "top": 3000, "role": "user"},
	)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestBridgePageNavigates(t *testing.T) {
	b := New(newFakeConn(), nopTarget{}, nil)
	b.handle(threeTurns(t, "https://chatgpt.com/c/abc"))

	select {
	case u := <-b.Navigations():
		if u != "https://chatgpt.com/c/abc" {
			t.Errorf("navigated to %q", u)
		}
	default:
		t.Fatal("no navigation")
	}
	if b.URL() != "https://chatgpt.com/c/abc" || b.Title() != "Chat" {
		t.Errorf("url=%q title=%q", b.URL(), b.Title())
	}

	// The same page again is a content change, not a navigation.
	b.handle(threeTurns(t, "https://chatgpt.com/c/abc"))
	select {
	case u := <-b.Navigations():
		t.Errorf("unexpected navigation to %q", u)
	default:
	}
}

func TestBridgeKeepsLatestNavigation(t *testing.T) {
	b := New(newFakeConn(), nopTarget{}, nil)
	b.handle(server.IncomingMsg{Type: server.TypeNavigate, URL: "https://chatgpt.com/c/one"})
	b.handle(server.IncomingMsg{Type: server.TypeNavigate, URL: "https://chatgpt.com/c/two"})
	if u := <-b.Navigations(); u != "https://chatgpt.com/c/two" {
		t.Errorf("got %q, want the latest url", u)
	}
}

func TestBridgeBind(t *testing.T) {
	conn := newFakeConn()
	b := New(conn, nopTarget{}, func() float64 { return 30 })
	b.handle(threeTurns(t, "https://chatgpt.com/c/abc"))

	r, _ := session.ParseRoute("https://chatgpt.com/c/abc")
	page, err := b.Bind(context.Background(), r)
	if err != nil {
		t.Fatal(err)
	}
	if page.TrackHeight != 30 {
		t.Errorf("TrackHeight = %v", page.TrackHeight)
	}
	nodes := page.Source.UserMessageNodes()
	if len(nodes) != 3 {
		t.Fatalf("got %d user nodes, want 3", len(nodes))
	}
	if nodes[1].TurnID() != "c" || nodes[1].Offset() != 1500 {
		t.Errorf("node 1 = %q at %v", nodes[1].TurnID(), nodes[1].Offset())
	}
	if got := page.Source.DisplayText(nodes[2]); got != "third question" {
		t.Errorf("DisplayText = %q", got)
	}

	if page.Host.ViewportHeight() != 800 || page.Host.TotalScrollable() != 3200 {
		t.Errorf("host = %v / %v", page.Host.ViewportHeight(), page.Host.TotalScrollable())
	}
	page.Host.SetScrollTop(9999)
	if page.Host.ScrollTop() != 3200 {
		t.Errorf("ScrollTop = %v, want clamp to 3200", page.Host.ScrollTop())
	}

	// Later scroll events show through the bound host.
	b.handle(server.IncomingMsg{Type: server.TypeScroll, ScrollTop: 250, ViewportHeight: 800, ScrollHeight: 4000})
	if page.Host.ScrollTop() != 250 {
		t.Errorf("ScrollTop after event = %v", page.Host.ScrollTop())
	}
}

func TestOutboxLatestScrollWins(t *testing.T) {
	o := newOutbox()
	o.scroll("u", 10)
	o.tag(server.OutgoingMsg{Action: server.ActionTagTurn, TurnID: "x"})
	o.scroll("u", 20)
	o.scroll("u", 30)

	out := o.take()
	if len(out) != 2 {
		t.Fatalf("got %d commands, want tag + one scroll", len(out))
	}
	if out[0].Action != server.ActionTagTurn {
		t.Errorf("first = %+v", out[0])
	}
	if out[1].Action != server.ActionScrollTo || out[1].Top != 30 || out[1].ID == "" {
		t.Errorf("scroll = %+v", out[1])
	}
	if len(o.take()) != 0 {
		t.Error("take should drain the outbox")
	}
}

func TestBridgeDrivesSession(t *testing.T) {
	conn := newFakeConn()
	b := New(conn, nopTarget{}, func() float64 { return 20 })

	timing := engine.DefaultTiming()
	timing.Smooth = 20 * time.Millisecond
	timing.Frame = time.Millisecond
	timing.RebuildDelay = 10 * time.Millisecond
	s := session.New(b, b, session.Options{
		Engine:      engine.Options{Timing: timing},
		RouteSettle: 10 * time.Millisecond,
	})
	b.Follow(s.Engine)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Run(ctx)
	s.Start(ctx)
	defer s.Stop()

	conn.msgs <- threeTurns(t, "https://chatgpt.com/c/abc")
	waitFor(t, "active session", func() bool {
		st, r := s.State()
		return st == session.StateActive && r.StoreKey() == "chatgpt:abc"
	})

	e := s.Engine()
	if got := len(e.Snapshot().Markers); got != 3 {
		t.Fatalf("markers = %d, want 3", got)
	}
	if !e.JumpTo(1) {
		t.Fatal("JumpTo refused")
	}
	waitFor(t, "scroll command", func() bool {
		msg, ok := conn.lastScroll()
		return ok && msg.Top == 1500 && msg.URL == "https://chatgpt.com/c/abc"
	})

	// A mutation adds a message without a navigation.
	conn.msgs <- pageMsg(t, "https://chatgpt.com/c/abc",
		map[string]any{"id": "a", "text": "first question", "top": 100, "role": "user"},
		map[string]any{"id": "c", "text": "second question", "top": 1500, "role": "user"},
		map[string]any{"id": "d", "text": "third question", "top": 3000, "role": "user"},
		map[string]any{"id": "e", "text": "fourth question", "top": 3500, "role": "user"},
	)
	waitFor(t, "rebuild", func() bool { return len(e.Snapshot().Markers) == 4 })

	// Leaving the conversation detaches.
	conn.msgs <- server.IncomingMsg{Type: server.TypeNavigate, URL: "https://chatgpt.com/"}
	waitFor(t, "idle session", func() bool {
		st, _ := s.State()
		return st == session.StateIdle && s.Engine() == nil
	})
}

var _ session.Binder = (*Bridge)(nil)
var _ session.Navigator = (*Bridge)(nil)
