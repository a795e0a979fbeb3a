// Package live follows the chat page open in the browser through the
// extension bridge. It feeds page navigations to a session and exposes the
// remote page as the engine's message source and scroll host.
package live

import (
	"context"
	"errors"
	"sync"

	"github.com/lotas/chatnav/internal/applog"
	"github.com/lotas/chatnav/internal/engine"
	"github.com/lotas/chatnav/internal/server"
	"github.com/lotas/chatnav/internal/session"
	"github.com/lotas/chatnav/internal/types"
	"github.com/lotas/chatnav/internal/virtualize"
)

// Conn is the extension connection.
type Conn interface {
	Messages() <-chan server.IncomingMsg
	Send(msg server.OutgoingMsg) error
}

// Bridge mirrors the remote page. It implements session.Navigator and
// session.Binder.
type Bridge struct {
	conn        Conn
	target      virtualize.Target
	trackHeight func() float64

	mu       sync.Mutex
	url      string
	title    string
	messages []server.Message
	metrics  server.Metrics
	engine   func() *engine.Engine

	navs chan string
	out  *outbox
}

// New creates a bridge. Markers are drawn into target; trackHeight reports
// the height of the timeline column when a page is bound.
func New(conn Conn, target virtualize.Target, trackHeight func() float64) *Bridge {
	return &Bridge{
		conn:        conn,
		target:      target,
		trackHeight: trackHeight,
		navs:        make(chan string, 1),
		out:         newOutbox(),
	}
}

// Follow sets where page events go. Pass the session's Engine method.
func (b *Bridge) Follow(current func() *engine.Engine) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.engine = current
}

// URL implements session.Navigator.
func (b *Bridge) URL() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.url
}

// Navigations implements session.Navigator.
func (b *Bridge) Navigations() <-chan string { return b.navs }

// Title is the remote page title.
func (b *Bridge) Title() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.title
}

// Bind implements session.Binder. The page stays live: later mutations and
// scrolls show through the returned source and host.
func (b *Bridge) Bind(_ context.Context, r types.Route) (session.Page, error) {
	applog.Info("live.bind", "conversation", r.StoreKey())
	var h float64
	if b.trackHeight != nil {
		h = b.trackHeight()
	}
	return session.Page{
		Source:      &remoteSource{b: b},
		Host:        &remoteHost{b: b},
		Target:      b.target,
		TrackHeight: h,
	}, nil
}

// Run handles extension messages until ctx ends.
func (b *Bridge) Run(ctx context.Context) {
	go b.out.run(ctx, b.conn)
	msgs := b.conn.Messages()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			b.handle(msg)
		}
	}
}

func (b *Bridge) handle(msg server.IncomingMsg) {
	switch msg.Type {
	case server.TypePage, server.TypeMutation:
		page, err := server.ParsePage(msg)
		if err != nil {
			applog.Error("live.parse_page", err)
			return
		}
		b.mu.Lock()
		navigated := page.URL != "" && page.URL != b.url
		if page.URL != "" {
			b.url = page.URL
		}
		if page.Title != "" {
			b.title = page.Title
		}
		b.messages = page.Messages
		if msg.Type == server.TypePage || page.Metrics.ViewportHeight > 0 {
			b.metrics = page.Metrics
		}
		b.mu.Unlock()

		if navigated {
			b.navigated(page.URL)
			return
		}
		if e := b.current(); e != nil {
			e.ContentChanged()
			e.Scrolled()
		}
	case server.TypeScroll:
		b.mu.Lock()
		b.metrics = server.ParseMetrics(msg)
		b.mu.Unlock()
		if e := b.current(); e != nil {
			e.Scrolled()
		}
	case server.TypeNavigate:
		b.mu.Lock()
		changed := msg.URL != b.url
		b.url = msg.URL
		b.messages = nil
		b.mu.Unlock()
		if changed {
			b.navigated(msg.URL)
		}
	case server.TypeVisible:
		if e := b.current(); e != nil {
			e.SetVisible(msg.Visible)
		}
	case server.TypeAck:
		if msg.Error != "" {
			applog.Error("live.command", errors.New(msg.Error), "id", msg.ID)
		}
	default:
		applog.Debug("live.unknown", "type", msg.Type)
	}
}

// navigated hands the newest url to the session, replacing one it has not
// picked up yet.
func (b *Bridge) navigated(u string) {
	for {
		select {
		case b.navs <- u:
			return
		default:
		}
		select {
		case <-b.navs:
		default:
		}
	}
}

func (b *Bridge) current() *engine.Engine {
	b.mu.Lock()
	f := b.engine
	b.mu.Unlock()
	if f == nil {
		return nil
	}
	return f()
}
