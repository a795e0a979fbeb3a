// Package server is the WebSocket bridge to the browser extension. The
// extension streams the chat page it is showing; the server sends back
// scroll commands.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"nhooyr.io/websocket"

	"github.com/lotas/chatnav/internal/applog"
)

// Message types sent by the extension.
const (
	TypePage     = "page"     // full page: url, title, messages and scroll metrics
	TypeMutation = "mutation" // the message list changed
	TypeScroll   = "scroll"   // scroll metrics changed
	TypeNavigate = "navigate" // the tab moved to another url
	TypeVisible  = "visible"  // ids of the messages inside the viewport
	TypeAck      = "ack"      // response to a command
)

// Actions sent to the extension.
const (
	ActionScrollTo = "scrollTo"
	ActionTagTurn  = "tagTurn"
)

// IncomingMsg is a message from the extension.
type IncomingMsg struct {
	Type           string          `json:"type"`
	URL            string          `json:"url,omitempty"`
	Title          string          `json:"title,omitempty"`
	Messages       json.RawMessage `json:"messages,omitempty"`
	ScrollTop      float64         `json:"scrollTop,omitempty"`
	ViewportHeight float64         `json:"viewportHeight,omitempty"`
	ScrollHeight   float64         `json:"scrollHeight,omitempty"`
	Visible        []string        `json:"visible,omitempty"`
	// Command response fields
	ID    string `json:"id,omitempty"`
	OK    *bool  `json:"ok,omitempty"`
	Error string `json:"error,omitempty"`
}

// OutgoingMsg is a command to the extension.
type OutgoingMsg struct {
	ID     string  `json:"id"`
	Action string  `json:"action"`
	URL    string  `json:"url,omitempty"`
	Top    float64 `json:"top"`
	Index  int     `json:"index,omitempty"`
	TurnID string  `json:"turnId,omitempty"`
}

// Server manages the WebSocket connection to the extension.
type Server struct {
	port    int
	msgs    chan IncomingMsg
	mu      sync.Mutex
	conn    *websocket.Conn
	connCtx context.Context
}

// New creates a new Server. Port 0 means the caller manages the listener.
func New(port int) *Server {
	return &Server{
		port: port,
		msgs: make(chan IncomingMsg, 256),
	}
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Messages returns the channel of incoming messages from the extension.
func (s *Server) Messages() <-chan IncomingMsg {
	return s.msgs
}

// Connected reports whether an extension is connected.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Send sends a command to the connected extension. Without a connection
// the command is dropped.
func (s *Server) Send(msg OutgoingMsg) error {
	s.mu.Lock()
	conn := s.conn
	ctx := s.connCtx
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	applog.Debug("ws.send", "action", msg.Action, "id", msg.ID)
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// Handler returns an http.Handler that accepts WebSocket upgrades.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			log.Printf("websocket accept: %v", err)
			applog.Error("ws.accept", err)
			return
		}

		conn.SetReadLimit(16 << 20) // long conversations carry a lot of text

		ctx := r.Context()
		s.mu.Lock()
		if s.conn != nil {
			applog.Info("ws.replaced")
			s.conn.CloseNow()
		}
		s.conn = conn
		s.connCtx = ctx
		s.mu.Unlock()

		applog.Info("ws.connected", "remote", r.RemoteAddr)

		defer func() {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
				s.connCtx = nil
			}
			s.mu.Unlock()
			conn.CloseNow()
			applog.Info("ws.disconnected")
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg IncomingMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				applog.Error("ws.parse", err)
				continue
			}
			applog.Debug("ws.recv", "type", msg.Type)
			select {
			case s.msgs <- msg:
			default:
				applog.Info("ws.dropped", "type", msg.Type)
			}
		}
	})
}

// ListenAndServe starts the WebSocket server on the configured port.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	applog.Info("server.start", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	return srv.ListenAndServe()
}
