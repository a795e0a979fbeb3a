// Package session follows the browser's current page and keeps at most one
// timeline engine attached to it.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lotas/chatnav/internal/applog"
	"github.com/lotas/chatnav/internal/clock"
	"github.com/lotas/chatnav/internal/engine"
	"github.com/lotas/chatnav/internal/registry"
	"github.com/lotas/chatnav/internal/types"
	"github.com/lotas/chatnav/internal/virtualize"
)

// Navigator reports the page the user is on.
type Navigator interface {
	URL() string
	Navigations() <-chan string
}

// Page is a conversation page ready to host a timeline.
type Page struct {
	Source      registry.MessageSource
	Host        engine.ScrollHost
	Target      virtualize.Target
	TrackHeight float64
	// Close, if set, releases the page when the session lets go of it.
	Close func()
}

// Binder attaches to the page behind a route. Bind runs with the session
// lock held and must not call back into the session.
type Binder interface {
	Bind(ctx context.Context, r types.Route) (Page, error)
}

// Store is what the session needs from persistence.
type Store interface {
	engine.Store
	LoadSettings() (types.Settings, error)
}

// State is where the session is in attaching to the current page.
type State int

const (
	StateIdle     State = iota // no conversation route, or disabled
	StateSettling              // route seen, waiting for the page to settle
	StateWaiting               // page bound, waiting for the first message
	StateActive                // engine running
)

func (s State) String() string {
	switch s {
	case StateSettling:
		return "settling"
	case StateWaiting:
		return "waiting"
	case StateActive:
		return "active"
	default:
		return "idle"
	}
}

// Options configures a Session. Zero durations take the defaults.
type Options struct {
	Engine           engine.Options // template for every engine
	Store            Store
	Changes          <-chan types.Change
	Clock            clock.Clock
	RouteSettle      time.Duration // delay before attaching after navigation
	BootstrapTimeout time.Duration // how long to wait for the first message
	BootstrapPoll    time.Duration
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = clock.Real{}
	}
	if o.RouteSettle <= 0 {
		o.RouteSettle = 300 * time.Millisecond
	}
	if o.BootstrapTimeout <= 0 {
		o.BootstrapTimeout = 5 * time.Second
	}
	if o.BootstrapPoll <= 0 {
		o.BootstrapPoll = 100 * time.Millisecond
	}
	return o
}

// Session owns the engine for the current conversation.
type Session struct {
	id     string
	mu     sync.Mutex
	opts   Options
	clock  clock.Clock
	nav    Navigator
	binder Binder

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	running  bool
	settings types.Settings

	url      string
	route    types.Route
	state    State
	gen      int // bumped whenever the attach attempt changes
	timer    clock.Timer
	deadline time.Time
	page     Page
	hasPage  bool
	eng      *engine.Engine

	updates chan struct{}
}

// New creates a session. It does nothing until Start.
func New(nav Navigator, binder Binder, opts Options) *Session {
	opts = opts.withDefaults()
	s := &Session{
		id:       uuid.NewString(),
		opts:     opts,
		nav:      nav,
		binder:   binder,
		settings: types.DefaultSettings(),
		updates:  make(chan struct{}, 1),
	}
	s.clock = clock.Serial(opts.Clock, &s.mu)
	s.opts.Engine.Clock = opts.Clock
	s.opts.Engine.Store = opts.Store
	return s
}

// ID identifies this session in logs and on the wire.
func (s *Session) ID() string { return s.id }

// Updates signals whenever the attached engine or the session state changes.
func (s *Session) Updates() <-chan struct{} { return s.updates }

// Start reads the settings, evaluates the current page, and follows
// navigations and store changes until ctx ends or Stop is called.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.running = true
	s.loadSettings()
	applog.Info("session.start", "session", s.id)
	if s.nav != nil {
		s.navigate(s.nav.URL(), true)
	}
	s.mu.Unlock()

	go s.loop()
}

// Stop detaches from the page and stops following it.
func (s *Session) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.detach()
	s.url = ""
	done := s.done
	s.mu.Unlock()
	<-done
	applog.Info("session.stop", "session", s.id)
}

func (s *Session) loop() {
	defer close(s.done)
	var navs <-chan string
	if s.nav != nil {
		navs = s.nav.Navigations()
	}
	changes := s.opts.Changes
	for {
		select {
		case <-s.ctx.Done():
			return
		case u, ok := <-navs:
			if !ok {
				navs = nil
				continue
			}
			s.Navigate(u)
		case c, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			s.Apply(c)
		}
	}
}

// Navigate reports that the page URL changed.
func (s *Session) Navigate(rawURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		s.navigate(rawURL, false)
	}
}

// navigate re-evaluates the page. The first page of a session attaches
// without the settle delay.
func (s *Session) navigate(rawURL string, initial bool) {
	if rawURL == s.url && !initial {
		return
	}
	s.url = rawURL
	r, ok := ParseRoute(rawURL)
	if ok && s.state != StateIdle && r.StoreKey() == s.route.StoreKey() {
		// Same conversation under a different URL, e.g. a fragment change.
		s.route.URL = rawURL
		return
	}
	s.detach()
	if !ok || !s.settings.Enabled(r.Provider) {
		return
	}
	s.route = r
	if initial {
		s.bind()
		return
	}
	s.state = StateSettling
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.opts.RouteSettle, func() {
		if gen == s.gen && s.state == StateSettling {
			s.timer = nil
			s.bind()
		}
	})
	s.notify()
}

// bind attaches to the page and waits for its first message.
func (s *Session) bind() {
	page, err := s.binder.Bind(s.ctx, s.route)
	if err != nil {
		applog.Error("session.bind", err, "session", s.id, "conversation", s.route.StoreKey())
		s.state = StateIdle
		s.notify()
		return
	}
	s.page, s.hasPage = page, true
	if hasMessages(page) {
		s.attach()
		return
	}
	s.state = StateWaiting
	s.deadline = s.clock.Now().Add(s.opts.BootstrapTimeout)
	s.poll(s.gen)
	s.notify()
}

func (s *Session) poll(gen int) {
	s.timer = s.clock.AfterFunc(s.opts.BootstrapPoll, func() {
		if gen != s.gen || s.state != StateWaiting {
			return
		}
		s.timer = nil
		switch {
		case hasMessages(s.page):
			s.attach()
		case !s.clock.Now().Before(s.deadline):
			// Not an error: the page simply never showed a conversation.
			applog.Info("session.bootstrap_timeout", "session", s.id, "conversation", s.route.StoreKey())
			s.detach()
		default:
			s.poll(gen)
		}
	})
}

func (s *Session) attach() {
	opts := s.opts.Engine
	opts.ConversationID = s.route.StoreKey()
	opts.DisableAI = opts.DisableAI || !s.settings.AIModeEnabled
	e := engine.New(s.page.Source, s.page.Host, s.page.Target, opts)
	e.Resize(s.page.TrackHeight)
	e.Start()
	s.eng = e
	s.state = StateActive
	applog.Info("session.attach", "session", s.id, "conversation", opts.ConversationID)
	s.notify()
}

// detach stops the engine and abandons any attach attempt in progress.
func (s *Session) detach() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.eng != nil {
		s.eng.Stop()
		s.eng = nil
	}
	if s.hasPage {
		if s.page.Close != nil {
			s.page.Close()
		}
		s.page, s.hasPage = Page{}, false
	}
	if s.state != StateIdle {
		s.state = StateIdle
		s.notify()
	}
}

// Apply handles a store change made by this or another process.
func (s *Session) Apply(c types.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	switch c.Kind {
	case types.ChangeSettings:
		s.applySettings()
	case types.ChangeStars:
		if s.eng == nil || c.ConversationID != s.route.StoreKey() || s.opts.Store == nil {
			return
		}
		stars, err := s.opts.Store.LoadStars(c.ConversationID)
		if err != nil {
			applog.Error("session.load_stars", err, "conversation", c.ConversationID)
			return
		}
		s.eng.ApplyStars(stars)
	case types.ChangeSummaries:
		if s.eng == nil || c.ConversationID != s.route.StoreKey() || s.opts.Store == nil {
			return
		}
		rec, err := s.opts.Store.LoadSummaries(c.ConversationID)
		if err != nil {
			applog.Error("session.load_summaries", err, "conversation", c.ConversationID)
			return
		}
		if rec.State == engine.SummarizerIdle && len(rec.Labels) == 0 {
			s.eng.ClearSummaries()
		}
	}
}

func (s *Session) applySettings() {
	prev := s.settings
	s.loadSettings()
	r, ok := ParseRoute(s.url)
	switch {
	case !ok:
		return
	case !s.settings.Enabled(r.Provider):
		s.detach()
	case s.state == StateIdle:
		s.route = r
		s.bind()
	case s.state == StateActive && prev.AIModeEnabled != s.settings.AIModeEnabled:
		// Restart so the engine picks up the new label mode.
		s.eng.Stop()
		s.attach()
	}
}

func (s *Session) loadSettings() {
	if s.opts.Store == nil {
		return
	}
	st, err := s.opts.Store.LoadSettings()
	if err != nil {
		applog.Error("session.load_settings", err, "session", s.id)
		st = types.DefaultSettings()
	}
	s.settings = st
}

// State returns the attach state and the current route.
func (s *Session) State() (State, types.Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.route
}

// Engine returns the running engine, or nil.
func (s *Session) Engine() *engine.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eng
}

// Settings returns the settings the session is applying.
func (s *Session) Settings() types.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

func (s *Session) notify() {
	select {
	case s.updates <- struct{}{}:
	default:
	}
}

func hasMessages(p Page) bool {
	return p.Source != nil && len(p.Source.UserMessageNodes()) > 0
}
