package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/lotas/chatnav/internal/clock"
	"github.com/lotas/chatnav/internal/engine"
	"github.com/lotas/chatnav/internal/registry"
	"github.com/lotas/chatnav/internal/types"
	"github.com/lotas/chatnav/internal/virtualize"
)

func TestParseRoute(t *testing.T) {
	tests := []struct {
		url      string
		provider types.Provider
		id       string
	}{
		{"https://chatgpt.com/c/abc-123", types.ProviderChatGPT, "abc-123"},
		{"https://chat.openai.com/c/abc_1?model=x", types.ProviderChatGPT, "abc_1"},
		{"https://chatgpt.com/g/g-xyz/c/deadbeef", types.ProviderChatGPT, "deadbeef"},
		{"https://chatgpt.com/", "", ""},
		{"https://chatgpt.com/c/", "", ""},
		{"https://chatgpt.com/c/bad.id", "", ""},
		{"https://chat.deepseek.com/a/chat/s/9f8e", types.ProviderDeepSeek, "9f8e"},
		{"https://chat.deepseek.com/", "", ""},
		{"https://gemini.google.com/app/1a2b3c", types.ProviderGemini, "1a2b3c"},
		{"https://gemini.google.com/gem/coder/77aa", types.ProviderGemini, "77aa"},
		{"https://gemini.google.com/gem/", "", ""},
		{"https://gemini.google.com/app", "", ""},
		{"https://example.com/c/abc", "", ""},
		{"::not a url", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			r, ok := ParseRoute(tt.url)
			if ok != (tt.id != "") {
				t.Fatalf("ok = %v, want %v", ok, tt.id != "")
			}
			if !ok {
				return
			}
			if r.Provider != tt.provider || r.ConversationID != tt.id {
				t.Errorf("got %s/%s, want %s/%s", r.Provider, r.ConversationID, tt.provider, tt.id)
			}
		})
	}
}

func TestSettingsEnabled(t *testing.T) {
	s := types.Settings{TimelineActive: true, Providers: map[types.Provider]bool{types.ProviderGemini: false}}
	if !s.Enabled(types.ProviderChatGPT) {
		t.Error("missing provider key should count as enabled")
	}
	if s.Enabled(types.ProviderGemini) {
		t.Error("gemini switched off")
	}
	s.TimelineActive = false
	if s.Enabled(types.ProviderChatGPT) {
		t.Error("global switch off")
	}
}

// --- fakes ---

type node struct {
	id  string
	off float64
}

func (n *node) TurnID() string      { return n.id }
func (n *node) SetTurnID(id string) { n.id = id }
func (n *node) Offset() float64     { return n.off }

type source struct {
	mu    sync.Mutex
	nodes []registry.Node
}

func (s *source) UserMessageNodes() []registry.Node {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]registry.Node(nil), s.nodes...)
}

func (s *source) DisplayText(n registry.Node) string { return "text " + n.TurnID() }

func (s *source) fill(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.nodes = append(s.nodes, &node{id: fmt.Sprintf("m%d", i), off: float64(i) * 400})
	}
}

type host struct{ top float64 }

func (h *host) ScrollTop() float64       { return h.top }
func (h *host) SetScrollTop(v float64)   { h.top = v }
func (h *host) ViewportHeight() float64  { return 600 }
func (h *host) TotalScrollable() float64 { return 4000 }

type target struct{}

func (target) Create(i int, _ float64, _ virtualize.State) virtualize.Handle { return i }
func (target) Update(virtualize.Handle, float64, virtualize.State)           {}
func (target) Destroy(virtualize.Handle)                                     {}

type binder struct {
	sources map[string]*source
	bound   []string
	closed  int
	err     error
}

func (b *binder) Bind(_ context.Context, r types.Route) (Page, error) {
	if b.err != nil {
		return Page{}, b.err
	}
	b.bound = append(b.bound, r.StoreKey())
	src := b.sources[r.ConversationID]
	if src == nil {
		src = &source{}
		b.sources[r.ConversationID] = src
	}
	return Page{Source: src, Host: &host{}, Target: target{}, TrackHeight: 300, Close: func() { b.closed++ }}, nil
}

type navigator struct{ url string }

func (n navigator) URL() string                { return n.url }
func (n navigator) Navigations() <-chan string { return nil }

type store struct {
	mu        sync.Mutex
	settings  types.Settings
	stars     map[string]map[string]bool
	summaries map[string]engine.SummaryRecord
}

func newStore() *store {
	return &store{
		settings:  types.DefaultSettings(),
		stars:     map[string]map[string]bool{},
		summaries: map[string]engine.SummaryRecord{},
	}
}

func (s *store) LoadSettings() (types.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings, nil
}

func (s *store) LoadStars(id string) (map[string]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stars[id], nil
}

func (s *store) SaveStars(id string, v map[string]bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stars[id] = v
	return nil
}

func (s *store) LoadSummaries(id string) (engine.SummaryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summaries[id], nil
}

func (s *store) SaveSummaries(id string, rec engine.SummaryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[id] = rec
	return nil
}

type fixture struct {
	s      *Session
	clock  *clock.Fake
	binder *binder
	store  *store
}

func newFixture(t *testing.T, startURL string) *fixture {
	t.Helper()
	f := &fixture{
		clock:  clock.NewFake(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
		binder: &binder{sources: map[string]*source{}},
		store:  newStore(),
	}
	f.s = New(navigator{url: startURL}, f.binder, Options{Store: f.store, Clock: f.clock})
	t.Cleanup(f.s.Stop)
	return f
}

func (f *fixture) src(id string, n int) {
	s := &source{}
	s.fill(n)
	f.binder.sources[id] = s
}

func (f *fixture) state() State {
	st, _ := f.s.State()
	return st
}

// --- tests ---

func TestStartAttachesToConversation(t *testing.T) {
	f := newFixture(t, "https://chatgpt.com/c/abc")
	f.src("abc", 3)
	f.s.Start(context.Background())

	if f.state() != StateActive {
		t.Fatalf("state = %v, want active", f.state())
	}
	e := f.s.Engine()
	if e == nil || e.ConversationID() != "chatgpt:abc" {
		t.Fatalf("engine = %v", e)
	}
	if got := len(e.Snapshot().Markers); got != 3 {
		t.Errorf("markers = %d, want 3", got)
	}
}

func TestStartIgnoresNonConversationPages(t *testing.T) {
	f := newFixture(t, "https://chatgpt.com/")
	f.s.Start(context.Background())
	if f.state() != StateIdle || f.s.Engine() != nil {
		t.Fatalf("state = %v, engine = %v", f.state(), f.s.Engine())
	}
	if len(f.binder.bound) != 0 {
		t.Errorf("bound %v", f.binder.bound)
	}
}

func TestBootstrapWaitsForFirstMessage(t *testing.T) {
	f := newFixture(t, "https://chat.deepseek.com/a/chat/s/xyz")
	f.s.Start(context.Background())
	if f.state() != StateWaiting {
		t.Fatalf("state = %v, want waiting", f.state())
	}

	f.clock.Advance(2 * time.Second)
	if f.state() != StateWaiting {
		t.Fatalf("state = %v after 2s", f.state())
	}
	f.binder.sources["xyz"].fill(2)
	f.clock.Advance(100 * time.Millisecond)
	if f.state() != StateActive {
		t.Fatalf("state = %v, want active", f.state())
	}
}

func TestBootstrapTimeoutIsNotAnError(t *testing.T) {
	f := newFixture(t, "https://gemini.google.com/app/g1")
	f.s.Start(context.Background())

	f.clock.Advance(5 * time.Second)
	if f.state() != StateIdle {
		t.Fatalf("state = %v, want idle after timeout", f.state())
	}
	if f.binder.closed != 1 {
		t.Errorf("page closed %d times, want 1", f.binder.closed)
	}
	if f.clock.Pending() != 0 {
		t.Errorf("%d timers still pending", f.clock.Pending())
	}

	// Messages showing up later do not revive the attempt.
	f.binder.sources["g1"].fill(1)
	f.clock.Advance(time.Second)
	if f.state() != StateIdle {
		t.Errorf("state = %v, want idle", f.state())
	}
}

func TestNavigationSettlesBeforeAttach(t *testing.T) {
	f := newFixture(t, "https://chatgpt.com/c/one")
	f.src("one", 2)
	f.src("two", 4)
	f.s.Start(context.Background())
	first := f.s.Engine()

	f.s.Navigate("https://chatgpt.com/c/two")
	if f.state() != StateSettling || f.s.Engine() != nil {
		t.Fatalf("state = %v, engine = %v", f.state(), f.s.Engine())
	}
	if first.Snapshot().Running {
		t.Error("old engine still running")
	}
	f.clock.Advance(299 * time.Millisecond)
	if f.state() != StateSettling {
		t.Fatalf("attached before the settle delay")
	}
	f.clock.Advance(time.Millisecond)
	e := f.s.Engine()
	if e == nil || e.ConversationID() != "chatgpt:two" {
		t.Fatalf("engine = %v", e)
	}
}

func TestNavigationAwayBeforeSettle(t *testing.T) {
	f := newFixture(t, "https://chatgpt.com/")
	f.src("one", 2)
	f.s.Start(context.Background())

	f.s.Navigate("https://chatgpt.com/c/one")
	f.clock.Advance(100 * time.Millisecond)
	f.s.Navigate("https://chatgpt.com/")
	f.clock.Advance(time.Second)
	if f.state() != StateIdle || len(f.binder.bound) != 0 {
		t.Fatalf("state = %v, bound = %v", f.state(), f.binder.bound)
	}
}

func TestSameConversationKeepsEngine(t *testing.T) {
	f := newFixture(t, "https://chatgpt.com/c/one")
	f.src("one", 2)
	f.s.Start(context.Background())
	e := f.s.Engine()

	f.s.Navigate("https://chatgpt.com/c/one#section")
	if f.s.Engine() != e {
		t.Error("engine replaced for the same conversation")
	}
}

func TestDisabledProviderDoesNotAttach(t *testing.T) {
	f := newFixture(t, "https://gemini.google.com/app/g1")
	f.src("g1", 2)
	f.store.settings.Providers[types.ProviderGemini] = false
	f.s.Start(context.Background())
	if f.state() != StateIdle {
		t.Fatalf("state = %v, want idle", f.state())
	}

	f.store.mu.Lock()
	f.store.settings.Providers[types.ProviderGemini] = true
	f.store.mu.Unlock()
	f.s.Apply(types.Change{Kind: types.ChangeSettings})
	if f.state() != StateActive {
		t.Fatalf("state = %v after enabling", f.state())
	}

	f.store.mu.Lock()
	f.store.settings.TimelineActive = false
	f.store.mu.Unlock()
	f.s.Apply(types.Change{Kind: types.ChangeSettings})
	if f.state() != StateIdle || f.s.Engine() != nil {
		t.Fatalf("state = %v after global off", f.state())
	}
}

func TestAIModeSettingRestartsEngine(t *testing.T) {
	f := newFixture(t, "https://chatgpt.com/c/one")
	f.src("one", 2)
	f.s.Start(context.Background())
	first := f.s.Engine()

	f.store.mu.Lock()
	f.store.settings.AIModeEnabled = false
	f.store.mu.Unlock()
	f.s.Apply(types.Change{Kind: types.ChangeSettings})

	e := f.s.Engine()
	if e == nil || e == first {
		t.Fatal("engine not restarted")
	}
	if err := e.Summarize(context.Background()); !errors.Is(err, engine.ErrAIDisabled) {
		t.Errorf("Summarize = %v, want ErrAIDisabled", err)
	}
}

func TestStarChangeFromOtherContext(t *testing.T) {
	f := newFixture(t, "https://chatgpt.com/c/one")
	f.src("one", 3)
	f.s.Start(context.Background())

	f.store.SaveStars("chatgpt:one", map[string]bool{"m1": true})
	f.s.Apply(types.Change{Kind: types.ChangeStars, ConversationID: "chatgpt:other"})
	if n := len(f.s.Engine().Snapshot().Starred()); n != 0 {
		t.Fatalf("change for another conversation applied: %d stars", n)
	}
	f.s.Apply(types.Change{Kind: types.ChangeStars, ConversationID: "chatgpt:one"})
	starred := f.s.Engine().Snapshot().Starred()
	if len(starred) != 1 || starred[0].ID != "m1" {
		t.Fatalf("starred = %+v", starred)
	}
}

func TestBindErrorLeavesIdle(t *testing.T) {
	f := newFixture(t, "https://chatgpt.com/c/one")
	f.binder.err = errors.New("no page")
	f.s.Start(context.Background())
	if f.state() != StateIdle {
		t.Fatalf("state = %v", f.state())
	}
}

func TestStopDetaches(t *testing.T) {
	f := newFixture(t, "https://chatgpt.com/c/one")
	f.src("one", 2)
	f.s.Start(context.Background())
	e := f.s.Engine()
	f.s.Stop()
	if e.Snapshot().Running {
		t.Error("engine still running after Stop")
	}
	if f.binder.closed != 1 {
		t.Errorf("closed = %d", f.binder.closed)
	}
	f.s.Navigate("https://chatgpt.com/c/two")
	if f.state() != StateIdle {
		t.Error("navigation handled after Stop")
	}
}
