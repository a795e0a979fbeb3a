package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lotas/chatnav/internal/engine"
	"github.com/lotas/chatnav/internal/types"
)

// testStore creates a store on a temporary database.
func testStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func recv(t *testing.T, ch <-chan types.Change) types.Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no change delivered")
		return types.Change{}
	}
}

func TestOpenDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "sub", "dir", "chatnav.db")

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database file not found: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if count != len(migrations) {
		t.Errorf("expected %d migrations recorded, got %d", len(migrations), count)
	}
}

func TestOpenDB_IdempotentMigrations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "idempotent.db")

	s1, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	if err := s1.SaveStars("chatgpt:a", map[string]bool{"x": true}); err != nil {
		t.Fatalf("SaveStars: %v", err)
	}
	s1.Close()

	s2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer s2.Close()

	var count int
	s2.DB().QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if count != len(migrations) {
		t.Errorf("expected %d migrations, got %d", len(migrations), count)
	}
	stars, err := s2.LoadStars("chatgpt:a")
	if err != nil || !stars["x"] {
		t.Errorf("stars after reopen = %v, %v", stars, err)
	}
}

func TestStars(t *testing.T) {
	s := testStore(t)

	stars, err := s.LoadStars("chatgpt:none")
	if err != nil {
		t.Fatalf("LoadStars: %v", err)
	}
	if len(stars) != 0 {
		t.Errorf("expected no stars, got %v", stars)
	}

	if err := s.SaveStars("chatgpt:a", map[string]bool{"t1": true, "t2": true, "t3": false}); err != nil {
		t.Fatalf("SaveStars: %v", err)
	}
	if err := s.SaveStars("deepseek:a", map[string]bool{"t9": true}); err != nil {
		t.Fatalf("SaveStars: %v", err)
	}
	if err := s.SaveStars("chatgpt:a", map[string]bool{"t2": true}); err != nil {
		t.Fatalf("SaveStars: %v", err)
	}

	stars, _ = s.LoadStars("chatgpt:a")
	if len(stars) != 1 || !stars["t2"] {
		t.Errorf("chatgpt:a stars = %v, want only t2", stars)
	}
	stars, _ = s.LoadStars("deepseek:a")
	if len(stars) != 1 || !stars["t9"] {
		t.Errorf("deepseek:a stars = %v", stars)
	}
}

func TestSummaries(t *testing.T) {
	s := testStore(t)

	rec, err := s.LoadSummaries("gemini:x")
	if err != nil {
		t.Fatalf("LoadSummaries: %v", err)
	}
	if rec.State != engine.SummarizerIdle || len(rec.Labels) != 0 {
		t.Errorf("missing row = %+v, want idle", rec)
	}

	want := engine.SummaryRecord{
		State:        engine.SummarizerCompleted,
		UseSummaries: true,
		Labels:       map[string]string{"a-1": "Deploy plan", "b-1": "Fix flaky test"},
	}
	if err := s.SaveSummaries("gemini:x", want); err != nil {
		t.Fatalf("SaveSummaries: %v", err)
	}
	got, err := s.LoadSummaries("gemini:x")
	if err != nil {
		t.Fatalf("LoadSummaries: %v", err)
	}
	if got.State != want.State || !got.UseSummaries || got.Labels["b-1"] != "Fix flaky test" {
		t.Errorf("got %+v", got)
	}

	n, err := s.ClearSummaries()
	if err != nil {
		t.Fatalf("ClearSummaries: %v", err)
	}
	if n != 1 {
		t.Errorf("cleared %d, want 1", n)
	}
	got, _ = s.LoadSummaries("gemini:x")
	if got.State != engine.SummarizerIdle || len(got.Labels) != 0 {
		t.Errorf("after clear = %+v", got)
	}
}

func TestSettings(t *testing.T) {
	s := testStore(t)

	st, err := s.LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if !st.TimelineActive || !st.AIModeEnabled || !st.Enabled(types.ProviderGemini) {
		t.Errorf("defaults = %+v", st)
	}

	st.AIModeEnabled = false
	st.Providers = map[types.Provider]bool{types.ProviderDeepSeek: false}
	if err := s.SaveSettings(st); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	got, err := s.LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if got.AIModeEnabled {
		t.Error("aiModeEnabled not persisted")
	}
	if got.Enabled(types.ProviderDeepSeek) {
		t.Error("deepseek should be disabled")
	}
	if !got.Enabled(types.ProviderChatGPT) {
		t.Error("chatgpt missing from stored map should stay enabled")
	}
}

func TestSettingsPartialKeys(t *testing.T) {
	s := testStore(t)
	// Written by an older client that only knew the global switch.
	if _, err := s.DB().Exec(`INSERT INTO settings (key, value) VALUES ('timelineActive', 'false')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	st, err := s.LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if st.TimelineActive {
		t.Error("timelineActive should be false")
	}
	if !st.AIModeEnabled {
		t.Error("aiModeEnabled should default to true")
	}
}

func TestSubscribeLocalWrites(t *testing.T) {
	s := testStore(t)
	ch, cancel := s.Subscribe()
	defer cancel()

	s.SaveStars("chatgpt:a", map[string]bool{"t1": true})
	s.SaveSettings(types.DefaultSettings())

	if c := recv(t, ch); c.Kind != types.ChangeStars || c.ConversationID != "chatgpt:a" {
		t.Errorf("first change = %+v", c)
	}
	if c := recv(t, ch); c.Kind != types.ChangeSettings {
		t.Errorf("second change = %+v", c)
	}
}

func TestSubscriberMayWriteFromHandler(t *testing.T) {
	s := testStore(t)
	ch, cancel := s.Subscribe()
	defer cancel()

	s.SaveStars("chatgpt:a", map[string]bool{"t1": true})
	recv(t, ch)
	// A handler writing back must not deadlock the publisher.
	if err := s.SaveStars("chatgpt:a", map[string]bool{}); err != nil {
		t.Fatalf("SaveStars: %v", err)
	}
	recv(t, ch)
}

func TestPollSeesOtherProcess(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "shared.db")
	a, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open a: %v", err)
	}
	defer a.Close()
	b, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open b: %v", err)
	}
	defer b.Close()

	ch, cancel := a.Subscribe()
	defer cancel()

	a.SaveStars("chatgpt:mine", map[string]bool{"x": true})
	if c := recv(t, ch); c.ConversationID != "chatgpt:mine" {
		t.Fatalf("local change = %+v", c)
	}

	b.SaveSummaries("gemini:other", engine.SummaryRecord{State: engine.SummarizerCompleted})
	if err := a.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	c := recv(t, ch)
	if c.Kind != types.ChangeSummaries || c.ConversationID != "gemini:other" {
		t.Errorf("remote change = %+v", c)
	}

	// Own writes are not published a second time.
	if err := a.Poll(context.Background()); err != nil {
		t.Fatalf("Poll: %v", err)
	}
	select {
	case c := <-ch:
		t.Errorf("unexpected change %+v", c)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatch(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "watched.db")
	a, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open a: %v", err)
	}
	defer a.Close()
	b, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open b: %v", err)
	}
	defer b.Close()

	ch, cancel := a.Subscribe()
	defer cancel()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Watch(ctx, 10*time.Millisecond) }()

	// Give the watcher time to read its first data_version.
	time.Sleep(50 * time.Millisecond)
	st := types.DefaultSettings()
	st.TimelineActive = false
	if err := b.SaveSettings(st); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	if c := recv(t, ch); c.Kind != types.ChangeSettings {
		t.Errorf("change = %+v", c)
	}

	stop()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	s := testStore(t)
	ch, cancel := s.Subscribe()
	cancel()
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
}

func TestSummaryCache(t *testing.T) {
	s := testStore(t)
	got, err := s.CachedSummary("abc", "llama3.2")
	if err != nil || got != "" {
		t.Fatalf("empty cache = %q, %v", got, err)
	}
	if err := s.PutSummary("abc", "llama3.2", "First"); err != nil {
		t.Fatalf("PutSummary: %v", err)
	}
	if err := s.PutSummary("abc", "llama3.2", "Second"); err != nil {
		t.Fatalf("PutSummary: %v", err)
	}
	if got, _ := s.CachedSummary("abc", "llama3.2"); got != "Second" {
		t.Errorf("cached = %q, want Second", got)
	}
	if got, _ := s.CachedSummary("abc", "other"); got != "" {
		t.Errorf("other model = %q, want empty", got)
	}
}

func TestConversations(t *testing.T) {
	s := testStore(t)
	base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	older := types.Conversation{
		Route:        types.Route{Provider: types.ProviderChatGPT, ConversationID: "a", URL: "https://chatgpt.com/c/a"},
		Title:        "Deploy",
		LastAccessed: base,
	}
	newer := types.Conversation{
		Route:        types.Route{Provider: types.ProviderGemini, ConversationID: "b", URL: "https://gemini.google.com/app/b"},
		Title:        "Recipes",
		LastAccessed: base.Add(time.Hour),
	}
	if err := s.RecordConversation(older, 4); err != nil {
		t.Fatalf("RecordConversation: %v", err)
	}
	if err := s.RecordConversation(newer, 2); err != nil {
		t.Fatalf("RecordConversation: %v", err)
	}
	s.SaveStars("chatgpt:a", map[string]bool{"x": true, "y": true})

	// Re-recording without a title keeps the old one.
	older.Title = ""
	older.LastAccessed = base.Add(2 * time.Hour)
	if err := s.RecordConversation(older, 6); err != nil {
		t.Fatalf("RecordConversation: %v", err)
	}

	list, err := s.ListConversations(0)
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(list))
	}
	first := list[0]
	if first.ConversationID != "a" || first.Title != "Deploy" || first.MessageCount != 6 || first.Starred != 2 {
		t.Errorf("first = %+v", first)
	}
	if list[1].Provider != types.ProviderGemini {
		t.Errorf("second provider = %s", list[1].Provider)
	}

	limited, _ := s.ListConversations(1)
	if len(limited) != 1 {
		t.Errorf("limit 1 returned %d", len(limited))
	}
}
