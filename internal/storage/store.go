package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lotas/chatnav/internal/applog"
	"github.com/lotas/chatnav/internal/engine"
	"github.com/lotas/chatnav/internal/types"
)

// Store keeps stars, summary state and settings, and tells subscribers
// when any of them change, whether the write came from this process or
// from another one sharing the database file.
type Store struct {
	db  *sql.DB
	hub *hub

	mu   sync.Mutex
	last int64          // highest journal id already published
	mine map[int64]bool // journal ids written by this process
}

// Open opens the database at path and wraps it in a Store.
func Open(path string) (*Store, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already migrated database.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db, hub: newHub(), mine: make(map[int64]bool)}
	if err := db.QueryRow("SELECT COALESCE(MAX(id), 0) FROM changes").Scan(&s.last); err != nil {
		return nil, fmt.Errorf("read change journal: %w", err)
	}
	return s, nil
}

// DB exposes the underlying database.
func (s *Store) DB() *sql.DB { return s.db }

// Close stops every subscription and closes the database.
func (s *Store) Close() error {
	s.hub.close()
	return s.db.Close()
}

// Subscribe returns a channel of changes and a function that ends the
// subscription.
func (s *Store) Subscribe() (<-chan types.Change, func()) {
	return s.hub.subscribe()
}

// LoadStars returns the starred marker ids of a conversation.
func (s *Store) LoadStars(conversationID string) (map[string]bool, error) {
	rows, err := s.db.Query("SELECT marker_id FROM stars WHERE conversation_id = ?", conversationID)
	if err != nil {
		return nil, fmt.Errorf("query stars: %w", err)
	}
	defer rows.Close()

	stars := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan star: %w", err)
		}
		stars[id] = true
	}
	return stars, rows.Err()
}

// SaveStars replaces the starred set of a conversation.
func (s *Store) SaveStars(conversationID string, stars map[string]bool) error {
	ids := make([]string, 0, len(stars))
	for id, on := range stars {
		if on {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	return s.write(types.Change{Kind: types.ChangeStars, ConversationID: conversationID}, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM stars WHERE conversation_id = ?", conversationID); err != nil {
			return fmt.Errorf("clear stars: %w", err)
		}
		for _, id := range ids {
			if _, err := tx.Exec(
				"INSERT INTO stars (conversation_id, marker_id) VALUES (?, ?)",
				conversationID, id,
			); err != nil {
				return fmt.Errorf("insert star %q: %w", id, err)
			}
		}
		return nil
	})
}

// LoadSummaries returns the label state of a conversation. A conversation
// without a row is idle with no labels.
func (s *Store) LoadSummaries(conversationID string) (engine.SummaryRecord, error) {
	rec := engine.SummaryRecord{State: engine.SummarizerIdle}
	var state, labels string
	err := s.db.QueryRow(
		"SELECT state, use_summaries, labels FROM summaries WHERE conversation_id = ?",
		conversationID,
	).Scan(&state, &rec.UseSummaries, &labels)
	if err != nil {
		if err == sql.ErrNoRows {
			return rec, nil
		}
		return rec, fmt.Errorf("query summaries: %w", err)
	}
	rec.State = engine.SummarizerState(state)
	if err := json.Unmarshal([]byte(labels), &rec.Labels); err != nil {
		return rec, fmt.Errorf("decode summaries for %s: %w", conversationID, err)
	}
	return rec, nil
}

// SaveSummaries stores the label state of a conversation.
func (s *Store) SaveSummaries(conversationID string, rec engine.SummaryRecord) error {
	if rec.Labels == nil {
		rec.Labels = map[string]string{}
	}
	labels, err := json.Marshal(rec.Labels)
	if err != nil {
		return fmt.Errorf("encode summaries: %w", err)
	}
	return s.write(types.Change{Kind: types.ChangeSummaries, ConversationID: conversationID}, func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO summaries (conversation_id, state, use_summaries, labels, updated_at)
			 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
			 ON CONFLICT(conversation_id) DO UPDATE SET
			   state = excluded.state,
			   use_summaries = excluded.use_summaries,
			   labels = excluded.labels,
			   updated_at = CURRENT_TIMESTAMP`,
			conversationID, string(rec.State), rec.UseSummaries, string(labels),
		)
		if err != nil {
			return fmt.Errorf("upsert summaries: %w", err)
		}
		return nil
	})
}

// ClearSummaries drops stored labels for every conversation and returns
// how many were cleared.
func (s *Store) ClearSummaries() (int, error) {
	rows, err := s.db.Query("SELECT conversation_id FROM summaries")
	if err != nil {
		return 0, fmt.Errorf("query summaries: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan summaries: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("iterate summaries: %w", err)
	}

	for _, id := range ids {
		err := s.write(types.Change{Kind: types.ChangeSummaries, ConversationID: id}, func(tx *sql.Tx) error {
			_, err := tx.Exec("DELETE FROM summaries WHERE conversation_id = ?", id)
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("clear summaries for %s: %w", id, err)
		}
	}
	return len(ids), nil
}

// Settings keys, shared with the browser extension.
const (
	keyTimelineActive = "timelineActive"
	keyProviders      = "timelineProviders"
	keyAIMode         = "aiModeEnabled"
)

// LoadSettings returns the stored settings. Missing keys keep their
// defaults.
func (s *Store) LoadSettings() (types.Settings, error) {
	st := types.DefaultSettings()
	rows, err := s.db.Query("SELECT key, value FROM settings")
	if err != nil {
		return st, fmt.Errorf("query settings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return st, fmt.Errorf("scan setting: %w", err)
		}
		var target any
		switch key {
		case keyTimelineActive:
			target = &st.TimelineActive
		case keyAIMode:
			target = &st.AIModeEnabled
		case keyProviders:
			target = &st.Providers
		default:
			continue
		}
		if err := json.Unmarshal([]byte(value), target); err != nil {
			return types.DefaultSettings(), fmt.Errorf("decode setting %s: %w", key, err)
		}
	}
	if st.Providers == nil {
		st.Providers = types.DefaultSettings().Providers
	}
	return st, rows.Err()
}

// SaveSettings writes every settings key.
func (s *Store) SaveSettings(st types.Settings) error {
	values := map[string]any{
		keyTimelineActive: st.TimelineActive,
		keyProviders:      st.Providers,
		keyAIMode:         st.AIModeEnabled,
	}
	return s.write(types.Change{Kind: types.ChangeSettings}, func(tx *sql.Tx) error {
		for key, v := range values {
			raw, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encode setting %s: %w", key, err)
			}
			if _, err := tx.Exec(
				`INSERT INTO settings (key, value) VALUES (?, ?)
				 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
				key, string(raw),
			); err != nil {
				return fmt.Errorf("upsert setting %s: %w", key, err)
			}
		}
		return nil
	})
}

// write runs fn and journals c in one transaction, then notifies local
// subscribers.
func (s *Store) write(c types.Change, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	res, err := tx.Exec(
		"INSERT INTO changes (kind, conversation_id) VALUES (?, ?)",
		c.Kind.String(), c.ConversationID,
	)
	if err != nil {
		return fmt.Errorf("journal change: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("journal change id: %w", err)
	}
	// Marked before commit so a concurrent poll never republishes it.
	s.mu.Lock()
	s.mine[id] = true
	s.mu.Unlock()
	if err := tx.Commit(); err != nil {
		s.mu.Lock()
		delete(s.mine, id)
		s.mu.Unlock()
		return fmt.Errorf("commit transaction: %w", err)
	}
	s.hub.publish(c)
	return nil
}

// Watch polls for writes made by other processes until ctx ends. It checks
// PRAGMA data_version on a dedicated connection and reads the change
// journal only when the file changed.
func (s *Store) Watch(ctx context.Context, interval time.Duration) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("watch connection: %w", err)
	}
	defer conn.Close()

	var version int64
	if err := conn.QueryRowContext(ctx, "PRAGMA data_version").Scan(&version); err != nil {
		return fmt.Errorf("read data_version: %w", err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		var v int64
		if err := conn.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read data_version: %w", err)
		}
		if v == version {
			continue
		}
		version = v
		if err := s.poll(ctx, conn); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			applog.Error("store.watch", err)
		}
	}
}

// Poll publishes journal entries written by other processes since the last
// call.
func (s *Store) Poll(ctx context.Context) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("poll connection: %w", err)
	}
	defer conn.Close()
	return s.poll(ctx, conn)
}

func (s *Store) poll(ctx context.Context, conn *sql.Conn) error {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()

	rows, err := conn.QueryContext(ctx,
		"SELECT id, kind, conversation_id FROM changes WHERE id > ? ORDER BY id", last)
	if err != nil {
		return fmt.Errorf("query changes: %w", err)
	}
	defer rows.Close()

	var out []types.Change
	s.mu.Lock()
	for rows.Next() {
		var id int64
		var kind, conv string
		if err := rows.Scan(&id, &kind, &conv); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("scan change: %w", err)
		}
		if id > s.last {
			s.last = id
		}
		if s.mine[id] {
			delete(s.mine, id)
			continue
		}
		k, ok := parseKind(kind)
		if !ok {
			continue
		}
		out = append(out, types.Change{Kind: k, ConversationID: conv})
	}
	s.mu.Unlock()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate changes: %w", err)
	}

	for _, c := range out {
		s.hub.publish(c)
	}
	return nil
}

func parseKind(s string) (types.ChangeKind, bool) {
	for _, k := range []types.ChangeKind{types.ChangeStars, types.ChangeSummaries, types.ChangeSettings} {
		if k.String() == s {
			return k, true
		}
	}
	return 0, false
}
