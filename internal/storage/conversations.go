package storage

import (
	"fmt"
	"time"

	"github.com/lotas/chatnav/internal/types"
)

// ConversationSummary is a conversation the timeline has been attached to.
type ConversationSummary struct {
	types.Conversation
	MessageCount int
	Starred      int
	Summarized   bool
}

// RecordConversation remembers that a conversation was opened.
func (s *Store) RecordConversation(c types.Conversation, messages int) error {
	seen := c.LastAccessed
	if seen.IsZero() {
		seen = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO conversations (key, provider, conversation_id, url, title, message_count, last_seen_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
		   url = excluded.url,
		   title = CASE WHEN excluded.title = '' THEN conversations.title ELSE excluded.title END,
		   message_count = excluded.message_count,
		   last_seen_at = excluded.last_seen_at`,
		c.StoreKey(), string(c.Provider), c.ConversationID, c.URL, c.Title, messages, seen.UTC(),
	)
	if err != nil {
		return fmt.Errorf("record conversation: %w", err)
	}
	return nil
}

// ListConversations returns known conversations, most recently seen first.
// limit <= 0 returns all of them.
func (s *Store) ListConversations(limit int) ([]ConversationSummary, error) {
	q := `SELECT c.provider, c.conversation_id, c.url, c.title, c.message_count, c.last_seen_at,
	             (SELECT COUNT(*) FROM stars st WHERE st.conversation_id = c.key),
	             EXISTS (SELECT 1 FROM summaries su WHERE su.conversation_id = c.key AND su.labels != '{}')
	      FROM conversations c
	      ORDER BY c.last_seen_at DESC, c.key`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var result []ConversationSummary
	for rows.Next() {
		var c ConversationSummary
		var provider string
		if err := rows.Scan(&provider, &c.ConversationID, &c.URL, &c.Title, &c.MessageCount,
			&c.LastAccessed, &c.Starred, &c.Summarized); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.Provider = types.Provider(provider)
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return result, nil
}
