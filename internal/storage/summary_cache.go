package storage

import (
	"database/sql"
	"fmt"
)

// CachedSummary returns a label generated earlier for the same text hash
// and model, or "" if there is none.
func (s *Store) CachedSummary(hash, model string) (string, error) {
	var label string
	err := s.db.QueryRow(
		"SELECT label FROM summary_cache WHERE hash = ? AND model = ?",
		hash, model,
	).Scan(&label)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("get cached summary: %w", err)
	}
	return label, nil
}

// PutSummary inserts or updates a cached label.
func (s *Store) PutSummary(hash, model, label string) error {
	_, err := s.db.Exec(
		`INSERT INTO summary_cache (hash, model, label, summarized_at)
		 VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(hash, model) DO UPDATE SET
		   label = excluded.label,
		   summarized_at = CURRENT_TIMESTAMP`,
		hash, model, label,
	)
	if err != nil {
		return fmt.Errorf("upsert cached summary: %w", err)
	}
	return nil
}
