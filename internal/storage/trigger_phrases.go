package storage

import (
	"context"
	"fmt"
)

// ListTriggerPhrases returns the user's own trigger phrases, oldest first.
// The built-in phrases are not stored.
func (db *DB) ListTriggerPhrases(ctx context.Context, userID int) ([]string, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT phrase FROM trigger_phrases WHERE user_id = $1 ORDER BY created_at, phrase`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("querying trigger phrases: %w", err)
	}
	defer rows.Close()

	result := []string{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning trigger phrase: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// AddTriggerPhrase stores a normalised phrase. Adding an existing phrase is a no-op.
func (db *DB) AddTriggerPhrase(ctx context.Context, userID int, phrase string) error {
	_, err := db.Pool.Exec(ctx,
		`INSERT INTO trigger_phrases (user_id, phrase) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		userID, phrase)
	if err != nil {
		return fmt.Errorf("inserting trigger phrase: %w", err)
	}
	return nil
}

// RemoveTriggerPhrase deletes one of the user's phrases.
func (db *DB) RemoveTriggerPhrase(ctx context.Context, userID int, phrase string) error {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM trigger_phrases WHERE user_id = $1 AND phrase = $2`,
		userID, phrase)
	if err != nil {
		return fmt.Errorf("deleting trigger phrase: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting trigger phrase %q: %w", phrase, ErrNotFound)
	}
	return nil
}
