// Package outbox keeps workout logs whose end-of-session save failed, so
// they can be retried instead of lost.
package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/claude/heytrainer/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Entry is a queued workout log.
type Entry struct {
	Log       models.WorkoutLog `json:"log"`
	Attempts  int               `json:"attempts"`
	LastError string            `json:"last_error"`
	QueuedAt  time.Time         `json:"queued_at"`
}

// Store is a SQLite file holding pending workout logs.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the outbox database at dir/outbox.db.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating outbox dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, "outbox.db"))
	if err != nil {
		return nil, fmt.Errorf("opening outbox db: %w", err)
	}
	// One writer; SQLite serialises anyway.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS pending_logs (
		id         TEXT PRIMARY KEY,
		user_id    INTEGER NOT NULL,
		payload    TEXT NOT NULL,
		attempts   INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		queued_at  TIMESTAMP NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating outbox table: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Enqueue stores wl, which must carry an ID. Queuing the same ID again
// replaces the payload and keeps the attempt count.
func (s *Store) Enqueue(ctx context.Context, wl models.WorkoutLog, cause error) error {
	if wl.ID == uuid.Nil {
		return fmt.Errorf("enqueueing workout log: missing id")
	}
	payload, err := json.Marshal(wl)
	if err != nil {
		return fmt.Errorf("encoding workout log: %w", err)
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO pending_logs (id, user_id, payload, last_error, queued_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET payload = excluded.payload, last_error = excluded.last_error`,
		wl.ID.String(), wl.UserID, string(payload), msg, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("enqueueing workout log %s: %w", wl.ID, err)
	}
	return nil
}

// Pending lists queued logs, oldest first. A userID of 0 lists everyone's.
func (s *Store) Pending(ctx context.Context, userID int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT payload, attempts, last_error, queued_at FROM pending_logs
		 WHERE ? = 0 OR user_id = ?
		 ORDER BY queued_at, id`,
		userID, userID)
	if err != nil {
		return nil, fmt.Errorf("querying outbox: %w", err)
	}
	defer rows.Close()

	result := []Entry{}
	for rows.Next() {
		var e Entry
		var payload string
		if err := rows.Scan(&payload, &e.Attempts, &e.LastError, &e.QueuedAt); err != nil {
			return nil, fmt.Errorf("scanning outbox entry: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Log); err != nil {
			return nil, fmt.Errorf("decoding outbox entry: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Remove deletes a queued log.
func (s *Store) Remove(ctx context.Context, id uuid.UUID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM pending_logs WHERE id = ?`, id.String()); err != nil {
		return fmt.Errorf("removing outbox entry %s: %w", id, err)
	}
	return nil
}

// MarkFailed records a failed retry.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, cause error) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE pending_logs SET attempts = attempts + 1, last_error = ? WHERE id = ?`,
		cause.Error(), id.String())
	if err != nil {
		return fmt.Errorf("marking outbox entry %s: %w", id, err)
	}
	return nil
}

// Len returns the number of queued logs.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_logs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting outbox: %w", err)
	}
	return n, nil
}
