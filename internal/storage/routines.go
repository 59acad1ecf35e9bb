package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/claude/heytrainer/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateRoutine stores a new routine, assigning its ID and timestamps.
func (db *DB) CreateRoutine(ctx context.Context, r models.Routine) (*models.Routine, error) {
	exercises, err := json.Marshal(r.Exercises)
	if err != nil {
		return nil, fmt.Errorf("encoding exercises: %w", err)
	}
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now

	_, err = db.Pool.Exec(ctx,
		`INSERT INTO routines (id, user_id, name, exercises, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		r.ID, r.UserID, r.Name, exercises, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting routine: %w", err)
	}
	return &r, nil
}

// GetRoutine returns one of the user's routines.
func (db *DB) GetRoutine(ctx context.Context, id uuid.UUID, userID int) (*models.Routine, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT id, user_id, name, exercises, created_at, updated_at
		 FROM routines WHERE id = $1 AND user_id = $2`,
		id, userID)
	r, err := scanRoutine(row)
	if err != nil {
		return nil, fmt.Errorf("querying routine %s: %w", id, notFound(err))
	}
	return r, nil
}

// ListRoutines returns the user's routines ordered by name.
func (db *DB) ListRoutines(ctx context.Context, userID int) ([]models.Routine, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT id, user_id, name, exercises, created_at, updated_at
		 FROM routines WHERE user_id = $1 ORDER BY name, created_at`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("querying routines: %w", err)
	}
	defer rows.Close()

	result := []models.Routine{}
	for rows.Next() {
		r, err := scanRoutine(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning routine: %w", err)
		}
		result = append(result, *r)
	}
	return result, rows.Err()
}

// UpdateRoutine replaces name and exercises. Running sessions keep the copy
// they started with.
func (db *DB) UpdateRoutine(ctx context.Context, r models.Routine) (*models.Routine, error) {
	exercises, err := json.Marshal(r.Exercises)
	if err != nil {
		return nil, fmt.Errorf("encoding exercises: %w", err)
	}
	row := db.Pool.QueryRow(ctx,
		`UPDATE routines SET name = $3, exercises = $4, updated_at = NOW()
		 WHERE id = $1 AND user_id = $2
		 RETURNING id, user_id, name, exercises, created_at, updated_at`,
		r.ID, r.UserID, r.Name, exercises)
	updated, err := scanRoutine(row)
	if err != nil {
		return nil, fmt.Errorf("updating routine %s: %w", r.ID, notFound(err))
	}
	return updated, nil
}

// DeleteRoutine removes a routine. Workout logs keep its name.
func (db *DB) DeleteRoutine(ctx context.Context, id uuid.UUID, userID int) error {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM routines WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting routine %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting routine %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanRoutine(row pgx.Row) (*models.Routine, error) {
	var r models.Routine
	var exercises []byte
	if err := row.Scan(&r.ID, &r.UserID, &r.Name, &exercises, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(exercises, &r.Exercises); err != nil {
		return nil, fmt.Errorf("decoding exercises: %w", err)
	}
	return &r, nil
}
