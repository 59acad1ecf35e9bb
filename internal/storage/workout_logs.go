package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/claude/heytrainer/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// setRow is one row of workout_log_sets.
type setRow struct {
	ExerciseNumber int
	ExerciseName   string
	SetNumber      int
	Weight         float64
	Reps           int
	LoggedAt       time.Time
}

// flattenSets turns a log into set rows. Exercise and set numbers are 1-based
// and follow the log's order.
func flattenSets(wl models.WorkoutLog) []setRow {
	var rows []setRow
	for i, ex := range wl.Exercises {
		for j, s := range ex.Sets {
			rows = append(rows, setRow{
				ExerciseNumber: i + 1,
				ExerciseName:   ex.Name,
				SetNumber:      j + 1,
				Weight:         s.Weight,
				Reps:           s.Reps,
				LoggedAt:       s.Timestamp,
			})
		}
	}
	return rows
}

// groupSets rebuilds completed exercises from rows ordered by exercise and
// set number.
func groupSets(rows []setRow) []models.CompletedExercise {
	out := []models.CompletedExercise{}
	last := -1
	for _, r := range rows {
		if r.ExerciseNumber != last {
			out = append(out, models.CompletedExercise{Name: r.ExerciseName})
			last = r.ExerciseNumber
		}
		cur := &out[len(out)-1]
		cur.Sets = append(cur.Sets, models.LoggedSet{Weight: r.Weight, Reps: r.Reps, Timestamp: r.LoggedAt})
	}
	return out
}

// insertSetsQuery builds a multi-row insert for rows of one workout log.
func insertSetsQuery(logID uuid.UUID, rows []setRow) (string, []any) {
	const cols = 7
	query := `INSERT INTO workout_log_sets (workout_log_id, exercise_number, exercise_name,
		set_number, weight, reps, logged_at) VALUES `
	args := make([]any, 0, len(rows)*cols)
	valueStrings := make([]string, 0, len(rows))

	for i, r := range rows {
		base := i * cols
		valueStrings = append(valueStrings, fmt.Sprintf(
			"($%d,$%d,$%d,$%d,$%d,$%d,$%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7,
		))
		args = append(args, logID, r.ExerciseNumber, r.ExerciseName, r.SetNumber, r.Weight, r.Reps, r.LoggedAt)
	}
	return query + strings.Join(valueStrings, ","), args
}

func nullUUID(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id
}

// SaveWorkoutLog stores a finished session with all its sets in one
// transaction and returns the new log ID. A log that already has an ID keeps
// it, so retried saves do not duplicate.
func (db *DB) SaveWorkoutLog(ctx context.Context, wl models.WorkoutLog) (uuid.UUID, error) {
	if wl.ID == uuid.Nil {
		wl.ID = uuid.New()
	}
	groups, err := json.Marshal(wl.MuscleGroups)
	if err != nil {
		return uuid.Nil, fmt.Errorf("encoding muscle groups: %w", err)
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`INSERT INTO workout_logs (id, user_id, routine_id, routine_name, start_time, end_time, muscle_groups)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		wl.ID, wl.UserID, nullUUID(wl.RoutineID), wl.RoutineName, wl.StartTime, wl.EndTime, groups)
	if err != nil {
		return uuid.Nil, fmt.Errorf("inserting workout log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return wl.ID, nil
	}
	if err := insertSets(ctx, tx, wl); err != nil {
		return uuid.Nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("committing workout log: %w", err)
	}
	return wl.ID, nil
}

// UpdateWorkoutLog replaces the times, exercises and sets of an existing log.
func (db *DB) UpdateWorkoutLog(ctx context.Context, wl models.WorkoutLog) error {
	groups, err := json.Marshal(wl.MuscleGroups)
	if err != nil {
		return fmt.Errorf("encoding muscle groups: %w", err)
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	tag, err := tx.Exec(ctx,
		`UPDATE workout_logs SET routine_name = $3, start_time = $4, end_time = $5, muscle_groups = $6
		 WHERE id = $1 AND user_id = $2`,
		wl.ID, wl.UserID, wl.RoutineName, wl.StartTime, wl.EndTime, groups)
	if err != nil {
		return fmt.Errorf("updating workout log: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("updating workout log %s: %w", wl.ID, ErrNotFound)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM workout_log_sets WHERE workout_log_id = $1`, wl.ID); err != nil {
		return fmt.Errorf("clearing workout log sets: %w", err)
	}
	if err := insertSets(ctx, tx, wl); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing workout log: %w", err)
	}
	return nil
}

func insertSets(ctx context.Context, tx pgx.Tx, wl models.WorkoutLog) error {
	rows := flattenSets(wl)
	if len(rows) == 0 {
		return nil
	}
	query, args := insertSetsQuery(wl.ID, rows)
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting workout log sets: %w", err)
	}
	return nil
}

// DeleteWorkoutLog removes a log and its sets.
func (db *DB) DeleteWorkoutLog(ctx context.Context, id uuid.UUID, userID int) error {
	tag, err := db.Pool.Exec(ctx,
		`DELETE FROM workout_logs WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting workout log %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting workout log %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetWorkoutLog returns one log with its sets.
func (db *DB) GetWorkoutLog(ctx context.Context, id uuid.UUID, userID int) (*models.WorkoutLog, error) {
	row := db.Pool.QueryRow(ctx,
		`SELECT id, user_id, routine_id, routine_name, start_time, end_time, muscle_groups
		 FROM workout_logs WHERE id = $1 AND user_id = $2`,
		id, userID)
	wl, err := scanWorkoutLog(row)
	if err != nil {
		return nil, fmt.Errorf("querying workout log %s: %w", id, notFound(err))
	}

	sets, err := db.Pool.Query(ctx,
		`SELECT exercise_number, exercise_name, set_number, weight, reps, logged_at
		 FROM workout_log_sets WHERE workout_log_id = $1
		 ORDER BY exercise_number, set_number`,
		id)
	if err != nil {
		return nil, fmt.Errorf("querying workout log sets: %w", err)
	}
	defer sets.Close()

	var rows []setRow
	for sets.Next() {
		var r setRow
		if err := sets.Scan(&r.ExerciseNumber, &r.ExerciseName, &r.SetNumber, &r.Weight, &r.Reps, &r.LoggedAt); err != nil {
			return nil, fmt.Errorf("scanning workout log set: %w", err)
		}
		rows = append(rows, r)
	}
	if err := sets.Err(); err != nil {
		return nil, err
	}
	wl.Exercises = groupSets(rows)
	return wl, nil
}

// WorkoutLogSummary is a log without its sets.
type WorkoutLogSummary struct {
	ID          uuid.UUID `json:"id"`
	RoutineID   uuid.UUID `json:"routine_id"`
	RoutineName string    `json:"routine_name"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	Exercises   int       `json:"exercises"`
	Sets        int       `json:"sets"`
	Volume      float64   `json:"volume"`
}

// QueryWorkoutLogs lists the user's logs that started in [start, end), newest first.
func (db *DB) QueryWorkoutLogs(ctx context.Context, start, end time.Time, userID int) ([]WorkoutLogSummary, error) {
	rows, err := db.Pool.Query(ctx,
		`SELECT l.id, l.routine_id, l.routine_name, l.start_time, l.end_time,
		 COUNT(DISTINCT s.exercise_number), COUNT(s.set_number), COALESCE(SUM(s.weight * s.reps), 0)
		 FROM workout_logs l
		 LEFT JOIN workout_log_sets s ON s.workout_log_id = l.id
		 WHERE l.user_id = $1 AND l.start_time >= $2 AND l.start_time < $3
		 GROUP BY l.id
		 ORDER BY l.start_time DESC`,
		userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("querying workout logs: %w", err)
	}
	defer rows.Close()

	result := []WorkoutLogSummary{}
	for rows.Next() {
		var s WorkoutLogSummary
		var routineID *uuid.UUID
		if err := rows.Scan(&s.ID, &routineID, &s.RoutineName, &s.StartTime, &s.EndTime,
			&s.Exercises, &s.Sets, &s.Volume); err != nil {
			return nil, fmt.Errorf("scanning workout log: %w", err)
		}
		if routineID != nil {
			s.RoutineID = *routineID
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// ExerciseSet is one logged set in an exercise's history.
type ExerciseSet struct {
	WorkoutLogID uuid.UUID `json:"workout_log_id"`
	SetNumber    int       `json:"set_number"`
	Weight       float64   `json:"weight"`
	Reps         int       `json:"reps"`
	LoggedAt     time.Time `json:"logged_at"`
}

// QueryExerciseHistory returns the most recent sets of an exercise, matched
// case-insensitively, newest first.
func (db *DB) QueryExerciseHistory(ctx context.Context, exercise string, userID, limit int) ([]ExerciseSet, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Pool.Query(ctx,
		`SELECT s.workout_log_id, s.set_number, s.weight, s.reps, s.logged_at
		 FROM workout_log_sets s
		 JOIN workout_logs l ON l.id = s.workout_log_id
		 WHERE l.user_id = $1 AND lower(s.exercise_name) = lower($2)
		 ORDER BY s.logged_at DESC
		 LIMIT $3`,
		userID, exercise, limit)
	if err != nil {
		return nil, fmt.Errorf("querying exercise history: %w", err)
	}
	defer rows.Close()

	result := []ExerciseSet{}
	for rows.Next() {
		var s ExerciseSet
		if err := rows.Scan(&s.WorkoutLogID, &s.SetNumber, &s.Weight, &s.Reps, &s.LoggedAt); err != nil {
			return nil, fmt.Errorf("scanning exercise set: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

func scanWorkoutLog(row pgx.Row) (*models.WorkoutLog, error) {
	var wl models.WorkoutLog
	var routineID *uuid.UUID
	var groups []byte
	if err := row.Scan(&wl.ID, &wl.UserID, &routineID, &wl.RoutineName, &wl.StartTime, &wl.EndTime, &groups); err != nil {
		return nil, err
	}
	if routineID != nil {
		wl.RoutineID = *routineID
	}
	if len(groups) > 0 {
		if err := json.Unmarshal(groups, &wl.MuscleGroups); err != nil {
			return nil, fmt.Errorf("decoding muscle groups: %w", err)
		}
	}
	return &wl, nil
}
