package storage

import (
	"context"
	"fmt"
	"time"
)

// DataStats holds aggregate statistics about a user's logged training.
type DataStats struct {
	TotalWorkouts int64          `json:"total_workouts"`
	TotalSets     int64          `json:"total_sets"`
	TotalReps     int64          `json:"total_reps"`
	TotalVolume   float64        `json:"total_volume"`
	EarliestData  *time.Time     `json:"earliest_data"`
	LatestData    *time.Time     `json:"latest_data"`
	Exercises     []ExerciseStat `json:"exercises"`
}

// ExerciseStat holds summary stats for a single exercise.
type ExerciseStat struct {
	Name      string    `json:"name"`
	Workouts  int64     `json:"workouts"`
	Sets      int64     `json:"sets"`
	TopWeight float64   `json:"top_weight"`
	LastDone  time.Time `json:"last_done"`
}

// GetDataStats returns aggregate statistics for a user's workout logs.
func (db *DB) GetDataStats(ctx context.Context, userID int) (*DataStats, error) {
	stats := &DataStats{}

	err := db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), MIN(start_time), MAX(start_time) FROM workout_logs WHERE user_id = $1`, userID,
	).Scan(&stats.TotalWorkouts, &stats.EarliestData, &stats.LatestData)
	if err != nil {
		return nil, fmt.Errorf("counting workouts: %w", err)
	}

	err = db.Pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM(s.reps), 0), COALESCE(SUM(s.weight * s.reps), 0)
		 FROM workout_log_sets s
		 JOIN workout_logs l ON l.id = s.workout_log_id
		 WHERE l.user_id = $1`, userID,
	).Scan(&stats.TotalSets, &stats.TotalReps, &stats.TotalVolume)
	if err != nil {
		return nil, fmt.Errorf("counting sets: %w", err)
	}

	rows, err := db.Pool.Query(ctx,
		`SELECT s.exercise_name, COUNT(DISTINCT l.id), COUNT(*), MAX(s.weight), MAX(s.logged_at)
		 FROM workout_log_sets s
		 JOIN workout_logs l ON l.id = s.workout_log_id
		 WHERE l.user_id = $1
		 GROUP BY s.exercise_name
		 ORDER BY COUNT(*) DESC, s.exercise_name`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying exercise stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s ExerciseStat
		if err := rows.Scan(&s.Name, &s.Workouts, &s.Sets, &s.TopWeight, &s.LastDone); err != nil {
			return nil, fmt.Errorf("scanning exercise stat: %w", err)
		}
		stats.Exercises = append(stats.Exercises, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stats, nil
}
