package storage

import (
	"context"
	"fmt"
	"time"
)

// ExercisePeriodSummary holds one exercise's work within a period.
type ExercisePeriodSummary struct {
	Name      string  `json:"name"`
	Sets      int     `json:"sets"`
	TotalReps int     `json:"total_reps"`
	TopWeight float64 `json:"top_weight"`
	Volume    float64 `json:"volume"`
}

// TrainingSummaryPeriod holds aggregated training for one time period.
type TrainingSummaryPeriod struct {
	Period            string                  `json:"period"`
	Sessions          int                     `json:"sessions"`
	Sets              int                     `json:"sets"`
	TotalReps         int                     `json:"total_reps"`
	Volume            float64                 `json:"volume"`
	AvgSetsPerSession float64                 `json:"avg_sets_per_session"`
	Exercises         []ExercisePeriodSummary `json:"exercises"`
}

// GetTrainingSummary returns sets, reps and volume per period, newest first,
// with a per-exercise breakdown.
func (db *DB) GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]TrainingSummaryPeriod, error) {
	interval := truncInterval(bucket)

	// Query 1: totals per period
	totalRows, err := db.Pool.Query(ctx,
		`SELECT date_trunc($1, l.start_time)::date AS period,
		        COUNT(DISTINCT l.id)::int,
		        COUNT(s.set_number)::int,
		        COALESCE(SUM(s.reps), 0)::int,
		        COALESCE(SUM(s.weight * s.reps), 0)
		 FROM workout_logs l
		 LEFT JOIN workout_log_sets s ON s.workout_log_id = l.id
		 WHERE l.start_time >= $2 AND l.start_time < $3 AND l.user_id = $4
		 GROUP BY period
		 ORDER BY period DESC`,
		interval, start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying training summary: %w", err)
	}
	defer totalRows.Close()

	periodMap := make(map[string]*TrainingSummaryPeriod)
	var periodOrder []string

	for totalRows.Next() {
		var periodTime time.Time
		var p TrainingSummaryPeriod
		if err := totalRows.Scan(&periodTime, &p.Sessions, &p.Sets, &p.TotalReps, &p.Volume); err != nil {
			return nil, fmt.Errorf("scanning training summary: %w", err)
		}
		if p.Sessions > 0 {
			p.AvgSetsPerSession = float64(p.Sets) / float64(p.Sessions)
		}
		p.Period = periodTime.Format("2006-01-02")
		periodMap[p.Period] = &p
		periodOrder = append(periodOrder, p.Period)
	}
	if err := totalRows.Err(); err != nil {
		return nil, err
	}

	// Query 2: per-exercise breakdown
	exerciseRows, err := db.Pool.Query(ctx,
		`SELECT date_trunc($1, l.start_time)::date AS period,
		        s.exercise_name,
		        COUNT(*)::int,
		        SUM(s.reps)::int,
		        MAX(s.weight),
		        SUM(s.weight * s.reps)
		 FROM workout_log_sets s
		 JOIN workout_logs l ON l.id = s.workout_log_id
		 WHERE l.start_time >= $2 AND l.start_time < $3 AND l.user_id = $4
		 GROUP BY period, s.exercise_name
		 ORDER BY period DESC, COUNT(*) DESC, s.exercise_name`,
		interval, start, end, userID)
	if err != nil {
		return nil, fmt.Errorf("querying exercise summary: %w", err)
	}
	defer exerciseRows.Close()

	for exerciseRows.Next() {
		var periodTime time.Time
		var es ExercisePeriodSummary
		if err := exerciseRows.Scan(&periodTime, &es.Name, &es.Sets, &es.TotalReps, &es.TopWeight, &es.Volume); err != nil {
			return nil, fmt.Errorf("scanning exercise summary: %w", err)
		}
		key := periodTime.Format("2006-01-02")
		if p, ok := periodMap[key]; ok {
			p.Exercises = append(p.Exercises, es)
		}
	}
	if err := exerciseRows.Err(); err != nil {
		return nil, err
	}

	result := make([]TrainingSummaryPeriod, 0, len(periodOrder))
	for _, key := range periodOrder {
		result = append(result, *periodMap[key])
	}
	return result, nil
}

// truncInterval converts bucket strings like "1 month" to the interval name
// that date_trunc expects (e.g. "month", "week").
func truncInterval(bucket string) string {
	switch bucket {
	case "1 day", "day":
		return "day"
	case "1 week", "week":
		return "week"
	default:
		return "month"
	}
}
