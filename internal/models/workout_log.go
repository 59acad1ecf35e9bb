package models

import (
	"time"

	"github.com/google/uuid"
)

// LoggedSet is a single recorded set.
type LoggedSet struct {
	Weight    float64   `json:"weight"`
	Reps      int       `json:"reps"`
	Timestamp time.Time `json:"timestamp"`
}

// CompletedExercise holds the sets logged for one exercise, keyed by exercise name.
type CompletedExercise struct {
	Name string      `json:"name"`
	Sets []LoggedSet `json:"sets"`
}

// WorkoutLog is a finished session handed to persistence.
type WorkoutLog struct {
	ID           uuid.UUID           `json:"id"`
	UserID       int                 `json:"user_id"`
	RoutineID    uuid.UUID           `json:"routine_id"`
	RoutineName  string              `json:"routine_name"`
	StartTime    time.Time           `json:"start_time"`
	EndTime      time.Time           `json:"end_time"`
	Exercises    []CompletedExercise `json:"exercises"`
	MuscleGroups map[string]string   `json:"muscle_groups,omitempty"`
}

// TotalSets returns the number of sets across all exercises.
func (w WorkoutLog) TotalSets() int {
	n := 0
	for _, ex := range w.Exercises {
		n += len(ex.Sets)
	}
	return n
}

// Volume returns the summed weight x reps across all sets.
func (w WorkoutLog) Volume() float64 {
	var v float64
	for _, ex := range w.Exercises {
		for _, s := range ex.Sets {
			v += s.Weight * float64(s.Reps)
		}
	}
	return v
}
