package session

import (
	"time"

	"github.com/claude/heytrainer/internal/models"
	"github.com/google/uuid"
)

// Snapshot is a consistent copy of the engine state.
type Snapshot struct {
	State            State                      `json:"state"`
	RoutineID        uuid.UUID                  `json:"routine_id"`
	RoutineName      string                     `json:"routine_name"`
	Exercises        []models.Exercise          `json:"exercises"`
	CurrentIndex     int                        `json:"current_index"`
	CurrentExercise  models.Exercise            `json:"current_exercise"`
	CurrentSetNumber int                        `json:"current_set_number"`
	Completed        []models.CompletedExercise `json:"completed"`
	RoutineComplete  bool                       `json:"routine_complete"`
	StartTime        time.Time                  `json:"start_time,omitzero"`
	EndTime          time.Time                  `json:"end_time,omitzero"`
	WorkoutLogID     uuid.UUID                  `json:"workout_log_id,omitzero"`
}

// Snapshot returns the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		State:            e.state,
		RoutineID:        e.routine.ID,
		RoutineName:      e.routine.Name,
		Exercises:        append([]models.Exercise(nil), e.routine.Exercises...),
		CurrentIndex:     e.current,
		CurrentExercise:  e.routine.Exercises[e.current],
		CurrentSetNumber: e.setNumber,
		Completed:        e.completedLocked(),
		RoutineComplete:  e.routineCompleteLocked(),
		StartTime:        e.startTime,
		EndTime:          e.endTime,
		WorkoutLogID:     e.logID,
	}
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// CurrentExercise returns the current exercise and its index.
func (e *Engine) CurrentExercise() (models.Exercise, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.routine.Exercises[e.current], e.current
}

// CurrentSetNumber returns the 1-based number of the next set to log.
func (e *Engine) CurrentSetNumber() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.setNumber
}

// SetsFor returns a copy of the sets logged for the named exercise.
func (e *Engine) SetsFor(name string) []models.LoggedSet {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]models.LoggedSet(nil), e.sets[name]...)
}

// Routine returns the routine the session runs.
func (e *Engine) Routine() models.Routine {
	return e.routine
}

// WorkoutLog returns the log as it stands, with the saved ID once persisted.
func (e *Engine) WorkoutLog() models.WorkoutLog {
	e.mu.Lock()
	defer e.mu.Unlock()
	wl := e.workoutLogLocked()
	wl.ID = e.logID
	return wl
}
