// Package session implements the workout session state machine: current
// exercise, current set, the sets logged so far, and completion.
//
// Engine methods are safe for concurrent use. Voice commands and manual
// entry reach the same Engine from different goroutines, so every operation
// that reads and then writes session state runs under one lock.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/heytrainer/internal/models"
	"github.com/google/uuid"
)

var (
	// ErrInvalidState is returned for operations outside an in-progress session.
	ErrInvalidState = errors.New("invalid session state")

	// ErrNotFound is returned for unknown exercise indexes or set positions.
	ErrNotFound = errors.New("not found")

	// ErrInvalidSet is returned for negative weights or reps.
	ErrInvalidSet = errors.New("invalid set")

	// ErrInvalidRoutine is returned by New for routines a session cannot run.
	ErrInvalidRoutine = errors.New("invalid routine")

	// ErrPersist wraps persistence failures at session end. The session is
	// finished regardless.
	ErrPersist = errors.New("persisting workout log")
)

// State is the lifecycle state of a session.
type State int

const (
	StateNotStarted State = iota
	StateInProgress
	StateFinished
)

// String returns the wire name of the state.
func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateInProgress:
		return "in_progress"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateNotStarted; st <= StateFinished; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// Persister stores finished workout logs.
type Persister interface {
	SaveWorkoutLog(ctx context.Context, log models.WorkoutLog) (uuid.UUID, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithPersister sets where finished sessions are saved. Without one,
// finishing never persists.
func WithPersister(p Persister) Option {
	return func(e *Engine) { e.persister = p }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithUserID sets the owner recorded on the workout log.
func WithUserID(id int) Option {
	return func(e *Engine) { e.userID = id }
}

// Engine is one live execution of a routine.
type Engine struct {
	mu sync.Mutex

	routine   models.Routine
	state     State
	current   int
	setNumber int
	sets      map[string][]models.LoggedSet
	startTime time.Time
	endTime   time.Time
	logID     uuid.UUID

	userID    int
	persister Persister
	now       func() time.Time
	log       *slog.Logger
}

// New validates the routine and returns an engine in StateNotStarted.
func New(routine models.Routine, opts ...Option) (*Engine, error) {
	if err := ValidateRoutine(routine); err != nil {
		return nil, err
	}
	e := &Engine{
		routine:   routine,
		setNumber: 1,
		sets:      make(map[string][]models.LoggedSet),
		userID:    routine.UserID,
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// ValidateRoutine returns an ErrInvalidRoutine error when a session cannot run r.
func ValidateRoutine(r models.Routine) error {
	if len(r.Exercises) == 0 {
		return fmt.Errorf("%w: no exercises", ErrInvalidRoutine)
	}
	seen := make(map[string]bool, len(r.Exercises))
	for i, ex := range r.Exercises {
		if ex.Name == "" {
			return fmt.Errorf("%w: exercise %d has no name", ErrInvalidRoutine, i)
		}
		if seen[ex.Name] {
			return fmt.Errorf("%w: duplicate exercise %q", ErrInvalidRoutine, ex.Name)
		}
		seen[ex.Name] = true
		if ex.TargetSets < 1 || ex.TargetReps < 1 {
			return fmt.Errorf("%w: exercise %q needs positive target sets and reps", ErrInvalidRoutine, ex.Name)
		}
	}
	return nil
}

// Start moves the session to StateInProgress and records the start time.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateNotStarted {
		return fmt.Errorf("starting session in state %s: %w", e.state, ErrInvalidState)
	}
	e.state = StateInProgress
	e.startTime = e.now()
	e.current = 0
	e.setNumber = e.nextSetNumberLocked()
	e.log.Info("session started", "routine", e.routine.Name, "exercises", len(e.routine.Exercises))
	return nil
}

// LogResult describes what a LogSet call did.
type LogResult struct {
	Exercise         string             `json:"exercise"`
	Set              models.LoggedSet   `json:"set"`
	SetNumber        int                `json:"set_number"`
	Advanced         bool               `json:"advanced"`
	Finished         bool               `json:"finished"`
	CurrentExercise  string             `json:"current_exercise"`
	CurrentSetNumber int                `json:"current_set_number"`
	Log              *models.WorkoutLog `json:"log,omitempty"`
}

// LogSet records a set on the current exercise. When the exercise has reached
// its target sets, the same call advances to the next exercise or, on the
// last exercise, finishes the session and saves the log including this set.
//
// Logging past the target is allowed and takes the advance path again.
// A non-nil error with Finished set means the save failed, not the set.
func (e *Engine) LogSet(ctx context.Context, weight float64, reps int) (LogResult, error) {
	e.mu.Lock()

	if e.state != StateInProgress {
		state := e.state
		e.mu.Unlock()
		return LogResult{}, fmt.Errorf("logging set in state %s: %w", state, ErrInvalidState)
	}
	if err := validateSet(weight, reps); err != nil {
		e.mu.Unlock()
		return LogResult{}, err
	}

	ex := e.routine.Exercises[e.current]
	set := models.LoggedSet{Weight: weight, Reps: reps, Timestamp: e.now()}
	e.sets[ex.Name] = append(e.sets[ex.Name], set)
	count := len(e.sets[ex.Name])

	res := LogResult{Exercise: ex.Name, Set: set, SetNumber: count}
	e.log.Info("set logged", "exercise", ex.Name, "set", count, "weight", weight, "reps", reps)

	if count < ex.TargetSets {
		e.setNumber = count + 1
	} else {
		res.Finished = e.advanceLocked()
		res.Advanced = !res.Finished
	}
	res.CurrentExercise = e.routine.Exercises[e.current].Name
	res.CurrentSetNumber = e.setNumber

	if !res.Finished {
		e.mu.Unlock()
		return res, nil
	}

	wl := e.workoutLogLocked()
	e.mu.Unlock()

	res.Log = &wl
	err := e.persist(ctx, res.Log)
	return res, err
}

// UpdateSet replaces weight and reps of the set at position (0-based) on the
// current exercise.
func (e *Engine) UpdateSet(position int, weight float64, reps int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updateSetLocked(e.current, position, weight, reps)
}

// UpdateExerciseSet replaces weight and reps of a logged set in place. The
// set keeps its position and timestamp.
func (e *Engine) UpdateExerciseSet(index, position int, weight float64, reps int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updateSetLocked(index, position, weight, reps)
}

func (e *Engine) updateSetLocked(index, position int, weight float64, reps int) error {
	sets, err := e.setsAtLocked(index, position)
	if err != nil {
		return err
	}
	if err := validateSet(weight, reps); err != nil {
		return err
	}
	sets[position].Weight = weight
	sets[position].Reps = reps
	e.log.Info("set updated", "exercise", e.routine.Exercises[index].Name, "position", position, "weight", weight, "reps", reps)
	return nil
}

// RemoveSet deletes a logged set. An exercise left with no sets loses its
// completed entry; the current set number is recomputed when it is the
// current exercise.
func (e *Engine) RemoveSet(index, position int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sets, err := e.setsAtLocked(index, position)
	if err != nil {
		return err
	}
	name := e.routine.Exercises[index].Name
	sets = append(sets[:position], sets[position+1:]...)
	if len(sets) == 0 {
		delete(e.sets, name)
	} else {
		e.sets[name] = sets
	}
	if index == e.current {
		e.setNumber = e.nextSetNumberLocked()
	}
	e.log.Info("set removed", "exercise", name, "position", position)
	return nil
}

func (e *Engine) setsAtLocked(index, position int) ([]models.LoggedSet, error) {
	if e.state != StateInProgress {
		return nil, fmt.Errorf("editing set in state %s: %w", e.state, ErrInvalidState)
	}
	if index < 0 || index >= len(e.routine.Exercises) {
		return nil, fmt.Errorf("exercise %d: %w", index, ErrNotFound)
	}
	sets := e.sets[e.routine.Exercises[index].Name]
	if position < 0 || position >= len(sets) {
		return nil, fmt.Errorf("set %d of exercise %d: %w", position, index, ErrNotFound)
	}
	return sets, nil
}

// JumpToExercise makes index the current exercise, complete or not.
func (e *Engine) JumpToExercise(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StateInProgress {
		return fmt.Errorf("jumping in state %s: %w", e.state, ErrInvalidState)
	}
	if index < 0 || index >= len(e.routine.Exercises) {
		return fmt.Errorf("exercise %d: %w", index, ErrNotFound)
	}
	e.current = index
	e.setNumber = e.nextSetNumberLocked()
	return nil
}

// AdvanceResult describes what an AdvanceExercise call did.
type AdvanceResult struct {
	Finished         bool               `json:"finished"`
	CurrentIndex     int                `json:"current_index"`
	CurrentExercise  string             `json:"current_exercise"`
	CurrentSetNumber int                `json:"current_set_number"`
	Log              *models.WorkoutLog `json:"log,omitempty"`
}

// AdvanceExercise moves to the next exercise. On the last exercise it
// finishes the session and saves the log, unless no set was logged.
func (e *Engine) AdvanceExercise(ctx context.Context) (AdvanceResult, error) {
	e.mu.Lock()

	if e.state != StateInProgress {
		state := e.state
		e.mu.Unlock()
		return AdvanceResult{}, fmt.Errorf("advancing in state %s: %w", state, ErrInvalidState)
	}

	res := AdvanceResult{Finished: e.advanceLocked()}
	res.CurrentIndex = e.current
	res.CurrentExercise = e.routine.Exercises[e.current].Name
	res.CurrentSetNumber = e.setNumber
	if !res.Finished {
		e.mu.Unlock()
		return res, nil
	}

	wl := e.workoutLogLocked()
	e.mu.Unlock()

	res.Log = &wl
	if wl.TotalSets() == 0 {
		return res, nil
	}
	err := e.persist(ctx, res.Log)
	return res, err
}

// advanceLocked moves to the next exercise or finishes on the last one.
// It reports whether the session finished.
func (e *Engine) advanceLocked() bool {
	if e.current == len(e.routine.Exercises)-1 {
		e.state = StateFinished
		e.endTime = e.now()
		e.log.Info("session complete", "routine", e.routine.Name, "sets", e.totalSetsLocked())
		return true
	}
	e.current++
	e.setNumber = e.nextSetNumberLocked()
	return false
}

// IsRoutineComplete reports whether every exercise has reached its target sets.
func (e *Engine) IsRoutineComplete() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.routineCompleteLocked()
}

func (e *Engine) routineCompleteLocked() bool {
	for _, ex := range e.routine.Exercises {
		if len(e.sets[ex.Name]) < ex.TargetSets {
			return false
		}
	}
	return true
}

// Finish ends the session. When persist is set and at least one set was
// logged, the workout log is saved; abandoning an empty session is not an
// error.
func (e *Engine) Finish(ctx context.Context, persist bool) (*models.WorkoutLog, error) {
	e.mu.Lock()

	if e.state != StateInProgress {
		state := e.state
		e.mu.Unlock()
		return nil, fmt.Errorf("finishing in state %s: %w", state, ErrInvalidState)
	}
	e.state = StateFinished
	e.endTime = e.now()
	wl := e.workoutLogLocked()
	e.mu.Unlock()

	e.log.Info("session finished", "routine", e.routine.Name, "sets", wl.TotalSets(), "persist", persist)
	if !persist || wl.TotalSets() == 0 {
		return &wl, nil
	}
	return &wl, e.persist(ctx, &wl)
}

func (e *Engine) persist(ctx context.Context, wl *models.WorkoutLog) error {
	if e.persister == nil {
		return nil
	}
	id, err := e.persister.SaveWorkoutLog(ctx, *wl)
	if err != nil {
		e.log.Error("saving workout log failed", "routine", wl.RoutineName, "error", err)
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	wl.ID = id

	e.mu.Lock()
	e.logID = id
	e.mu.Unlock()
	return nil
}

// workoutLogLocked builds the log in routine order, copying the sets.
func (e *Engine) workoutLogLocked() models.WorkoutLog {
	wl := models.WorkoutLog{
		UserID:       e.userID,
		RoutineID:    e.routine.ID,
		RoutineName:  e.routine.Name,
		StartTime:    e.startTime,
		EndTime:      e.endTime,
		Exercises:    e.completedLocked(),
		MuscleGroups: e.routine.MuscleGroups(),
	}
	if wl.EndTime.IsZero() {
		wl.EndTime = e.now()
	}
	return wl
}

func (e *Engine) completedLocked() []models.CompletedExercise {
	out := make([]models.CompletedExercise, 0, len(e.sets))
	for _, ex := range e.routine.Exercises {
		sets := e.sets[ex.Name]
		if len(sets) == 0 {
			continue
		}
		out = append(out, models.CompletedExercise{
			Name: ex.Name,
			Sets: append([]models.LoggedSet(nil), sets...),
		})
	}
	return out
}

func (e *Engine) nextSetNumberLocked() int {
	return len(e.sets[e.routine.Exercises[e.current].Name]) + 1
}

func (e *Engine) totalSetsLocked() int {
	n := 0
	for _, s := range e.sets {
		n += len(s)
	}
	return n
}

func validateSet(weight float64, reps int) error {
	if weight < 0 || reps < 0 {
		return fmt.Errorf("%w: weight %v, reps %d", ErrInvalidSet, weight, reps)
	}
	return nil
}
