package models

import (
	"time"

	"github.com/google/uuid"
)

// Exercise is one entry of a routine with its targets.
type Exercise struct {
	Name        string `json:"name" yaml:"name"`
	TargetSets  int    `json:"target_sets" yaml:"target_sets"`
	TargetReps  int    `json:"target_reps" yaml:"target_reps"`
	MuscleGroup string `json:"muscle_group" yaml:"muscle_group"`
}

// Routine is the ordered list of exercises a session works through.
type Routine struct {
	ID        uuid.UUID  `json:"id" yaml:"id"`
	UserID    int        `json:"user_id" yaml:"-"`
	Name      string     `json:"name" yaml:"name"`
	Exercises []Exercise `json:"exercises" yaml:"exercises"`
	CreatedAt time.Time  `json:"created_at" yaml:"-"`
	UpdatedAt time.Time  `json:"updated_at" yaml:"-"`
}

// MuscleGroups maps exercise name to muscle group.
func (r Routine) MuscleGroups() map[string]string {
	m := make(map[string]string, len(r.Exercises))
	for _, ex := range r.Exercises {
		if ex.MuscleGroup != "" {
			m[ex.Name] = ex.MuscleGroup
		}
	}
	return m
}
