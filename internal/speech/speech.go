// Package speech holds the text side of spoken feedback: the sentences the
// trainer says and the sinks that deliver them to clients.
package speech

import (
	"context"
	"fmt"
	"strconv"
)

// Speaker delivers one utterance. Implementations may return before the
// text has been spoken aloud.
type Speaker interface {
	Speak(ctx context.Context, text string) error
}

// SpeakerFunc adapts a function to Speaker.
type SpeakerFunc func(ctx context.Context, text string) error

// Speak calls f.
func (f SpeakerFunc) Speak(ctx context.Context, text string) error {
	return f(ctx, text)
}

// ExerciseSet announces the exercise and the set about to be performed.
func ExerciseSet(name string, set int) string {
	return fmt.Sprintf("%s, set %d", name, set)
}

// SetLogged confirms a logged set, e.g. "Logged 180 pounds for 6 reps".
func SetLogged(weight float64, reps int) string {
	return fmt.Sprintf("Logged %s pounds for %d reps", formatWeight(weight), reps)
}

// NextExercise announces the exercise the session moved to.
func NextExercise(name string) string {
	return "Next exercise: " + name
}

// WorkoutComplete is said when the session finishes.
func WorkoutComplete() string {
	return "Workout complete. Great job!"
}

func formatWeight(w float64) string {
	return strconv.FormatFloat(w, 'f', -1, 64)
}

// Announcer speaks the fixed trainer sentences through a Speaker.
type Announcer struct {
	speaker Speaker
}

// NewAnnouncer returns an Announcer over s.
func NewAnnouncer(s Speaker) *Announcer {
	return &Announcer{speaker: s}
}

func (a *Announcer) ExerciseSet(ctx context.Context, name string, set int) error {
	return a.speaker.Speak(ctx, ExerciseSet(name, set))
}

func (a *Announcer) SetLogged(ctx context.Context, weight float64, reps int) error {
	return a.speaker.Speak(ctx, SetLogged(weight, reps))
}

func (a *Announcer) NextExercise(ctx context.Context, name string) error {
	return a.speaker.Speak(ctx, NextExercise(name))
}

func (a *Announcer) WorkoutComplete(ctx context.Context) error {
	return a.speaker.Speak(ctx, WorkoutComplete())
}

// Speak passes text through unchanged.
func (a *Announcer) Speak(ctx context.Context, text string) error {
	return a.speaker.Speak(ctx, text)
}
