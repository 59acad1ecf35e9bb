package models

import "testing"

// TestWorkoutLogTotals sums sets and weight x reps across exercises.
func TestWorkoutLogTotals(t *testing.T) {
	wl := WorkoutLog{Exercises: []CompletedExercise{
		{Name: "Bench Press", Sets: []LoggedSet{{Weight: 185, Reps: 5}, {Weight: 185, Reps: 4}}},
		{Name: "Dips", Sets: []LoggedSet{{Weight: 0, Reps: 12}}},
	}}
	if got := wl.TotalSets(); got != 3 {
		t.Errorf("TotalSets = %d, want 3", got)
	}
	if got := wl.Volume(); got != 1665 {
		t.Errorf("Volume = %v, want 1665", got)
	}
	if got := (WorkoutLog{}).TotalSets(); got != 0 {
		t.Errorf("empty TotalSets = %d, want 0", got)
	}
}

// TestRoutineMuscleGroups skips exercises without a muscle group.
func TestRoutineMuscleGroups(t *testing.T) {
	r := Routine{Exercises: []Exercise{
		{Name: "Squat", MuscleGroup: "legs"},
		{Name: "Plank"},
	}}
	got := r.MuscleGroups()
	if len(got) != 1 || got["Squat"] != "legs" {
		t.Errorf("MuscleGroups = %v, want map[Squat:legs]", got)
	}
}
