package mcp

import (
	"context"
	"time"

	"github.com/claude/heytrainer/internal/coach"
	"github.com/claude/heytrainer/internal/models"
	"github.com/claude/heytrainer/internal/session"
	"github.com/claude/heytrainer/internal/storage"
	"github.com/google/uuid"
)

// DataSource abstracts the data layer for MCP tools. Both Local (database
// plus live sessions) and HTTPClient (remote via REST API) satisfy it.
type DataSource interface {
	QueryWorkoutLogs(ctx context.Context, start, end time.Time, userID int) ([]storage.WorkoutLogSummary, error)
	GetWorkoutLog(ctx context.Context, id uuid.UUID, userID int) (*models.WorkoutLog, error)
	QueryExerciseHistory(ctx context.Context, exercise string, userID, limit int) ([]storage.ExerciseSet, error)
	ListRoutines(ctx context.Context, userID int) ([]models.Routine, error)
	ListTriggerPhrases(ctx context.Context, userID int) ([]string, error)
	LiveSessions(ctx context.Context, userID int) ([]session.Snapshot, error)
	GetDataStats(ctx context.Context, userID int) (*storage.DataStats, error)
	GetTrainingSummary(ctx context.Context, start, end time.Time, bucket string, userID int) ([]storage.TrainingSummaryPeriod, error)
}

// Local serves MCP tools from the database and the in-process session registry.
type Local struct {
	*storage.DB
	Sessions *coach.Registry
}

// Compile-time check: Local satisfies DataSource.
var _ DataSource = Local{}

// LiveSessions returns snapshots of the user's running sessions.
func (l Local) LiveSessions(_ context.Context, userID int) ([]session.Snapshot, error) {
	out := []session.Snapshot{}
	if l.Sessions == nil {
		return out, nil
	}
	for _, s := range l.Sessions.List(userID) {
		out = append(out, s.Engine.Snapshot())
	}
	return out, nil
}
