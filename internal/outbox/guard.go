package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/claude/heytrainer/internal/models"
	"github.com/claude/heytrainer/internal/observe"
	"github.com/google/uuid"
)

// Saver is the primary workout log store.
type Saver interface {
	SaveWorkoutLog(ctx context.Context, wl models.WorkoutLog) (uuid.UUID, error)
}

// Guard saves through the primary store and queues logs it could not save.
// It satisfies session.Persister.
type Guard struct {
	primary Saver
	store   *Store
	metrics *observe.Metrics
	log     *slog.Logger
}

// NewGuard returns a Guard. metrics may be nil.
func NewGuard(primary Saver, store *Store, metrics *observe.Metrics, log *slog.Logger) *Guard {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Guard{primary: primary, store: store, metrics: metrics, log: log}
}

// SaveWorkoutLog saves wl. On failure the log is queued and the save error
// is still returned, so callers can tell the user it was not stored yet.
func (g *Guard) SaveWorkoutLog(ctx context.Context, wl models.WorkoutLog) (uuid.UUID, error) {
	if wl.ID == uuid.Nil {
		wl.ID = uuid.New()
	}
	id, err := g.primary.SaveWorkoutLog(ctx, wl)
	if err == nil {
		return id, nil
	}

	g.metrics.PersistErrors.Add(ctx, 1)
	// Queue even if ctx is already cancelled.
	if qerr := g.store.Enqueue(context.WithoutCancel(ctx), wl, err); qerr != nil {
		g.log.Error("workout log lost", "id", wl.ID, "save_error", err, "queue_error", qerr)
		return uuid.Nil, errors.Join(err, qerr)
	}
	g.log.Warn("workout log queued for retry", "id", wl.ID, "routine", wl.RoutineName, "error", err)
	return uuid.Nil, fmt.Errorf("saving workout log %s (queued for retry): %w", wl.ID, err)
}

// RetryResult counts the outcome of a retry pass.
type RetryResult struct {
	Saved  int `json:"saved"`
	Failed int `json:"failed"`
}

// Retry tries to save every queued log of userID (0 for all users).
func (g *Guard) Retry(ctx context.Context, userID int) (RetryResult, error) {
	var res RetryResult
	pending, err := g.store.Pending(ctx, userID)
	if err != nil {
		return res, err
	}
	for _, e := range pending {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if _, err := g.primary.SaveWorkoutLog(ctx, e.Log); err != nil {
			res.Failed++
			g.metrics.RecordOutboxRetry(ctx, "error")
			if merr := g.store.MarkFailed(ctx, e.Log.ID, err); merr != nil {
				return res, merr
			}
			continue
		}
		res.Saved++
		g.metrics.RecordOutboxRetry(ctx, "ok")
		if err := g.store.Remove(ctx, e.Log.ID); err != nil {
			return res, err
		}
	}
	if len(pending) > 0 {
		g.log.Info("outbox retry", "saved", res.Saved, "failed", res.Failed)
	}
	return res, nil
}

// Pending lists queued logs of userID.
func (g *Guard) Pending(ctx context.Context, userID int) ([]Entry, error) {
	return g.store.Pending(ctx, userID)
}

// Run retries all queued logs every interval until ctx is done.
func (g *Guard) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := g.Retry(ctx, 0); err != nil && ctx.Err() == nil {
				g.log.Warn("outbox retry failed", "error", err)
			}
		}
	}
}
