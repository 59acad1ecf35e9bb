// Package coach runs live workout sessions: one session engine per workout,
// wired to a voice driver and to the clients listening for spoken feedback.
package coach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claude/heytrainer/internal/models"
	"github.com/claude/heytrainer/internal/observe"
	"github.com/claude/heytrainer/internal/session"
	"github.com/claude/heytrainer/internal/speech"
	"github.com/claude/heytrainer/internal/voice"
	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown sessions or sessions of another user.
var ErrNotFound = errors.New("session not found")

// Store loads what a session needs at start.
type Store interface {
	GetRoutine(ctx context.Context, id uuid.UUID, userID int) (*models.Routine, error)
	ListTriggerPhrases(ctx context.Context, userID int) ([]string, error)
}

// Options configures new sessions.
type Options struct {
	VoiceEnabled      bool
	SilenceTimeout    time.Duration
	PhoneticTriggers  bool
	PhoneticThreshold float64
}

// Session is one live workout.
type Session struct {
	ID        uuid.UUID `json:"id"`
	UserID    int       `json:"-"`
	StartedAt time.Time `json:"started_at"`

	Engine *session.Engine `json:"-"`
	Driver *voice.Driver   `json:"-"`
	Events *speech.Fanout  `json:"-"`

	queue   *speech.Queue
	metrics *observe.Metrics
	log     *slog.Logger
}

// LogSet records a manually entered set. It goes through the same engine
// call as voice commands.
func (s *Session) LogSet(ctx context.Context, weight float64, reps int) (session.LogResult, error) {
	res, err := s.Engine.LogSet(ctx, weight, reps)
	if err == nil || res.Finished {
		s.metrics.RecordSetLogged(ctx, observe.SourceManual)
	}
	return res, err
}

// Transcript feeds a transcript update to the voice driver.
func (s *Session) Transcript(ctx context.Context, text string) voice.Outcome {
	return s.Driver.OnTranscript(ctx, text)
}

// announce queues text for speech. A full or closed queue only loses the
// announcement.
func (s *Session) announce(ctx context.Context, text string) {
	if err := s.queue.Speak(ctx, text); err != nil {
		s.log.Debug("announcement dropped", "text", text, "error", err)
	}
}

func (s *Session) close() {
	s.Driver.Stop()
	s.queue.Close()
}

// Registry holds the live sessions.
type Registry struct {
	store     Store
	persister session.Persister
	opts      Options
	metrics   *observe.Metrics
	log       *slog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

// NewRegistry returns an empty registry. metrics may be nil.
func NewRegistry(store Store, persister session.Persister, opts Options, metrics *observe.Metrics, log *slog.Logger) *Registry {
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Registry{
		store:     store,
		persister: persister,
		opts:      opts,
		metrics:   metrics,
		log:       log,
		sessions:  make(map[uuid.UUID]*Session),
	}
}

// Start loads the user's routine and starts a session on it.
func (r *Registry) Start(ctx context.Context, userID int, routineID uuid.UUID) (*Session, error) {
	routine, err := r.store.GetRoutine(ctx, routineID, userID)
	if err != nil {
		return nil, fmt.Errorf("loading routine: %w", err)
	}
	return r.StartRoutine(ctx, userID, *routine)
}

// StartRoutine starts a session on routine. Finished sessions of the same
// user are dropped first.
func (r *Registry) StartRoutine(ctx context.Context, userID int, routine models.Routine) (*Session, error) {
	det, err := r.detector(ctx, userID)
	if err != nil {
		return nil, err
	}

	id := uuid.New()
	log := r.log.With("session", id, "user", userID)
	engine, err := session.New(routine,
		session.WithPersister(r.persister),
		session.WithLogger(log),
		session.WithUserID(userID),
	)
	if err != nil {
		return nil, err
	}

	events := speech.NewFanout(log)
	queue := speech.NewQueue(events, log)
	driver := voice.NewDriver(engine,
		voice.WithDetector(det),
		voice.WithSpeaker(queue),
		voice.WithTranscriptResetter(events),
		voice.WithSilenceTimeout(r.opts.SilenceTimeout),
		voice.WithAckHandler(func(a voice.Ack) {
			_ = events.Publish(context.Background(), speech.Event{Type: speech.EventAck, Text: a.Message, Data: a})
		}),
		voice.WithDriverLogger(log),
		voice.WithMetrics(r.metrics),
	)
	driver.SetEnabled(r.opts.VoiceEnabled)

	if err := engine.Start(); err != nil {
		driver.Stop()
		queue.Close()
		return nil, err
	}

	s := &Session{
		ID:        id,
		UserID:    userID,
		StartedAt: time.Now().UTC(),
		Engine:    engine,
		Driver:    driver,
		Events:    events,
		queue:     queue,
		metrics:   r.metrics,
		log:       log,
	}

	r.mu.Lock()
	for oldID, old := range r.sessions {
		if old.UserID == userID && old.Engine.State() == session.StateFinished {
			r.removeLocked(ctx, oldID)
		}
	}
	r.sessions[id] = s
	r.mu.Unlock()

	r.metrics.ActiveSessions.Add(ctx, 1)
	log.Info("workout session started", "routine", routine.Name)
	s.announce(ctx, speech.ExerciseSet(routine.Exercises[0].Name, 1))
	return s, nil
}

func (r *Registry) detector(ctx context.Context, userID int) (*voice.Detector, error) {
	custom, err := r.store.ListTriggerPhrases(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading trigger phrases: %w", err)
	}
	var opts []voice.DetectorOption
	if r.opts.PhoneticTriggers {
		opts = append(opts, voice.WithPhoneticFallback(r.opts.PhoneticThreshold))
	}
	return voice.NewDetector(voice.MergeTriggerPhrases(custom), opts...), nil
}

// Get returns the user's session with the given ID.
func (r *Registry) Get(id uuid.UUID, userID int) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok || s.UserID != userID {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return s, nil
}

// List returns the user's sessions.
func (r *Registry) List(userID int) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Session
	for _, s := range r.sessions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}

// Finish ends the session, saving it when persist is set, and removes it.
// A save failure still removes the session; the log is in the error path.
func (r *Registry) Finish(ctx context.Context, id uuid.UUID, userID int, persist bool) (*models.WorkoutLog, error) {
	s, err := r.Get(id, userID)
	if err != nil {
		return nil, err
	}
	if s.Engine.State() == session.StateFinished {
		// Finished by its last set; it was saved then.
		wl := s.Engine.WorkoutLog()
		r.Remove(ctx, id)
		return &wl, nil
	}
	wl, err := s.Engine.Finish(ctx, persist)
	if err != nil && !errors.Is(err, session.ErrPersist) {
		return nil, err
	}
	r.Remove(ctx, id)
	return wl, err
}

// Remove stops and forgets a session.
func (r *Registry) Remove(ctx context.Context, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(ctx, id)
}

func (r *Registry) removeLocked(ctx context.Context, id uuid.UUID) {
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessions, id)
	s.close()
	r.metrics.ActiveSessions.Add(ctx, -1)
}

// ReloadTriggerPhrases rebuilds the trigger detector of the user's live
// sessions after their phrases changed.
func (r *Registry) ReloadTriggerPhrases(ctx context.Context, userID int) error {
	det, err := r.detector(ctx, userID)
	if err != nil {
		return err
	}
	for _, s := range r.List(userID) {
		s.Driver.SetDetector(det)
	}
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// FinishAll finishes every session still in progress, saving the sets
// logged so far, and then stops all sessions. It returns the number of
// workout logs handed to the persister.
func (r *Registry) FinishAll(ctx context.Context) int {
	r.mu.RLock()
	live := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		live = append(live, s)
	}
	r.mu.RUnlock()

	saved := 0
	for _, s := range live {
		if s.Engine.State() != session.StateInProgress {
			continue
		}
		s.Driver.Stop()
		wl, err := s.Engine.Finish(ctx, true)
		switch {
		case err != nil:
			r.log.Error("saving live session failed", "session", s.ID, "user", s.UserID, "error", err)
		case wl.TotalSets() > 0:
			saved++
		}
	}
	r.Close(ctx)
	return saved
}

// Close stops every session.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.sessions {
		r.removeLocked(ctx, id)
	}
}
