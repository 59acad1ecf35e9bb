package coach

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/claude/heytrainer/internal/models"
	"github.com/claude/heytrainer/internal/session"
	"github.com/claude/heytrainer/internal/speech"
	"github.com/claude/heytrainer/internal/voice"
	"github.com/google/uuid"
)

type memStore struct {
	mu       sync.Mutex
	routines map[uuid.UUID]models.Routine
	phrases  map[int][]string
}

func (m *memStore) GetRoutine(_ context.Context, id uuid.UUID, userID int) (*models.Routine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routines[id]
	if !ok || r.UserID != userID {
		return nil, errors.New("not found")
	}
	return &r, nil
}

func (m *memStore) ListTriggerPhrases(_ context.Context, userID int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.phrases[userID]...), nil
}

type memPersister struct {
	mu   sync.Mutex
	logs []models.WorkoutLog
}

func (p *memPersister) SaveWorkoutLog(_ context.Context, wl models.WorkoutLog) (uuid.UUID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logs = append(p.logs, wl)
	return uuid.New(), nil
}

func (p *memPersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.logs)
}

type chanSink chan speech.Event

func (c chanSink) Send(_ context.Context, ev speech.Event) error {
	c <- ev
	return nil
}

func newRegistry(t *testing.T) (*Registry, *memStore, *memPersister, uuid.UUID) {
	t.Helper()
	routineID := uuid.New()
	store := &memStore{
		routines: map[uuid.UUID]models.Routine{
			routineID: {
				ID:     routineID,
				UserID: 1,
				Name:   "Push",
				Exercises: []models.Exercise{
					{Name: "Bench Press", TargetSets: 1, TargetReps: 5, MuscleGroup: "chest"},
					{Name: "Dips", TargetSets: 1, TargetReps: 10, MuscleGroup: "triceps"},
				},
			},
		},
		phrases: map[int][]string{},
	}
	p := &memPersister{}
	r := NewRegistry(store, p, Options{VoiceEnabled: true},
		nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(func() { r.Close(context.Background()) })
	return r, store, p, routineID
}

// TestStartAndGet verifies sessions start from stored routines and are scoped to their user.
func TestStartAndGet(t *testing.T) {
	r, _, _, routineID := newRegistry(t)
	ctx := context.Background()

	s, err := r.Start(ctx, 1, routineID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if s.Engine.State() != session.StateInProgress {
		t.Errorf("state = %s, want in_progress", s.Engine.State())
	}
	if _, err := r.Get(s.ID, 1); err != nil {
		t.Errorf("Get own session: %v", err)
	}
	if _, err := r.Get(s.ID, 2); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get other user's session err = %v, want ErrNotFound", err)
	}
	if _, err := r.Start(ctx, 2, routineID); err == nil {
		t.Error("started a session on another user's routine")
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

// TestVoiceReachesClients verifies a voice command logs a set and its speech reaches attached clients.
func TestVoiceReachesClients(t *testing.T) {
	r, _, _, routineID := newRegistry(t)
	ctx := context.Background()
	s, err := r.Start(ctx, 1, routineID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	events := make(chanSink, 16)
	detach := s.Events.Attach(events)
	defer detach()

	if got := s.Transcript(ctx, "hey trainer 185 for 5"); got != voice.OutcomeLogged && got != voice.OutcomeFinished {
		t.Fatalf("outcome = %s", got)
	}

	deadline := time.After(2 * time.Second)
	var sawAck, sawSpeak bool
	for !sawAck || !sawSpeak {
		select {
		case ev := <-events:
			switch {
			case ev.Type == speech.EventAck:
				sawAck = true
			case ev.Type == speech.EventSpeak && ev.Text == "Logged 185 pounds for 5 reps":
				sawSpeak = true
			}
		case <-deadline:
			t.Fatalf("ack=%v speak=%v before timeout", sawAck, sawSpeak)
		}
	}
}

// TestFinishPersistsAndRemoves verifies finishing saves the log and drops the session.
func TestFinishPersistsAndRemoves(t *testing.T) {
	r, _, p, routineID := newRegistry(t)
	ctx := context.Background()
	s, err := r.Start(ctx, 1, routineID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := s.LogSet(ctx, 200, 5); err != nil {
		t.Fatalf("LogSet: %v", err)
	}

	wl, err := r.Finish(ctx, s.ID, 1, true)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if wl.TotalSets() != 1 || wl.UserID != 1 {
		t.Errorf("log = %+v", wl)
	}
	if p.count() != 1 {
		t.Errorf("persisted = %d, want 1", p.count())
	}
	if _, err := r.Get(s.ID, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after finish err = %v, want ErrNotFound", err)
	}
}

// TestFinishAfterLastSet verifies a session finished by its last set is removed without a second save.
func TestFinishAfterLastSet(t *testing.T) {
	r, _, p, routineID := newRegistry(t)
	ctx := context.Background()
	s, err := r.Start(ctx, 1, routineID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.LogSet(ctx, 200, 5)
	res, err := s.LogSet(ctx, 0, 10)
	if err != nil || !res.Finished {
		t.Fatalf("final LogSet = %+v, %v", res, err)
	}

	wl, err := r.Finish(ctx, s.ID, 1, true)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if wl.ID == uuid.Nil || wl.TotalSets() != 2 {
		t.Errorf("log = %+v", wl)
	}
	if p.count() != 1 {
		t.Errorf("persisted = %d, want 1", p.count())
	}
}

// TestStartDropsFinishedSessions verifies finished sessions do not pile up.
func TestStartDropsFinishedSessions(t *testing.T) {
	r, _, _, routineID := newRegistry(t)
	ctx := context.Background()
	s, _ := r.Start(ctx, 1, routineID)
	s.LogSet(ctx, 100, 5)
	s.LogSet(ctx, 0, 10)

	if _, err := r.Start(ctx, 1, routineID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

// TestReloadTriggerPhrases verifies edited phrases reach live sessions.
func TestReloadTriggerPhrases(t *testing.T) {
	r, store, _, routineID := newRegistry(t)
	ctx := context.Background()
	s, _ := r.Start(ctx, 1, routineID)

	if got := s.Transcript(ctx, "yo coach 100 for 5"); got != voice.OutcomeNoTrigger {
		t.Fatalf("before reload = %s, want no_trigger", got)
	}
	store.mu.Lock()
	store.phrases[1] = []string{"yo coach"}
	store.mu.Unlock()
	if err := r.ReloadTriggerPhrases(ctx, 1); err != nil {
		t.Fatalf("ReloadTriggerPhrases: %v", err)
	}
	s.Transcript(ctx, "")
	if got := s.Transcript(ctx, "yo coach 100 for 5"); got != voice.OutcomeLogged {
		t.Errorf("after reload = %s, want logged", got)
	}
}

// TestFinishAllSavesLiveSessions verifies shutdown saves sessions that have
// sets, skips empty ones and leaves no session behind.
func TestFinishAllSavesLiveSessions(t *testing.T) {
	r, _, p, routineID := newRegistry(t)
	ctx := context.Background()

	withSets, err := r.Start(ctx, 1, routineID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := withSets.LogSet(ctx, 200, 5); err != nil {
		t.Fatalf("LogSet: %v", err)
	}
	empty, err := r.StartRoutine(ctx, 1, models.Routine{
		Name:      "Pull",
		Exercises: []models.Exercise{{Name: "Pull Up", TargetSets: 3, TargetReps: 8}},
	})
	if err != nil {
		t.Fatalf("StartRoutine: %v", err)
	}

	if n := r.FinishAll(ctx); n != 1 {
		t.Errorf("FinishAll = %d, want 1", n)
	}
	if p.count() != 1 {
		t.Fatalf("persisted = %d, want 1", p.count())
	}
	if got := p.logs[0].TotalSets(); got != 1 {
		t.Errorf("saved sets = %d, want 1", got)
	}
	if withSets.Engine.State() != session.StateFinished || empty.Engine.State() != session.StateFinished {
		t.Errorf("states = %s, %s, want finished", withSets.Engine.State(), empty.Engine.State())
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

// TestAnnounceDroppedIsLogged verifies a lost announcement is logged at debug level.
func TestAnnounceDroppedIsLogged(t *testing.T) {
	var buf bytes.Buffer
	q := speech.NewQueue(speech.SpeakerFunc(func(context.Context, string) error { return nil }),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	q.Close()
	s := &Session{
		queue: q,
		log:   slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
	}

	s.announce(context.Background(), "Bench Press, set 1")

	out := buf.String()
	if !strings.Contains(out, "announcement dropped") || !strings.Contains(out, speech.ErrQueueClosed.Error()) {
		t.Errorf("log = %q, want dropped announcement with queue error", out)
	}
}
