package voice

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/claude/heytrainer/internal/models"
	"github.com/claude/heytrainer/internal/session"
	"github.com/claude/heytrainer/internal/speech"
	"github.com/google/uuid"
)

type spoken struct {
	mu    sync.Mutex
	texts []string
}

func (s *spoken) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return nil
}

func (s *spoken) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func (s *spoken) last() string {
	all := s.all()
	if len(all) == 0 {
		return ""
	}
	return all[len(all)-1]
}

type resetSignal chan struct{}

func (r resetSignal) ResetTranscript() { r <- struct{}{} }

type countingSaver struct {
	mu    sync.Mutex
	saved int
}

func (c *countingSaver) SaveWorkoutLog(context.Context, models.WorkoutLog) (uuid.UUID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved++
	return uuid.New(), nil
}

func (c *countingSaver) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.saved
}

func testEngine(t *testing.T, opts ...session.Option) *session.Engine {
	t.Helper()
	e, err := session.New(models.Routine{
		Name: "Upper",
		Exercises: []models.Exercise{
			{Name: "Bench Press", TargetSets: 2, TargetReps: 8},
			{Name: "Barbell Row", TargetSets: 2, TargetReps: 8},
		},
	}, append([]session.Option{session.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)...)
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	if err := e.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return e
}

func testDriver(t *testing.T, e Engine, opts ...DriverOption) (*Driver, *spoken) {
	t.Helper()
	sp := &spoken{}
	base := []DriverOption{
		WithSpeaker(sp),
		WithSilenceTimeout(0),
		WithDriverLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	d := NewDriver(e, append(base, opts...)...)
	t.Cleanup(d.Stop)
	return d, sp
}

// TestDriverLogsSet verifies a triggered set command is logged, acknowledged and spoken.
func TestDriverLogsSet(t *testing.T) {
	e := testEngine(t)
	var acks []Ack
	d, sp := testDriver(t, e, WithAckHandler(func(a Ack) { acks = append(acks, a) }))

	if got := d.OnTranscript(context.Background(), "okay hey trainer 180 for six"); got != OutcomeLogged {
		t.Fatalf("outcome = %s, want logged", got)
	}
	sets := e.SetsFor("Bench Press")
	if len(sets) != 1 || sets[0].Weight != 180 || sets[0].Reps != 6 {
		t.Errorf("sets = %+v, want one 180x6", sets)
	}
	if sp.last() != "Logged 180 pounds for 6 reps" {
		t.Errorf("spoke %q", sp.last())
	}
	if len(acks) != 1 || acks[0].Exercise != "Bench Press" || acks[0].SetNumber != 1 {
		t.Errorf("acks = %+v", acks)
	}
}

// TestDriverDedup feeds the same transcript twice, then again after an empty reset.
func TestDriverDedup(t *testing.T) {
	e := testEngine(t)
	d, _ := testDriver(t, e)
	ctx := context.Background()
	const text = "hey trainer 180 lbs 6 reps"

	if got := d.OnTranscript(ctx, text); got != OutcomeLogged {
		t.Fatalf("first = %s, want logged", got)
	}
	if got := d.OnTranscript(ctx, text); got != OutcomeDuplicate {
		t.Errorf("second = %s, want duplicate", got)
	}
	if n := len(e.SetsFor("Bench Press")); n != 1 {
		t.Fatalf("sets after duplicate = %d, want 1", n)
	}

	if got := d.OnTranscript(ctx, ""); got != OutcomeIgnored {
		t.Errorf("empty = %s, want ignored", got)
	}
	if got := d.OnTranscript(ctx, text); got != OutcomeLogged {
		t.Errorf("after reset = %s, want logged", got)
	}
	if n := len(e.SetsFor("Bench Press")); n != 2 {
		t.Errorf("sets after reset = %d, want 2", n)
	}
}

// TestDriverGrowingUtterance verifies a growing transcript fires once.
func TestDriverGrowingUtterance(t *testing.T) {
	e := testEngine(t)
	d, _ := testDriver(t, e)
	ctx := context.Background()

	steps := []struct {
		text string
		want Outcome
	}{
		{"hey", OutcomeNoTrigger},
		{"hey trainer", OutcomeIncomplete},
		{"hey trainer 180", OutcomeIncomplete},
		{"hey trainer 180 for 6", OutcomeLogged},
		{"hey trainer 180 for 6 reps", OutcomeDuplicate},
		{"hey trainer 180 for 6 reps thanks", OutcomeDuplicate},
	}
	for _, s := range steps {
		if got := d.OnTranscript(ctx, s.text); got != s.want {
			t.Errorf("OnTranscript(%q) = %s, want %s", s.text, got, s.want)
		}
	}
	if n := len(e.SetsFor("Bench Press")); n != 1 {
		t.Errorf("sets = %d, want 1", n)
	}
}

// TestDriverNoTrigger verifies numbers without a trigger phrase are ignored.
func TestDriverNoTrigger(t *testing.T) {
	e := testEngine(t)
	d, sp := testDriver(t, e)
	if got := d.OnTranscript(context.Background(), "180 for 6"); got != OutcomeNoTrigger {
		t.Errorf("outcome = %s, want no_trigger", got)
	}
	if len(e.SetsFor("Bench Press")) != 0 || len(sp.all()) != 0 {
		t.Error("untriggered transcript changed state")
	}
}

// TestDriverDisabled verifies a disabled driver takes no action.
func TestDriverDisabled(t *testing.T) {
	e := testEngine(t)
	d, _ := testDriver(t, e)
	d.SetEnabled(false)
	if got := d.OnTranscript(context.Background(), "hey trainer 180 for 6"); got != OutcomeIgnored {
		t.Errorf("outcome = %s, want ignored", got)
	}
	d.SetEnabled(true)
	if got := d.OnTranscript(context.Background(), "hey trainer 180 for 6"); got != OutcomeLogged {
		t.Errorf("outcome after enable = %s, want logged", got)
	}
	d.Stop()
	if d.Enabled() {
		t.Error("Enabled after Stop")
	}
	if got := d.OnTranscript(context.Background(), "hey trainer 100 for 5"); got != OutcomeIgnored {
		t.Errorf("outcome after Stop = %s, want ignored", got)
	}
}

// TestDriverNextExercise verifies advancing by voice happens once per transcript.
func TestDriverNextExercise(t *testing.T) {
	e := testEngine(t)
	d, sp := testDriver(t, e)
	ctx := context.Background()

	if got := d.OnTranscript(ctx, "hey trainer next exercise"); got != OutcomeAdvanced {
		t.Fatalf("outcome = %s, want advanced", got)
	}
	if got := d.OnTranscript(ctx, "hey trainer next exercise"); got != OutcomeDuplicate {
		t.Errorf("repeat = %s, want duplicate", got)
	}
	if _, idx := e.CurrentExercise(); idx != 1 {
		t.Errorf("current index = %d, want 1", idx)
	}
	if sp.last() != "Next exercise: Barbell Row" {
		t.Errorf("spoke %q", sp.last())
	}
}

// TestDriverSkipToEndSavesNothing verifies skipping past the last exercise
// with nothing logged finishes the workout without saving a log.
func TestDriverSkipToEndSavesNothing(t *testing.T) {
	saver := &countingSaver{}
	e := testEngine(t, session.WithPersister(saver))
	d, sp := testDriver(t, e)
	ctx := context.Background()

	if got := d.OnTranscript(ctx, "hey trainer next exercise"); got != OutcomeAdvanced {
		t.Fatalf("first = %s, want advanced", got)
	}
	d.OnTranscript(ctx, "")
	if got := d.OnTranscript(ctx, "hey trainer skip"); got != OutcomeFinished {
		t.Fatalf("skip on last exercise = %s, want finished", got)
	}
	if e.State() != session.StateFinished {
		t.Errorf("state = %s, want finished", e.State())
	}
	if sp.last() != speech.WorkoutComplete() {
		t.Errorf("last speech = %q", sp.last())
	}
	if n := saver.count(); n != 0 {
		t.Errorf("saved %d logs, want 0", n)
	}
}

// TestDriverNextSet verifies "next set" only re-announces the position.
func TestDriverNextSet(t *testing.T) {
	e := testEngine(t)
	d, sp := testDriver(t, e)
	ctx := context.Background()
	d.OnTranscript(ctx, "hey trainer 135 for 8")
	d.OnTranscript(ctx, "")

	if got := d.OnTranscript(ctx, "hey trainer next set"); got != OutcomeAnnounced {
		t.Fatalf("outcome = %s, want announced", got)
	}
	if sp.last() != "Bench Press, set 2" {
		t.Errorf("spoke %q", sp.last())
	}
	if n := len(e.SetsFor("Bench Press")); n != 1 {
		t.Errorf("sets = %d, want 1", n)
	}
}

// TestDriverFullWorkout logs a whole routine by voice.
func TestDriverFullWorkout(t *testing.T) {
	e := testEngine(t)
	d, sp := testDriver(t, e)
	ctx := context.Background()

	utterances := []struct {
		text string
		want Outcome
	}{
		{"hey trainer 135 for 8", OutcomeLogged},
		{"hey trainer 135 for 7", OutcomeLogged},
		{"hey trainer 95 pounds 10 reps", OutcomeLogged},
		{"hey trainer 95 pounds 9 reps", OutcomeFinished},
	}
	for _, u := range utterances {
		if got := d.OnTranscript(ctx, u.text); got != u.want {
			t.Errorf("OnTranscript(%q) = %s, want %s", u.text, got, u.want)
		}
		d.OnTranscript(ctx, "")
	}

	if e.State() != session.StateFinished {
		t.Errorf("state = %s, want finished", e.State())
	}
	if sp.last() != "Workout complete. Great job!" {
		t.Errorf("last speech = %q", sp.last())
	}
	var sawNext bool
	for _, s := range sp.all() {
		if s == "Next exercise: Barbell Row" {
			sawNext = true
		}
	}
	if !sawNext {
		t.Error("auto-advance was not announced")
	}

	if got := d.OnTranscript(ctx, "hey trainer 95 for 9"); got != OutcomeError {
		t.Errorf("after finish = %s, want error", got)
	}
}

// TestDriverSilenceResets verifies the silence window clears the transcript and dedup state.
func TestDriverSilenceResets(t *testing.T) {
	e := testEngine(t)
	resets := make(resetSignal, 1)
	d, _ := testDriver(t, e, WithSilenceTimeout(20*time.Millisecond), WithTranscriptResetter(resets))
	ctx := context.Background()
	const text = "hey trainer 180 for 6"

	if got := d.OnTranscript(ctx, text); got != OutcomeLogged {
		t.Fatalf("first = %s, want logged", got)
	}
	select {
	case <-resets:
	case <-time.After(2 * time.Second):
		t.Fatal("silence window never reset the transcript")
	}
	if got := d.OnTranscript(ctx, text); got != OutcomeLogged {
		t.Errorf("after silence = %s, want logged", got)
	}
}

// TestDriverCustomPhrase verifies a detector with user phrases is honoured.
func TestDriverCustomPhrase(t *testing.T) {
	e := testEngine(t)
	det := NewDetector(MergeTriggerPhrases([]string{"Yo Coach"}))
	d, _ := testDriver(t, e, WithDetector(det))
	if got := d.OnTranscript(context.Background(), "yo coach 225 for 5"); got != OutcomeLogged {
		t.Errorf("outcome = %s, want logged", got)
	}
}

// TestDriverAckHandlerUnlocked verifies the ack handler may call back into
// the driver and does not hold up other callers while it runs.
func TestDriverAckHandlerUnlocked(t *testing.T) {
	e := testEngine(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	var d *Driver
	d, _ = testDriver(t, e, WithAckHandler(func(Ack) {
		_ = d.Enabled()
		close(entered)
		<-release
	}))

	done := make(chan Outcome, 1)
	go func() { done <- d.OnTranscript(context.Background(), "hey trainer 135 for 8") }()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("ack handler never ran")
	}
	// The handler is still blocked; the driver must stay usable.
	stateDone := make(chan struct{})
	go func() {
		d.SetEnabled(true)
		close(stateDone)
	}()
	select {
	case <-stateDone:
	case <-time.After(2 * time.Second):
		t.Fatal("driver locked while the ack handler runs")
	}

	close(release)
	if got := <-done; got != OutcomeLogged {
		t.Errorf("outcome = %s, want logged", got)
	}
}
