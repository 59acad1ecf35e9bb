package voice

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/claude/heytrainer/internal/models"
	"github.com/claude/heytrainer/internal/observe"
	"github.com/claude/heytrainer/internal/session"
	"github.com/claude/heytrainer/internal/speech"
)

// DefaultSilenceTimeout is how long a transcript may go without growing
// before it is treated as the end of the utterance.
const DefaultSilenceTimeout = 3 * time.Second

// Engine is the part of the session engine the driver drives.
type Engine interface {
	LogSet(ctx context.Context, weight float64, reps int) (session.LogResult, error)
	AdvanceExercise(ctx context.Context) (session.AdvanceResult, error)
	CurrentExercise() (models.Exercise, int)
	CurrentSetNumber() int
}

// TranscriptResetter clears the live transcript at its source.
type TranscriptResetter interface {
	ResetTranscript()
}

// Outcome is what one transcript update led to.
type Outcome int

const (
	OutcomeIgnored    Outcome = iota // disabled, stopped or empty transcript
	OutcomeNoTrigger                 // no trigger phrase in the transcript
	OutcomeIncomplete                // triggered, but no usable command yet
	OutcomeDuplicate                 // command already handled for this transcript
	OutcomeLogged                    // a set was logged
	OutcomeAdvanced                  // moved to the next exercise
	OutcomeAnnounced                 // current exercise and set re-announced
	OutcomeFinished                  // the command finished the session
	OutcomeError                     // the engine rejected the command
)

var outcomeNames = [...]string{
	"ignored", "no_trigger", "incomplete", "duplicate", "logged",
	"advanced", "announced", "finished", "error",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Ack is the short-lived confirmation shown to the user after a voice
// command was carried out.
type Ack struct {
	Command   ParsedCommand `json:"command"`
	Exercise  string        `json:"exercise"`
	SetNumber int           `json:"set_number,omitempty"`
	Message   string        `json:"message"`
	Finished  bool          `json:"finished,omitempty"`
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithDetector sets the trigger detector. Defaults to the default phrases.
func WithDetector(det *Detector) DriverOption {
	return func(d *Driver) { d.detector = det }
}

// WithDeduplicator shares a deduplicator with other components.
func WithDeduplicator(dd *Deduplicator) DriverOption {
	return func(d *Driver) { d.dedup = dd }
}

// WithSpeaker sets where confirmations are spoken. The driver speaks while
// handling a transcript, so slow speakers should be wrapped in a speech.Queue.
func WithSpeaker(s speech.Speaker) DriverOption {
	return func(d *Driver) { d.speaker = s }
}

// WithTranscriptResetter sets who is told to clear the transcript when the
// silence window expires.
func WithTranscriptResetter(r TranscriptResetter) DriverOption {
	return func(d *Driver) { d.resetter = r }
}

// WithSilenceTimeout sets the silence window. Zero disables it.
func WithSilenceTimeout(t time.Duration) DriverOption {
	return func(d *Driver) { d.silence = t }
}

// WithAckHandler sets the acknowledgment callback. It runs on the caller of
// OnTranscript without the driver lock held.
func WithAckHandler(fn func(Ack)) DriverOption {
	return func(d *Driver) { d.onAck = fn }
}

// WithDriverLogger sets the logger.
func WithDriverLogger(log *slog.Logger) DriverOption {
	return func(d *Driver) { d.log = log }
}

// WithMetrics sets the metric instruments.
func WithMetrics(m *observe.Metrics) DriverOption {
	return func(d *Driver) { d.metrics = m }
}

// firedCommand remembers the last dispatched command of the current
// utterance, so growth of the same utterance does not fire it again.
type firedCommand struct {
	after string
	cmd   ParsedCommand
}

// Driver turns live transcript updates into session commands.
//
// Updates are handled one at a time in arrival order. All errors from the
// engine and the speaker are logged and counted; OnTranscript never fails.
type Driver struct {
	mu sync.Mutex

	engine   Engine
	detector *Detector
	dedup    *Deduplicator
	speaker  speech.Speaker
	resetter TranscriptResetter
	onAck    func(Ack)
	log      *slog.Logger
	metrics  *observe.Metrics

	enabled bool
	stopped bool
	fired   *firedCommand
	pending []Ack

	silence time.Duration
	timer   *time.Timer
	gen     uint64
}

// NewDriver returns an enabled driver for engine.
func NewDriver(engine Engine, opts ...DriverOption) *Driver {
	d := &Driver{
		engine:  engine,
		enabled: true,
		silence: DefaultSilenceTimeout,
		log:     slog.Default(),
	}
	for _, o := range opts {
		o(d)
	}
	if d.detector == nil {
		d.detector = NewDetector(DefaultTriggerPhrases)
	}
	if d.dedup == nil {
		d.dedup = NewDeduplicator()
	}
	if d.speaker == nil {
		d.speaker = speech.SpeakerFunc(func(context.Context, string) error { return nil })
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	return d
}

// SetEnabled turns transcript processing on or off. Logged sets are kept
// either way.
func (d *Driver) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = enabled
	if !enabled {
		d.stopTimerLocked()
	}
}

// Enabled reports whether transcripts are processed.
func (d *Driver) Enabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.enabled && !d.stopped
}

// SetDetector swaps the trigger detector, e.g. after the user edited their
// trigger phrases.
func (d *Driver) SetDetector(det *Detector) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detector = det
}

// Stop ends transcript processing for good.
func (d *Driver) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.stopTimerLocked()
}

// Reset forgets processed transcripts, as at the end of an utterance.
func (d *Driver) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
}

func (d *Driver) resetLocked() {
	d.dedup.Reset()
	d.fired = nil
}

// OnTranscript handles one update of the live transcript. Acks are handed
// to the ack handler after the driver lock is released.
func (d *Driver) OnTranscript(ctx context.Context, transcript string) Outcome {
	start := time.Now()
	d.mu.Lock()
	out := d.handleLocked(ctx, transcript, start)
	acks := d.pending
	d.pending = nil
	onAck := d.onAck
	d.mu.Unlock()

	if onAck != nil {
		for _, a := range acks {
			onAck(a)
		}
	}
	return out
}

func (d *Driver) handleLocked(ctx context.Context, transcript string, start time.Time) Outcome {
	if d.stopped || !d.enabled {
		return OutcomeIgnored
	}
	if strings.TrimSpace(transcript) == "" {
		d.resetLocked()
		d.stopTimerLocked()
		return OutcomeIgnored
	}
	d.metrics.Transcripts.Add(ctx, 1)
	d.armTimerLocked()

	m := d.detector.Find(transcript)
	if !m.Found {
		return OutcomeNoTrigger
	}

	cmd := ParseCommand(m.After)
	if cmd.Type == CommandUnknown || (cmd.Type == CommandLogSet && !cmd.Complete()) {
		d.metrics.ParseMisses.Add(ctx, 1)
		return OutcomeIncomplete
	}

	if !d.dedup.ShouldProcess(transcript) || d.grownFromFiredLocked(m.After, cmd) {
		d.dedup.MarkProcessed(transcript)
		d.metrics.DuplicatesSuppressed.Add(ctx, 1)
		d.metrics.RecordCommand(ctx, cmd.Type.String(), "duplicate")
		return OutcomeDuplicate
	}
	d.dedup.MarkProcessed(transcript)
	d.fired = &firedCommand{after: strings.ToLower(m.After), cmd: cmd}

	var out Outcome
	switch cmd.Type {
	case CommandLogSet:
		out = d.logSetLocked(ctx, cmd)
	case CommandNextExercise:
		out = d.advanceLocked(ctx, cmd)
	case CommandNextSet:
		out = d.announceLocked(ctx, cmd)
	}

	status := "dispatched"
	if out == OutcomeError {
		status = "error"
	}
	d.metrics.RecordCommand(ctx, cmd.Type.String(), status)
	d.metrics.CommandDuration.Record(ctx, time.Since(start).Seconds())
	return out
}

func (d *Driver) grownFromFiredLocked(after string, cmd ParsedCommand) bool {
	return d.fired != nil &&
		strings.HasPrefix(strings.ToLower(after), d.fired.after) &&
		cmd.Equal(d.fired.cmd)
}

func (d *Driver) logSetLocked(ctx context.Context, cmd ParsedCommand) Outcome {
	res, err := d.engine.LogSet(ctx, *cmd.Weight, *cmd.Reps)
	if err != nil && !res.Finished {
		d.log.Warn("voice log set failed", "weight", *cmd.Weight, "reps", *cmd.Reps, "error", err)
		return OutcomeError
	}
	if err != nil {
		// The set is in the finished log; only the save failed.
		d.log.Error("workout log not saved", "error", err)
	}
	d.metrics.RecordSetLogged(ctx, observe.SourceVoice)

	msg := speech.SetLogged(*cmd.Weight, *cmd.Reps)
	d.ackLocked(Ack{Command: cmd, Exercise: res.Exercise, SetNumber: res.SetNumber, Message: msg, Finished: res.Finished})
	d.speakLocked(ctx, msg)

	switch {
	case res.Finished:
		d.speakLocked(ctx, speech.WorkoutComplete())
		return OutcomeFinished
	case res.Advanced:
		d.speakLocked(ctx, speech.NextExercise(res.CurrentExercise))
	}
	return OutcomeLogged
}

func (d *Driver) advanceLocked(ctx context.Context, cmd ParsedCommand) Outcome {
	res, err := d.engine.AdvanceExercise(ctx)
	if err != nil && !res.Finished {
		d.log.Warn("voice advance failed", "error", err)
		return OutcomeError
	}
	if err != nil {
		d.log.Error("workout log not saved", "error", err)
	}

	if res.Finished {
		msg := speech.WorkoutComplete()
		d.ackLocked(Ack{Command: cmd, Message: msg, Finished: true})
		d.speakLocked(ctx, msg)
		return OutcomeFinished
	}
	msg := speech.NextExercise(res.CurrentExercise)
	d.ackLocked(Ack{Command: cmd, Exercise: res.CurrentExercise, SetNumber: res.CurrentSetNumber, Message: msg})
	d.speakLocked(ctx, msg)
	return OutcomeAdvanced
}

// announceLocked handles "next set": the engine already points at the next
// set after every log, so it only repeats where the user is.
func (d *Driver) announceLocked(ctx context.Context, cmd ParsedCommand) Outcome {
	ex, _ := d.engine.CurrentExercise()
	n := d.engine.CurrentSetNumber()
	msg := speech.ExerciseSet(ex.Name, n)
	d.ackLocked(Ack{Command: cmd, Exercise: ex.Name, SetNumber: n, Message: msg})
	d.speakLocked(ctx, msg)
	return OutcomeAnnounced
}

func (d *Driver) ackLocked(a Ack) {
	if d.onAck != nil {
		d.pending = append(d.pending, a)
	}
}

func (d *Driver) speakLocked(ctx context.Context, text string) {
	if err := d.speaker.Speak(ctx, text); err != nil && !errors.Is(err, context.Canceled) {
		d.log.Warn("speak failed", "text", text, "error", err)
	}
}

func (d *Driver) armTimerLocked() {
	if d.silence <= 0 {
		return
	}
	d.stopTimerLocked()
	gen := d.gen
	d.timer = time.AfterFunc(d.silence, func() { d.onSilence(gen) })
}

// stopTimerLocked cancels the silence timer. Bumping gen also defuses a
// timer that already fired and is waiting for the lock.
func (d *Driver) stopTimerLocked() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Driver) onSilence(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.stopped {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.resetLocked()
	resetter := d.resetter
	d.mu.Unlock()

	d.log.Debug("transcript silent, resetting")
	if resetter != nil {
		resetter.ResetTranscript()
	}
}
