// Package replay runs recorded transcript streams through a workout session
// offline, for tuning trigger phrases and number parsing.
package replay

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/claude/heytrainer/internal/models"
	"github.com/claude/heytrainer/internal/session"
	"github.com/claude/heytrainer/internal/speech"
	"github.com/claude/heytrainer/internal/voice"
	"gopkg.in/yaml.v3"
)

// Stats tracks replay progress.
type Stats struct {
	Lines       int            `json:"lines"`
	Transcripts int            `json:"transcripts"`
	Silences    int            `json:"silences"`
	Outcomes    map[string]int `json:"outcomes"`
}

// Result is what a replay produced.
type Result struct {
	Stats    Stats              `json:"stats"`
	Spoken   []string           `json:"spoken"`
	Snapshot session.Snapshot   `json:"snapshot"`
	Log      *models.WorkoutLog `json:"log,omitempty"`
}

// Replayer feeds transcript files to a fresh session per run.
type Replayer struct {
	persister session.Persister
	userID    int
	phrases   []string
	phonetic  float64
	log       *slog.Logger
}

// Option configures a Replayer.
type Option func(*Replayer)

// WithPersister saves the finished workout log. Without it nothing is written.
func WithPersister(p session.Persister) Option {
	return func(r *Replayer) { r.persister = p }
}

// WithUserID sets the owner of the replayed workout log.
func WithUserID(id int) Option {
	return func(r *Replayer) { r.userID = id }
}

// WithTriggerPhrases adds custom trigger phrases to the defaults.
func WithTriggerPhrases(phrases []string) Option {
	return func(r *Replayer) { r.phrases = phrases }
}

// WithPhoneticFallback enables sound-alike trigger matching.
func WithPhoneticFallback(threshold float64) Option {
	return func(r *Replayer) { r.phonetic = threshold }
}

// New creates a Replayer.
func New(log *slog.Logger, opts ...Option) *Replayer {
	r := &Replayer{log: log}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// LoadRoutine reads a routine from a YAML file.
func LoadRoutine(path string) (models.Routine, error) {
	var r models.Routine
	data, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("reading routine: %w", err)
	}
	if err := yaml.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("parsing routine: %w", err)
	}
	return r, session.ValidateRoutine(r)
}

// Run replays transcripts against routine. Each line is one transcript
// update as a recogniser would deliver it; a blank line is a pause long
// enough to end the utterance. Lines starting with # are comments.
//
// A session still running at the end of input is finished, and saved when
// a persister is set.
func (r *Replayer) Run(ctx context.Context, routine models.Routine, transcripts io.Reader) (*Result, error) {
	res := &Result{Stats: Stats{Outcomes: map[string]int{}}}

	opts := []session.Option{session.WithLogger(r.log)}
	if r.userID != 0 {
		opts = append(opts, session.WithUserID(r.userID))
	}
	if r.persister != nil {
		opts = append(opts, session.WithPersister(r.persister))
	}
	engine, err := session.New(routine, opts...)
	if err != nil {
		return nil, err
	}
	if err := engine.Start(); err != nil {
		return nil, err
	}

	var detOpts []voice.DetectorOption
	if r.phonetic > 0 {
		detOpts = append(detOpts, voice.WithPhoneticFallback(r.phonetic))
	}
	spoken := speech.SpeakerFunc(func(_ context.Context, text string) error {
		res.Spoken = append(res.Spoken, text)
		return nil
	})
	driver := voice.NewDriver(engine,
		voice.WithDetector(voice.NewDetector(voice.MergeTriggerPhrases(r.phrases), detOpts...)),
		voice.WithSpeaker(spoken),
		voice.WithSilenceTimeout(0),
		voice.WithDriverLogger(r.log),
	)
	defer driver.Stop()

	first, _ := engine.CurrentExercise()
	_ = spoken.Speak(ctx, speech.ExerciseSet(first.Name, 1))

	sc := bufio.NewScanner(transcripts)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Stats.Lines++
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, "#"):
			continue
		case line == "":
			res.Stats.Silences++
			driver.Reset()
			continue
		}
		res.Stats.Transcripts++
		outcome := driver.OnTranscript(ctx, line)
		res.Stats.Outcomes[outcome.String()]++
		r.log.Debug("transcript", "line", res.Stats.Lines, "text", line, "outcome", outcome)
		if outcome == voice.OutcomeFinished {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("reading transcripts: %w", err)
	}

	if engine.State() == session.StateInProgress {
		_, err = engine.Finish(ctx, r.persister != nil)
	}
	wl := engine.WorkoutLog()
	res.Log = &wl
	res.Snapshot = engine.Snapshot()
	return res, err
}
