package speech

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Event types sent to attached sinks.
const (
	EventSpeak           = "speak"
	EventAck             = "ack"
	EventResetTranscript = "reset_transcript"
)

// Event is one message for a connected client.
type Event struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	Data any    `json:"data,omitempty"`
}

// Sink receives events, typically one websocket client.
type Sink interface {
	Send(ctx context.Context, ev Event) error
}

// Fanout delivers every event to all attached sinks. With no sinks attached
// events are dropped.
type Fanout struct {
	log *slog.Logger

	mu     sync.RWMutex
	nextID int
	sinks  map[int]Sink
}

// NewFanout returns an empty Fanout.
func NewFanout(log *slog.Logger) *Fanout {
	return &Fanout{log: log, sinks: make(map[int]Sink)}
}

// Attach adds a sink and returns the function that detaches it.
func (f *Fanout) Attach(s Sink) (detach func()) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.sinks[id] = s
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.sinks, id)
		f.mu.Unlock()
	}
}

// Len returns the number of attached sinks.
func (f *Fanout) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.sinks)
}

// Publish sends ev to every sink. All sinks are attempted; the first error
// is returned.
func (f *Fanout) Publish(ctx context.Context, ev Event) error {
	f.mu.RLock()
	sinks := make([]Sink, 0, len(f.sinks))
	for _, s := range f.sinks {
		sinks = append(sinks, s)
	}
	f.mu.RUnlock()

	var firstErr error
	for _, s := range sinks {
		if err := s.Send(ctx, ev); err != nil {
			f.log.Warn("sending event failed", "type", ev.Type, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("publishing %s: %w", ev.Type, err)
			}
		}
	}
	return firstErr
}

// Speak publishes a speak event.
func (f *Fanout) Speak(ctx context.Context, text string) error {
	return f.Publish(ctx, Event{Type: EventSpeak, Text: text})
}

// ResetTranscript tells clients to clear their live transcript.
func (f *Fanout) ResetTranscript() {
	_ = f.Publish(context.Background(), Event{Type: EventResetTranscript})
}
