package voice

import (
	"strings"
	"sync"
)

// Deduplicator remembers transcripts that already fired a command so the
// re-emissions of continuous recognition do not fire them again. Reset it
// whenever the transcript stream goes empty.
type Deduplicator struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDeduplicator returns an empty Deduplicator.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

func dedupKey(transcript string) string {
	return strings.ToLower(strings.TrimSpace(transcript))
}

// ShouldProcess reports whether transcript has not fired yet.
func (d *Deduplicator) ShouldProcess(transcript string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[dedupKey(transcript)]
	return !ok
}

// MarkProcessed records that transcript fired a command.
func (d *Deduplicator) MarkProcessed(transcript string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen[dedupKey(transcript)] = struct{}{}
}

// Reset forgets every recorded transcript.
func (d *Deduplicator) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.seen)
}

// Len returns the number of recorded transcripts.
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
