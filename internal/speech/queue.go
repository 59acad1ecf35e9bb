package speech

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrQueueClosed is returned by Speak after Close.
var ErrQueueClosed = errors.New("speech queue closed")

// ErrQueueFull is returned when the queue buffer is exhausted.
var ErrQueueFull = errors.New("speech queue full")

const defaultQueueSize = 16

// Queue speaks utterances on a single worker goroutine, in the order they
// were queued. Speak returns as soon as the text is buffered.
type Queue struct {
	next    Speaker
	log     *slog.Logger
	timeout time.Duration

	mu     sync.Mutex
	closed bool
	items  chan string
	done   chan struct{}
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithQueueSize sets the buffer size. Non-positive sizes are ignored.
func WithQueueSize(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.items = make(chan string, n)
		}
	}
}

// WithSpeakTimeout bounds each call to the wrapped Speaker.
func WithSpeakTimeout(d time.Duration) QueueOption {
	return func(q *Queue) { q.timeout = d }
}

// NewQueue starts the worker. Call Close to stop it.
func NewQueue(next Speaker, log *slog.Logger, opts ...QueueOption) *Queue {
	q := &Queue{
		next:    next,
		log:     log,
		timeout: 10 * time.Second,
		items:   make(chan string, defaultQueueSize),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	go q.run()
	return q
}

// Speak buffers text. It never blocks on the wrapped Speaker.
func (q *Queue) Speak(_ context.Context, text string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.items <- text:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting text and waits until everything already queued has
// been spoken. It is safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.items)
	}
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for text := range q.items {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		if err := q.next.Speak(ctx, text); err != nil {
			q.log.Warn("speak failed", "text", text, "error", err)
		}
		cancel()
	}
}
