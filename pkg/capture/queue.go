package capture

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/interop/internal/logging"
	"github.com/aretw0/interop/pkg/domain"
)

// Queue is a thread-safe FIFO of events.
//
// Pushes may come from any goroutine; the order in which they acquire the
// queue lock is the order of the stream, and each event is stamped with its
// position (Seq) at that moment. Transport exceptions are queued in-line as
// fault events so they keep their place in the stream.
//
// The queue is unbounded so a slow consumer never blocks a wrapper handler.
type Queue struct {
	logger *slog.Logger
	now    func() time.Time

	mu      sync.Mutex
	events  []domain.Event
	seq     uint64
	closed  bool
	dropped int
	signal  chan struct{} // buffered, size 1
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithQueueLogger sets the logger.
func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(q *Queue) {
		q.logger = logger
	}
}

// WithQueueClock sets the clock used to timestamp fault events.
func WithQueueClock(now func() time.Time) QueueOption {
	return func(q *Queue) {
		q.now = now
	}
}

// NewQueue creates an empty queue.
func NewQueue(opts ...QueueOption) *Queue {
	q := &Queue{
		logger: logging.NewNop(),
		now:    time.Now,
		events: make([]domain.Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// PushEvent appends ev to the stream. Events pushed after Close are dropped.
func (q *Queue) PushEvent(ev domain.Event) {
	q.enqueue(ev.Clone())
}

// LogException appends a fault event describing err to the stream.
func (q *Queue) LogException(err error) {
	q.enqueue(domain.FaultEvent(err, q.now()))
}

func (q *Queue) enqueue(ev domain.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.dropped++
		q.logger.Warn("Event pushed after capture closed", "interface", ev.InterfaceID, "direction", ev.Direction)
		return
	}

	if ev.Seq == 0 || ev.Seq <= q.seq {
		q.seq++
		ev.Seq = q.seq
	} else {
		q.seq = ev.Seq
	}
	q.events = append(q.events, ev)

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// TryNext removes and returns the front event without blocking.
func (q *Queue) TryNext() (domain.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return domain.Event{}, false
	}
	ev := q.events[0]
	q.events[0] = domain.Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return ev, true
}

// Next blocks until an event is available and returns it. It returns io.EOF
// once the queue is closed and drained, and ctx.Err() if ctx ends first.
func (q *Queue) Next(ctx context.Context) (domain.Event, error) {
	for {
		if ev, ok := q.TryNext(); ok {
			return ev, nil
		}

		q.mu.Lock()
		done := q.closed && len(q.events) == 0
		q.mu.Unlock()
		if done {
			return domain.Event{}, io.EOF
		}

		select {
		case <-ctx.Done():
			return domain.Event{}, ctx.Err()
		case <-q.signal:
		}
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Dropped returns the number of events rejected after Close.
func (q *Queue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close ends the stream. Queued events can still be read.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
