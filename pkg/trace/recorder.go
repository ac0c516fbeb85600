package trace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/interop/pkg/domain"
	"github.com/aretw0/interop/pkg/ports"
	"github.com/google/uuid"
)

// DefaultLockTTL bounds how long a trace id stays locked if the holder dies
// before releasing it.
const DefaultLockTTL = 30 * time.Second

// Recorder is an EventSink that keeps every event it receives, in arrival
// order, until StoreTrace persists them.
type Recorder struct {
	store   ports.TraceStore
	locker  ports.Locker
	logger  *slog.Logger
	now     func() time.Time
	id      string
	pattern string

	mu      sync.Mutex
	events  []domain.Event
	lastSeq uint64
	created time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithTraceID fixes the id under which the trace is stored. By default a
// random UUID is generated.
func WithTraceID(id string) RecorderOption {
	return func(r *Recorder) {
		r.id = id
	}
}

// WithPattern records the name of the pattern the trace was captured for.
func WithPattern(name string) RecorderOption {
	return func(r *Recorder) {
		r.pattern = name
	}
}

// WithLocker serializes StoreTrace calls for the same id across processes.
func WithLocker(locker ports.Locker) RecorderOption {
	return func(r *Recorder) {
		r.locker = locker
	}
}

// WithRecorderLogger sets the recorder logger.
func WithRecorderLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithRecorderClock overrides the time source used for fault events and the
// trace creation time.
func WithRecorderClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// NewRecorder creates a recorder persisting to store.
func NewRecorder(store ports.TraceStore, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.id == "" {
		r.id = uuid.NewString()
	}
	r.created = r.now()
	return r
}

// ID returns the id the trace will be stored under.
func (r *Recorder) ID() string {
	return r.id
}

// PushEvent appends a copy of ev. Events arriving without a sequence number,
// or out of order, are renumbered after the last recorded one.
func (r *Recorder) PushEvent(ev domain.Event) {
	ev = ev.Clone()

	r.mu.Lock()
	defer r.mu.Unlock()
	if ev.Seq == 0 || ev.Seq <= r.lastSeq {
		ev.Seq = r.lastSeq + 1
	}
	r.lastSeq = ev.Seq
	r.events = append(r.events, ev)
}

// LogException records err as a fault event at its place in the stream.
func (r *Recorder) LogException(err error) {
	r.PushEvent(domain.FaultEvent(err, r.now()))
}

// Len returns the number of recorded events.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Snapshot returns the trace recorded so far without persisting it.
func (r *Recorder) Snapshot() *domain.Trace {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := make([]domain.Event, len(r.events))
	for i, ev := range r.events {
		events[i] = ev.Clone()
	}
	return &domain.Trace{
		ID:        r.id,
		Pattern:   r.pattern,
		CreatedAt: r.created,
		Events:    events,
	}
}

// StoreTrace persists everything recorded so far and returns the trace id.
// Calling it again stores the longer log under the same id.
func (r *Recorder) StoreTrace(ctx context.Context) (string, error) {
	if r.store == nil {
		return "", errors.New("recorder has no trace store")
	}

	if r.locker != nil {
		unlock, err := r.locker.Lock(ctx, r.id, DefaultLockTTL)
		if err != nil {
			return "", fmt.Errorf("failed to lock trace %s: %w", r.id, err)
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				r.logger.Warn("Failed to release trace lock", "trace_id", r.id, "error", err)
			}
		}()
	}

	trace := r.Snapshot()
	if err := r.store.Save(ctx, trace); err != nil {
		return "", fmt.Errorf("failed to store trace %s: %w", r.id, err)
	}
	r.logger.Info("Trace stored", "trace_id", r.id, "events", len(trace.Events))
	return r.id, nil
}
