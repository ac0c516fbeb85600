package trace

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aretw0/interop/pkg/capture"
	"github.com/aretw0/interop/pkg/domain"
	"github.com/aretw0/interop/pkg/ports"
)

// Replayer re-emits stored traces into a sink.
type Replayer struct {
	store  ports.TraceStore
	ids    map[string]string
	logger *slog.Logger
}

// ReplayerOption configures a Replayer.
type ReplayerOption func(*Replayer)

// WithInterfaceMap renames interface ids while replaying (recorded id ->
// pattern id). Ids absent from the map are kept.
func WithInterfaceMap(ids map[string]string) ReplayerOption {
	return func(r *Replayer) {
		r.ids = ids
	}
}

// WithReplayerLogger sets the replayer logger.
func WithReplayerLogger(logger *slog.Logger) ReplayerOption {
	return func(r *Replayer) {
		r.logger = logger
	}
}

// NewReplayer creates a replayer reading from store.
func NewReplayer(store ports.TraceStore, opts ...ReplayerOption) *Replayer {
	r := &Replayer{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Replay loads the trace id and pushes its events into sink in their
// original order. It returns the number of events pushed.
func (r *Replayer) Replay(ctx context.Context, id string, sink ports.EventSink) (int, error) {
	trace, err := r.store.Load(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("failed to load trace %s: %w", id, err)
	}
	return r.ReplayTrace(ctx, trace, sink)
}

// ReplayTrace pushes the events of an already loaded trace into sink.
// Fault events are pushed as events so they keep their position.
func (r *Replayer) ReplayTrace(ctx context.Context, trace *domain.Trace, sink ports.EventSink) (int, error) {
	n := 0
	for _, ev := range trace.Events {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		sink.PushEvent(r.rename(ev))
		n++
	}
	r.logger.Debug("Trace replayed", "trace_id", trace.ID, "events", n)
	return n, nil
}

// Source loads the trace id into a closed capture queue, ready to be
// consumed by a pattern engine.
func (r *Replayer) Source(ctx context.Context, id string) (*capture.Queue, error) {
	q := capture.NewQueue(capture.WithQueueLogger(r.logger))
	if _, err := r.Replay(ctx, id, q); err != nil {
		return nil, err
	}
	q.Close()
	return q, nil
}

func (r *Replayer) rename(ev domain.Event) domain.Event {
	ev = ev.Clone()
	if to, ok := r.ids[ev.InterfaceID]; ok {
		ev.InterfaceID = to
	}
	return ev
}
