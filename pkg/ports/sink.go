package ports

import (
	"context"

	"github.com/aretw0/interop/pkg/domain"
)

// EventSink is the capture point every wrapper reports to.
// Implementations must be safe for concurrent use: wrappers push from
// their own HTTP handler goroutines.
type EventSink interface {
	// PushEvent records one observed request or response.
	PushEvent(ev domain.Event)

	// LogException records a transport fault observed by a wrapper.
	LogException(err error)
}

// EventSource delivers events, one at a time and in stream order.
// Next blocks until an event is available. It returns io.EOF once the
// stream is exhausted and ctx.Err() when the context ends first.
type EventSource interface {
	Next(ctx context.Context) (domain.Event, error)
}

// Emitter sends a message produced by a pattern action through the
// wrapper of the interface it names.
type Emitter interface {
	Emit(ctx context.Context, msg domain.Message) error
}
