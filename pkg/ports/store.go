package ports

import (
	"context"

	"github.com/aretw0/interop/pkg/domain"
)

// TraceStore defines the interface for persisting recorded traces.
// This allows a capture session to be replayed later, offline, against
// the same or a revised pattern.
type TraceStore interface {
	// Save persists the trace under trace.ID, replacing any previous version.
	Save(ctx context.Context, trace *domain.Trace) error

	// Load retrieves a trace by id.
	// Returns domain.ErrTraceNotFound if the trace does not exist.
	Load(ctx context.Context, id string) (*domain.Trace, error)

	// Delete removes a trace. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	// List returns the ids of all stored traces.
	List(ctx context.Context) ([]string, error)
}
