package memory

import (
	"context"
	"sync"

	"github.com/aretw0/interop/pkg/domain"
)

// Store implements ports.TraceStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Trace
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Trace),
	}
}

// Save persists the trace in memory.
func (s *Store) Save(ctx context.Context, trace *domain.Trace) error {
	copied := cloneTrace(trace)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[trace.ID] = copied
	return nil
}

// Load retrieves the trace from memory.
func (s *Store) Load(ctx context.Context, id string) (*domain.Trace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trace, ok := s.data[id]
	if !ok {
		return nil, domain.ErrTraceNotFound
	}

	// Copy on read so callers cannot mutate the stored trace.
	return cloneTrace(trace), nil
}

// Delete removes the trace.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

// List returns the stored trace ids.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}

func cloneTrace(t *domain.Trace) *domain.Trace {
	out := *t
	out.Events = make([]domain.Event, len(t.Events))
	for i, ev := range t.Events {
		out.Events[i] = ev.Clone()
	}
	return &out
}
