package middleware_test

import (
	"context"

	"github.com/aretw0/interop/pkg/domain"
	"github.com/aretw0/interop/pkg/ports"
)

// MockStore is a simple map-based store for testing middleware.
type MockStore struct {
	data map[string]*domain.Trace
}

func NewMockStore() *MockStore {
	return &MockStore{
		data: make(map[string]*domain.Trace),
	}
}

func (s *MockStore) Save(ctx context.Context, trace *domain.Trace) error {
	s.data[trace.ID] = trace
	return nil
}

func (s *MockStore) Load(ctx context.Context, id string) (*domain.Trace, error) {
	trace, ok := s.data[id]
	if !ok {
		return nil, domain.ErrTraceNotFound
	}
	return trace, nil
}

func (s *MockStore) Delete(ctx context.Context, id string) error {
	delete(s.data, id)
	return nil
}

func (s *MockStore) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

var _ ports.TraceStore = (*MockStore)(nil)
