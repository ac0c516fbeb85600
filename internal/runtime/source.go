package runtime

import (
	"context"
	"io"

	"github.com/aretw0/interop/pkg/domain"
)

// SliceSource is an EventSource over a fixed list of events, used for replay
// and tests. Events without a sequence number are numbered from 1.
type SliceSource struct {
	events []domain.Event
	pos    int
}

// NewSliceSource creates a source that yields events in order, then io.EOF.
func NewSliceSource(events ...domain.Event) *SliceSource {
	out := make([]domain.Event, len(events))
	for i, ev := range events {
		out[i] = ev.Clone()
		if out[i].Seq == 0 {
			out[i].Seq = uint64(i + 1)
		}
	}
	return &SliceSource{events: out}
}

// Next returns the next event.
func (s *SliceSource) Next(ctx context.Context) (domain.Event, error) {
	if err := ctx.Err(); err != nil {
		return domain.Event{}, err
	}
	if s.pos >= len(s.events) {
		return domain.Event{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}
