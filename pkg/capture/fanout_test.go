package capture_test

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/aretw0/interop/pkg/capture"
	"github.com/aretw0/interop/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	events []domain.Event
	errs   []error
}

func (r *recordingSink) PushEvent(ev domain.Event) { r.events = append(r.events, ev) }
func (r *recordingSink) LogException(err error)    { r.errs = append(r.errs, err) }

func TestFanout_ForwardsToAllSinksInOrder(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	f := capture.NewFanout(a, nil, b)

	f.PushEvent(domain.Event{InterfaceID: "x"})
	f.LogException(errors.New("boom"))
	f.PushEvent(domain.Event{InterfaceID: "y"})

	for _, s := range []*recordingSink{a, b} {
		require.Len(t, s.events, 3)
		assert.Equal(t, "x", s.events[0].InterfaceID)
		assert.True(t, s.events[1].IsFault())
		assert.Equal(t, "y", s.events[2].InterfaceID)
		assert.Equal(t, []uint64{1, 2, 3}, []uint64{s.events[0].Seq, s.events[1].Seq, s.events[2].Seq})
		assert.Empty(t, s.errs)
	}
}

func TestFanout_IntoQueueAndRecorderAgree(t *testing.T) {
	q := capture.NewQueue()
	rec := &recordingSink{}
	f := capture.NewFanout(q, rec)

	f.PushEvent(domain.Event{InterfaceID: "x"})
	f.PushEvent(domain.Event{InterfaceID: "y"})

	for _, want := range rec.events {
		got, ok := q.TryNext()
		require.True(t, ok)
		assert.Equal(t, want.Seq, got.Seq)
		assert.Equal(t, want.InterfaceID, got.InterfaceID)
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	s := capture.NewLogSink(slog.New(slog.NewTextHandler(&buf, nil)), slog.LevelInfo)

	s.PushEvent(domain.Event{Seq: 1, InterfaceID: "orders", Direction: domain.DirectionRequest, Method: "GET"})
	s.PushEvent(domain.Event{Seq: 2, InterfaceID: "orders", Fault: "reset"})
	s.LogException(errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "Event observed")
	assert.Contains(t, out, "interface=orders")
	assert.Contains(t, out, "Transport fault observed")
	assert.Contains(t, out, "boom")
}
