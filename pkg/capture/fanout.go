package capture

import (
	"sync"
	"time"

	"github.com/aretw0/interop/pkg/domain"
	"github.com/aretw0/interop/pkg/ports"
)

// Fanout forwards every push to a fixed list of sinks, in registration order.
//
// Pushes are serialized and stamped with a sequence number before being
// forwarded, so every consumer observes the same total order.
type Fanout struct {
	sinks []ports.EventSink
	now   func() time.Time

	mu  sync.Mutex
	seq uint64
}

// NewFanout creates a fan-out over sinks. Nil sinks are skipped.
func NewFanout(sinks ...ports.EventSink) *Fanout {
	f := &Fanout{now: time.Now}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// PushEvent stamps ev and forwards it to every sink.
func (f *Fanout) PushEvent(ev domain.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.stamp(&ev)
	for _, s := range f.sinks {
		s.PushEvent(ev.Clone())
	}
}

// LogException converts err to a fault event and forwards it to every sink.
//
// The fault travels as an event rather than through each sink's own
// LogException so that all consumers see it at the same position.
func (f *Fanout) LogException(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ev := domain.FaultEvent(err, f.now())
	f.stamp(&ev)
	for _, s := range f.sinks {
		s.PushEvent(ev.Clone())
	}
}

func (f *Fanout) stamp(ev *domain.Event) {
	if ev.Seq == 0 || ev.Seq <= f.seq {
		f.seq++
		ev.Seq = f.seq
		return
	}
	f.seq = ev.Seq
}
