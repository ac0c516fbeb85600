package interop

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/interop/internal/runtime"
	"github.com/aretw0/interop/pkg/architecture"
	"github.com/aretw0/interop/pkg/capture"
	"github.com/aretw0/interop/pkg/domain"
	"github.com/aretw0/interop/pkg/ports"
	"github.com/aretw0/interop/pkg/trace"
)

// Session is a live capture: the wrappers are deployed and every event they
// observe is fed, in one order, to the state machine and to the recorder.
type Session struct {
	engine   *Engine
	model    *architecture.Model
	queue    *capture.Queue
	recorder *trace.Recorder
	machine  *runtime.Engine

	closeOnce sync.Once
	closeErr  error
}

// Capture deploys a wrapper for every declared interface and returns the
// running session. Events are buffered until Run consumes them. When a trace
// store is configured, every event is also recorded.
func (e *Engine) Capture(ctx context.Context) (*Session, error) {
	s := &Session{
		engine: e,
		queue:  capture.NewQueue(capture.WithQueueLogger(e.logger)),
	}

	sinks := []ports.EventSink{s.queue}
	if e.store != nil {
		recOpts := []trace.RecorderOption{
			trace.WithPattern(e.spec.Pattern.Name),
			trace.WithRecorderLogger(e.logger),
		}
		if e.locker != nil {
			recOpts = append(recOpts, trace.WithLocker(e.locker))
		}
		s.recorder = trace.NewRecorder(e.store, recOpts...)
		sinks = append(sinks, s.recorder)
	}
	sinks = append(sinks, e.sinks...)
	fanout := capture.NewFanout(sinks...)

	model, err := architecture.Build(ctx, e.spec.Components, fanout,
		architecture.WithLogger(e.logger),
		architecture.WithWrapperOptions(e.wrapperOpts...),
	)
	if err != nil {
		return nil, err
	}
	s.model = model

	machine, err := e.newMachine(model)
	if err != nil {
		if cerr := model.Cleanup(context.WithoutCancel(ctx)); cerr != nil {
			e.logger.Warn("Failed to release wrappers after setup error", "error", cerr)
			err = errors.Join(err, fmt.Errorf("failed to release wrappers: %w", cerr))
		}
		return nil, err
	}
	s.machine = machine
	e.setMachine(machine)

	e.logger.Info("Capture started", "interfaces", len(model.InterfaceIDs()))
	return s, nil
}

// Model returns the deployed architecture.
func (s *Session) Model() *architecture.Model {
	return s.model
}

// URLs returns the address of each deployed wrapper keyed by interface id.
func (s *Session) URLs() map[string]string {
	return s.model.URLs()
}

// TraceID returns the id the trace will be stored under, or "" when the
// session is not recording.
func (s *Session) TraceID() string {
	if s.recorder == nil {
		return ""
	}
	return s.recorder.ID()
}

// Status returns a snapshot of the run report.
func (s *Session) Status() *domain.Report {
	return s.machine.Status()
}

// Run evaluates captured events until the pattern terminates, the budget is
// exhausted, the session is closed or ctx is cancelled.
func (s *Session) Run(ctx context.Context) (*domain.Report, error) {
	return s.machine.Run(ctx, s.queue)
}

// StoreTrace persists everything recorded so far and returns the trace id.
func (s *Session) StoreTrace(ctx context.Context) (string, error) {
	if s.recorder == nil {
		return "", ErrNoTraceStore
	}
	return s.recorder.StoreTrace(ctx)
}

// Close releases the wrappers and ends the event stream, so a pending Run
// returns. It is safe to call more than once.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		err := s.model.Cleanup(ctx)
		s.queue.Close()
		if err != nil {
			s.closeErr = fmt.Errorf("failed to release wrappers: %w", err)
		}
		s.engine.logger.Info("Capture stopped", "events", s.recorded())
	})
	return s.closeErr
}

func (s *Session) recorded() int {
	if s.recorder == nil {
		return -1
	}
	return s.recorder.Len()
}

var _ ports.Emitter = (*architecture.Model)(nil)

// IsConformant reports whether err is nil and r reached an accepting state.
func IsConformant(r *domain.Report, err error) bool {
	return err == nil && r.Conformant()
}
