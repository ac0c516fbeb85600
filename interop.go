package interop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aretw0/interop/internal/compiler"
	"github.com/aretw0/interop/internal/logging"
	"github.com/aretw0/interop/internal/runtime"
	"github.com/aretw0/interop/pkg/architecture"
	"github.com/aretw0/interop/pkg/capture"
	"github.com/aretw0/interop/pkg/domain"
	"github.com/aretw0/interop/pkg/ports"
	"github.com/aretw0/interop/pkg/trace"
	"github.com/aretw0/interop/pkg/wrapper"
)

// ErrNoTraceStore is returned by operations that need a trace store when none
// was configured.
var ErrNoTraceStore = errors.New("no trace store configured")

// Engine is the high-level entry point of the library. It holds a loaded
// specification and runs its pattern either live, against deployed interface
// wrappers, or offline, against a stored trace.
type Engine struct {
	spec *domain.Spec

	logger       *slog.Logger
	hooks        domain.LifecycleHooks
	store        ports.TraceStore
	locker       ports.Locker
	sinks        []ports.EventSink
	wrapperOpts  []wrapper.Option
	interfaceMap map[string]string
	interpolator runtime.Interpolator

	mu      sync.RWMutex
	machine *runtime.Engine

	Name string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithTraceStore sets where captured traces are stored and replayed from.
func WithTraceStore(store ports.TraceStore) Option {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLocker serializes trace storage across processes sharing a store.
func WithLocker(locker ports.Locker) Option {
	return func(e *Engine) {
		e.locker = locker
	}
}

// WithSinks adds consumers that observe every captured event, in addition to
// the state machine and the recorder.
func WithSinks(sinks ...ports.EventSink) Option {
	return func(e *Engine) {
		e.sinks = append(e.sinks, sinks...)
	}
}

// WithWrapperOptions configures the interface wrappers deployed by Capture.
func WithWrapperOptions(opts ...wrapper.Option) Option {
	return func(e *Engine) {
		e.wrapperOpts = append(e.wrapperOpts, opts...)
	}
}

// WithInterfaceMap renames interface ids when replaying a trace, for traces
// captured against a differently named architecture.
func WithInterfaceMap(ids map[string]string) Option {
	return func(e *Engine) {
		e.interfaceMap = ids
	}
}

// WithInterpolator sets a custom template engine for set and emit actions.
func WithInterpolator(interp runtime.Interpolator) Option {
	return func(e *Engine) {
		e.interpolator = interp
	}
}

// Load reads the specification document at path and creates an engine for it.
func Load(path string, opts ...Option) (*Engine, error) {
	eng := &Engine{}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}

	spec, err := compiler.NewParser(compiler.WithLogger(eng.logger)).ParseFile(path)
	if err != nil {
		return nil, err
	}
	return New(spec, append(opts, WithLogger(eng.logger))...)
}

// New creates an engine for an already loaded specification.
func New(spec *domain.Spec, opts ...Option) (*Engine, error) {
	if spec == nil {
		return nil, errors.New("specification is nil")
	}

	eng := &Engine{spec: spec, Name: spec.Name}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.Name == "" {
		eng.Name = spec.Pattern.Name
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}
	eng.logger = eng.logger.With("spec", eng.Name)

	if err := architecture.Validate(spec.Components); err != nil {
		return nil, err
	}
	machine, err := eng.newMachine(nil)
	if err != nil {
		return nil, err
	}
	eng.machine = machine
	return eng, nil
}

func (e *Engine) newMachine(emitter ports.Emitter) (*runtime.Engine, error) {
	opts := []runtime.EngineOption{
		runtime.WithLogger(e.logger),
		runtime.WithLifecycleHooks(e.hooks),
	}
	if emitter != nil {
		opts = append(opts, runtime.WithEmitter(emitter))
	}
	if e.interpolator != nil {
		opts = append(opts, runtime.WithInterpolator(e.interpolator))
	}
	return runtime.NewEngine(&e.spec.Pattern, opts...)
}

func (e *Engine) setMachine(m *runtime.Engine) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.machine = m
}

// Spec returns the loaded specification.
func (e *Engine) Spec() *domain.Spec {
	return e.spec
}

// Pattern returns the pattern under test.
func (e *Engine) Pattern() domain.Pattern {
	return e.spec.Pattern
}

// Status returns a snapshot of the report of the current or last run.
func (e *Engine) Status() *domain.Report {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.machine.Status()
}

// TraceStore returns the configured trace store, if any.
func (e *Engine) TraceStore() ports.TraceStore {
	return e.store
}

// Execute replays the stored trace traceID through the pattern and returns the
// report. Emit actions are not performed during a replay.
func (e *Engine) Execute(ctx context.Context, traceID string) (*domain.Report, error) {
	if e.store == nil {
		return nil, ErrNoTraceStore
	}
	t, err := e.store.Load(ctx, traceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trace %q: %w", traceID, err)
	}
	return e.ExecuteTrace(ctx, t)
}

// ExecuteTrace replays an in-memory trace through the pattern.
func (e *Engine) ExecuteTrace(ctx context.Context, t *domain.Trace) (*domain.Report, error) {
	q := capture.NewQueue(capture.WithQueueLogger(e.logger))
	replayer := trace.NewReplayer(e.store,
		trace.WithInterfaceMap(e.interfaceMap),
		trace.WithReplayerLogger(e.logger),
	)

	sink := ports.EventSink(q)
	if len(e.sinks) > 0 {
		sink = capture.NewFanout(append([]ports.EventSink{q}, e.sinks...)...)
	}
	n, err := replayer.ReplayTrace(ctx, t, sink)
	q.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to replay trace %q: %w", t.ID, err)
	}

	machine, err := e.newMachine(nil)
	if err != nil {
		return nil, err
	}
	e.setMachine(machine)

	e.logger.Info("Replaying trace", "trace", t.ID, "events", n)
	return machine.Run(ctx, q)
}
