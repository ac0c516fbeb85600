package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/interop/internal/expression"
	"github.com/aretw0/interop/internal/validator"
	"github.com/aretw0/interop/pkg/domain"
	"github.com/aretw0/interop/pkg/pathexpr"
	"github.com/aretw0/interop/pkg/ports"
	"github.com/getkin/kin-openapi/openapi3"
)

// ErrAlreadyRunning is returned when Run is called while another run of the
// same engine is in progress.
var ErrAlreadyRunning = errors.New("engine is already running")

// Engine executes a pattern state machine over an ordered event stream and
// produces a conformance report. An Engine can be run several times, one run
// at a time; each run starts from the initial state with no bindings.
type Engine struct {
	pattern domain.Pattern

	logger       *slog.Logger
	hooks        domain.LifecycleHooks
	emitter      ports.Emitter
	interpolator Interpolator
	now          func() time.Time
	fallback     time.Duration
	paths        *pathexpr.Evaluator
	exprs        *expression.Evaluator
	schemas      map[string]*openapi3.Schema

	running atomic.Bool

	mu     sync.RWMutex
	report domain.Report
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithLifecycleHooks registers observability callbacks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithEmitter sets the destination of emit actions. Without an emitter, emit
// actions are skipped, which is what an offline replay wants.
func WithEmitter(emitter ports.Emitter) EngineOption {
	return func(e *Engine) {
		e.emitter = emitter
	}
}

// WithInterpolator replaces the template engine used by set and emit actions.
func WithInterpolator(interp Interpolator) EngineOption {
	return func(e *Engine) {
		e.interpolator = interp
	}
}

// WithClock overrides the time source used for report timestamps.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

// WithDefaultTimeout sets the time budget applied when the pattern declares
// no budget at all. Defaults to domain.DefaultRunTimeout.
func WithDefaultTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.fallback = d
		}
	}
}

// NewEngine validates the pattern and prepares an engine for it.
func NewEngine(pattern *domain.Pattern, opts ...EngineOption) (*Engine, error) {
	if pattern == nil {
		return nil, &domain.InvalidPatternError{Reasons: []string{"pattern is nil"}}
	}
	if err := validator.ValidatePattern(pattern); err != nil {
		return nil, err
	}

	e := &Engine{
		pattern:      *pattern,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		interpolator: DefaultInterpolator,
		now:          time.Now,
		fallback:     domain.DefaultRunTimeout,
		exprs:        expression.New(),
		schemas:      make(map[string]*openapi3.Schema, len(pattern.Schemas)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.paths = pathexpr.New(pathexpr.WithLogger(e.logger))

	for name, raw := range pattern.Schemas {
		schema, err := pathexpr.LoadSchema(context.Background(), raw)
		if err != nil {
			return nil, &domain.InvalidPatternError{
				Pattern: pattern.Name,
				Reasons: []string{fmt.Sprintf("schema %q: %v", name, err)},
			}
		}
		if schema.Title == "" {
			schema.Title = name
		}
		e.schemas[name] = schema
	}

	e.reset()
	return e, nil
}

// Pattern returns the pattern the engine runs.
func (e *Engine) Pattern() domain.Pattern {
	return e.pattern
}

// Status returns a snapshot of the current (or last) run.
func (e *Engine) Status() *domain.Report {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.report.Clone()
}

// Run consumes events from src until the pattern reaches a terminal state,
// the unexpected-event policy fails the run, the budget is exhausted or the
// stream ends. Budget exhaustion and the end of the stream before a terminal
// state both yield the "timeout" outcome.
//
// When ctx is cancelled by the caller the partial report is returned together
// with the context error.
func (e *Engine) Run(ctx context.Context, src ports.EventSource) (*domain.Report, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer e.running.Store(false)

	e.reset()
	initial, _ := e.pattern.Initial()
	e.logger.Debug("Pattern run started", "pattern", e.pattern.Name, "state", initial.ID)
	e.fireStateEnter(ctx, initial)

	timeout := e.pattern.Budget.Timeout
	if e.pattern.Budget.Unbounded() {
		timeout = e.fallback
	}
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeoutCause(ctx, timeout, domain.ErrTimeout)
		defer cancel()
	}

	for !e.finished() {
		if limit := e.pattern.Budget.MaxEvents; limit > 0 && e.processed() >= limit {
			e.finish(ctx, domain.OutcomeTimeout, fmt.Sprintf("%v: event budget of %d exhausted", domain.ErrTimeout, limit))
			break
		}

		ev, err := src.Next(runCtx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				e.finish(ctx, domain.OutcomeTimeout, "event stream ended before a terminal state")
			case ctx.Err() == nil && errors.Is(context.Cause(runCtx), domain.ErrTimeout):
				e.finish(ctx, domain.OutcomeTimeout, fmt.Sprintf("%v: time budget of %s exhausted", domain.ErrTimeout, timeout))
			case ctx.Err() != nil:
				e.finish(context.WithoutCancel(ctx), domain.OutcomeTimeout, fmt.Sprintf("run cancelled: %v", ctx.Err()))
				return e.Status(), ctx.Err()
			default:
				e.finish(ctx, domain.OutcomeFailed, fmt.Sprintf("event source failed: %v", err))
				return e.Status(), fmt.Errorf("event source failed: %w", err)
			}
			break
		}

		e.step(runCtx, ev)
	}

	return e.Status(), nil
}

func (e *Engine) reset() {
	initial, _ := e.pattern.Initial()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.report = domain.Report{
		Pattern:    e.pattern.Name,
		Outcome:    domain.OutcomeRunning,
		FinalState: initial.ID,
		Path:       []string{initial.ID},
		Bindings:   domain.Bindings{},
		StartedAt:  e.now(),
	}
}

func (e *Engine) finished() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.report.Outcome != domain.OutcomeRunning
}

func (e *Engine) processed() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.report.EventsProcessed
}

func (e *Engine) current() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.report.FinalState
}

func (e *Engine) bindings() domain.Bindings {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.report.Bindings.Clone()
}

// step feeds one event to the machine. The first outgoing transition, in
// declaration order, whose guards all hold is taken.
func (e *Engine) step(ctx context.Context, ev domain.Event) {
	e.mu.Lock()
	e.report.EventsProcessed++
	e.mu.Unlock()

	cur := e.current()
	if ev.IsFault() {
		e.recordException(ctx, ev, errors.New(ev.Fault))
	}

	in := newInput(ev)
	for _, t := range e.pattern.Outgoing(cur) {
		if e.matches(ctx, t.Guards, in) {
			e.take(ctx, t, in)
			return
		}
	}

	// Faults are already recorded as exceptions and never trip the policy.
	if ev.IsFault() {
		return
	}

	e.mu.Lock()
	e.report.Unexpected = append(e.report.Unexpected, ev.Seq)
	e.mu.Unlock()

	e.logger.Debug("Unexpected event", "pattern", e.pattern.Name, "state", cur, "seq", ev.Seq, "interface", ev.InterfaceID)
	if e.hooks.OnUnexpected != nil {
		e.hooks.OnUnexpected(ctx, &domain.EventNotice{
			HookBase: e.hookBase(domain.HookUnexpected),
			StateID:  cur,
			Event:    ev,
		})
	}

	if e.pattern.OnUnexpected == domain.PolicyFail {
		e.finish(ctx, domain.OutcomeFailed, fmt.Sprintf("%v: event #%d on interface %q in state %q", domain.ErrUnexpectedEvent, ev.Seq, ev.InterfaceID, cur))
	}
}

func (e *Engine) take(ctx context.Context, t domain.Transition, in *input) {
	for _, a := range t.Actions {
		if err := e.apply(ctx, a, in); err != nil {
			e.recordException(ctx, in.event, fmt.Errorf("action %s on %s -> %s: %w", a.Type, t.From, t.To, err))
		}
	}

	target, _ := e.pattern.State(t.To)

	e.mu.Lock()
	e.report.FinalState = target.ID
	e.report.Path = append(e.report.Path, target.ID)
	e.mu.Unlock()

	e.logger.Debug("Transition taken", "pattern", e.pattern.Name, "from", t.From, "to", t.To, "seq", in.event.Seq)
	if e.hooks.OnTransition != nil {
		e.hooks.OnTransition(ctx, &domain.TransitionEvent{
			HookBase: e.hookBase(domain.HookTransition),
			From:     t.From,
			To:       t.To,
			Seq:      in.event.Seq,
		})
	}
	e.fireStateEnter(ctx, target)

	switch target.Kind {
	case domain.KindAccept:
		e.finish(ctx, domain.OutcomeAccepted, "")
	case domain.KindFail:
		e.finish(ctx, domain.OutcomeFailed, fmt.Sprintf("reached failure state %q", target.ID))
	}
}

func (e *Engine) recordException(ctx context.Context, ev domain.Event, err error) {
	e.mu.Lock()
	e.report.Exceptions = append(e.report.Exceptions, domain.Exception{
		Seq:         ev.Seq,
		InterfaceID: ev.InterfaceID,
		Message:     err.Error(),
		Time:        e.now(),
	})
	state := e.report.FinalState
	e.mu.Unlock()

	e.logger.Debug("Exception recorded", "pattern", e.pattern.Name, "seq", ev.Seq, "error", err)
	if e.hooks.OnException != nil {
		e.hooks.OnException(ctx, &domain.EventNotice{
			HookBase: e.hookBase(domain.HookException),
			StateID:  state,
			Event:    ev,
			Err:      err,
		})
	}
}

func (e *Engine) finish(ctx context.Context, outcome domain.Outcome, reason string) {
	e.mu.Lock()
	e.report.Outcome = outcome
	e.report.Reason = reason
	e.report.FinishedAt = e.now()
	snapshot := e.report.Clone()
	e.mu.Unlock()

	e.logger.Info("Pattern run finished",
		"pattern", e.pattern.Name,
		"outcome", outcome,
		"state", snapshot.FinalState,
		"events", snapshot.EventsProcessed,
	)
	if e.hooks.OnFinish != nil {
		e.hooks.OnFinish(ctx, &domain.FinishEvent{
			HookBase: e.hookBase(domain.HookFinish),
			Report:   snapshot,
		})
	}
}

func (e *Engine) fireStateEnter(ctx context.Context, s domain.State) {
	if e.hooks.OnStateEnter == nil {
		return
	}
	e.hooks.OnStateEnter(ctx, &domain.StateEvent{
		HookBase: e.hookBase(domain.HookStateEnter),
		StateID:  s.ID,
		Kind:     s.Kind,
	})
}

func (e *Engine) hookBase(t domain.HookType) domain.HookBase {
	return domain.HookBase{
		Timestamp: e.now(),
		Type:      t,
		Pattern:   e.pattern.Name,
	}
}
