package domain

import (
	"context"
	"time"
)

// HookType defines the category of a lifecycle event.
type HookType string

const (
	HookStateEnter HookType = "state_enter"
	HookTransition HookType = "transition"
	HookUnexpected HookType = "unexpected"
	HookException  HookType = "exception"
	HookFinish     HookType = "finish"
)

// HookBase contains common fields for all lifecycle events.
type HookBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      HookType  `json:"type"`
	Pattern   string    `json:"pattern"`
}

// StateEvent reports entry into a pattern state.
type StateEvent struct {
	HookBase
	StateID string    `json:"state_id"`
	Kind    StateKind `json:"kind"`
}

// TransitionEvent reports a transition taken on an event.
type TransitionEvent struct {
	HookBase
	From string `json:"from"`
	To   string `json:"to"`
	Seq  uint64 `json:"seq"`
}

// EventNotice reports an event that did not drive a transition, either
// because nothing matched or because it carried a fault.
type EventNotice struct {
	HookBase
	StateID string `json:"state_id"`
	Event   Event  `json:"event"`
	Err     error  `json:"-"`
}

// FinishEvent reports the end of a run.
type FinishEvent struct {
	HookBase
	Report *Report `json:"report"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnStateEnter func(context.Context, *StateEvent)
	OnTransition func(context.Context, *TransitionEvent)
	OnUnexpected func(context.Context, *EventNotice)
	OnException  func(context.Context, *EventNotice)
	OnFinish     func(context.Context, *FinishEvent)
}

// ComposeHooks merges several hook sets; each callback fans out to every
// non-nil callback of the same kind, in order.
func ComposeHooks(sets ...LifecycleHooks) LifecycleHooks {
	var out LifecycleHooks
	for _, h := range sets {
		out.OnStateEnter = chain(out.OnStateEnter, h.OnStateEnter)
		out.OnTransition = chain(out.OnTransition, h.OnTransition)
		out.OnUnexpected = chain(out.OnUnexpected, h.OnUnexpected)
		out.OnException = chain(out.OnException, h.OnException)
		out.OnFinish = chain(out.OnFinish, h.OnFinish)
	}
	return out
}

func chain[T any](a, b func(context.Context, T)) func(context.Context, T) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(ctx context.Context, v T) {
		a(ctx, v)
		b(ctx, v)
	}
}
