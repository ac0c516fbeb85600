package domain

import (
	"errors"
	"fmt"
)

// ErrTraceNotFound is returned when a trace ID cannot be found in the store.
var ErrTraceNotFound = errors.New("trace not found")

// ErrUnexpectedEvent is the cause recorded when no guard matches and the
// pattern's unexpected-event policy is "fail".
var ErrUnexpectedEvent = errors.New("unexpected event")

// ErrTimeout is the cause recorded when a run exhausts its budget before
// reaching a terminal state.
var ErrTimeout = errors.New("run budget exhausted")

// ErrNoPendingRequest is returned when a reply targets a correlation id that
// no stub wrapper is waiting on.
var ErrNoPendingRequest = errors.New("no pending request")

// InvalidArchitectureError reports a malformed or incomplete architecture
// declaration. It is raised at load time, before any wrapper is deployed.
type InvalidArchitectureError struct {
	ComponentID string
	Field       string
	Reason      string
	Err         error
}

func (e *InvalidArchitectureError) Error() string {
	msg := "invalid architecture"
	if e.ComponentID != "" {
		msg += fmt.Sprintf(": component %q", e.ComponentID)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(": field %q", e.Field)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *InvalidArchitectureError) Unwrap() error { return e.Err }

// InvalidInterfaceError reports an interface declaration that cannot become
// an endpoint (missing id, bad path or mode).
type InvalidInterfaceError struct {
	InterfaceID string
	Reason      string
}

func (e *InvalidInterfaceError) Error() string {
	return fmt.Sprintf("invalid interface %q: %s", e.InterfaceID, e.Reason)
}

// InvalidWrapperError reports that a declared interface cannot be turned into
// a live or stub endpoint.
type InvalidWrapperError struct {
	InterfaceID string
	Reason      string
	Err         error
}

func (e *InvalidWrapperError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid wrapper for interface %q: %s: %v", e.InterfaceID, e.Reason, e.Err)
	}
	return fmt.Sprintf("invalid wrapper for interface %q: %s", e.InterfaceID, e.Reason)
}

func (e *InvalidWrapperError) Unwrap() error { return e.Err }

// WrapperDeploymentError reports a runtime fault while deploying or releasing
// a wrapper.
type WrapperDeploymentError struct {
	InterfaceID string
	Op          string // "deploy" or "release"
	Err         error
}

func (e *WrapperDeploymentError) Error() string {
	return fmt.Sprintf("wrapper %s failed for interface %q: %v", e.Op, e.InterfaceID, e.Err)
}

func (e *WrapperDeploymentError) Unwrap() error { return e.Err }

// InvalidPatternError reports a structural problem in the pattern state
// machine (missing initial state, dangling transition, implicit policy...).
type InvalidPatternError struct {
	Pattern string
	Reasons []string
}

func (e *InvalidPatternError) Error() string {
	if len(e.Reasons) == 1 {
		return fmt.Sprintf("invalid pattern %q: %s", e.Pattern, e.Reasons[0])
	}
	msg := fmt.Sprintf("invalid pattern %q: %d problems:", e.Pattern, len(e.Reasons))
	for i, r := range e.Reasons {
		msg += fmt.Sprintf("\n  %d. %s", i+1, r)
	}
	return msg
}

// SchemaError reports a document that does not conform to a schema.
type SchemaError struct {
	Subject string
	Err     error
}

func (e *SchemaError) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("schema validation failed: %v", e.Err)
	}
	return fmt.Sprintf("schema validation failed for %s: %v", e.Subject, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// PathError reports a path expression that is invalid or does not resolve.
type PathError struct {
	Expr   string
	Reason string
	Err    error
}

func (e *PathError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("path %q: %s: %v", e.Expr, e.Reason, e.Err)
	}
	return fmt.Sprintf("path %q: %s", e.Expr, e.Reason)
}

func (e *PathError) Unwrap() error { return e.Err }

// TransportError is a transport-level fault observed by a wrapper
// (connection error, malformed request, oversized body...). It is data about
// the system under test and ends up in the report, never as a program fault.
type TransportError struct {
	InterfaceID   string
	CorrelationID string
	Direction     Direction
	Err           error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport fault on interface %q: %v", e.InterfaceID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
