package domain

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// Direction tells whether an Event carries a request or a response.
type Direction string

const (
	DirectionRequest  Direction = "request"
	DirectionResponse Direction = "response"
)

// Event is the normalized record of one observation at an interception point.
// It is produced once by a wrapper and never mutated afterwards; consumers
// that need to change a field work on a copy.
type Event struct {
	// Seq is the position in the single ordered stream, assigned by the
	// first ordering point (capture queue, fan-out or recorder).
	Seq uint64 `json:"seq"`

	InterfaceID   string            `json:"interface"`
	Direction     Direction         `json:"direction,omitempty"`
	Method        string            `json:"method,omitempty"`
	Path          string            `json:"path,omitempty"`
	Status        int               `json:"status,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Body          string            `json:"body,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	CorrelationID string            `json:"correlation_id,omitempty"`

	// Fault is non-empty when the event reports a transport exception
	// instead of a message.
	Fault string `json:"fault,omitempty"`
}

// IsFault reports whether the event is a transport exception.
func (e Event) IsFault() bool {
	return e.Fault != ""
}

// Header returns the value of a header, matched case-insensitively.
func (e Event) Header(name string) string {
	if v, ok := e.Headers[http.CanonicalHeaderKey(name)]; ok {
		return v
	}
	for k, v := range e.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Clone returns a deep copy of the event.
func (e Event) Clone() Event {
	out := e
	if e.Headers != nil {
		out.Headers = make(map[string]string, len(e.Headers))
		for k, v := range e.Headers {
			out.Headers[k] = v
		}
	}
	return out
}

// FlattenHeaders converts an http.Header into the single-valued, canonical
// representation stored in events. Repeated values are joined with ", ".
func FlattenHeaders(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, vs := range h {
		out[http.CanonicalHeaderKey(k)] = strings.Join(vs, ", ")
	}
	return out
}

// FaultEvent converts an exception pushed through a sink into an Event so it
// keeps its place in the ordered stream.
func FaultEvent(err error, at time.Time) Event {
	ev := Event{
		Timestamp: at,
		Fault:     "unknown fault",
	}
	if err != nil {
		ev.Fault = err.Error()
	}
	var te *TransportError
	if errors.As(err, &te) {
		ev.InterfaceID = te.InterfaceID
		ev.CorrelationID = te.CorrelationID
		ev.Direction = te.Direction
	}
	return ev
}

// Message is an outbound message synthesized by a pattern action.
type Message struct {
	InterfaceID string            `json:"interface"`
	InReplyTo   string            `json:"in_reply_to,omitempty"`
	Method      string            `json:"method,omitempty"`
	Path        string            `json:"path,omitempty"`
	Status      int               `json:"status,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Body        string            `json:"body,omitempty"`
}

// IsReply reports whether the message answers a pending request.
func (m Message) IsReply() bool {
	return m.InReplyTo != ""
}
