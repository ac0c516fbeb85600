package domain

import (
	"maps"
	"time"
)

// Outcome is the verdict of a run.
type Outcome string

const (
	OutcomeRunning  Outcome = "running"
	OutcomeAccepted Outcome = "accepted"
	OutcomeFailed   Outcome = "failed"
	OutcomeTimeout  Outcome = "timeout"
)

// Exception is a transport fault or evaluation problem recorded during a run.
type Exception struct {
	Seq         uint64    `json:"seq"`
	InterfaceID string    `json:"interface,omitempty"`
	Message     string    `json:"message"`
	Time        time.Time `json:"time"`
}

// Bindings holds the variables accumulated by actions during a run.
type Bindings map[string]any

// Clone returns a shallow copy of the bindings.
func (b Bindings) Clone() Bindings {
	if b == nil {
		return Bindings{}
	}
	return maps.Clone(b)
}

// Report is the structured result of executing a pattern against an event
// stream.
type Report struct {
	Pattern    string      `json:"pattern"`
	Outcome    Outcome     `json:"outcome"`
	FinalState string      `json:"final_state"`
	Path       []string    `json:"path"`
	Bindings   Bindings    `json:"bindings,omitempty"`
	Exceptions []Exception `json:"exceptions,omitempty"`

	// Unexpected lists the sequence numbers of events that matched no guard.
	Unexpected []uint64 `json:"unexpected,omitempty"`

	EventsProcessed int       `json:"events_processed"`
	Reason          string    `json:"reason,omitempty"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at,omitzero"`
}

// Conformant reports whether the run reached an accepting state.
func (r *Report) Conformant() bool {
	return r != nil && r.Outcome == OutcomeAccepted
}

// Clone returns a copy of the report that shares no mutable state.
func (r *Report) Clone() *Report {
	if r == nil {
		return nil
	}
	out := *r
	out.Path = append([]string(nil), r.Path...)
	out.Bindings = r.Bindings.Clone()
	out.Exceptions = append([]Exception(nil), r.Exceptions...)
	out.Unexpected = append([]uint64(nil), r.Unexpected...)
	return &out
}
