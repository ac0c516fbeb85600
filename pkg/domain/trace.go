package domain

import "time"

// Trace is an ordered, replayable log of events captured during a run.
type Trace struct {
	ID        string    `json:"id"`
	Pattern   string    `json:"pattern,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Events    []Event   `json:"events"`
}

// Len returns the number of recorded events.
func (t *Trace) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Events)
}
