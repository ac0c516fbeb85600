package domain

import "time"

// StateKind classifies a pattern state.
type StateKind string

const (
	KindInitial      StateKind = "initial"
	KindIntermediate StateKind = "intermediate"
	KindAccept       StateKind = "accept"
	KindFail         StateKind = "fail"
)

// Terminal reports whether reaching a state of this kind ends the run.
func (k StateKind) Terminal() bool {
	return k == KindAccept || k == KindFail
}

// State is a node of the pattern state machine.
type State struct {
	ID   string    `json:"id" yaml:"id"`
	Kind StateKind `json:"kind" yaml:"kind"`
}

// UnexpectedPolicy decides what happens when no guard matches an event.
// It must be declared explicitly; there is no default.
type UnexpectedPolicy string

const (
	// PolicyIgnore consumes the event without a transition.
	PolicyIgnore UnexpectedPolicy = "ignore"
	// PolicyFail ends the run as failed.
	PolicyFail UnexpectedPolicy = "fail"
)

// Valid reports whether p is a known policy.
func (p UnexpectedPolicy) Valid() bool {
	return p == PolicyIgnore || p == PolicyFail
}

// DefaultRunTimeout bounds a run whose budget sets neither field.
const DefaultRunTimeout = 5 * time.Minute

// Budget bounds a run. A zero field leaves that dimension unbounded, but a
// run is always bounded in at least one: an empty budget falls back to
// DefaultRunTimeout.
type Budget struct {
	MaxEvents int           `json:"max_events,omitempty" yaml:"max_events,omitempty"`
	Timeout   time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Unbounded reports whether the budget sets no limit at all.
func (b Budget) Unbounded() bool {
	return b.MaxEvents <= 0 && b.Timeout <= 0
}

// Guard is a side-effect-free predicate over an event and the accumulated
// bindings. Every field that is set must hold; an empty guard matches any
// non-fault event.
type Guard struct {
	Interface string            `json:"interface,omitempty" yaml:"interface,omitempty"`
	Direction Direction         `json:"direction,omitempty" yaml:"direction,omitempty"`
	Method    string            `json:"method,omitempty" yaml:"method,omitempty"`
	Status    int               `json:"status,omitempty" yaml:"status,omitempty"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	// Fault selects transport exception events. Fault events only ever match
	// guards that set it.
	Fault bool `json:"fault,omitempty" yaml:"fault,omitempty"`

	// Path and Equals form a case-insensitive match over the body.
	// Equals may reference a binding as "${name}".
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	Equals string `json:"equals,omitempty" yaml:"equals,omitempty"`

	// Schema names a schema declared in the document that the body must satisfy.
	Schema string `json:"schema,omitempty" yaml:"schema,omitempty"`

	// Expr is a boolean expression over "event" and "vars".
	Expr string `json:"expr,omitempty" yaml:"expr,omitempty"`
}

// ActionType enumerates the things a transition can do.
type ActionType string

const (
	// ActionBind extracts a value from the event into a variable.
	ActionBind ActionType = "bind"
	// ActionSet assigns a literal value to a variable.
	ActionSet ActionType = "set"
	// ActionEmit synthesizes an outbound message through an interface.
	ActionEmit ActionType = "emit"
)

// MessageTemplate describes a message to emit. String fields are templates
// rendered against the bindings and the triggering event.
type MessageTemplate struct {
	Interface string            `json:"interface" yaml:"interface"`
	Method    string            `json:"method,omitempty" yaml:"method,omitempty"`
	Path      string            `json:"path,omitempty" yaml:"path,omitempty"`
	Status    int               `json:"status,omitempty" yaml:"status,omitempty"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body      string            `json:"body,omitempty" yaml:"body,omitempty"`

	// Reply answers the triggering request instead of sending a new one.
	Reply bool `json:"reply,omitempty" yaml:"reply,omitempty"`
}

// Action is one step executed when a transition is taken.
type Action struct {
	Type    ActionType       `json:"type" yaml:"type"`
	Var     string           `json:"var,omitempty" yaml:"var,omitempty"`
	Path    string           `json:"path,omitempty" yaml:"path,omitempty"`
	Header  string           `json:"header,omitempty" yaml:"header,omitempty"`
	Value   any              `json:"value,omitempty" yaml:"value,omitempty"`
	Message *MessageTemplate `json:"message,omitempty" yaml:"message,omitempty"`
}

// Transition moves the machine from one state to another when all of its
// guards hold.
type Transition struct {
	From    string   `json:"from" yaml:"from"`
	To      string   `json:"to" yaml:"to"`
	Guards  []Guard  `json:"guards,omitempty" yaml:"guards,omitempty"`
	Actions []Action `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// Pattern is the finite-state model of the expected message exchange.
type Pattern struct {
	Name         string           `json:"name" yaml:"name"`
	States       []State          `json:"states" yaml:"states"`
	Transitions  []Transition     `json:"transitions" yaml:"transitions"`
	OnUnexpected UnexpectedPolicy `json:"on_unexpected" yaml:"on_unexpected"`
	Budget       Budget           `json:"budget,omitempty" yaml:"budget,omitempty"`

	// Schemas are named documents usable by guards (Guard.Schema). Values
	// are raw JSON Schema documents.
	Schemas map[string]map[string]any `json:"schemas,omitempty" yaml:"schemas,omitempty"`
}

// Initial returns the single initial state.
func (p *Pattern) Initial() (State, bool) {
	for _, s := range p.States {
		if s.Kind == KindInitial {
			return s, true
		}
	}
	return State{}, false
}

// State looks a state up by id.
func (p *Pattern) State(id string) (State, bool) {
	for _, s := range p.States {
		if s.ID == id {
			return s, true
		}
	}
	return State{}, false
}

// Outgoing returns the transitions leaving a state, in declaration order.
func (p *Pattern) Outgoing(stateID string) []Transition {
	var out []Transition
	for _, t := range p.Transitions {
		if t.From == stateID {
			out = append(out, t)
		}
	}
	return out
}
