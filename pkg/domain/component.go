package domain

// WrapperMode selects how an Interface is observed. It is fixed at deploy
// time and never switched at runtime.
type WrapperMode string

const (
	// ModeIntercept sits in front of the real address, observes and relays.
	ModeIntercept WrapperMode = "intercept"
	// ModeStub fully emulates the interface; responses are driven by pattern actions.
	ModeStub WrapperMode = "stub"
)

// Valid reports whether m is a known mode.
func (m WrapperMode) Valid() bool {
	return m == ModeIntercept || m == ModeStub
}

// Interface is a protocol endpoint declared by a Component.
type Interface struct {
	ID          string      `json:"id" yaml:"id"`
	ComponentID string      `json:"component_id,omitempty" yaml:"component_id,omitempty"`
	Path        string      `json:"path,omitempty" yaml:"path,omitempty"`
	Mode        WrapperMode `json:"mode" yaml:"mode"`

	// Listen is the host:port the wrapper binds. Empty means an ephemeral
	// loopback port.
	Listen string `json:"listen,omitempty" yaml:"listen,omitempty"`
}

// Component is a participating service. It is immutable once the
// architecture model has been built.
type Component struct {
	ID         string      `json:"id" yaml:"id"`
	Address    string      `json:"address" yaml:"address"`
	Interfaces []Interface `json:"interfaces,omitempty" yaml:"interfaces,omitempty"`
}

// Clone returns a copy that shares no slices with c.
func (c Component) Clone() Component {
	out := c
	if c.Interfaces != nil {
		out.Interfaces = make([]Interface, len(c.Interfaces))
		copy(out.Interfaces, c.Interfaces)
	}
	return out
}

// Spec is a fully loaded specification document: the architecture plus the
// pattern expected over it.
type Spec struct {
	Name       string      `json:"name" yaml:"name"`
	Components []Component `json:"components" yaml:"components"`
	Pattern    Pattern     `json:"pattern" yaml:"pattern"`
}
