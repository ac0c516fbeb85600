package architecture

import (
	"fmt"

	"github.com/aretw0/interop/pkg/domain"
)

// Validate checks the structural requirements of an architecture and stops
// at the first violation. It never deploys anything.
func Validate(components []domain.Component) error {
	if len(components) == 0 {
		return &domain.InvalidArchitectureError{Field: "components", Reason: "at least one component is required"}
	}

	seenComponents := make(map[string]bool, len(components))
	seenInterfaces := make(map[string]string)

	for i, c := range components {
		if c.ID == "" {
			return &domain.InvalidArchitectureError{Field: "id", Reason: fmt.Sprintf("component #%d has no id", i+1)}
		}
		if c.Address == "" {
			return &domain.InvalidArchitectureError{ComponentID: c.ID, Field: "address", Reason: "missing address"}
		}
		if seenComponents[c.ID] {
			return &domain.InvalidArchitectureError{ComponentID: c.ID, Field: "id", Reason: "duplicate component id"}
		}
		seenComponents[c.ID] = true

		for j, iface := range c.Interfaces {
			if iface.ID == "" {
				return &domain.InvalidArchitectureError{
					ComponentID: c.ID,
					Field:       "interfaces",
					Err:         &domain.InvalidInterfaceError{Reason: fmt.Sprintf("interface #%d has no id", j+1)},
				}
			}
			if owner, dup := seenInterfaces[iface.ID]; dup {
				return &domain.InvalidArchitectureError{
					ComponentID: c.ID,
					Field:       "interfaces",
					Err:         &domain.InvalidInterfaceError{InterfaceID: iface.ID, Reason: fmt.Sprintf("already declared by component %q", owner)},
				}
			}
			if iface.Mode != "" && !iface.Mode.Valid() {
				return &domain.InvalidArchitectureError{
					ComponentID: c.ID,
					Field:       "interfaces",
					Err:         &domain.InvalidWrapperError{InterfaceID: iface.ID, Reason: fmt.Sprintf("unknown mode %q", iface.Mode)},
				}
			}
			seenInterfaces[iface.ID] = c.ID
		}
	}
	return nil
}
