package validator

import (
	"fmt"

	"github.com/aretw0/interop/pkg/domain"
)

// Lint reports problems that do not make a pattern invalid but usually point
// at a mistake. The pattern is expected to have passed ValidatePattern.
//
// Warnings cover states unreachable from the initial state, non-terminal
// states without outgoing transitions (a run stuck there can only time out)
// and transitions shadowed by an earlier unguarded transition from the same
// state. Unguarded transitions never take fault events, so transitions
// guarding on faults are not shadowed.
func Lint(p *domain.Pattern) []string {
	var warnings []string

	initial, ok := p.Initial()
	if !ok {
		return nil
	}

	reachable := map[string]bool{initial.ID: true}
	queue := []string{initial.ID}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, t := range p.Outgoing(cur) {
			if !reachable[t.To] {
				reachable[t.To] = true
				queue = append(queue, t.To)
			}
		}
	}

	for _, s := range p.States {
		if !reachable[s.ID] {
			warnings = append(warnings, fmt.Sprintf("state %q is unreachable from %q", s.ID, initial.ID))
		}
		if !s.Kind.Terminal() && len(p.Outgoing(s.ID)) == 0 {
			warnings = append(warnings, fmt.Sprintf("state %q has no outgoing transitions; a run reaching it can only time out", s.ID))
		}
	}

	catchAll := make(map[string]int)
	for i, t := range p.Transitions {
		if first, seen := catchAll[t.From]; seen && !selectsFaults(t) {
			warnings = append(warnings, fmt.Sprintf("transition #%d (%s -> %s) is shadowed by unguarded transition #%d", i+1, t.From, t.To, first+1))
			continue
		}
		if len(t.Guards) == 0 {
			catchAll[t.From] = i
		}
	}

	return warnings
}

func selectsFaults(t domain.Transition) bool {
	for _, g := range t.Guards {
		if g.Fault {
			return true
		}
	}
	return false
}
