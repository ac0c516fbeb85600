package validator

import (
	"context"
	"fmt"
	"sort"

	"github.com/aretw0/interop/internal/expression"
	"github.com/aretw0/interop/pkg/domain"
	"github.com/aretw0/interop/pkg/pathexpr"
)

// ValidatePattern checks the structure of a pattern state machine and
// returns every problem found as a single *domain.InvalidPatternError.
func ValidatePattern(p *domain.Pattern) error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	states := make(map[string]domain.State, len(p.States))
	initials := 0
	terminals := 0
	for i, s := range p.States {
		if s.ID == "" {
			add("state #%d has no id", i+1)
			continue
		}
		if _, dup := states[s.ID]; dup {
			add("duplicate state %q", s.ID)
			continue
		}
		states[s.ID] = s
		switch s.Kind {
		case domain.KindInitial:
			initials++
		case domain.KindAccept, domain.KindFail:
			terminals++
		case domain.KindIntermediate:
		default:
			add("state %q has unknown kind %q", s.ID, s.Kind)
		}
	}
	if initials != 1 {
		add("exactly one initial state is required, found %d", initials)
	}
	if terminals == 0 {
		add("at least one accept or fail state is required")
	}

	if p.OnUnexpected == "" {
		add("on_unexpected must be declared explicitly (ignore or fail)")
	} else if !p.OnUnexpected.Valid() {
		add("unknown on_unexpected policy %q", p.OnUnexpected)
	}
	if p.Budget.MaxEvents < 0 {
		add("budget.max_events must not be negative")
	}
	if p.Budget.Timeout < 0 {
		add("budget.timeout must not be negative")
	}

	for name, raw := range p.Schemas {
		if _, err := pathexpr.LoadSchema(context.Background(), raw); err != nil {
			add("schema %q: %v", name, err)
		}
	}

	exprs := expression.New()
	for i, t := range p.Transitions {
		label := fmt.Sprintf("transition #%d (%s -> %s)", i+1, t.From, t.To)

		from, ok := states[t.From]
		if !ok {
			add("%s: unknown source state %q", label, t.From)
		} else if from.Kind.Terminal() {
			add("%s: terminal state %q cannot have outgoing transitions", label, t.From)
		}
		if _, ok := states[t.To]; !ok {
			add("%s: unknown target state %q", label, t.To)
		}

		for j, g := range t.Guards {
			gl := fmt.Sprintf("%s guard #%d", label, j+1)
			if g.Direction != "" && g.Direction != domain.DirectionRequest && g.Direction != domain.DirectionResponse {
				add("%s: unknown direction %q", gl, g.Direction)
			}
			if g.Path != "" {
				if err := pathexpr.Compile(g.Path); err != nil {
					add("%s: %v", gl, err)
				}
			}
			if g.Equals != "" && g.Path == "" {
				add("%s: equals requires a path", gl)
			}
			if g.Schema != "" {
				if _, ok := p.Schemas[g.Schema]; !ok {
					add("%s: undeclared schema %q", gl, g.Schema)
				}
			}
			if g.Expr != "" {
				if err := exprs.Compile(g.Expr); err != nil {
					add("%s: %v", gl, err)
				}
			}
		}

		for j, a := range t.Actions {
			al := fmt.Sprintf("%s action #%d", label, j+1)
			switch a.Type {
			case domain.ActionBind:
				if a.Var == "" {
					add("%s: bind requires var", al)
				}
				if a.Path == "" && a.Header == "" {
					add("%s: bind requires a path or a header", al)
				}
				if a.Path != "" {
					if err := pathexpr.Compile(a.Path); err != nil {
						add("%s: %v", al, err)
					}
				}
			case domain.ActionSet:
				if a.Var == "" {
					add("%s: set requires var", al)
				}
			case domain.ActionEmit:
				switch {
				case a.Message == nil:
					add("%s: emit requires a message", al)
				case a.Message.Interface == "" && !a.Message.Reply:
					add("%s: emit requires an interface unless it is a reply", al)
				}
			default:
				add("%s: unknown action type %q", al, a.Type)
			}
		}
	}

	if len(errs) > 0 {
		return &domain.InvalidPatternError{Pattern: p.Name, Reasons: errs}
	}
	return nil
}

// ValidateSpec validates the pattern and checks that every interface it
// references is declared by a component.
func ValidateSpec(spec *domain.Spec) error {
	perr := ValidatePattern(&spec.Pattern)

	declared := make(map[string]bool)
	for _, c := range spec.Components {
		for _, iface := range c.Interfaces {
			declared[iface.ID] = true
		}
	}

	var reasons []string
	if ipe, ok := perr.(*domain.InvalidPatternError); ok {
		reasons = append(reasons, ipe.Reasons...)
	}
	for i, t := range spec.Pattern.Transitions {
		for _, g := range t.Guards {
			if g.Interface != "" && !declared[g.Interface] {
				reasons = append(reasons, fmt.Sprintf("transition #%d: guard references undeclared interface %q", i+1, g.Interface))
			}
		}
		for _, a := range t.Actions {
			if a.Type == domain.ActionEmit && a.Message != nil && a.Message.Interface != "" && !declared[a.Message.Interface] {
				reasons = append(reasons, fmt.Sprintf("transition #%d: emit references undeclared interface %q", i+1, a.Message.Interface))
			}
		}
	}

	if len(reasons) > 0 {
		return &domain.InvalidPatternError{Pattern: spec.Pattern.Name, Reasons: reasons}
	}
	return nil
}

// Unreachable returns the ids of states that no path from the initial state
// reaches, in declaration order.
func Unreachable(p *domain.Pattern) []string {
	initial, ok := p.Initial()
	if !ok {
		return nil
	}

	visited := map[string]bool{}
	queue := []string{initial.ID}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		for _, t := range p.Outgoing(current) {
			if !visited[t.To] {
				queue = append(queue, t.To)
			}
		}
	}

	var out []string
	for _, s := range p.States {
		if !visited[s.ID] {
			out = append(out, s.ID)
		}
	}
	return out
}

// DeadEnds returns the non-terminal states without outgoing transitions,
// sorted by id. A run that enters one can only end by timeout.
func DeadEnds(p *domain.Pattern) []string {
	var out []string
	for _, s := range p.States {
		if s.Kind.Terminal() {
			continue
		}
		if len(p.Outgoing(s.ID)) == 0 {
			out = append(out, s.ID)
		}
	}
	sort.Strings(out)
	return out
}
