package validator

import (
	"strings"
	"testing"
	"time"

	"github.com/aretw0/interop/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validPattern() domain.Pattern {
	return domain.Pattern{
		Name: "order-flow",
		States: []domain.State{
			{ID: "start", Kind: domain.KindInitial},
			{ID: "ordered", Kind: domain.KindIntermediate},
			{ID: "done", Kind: domain.KindAccept},
			{ID: "broken", Kind: domain.KindFail},
		},
		Transitions: []domain.Transition{
			{From: "start", To: "ordered", Guards: []domain.Guard{{Interface: "orders", Direction: domain.DirectionRequest}},
				Actions: []domain.Action{{Type: domain.ActionBind, Var: "id", Path: "/id"}}},
			{From: "ordered", To: "done", Guards: []domain.Guard{{Path: "/status", Equals: "ok", Expr: `event.status == 201`}}},
			{From: "ordered", To: "broken", Guards: []domain.Guard{{Fault: true}}},
		},
		OnUnexpected: domain.PolicyIgnore,
		Budget:       domain.Budget{MaxEvents: 10, Timeout: time.Second},
	}
}

func reasons(t *testing.T, err error) []string {
	t.Helper()
	var ipe *domain.InvalidPatternError
	require.ErrorAs(t, err, &ipe)
	return ipe.Reasons
}

func TestValidatePattern_Valid(t *testing.T) {
	p := validPattern()
	assert.NoError(t, ValidatePattern(&p))
}

func TestValidatePattern_Problems(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *domain.Pattern)
		want   string
	}{
		{"no initial", func(p *domain.Pattern) { p.States[0].Kind = domain.KindIntermediate }, "exactly one initial state"},
		{"two initials", func(p *domain.Pattern) { p.States[1].Kind = domain.KindInitial }, "exactly one initial state"},
		{"no terminal", func(p *domain.Pattern) {
			p.States = p.States[:2]
			p.Transitions = p.Transitions[:1]
		}, "at least one accept or fail state"},
		{"implicit policy", func(p *domain.Pattern) { p.OnUnexpected = "" }, "on_unexpected must be declared"},
		{"unknown policy", func(p *domain.Pattern) { p.OnUnexpected = "retry" }, "unknown on_unexpected"},
		{"dangling target", func(p *domain.Pattern) { p.Transitions[0].To = "ghost" }, `unknown target state "ghost"`},
		{"leaving terminal", func(p *domain.Pattern) {
			p.Transitions = append(p.Transitions, domain.Transition{From: "done", To: "start"})
		}, "terminal state"},
		{"duplicate state", func(p *domain.Pattern) { p.States = append(p.States, domain.State{ID: "done", Kind: domain.KindAccept}) }, "duplicate state"},
		{"bad expr", func(p *domain.Pattern) { p.Transitions[1].Guards[0].Expr = "event.status ==" }, "invalid expression"},
		{"bad path", func(p *domain.Pattern) { p.Transitions[1].Guards[0].Path = ".status[" }, "invalid expression"},
		{"equals without path", func(p *domain.Pattern) { p.Transitions[1].Guards[0].Path = "" }, "equals requires a path"},
		{"undeclared schema", func(p *domain.Pattern) { p.Transitions[1].Guards[0].Schema = "order" }, `undeclared schema "order"`},
		{"bind without var", func(p *domain.Pattern) { p.Transitions[0].Actions[0].Var = "" }, "bind requires var"},
		{"unknown action", func(p *domain.Pattern) { p.Transitions[0].Actions[0].Type = "call" }, "unknown action type"},
		{"emit without message", func(p *domain.Pattern) {
			p.Transitions[0].Actions = append(p.Transitions[0].Actions, domain.Action{Type: domain.ActionEmit})
		}, "emit requires a message"},
		{"negative budget", func(p *domain.Pattern) { p.Budget.MaxEvents = -1 }, "max_events must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPattern()
			tt.mutate(&p)
			err := ValidatePattern(&p)
			require.Error(t, err)

			found := false
			for _, r := range reasons(t, err) {
				if strings.Contains(r, tt.want) {
					found = true
				}
			}
			assert.True(t, found, "expected a reason containing %q, got %v", tt.want, reasons(t, err))
		})
	}
}

func TestValidatePattern_CollectsAllProblems(t *testing.T) {
	p := validPattern()
	p.OnUnexpected = ""
	p.Transitions[0].To = "ghost"
	assert.Len(t, reasons(t, ValidatePattern(&p)), 2)
}

func TestValidatePattern_Schemas(t *testing.T) {
	p := validPattern()
	p.Schemas = map[string]map[string]any{
		"order": {"type": "object", "required": []any{"id"}},
	}
	p.Transitions[1].Guards[0].Schema = "order"
	assert.NoError(t, ValidatePattern(&p))

	p.Schemas["order"] = map[string]any{"type": "nonsense"}
	err := ValidatePattern(&p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `schema "order"`)
}

func TestValidateSpec_UndeclaredInterfaces(t *testing.T) {
	spec := &domain.Spec{
		Components: []domain.Component{{ID: "shop", Address: "http://shop", Interfaces: []domain.Interface{{ID: "orders"}}}},
		Pattern:    validPattern(),
	}
	assert.NoError(t, ValidateSpec(spec))

	spec.Pattern.Transitions[0].Guards[0].Interface = "billing"
	spec.Pattern.Transitions[0].Actions = append(spec.Pattern.Transitions[0].Actions, domain.Action{
		Type:    domain.ActionEmit,
		Message: &domain.MessageTemplate{Interface: "mailer"},
	})
	rs := reasons(t, ValidateSpec(spec))
	assert.Len(t, rs, 2)
}

func TestUnreachable(t *testing.T) {
	p := validPattern()
	assert.Empty(t, Unreachable(&p))

	p.States = append(p.States, domain.State{ID: "island", Kind: domain.KindIntermediate})
	assert.Equal(t, []string{"island"}, Unreachable(&p))
	assert.Equal(t, []string{"island"}, DeadEnds(&p))
}
