package compiler_test

import (
	"testing"
	"time"

	"github.com/aretw0/interop/internal/compiler"
	"github.com/aretw0/interop/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFile(t *testing.T) {
	spec, err := compiler.NewParser().ParseFile("testdata/order-flow.yaml")
	require.NoError(t, err)

	assert.Equal(t, "order-flow", spec.Name)
	require.Len(t, spec.Components, 2)
	assert.Equal(t, "http://127.0.0.1:9001", spec.Components[0].Address)
	assert.Equal(t, domain.ModeStub, spec.Components[1].Interfaces[0].Mode)
	assert.Equal(t, "payments", spec.Components[1].Interfaces[0].ComponentID)

	p := spec.Pattern
	assert.Equal(t, "order-flow", p.Name, "pattern name defaults to document name")
	assert.Equal(t, domain.PolicyIgnore, p.OnUnexpected)
	assert.Equal(t, 20, p.Budget.MaxEvents)
	assert.Equal(t, 30*time.Second, p.Budget.Timeout)
	require.Contains(t, p.Schemas, "order")

	require.Len(t, p.Transitions, 3)
	first := p.Transitions[0]
	assert.Equal(t, "POST", first.Guards[0].Method)
	assert.Equal(t, domain.ActionBind, first.Actions[0].Type)
	assert.EqualValues(t, 1, first.Actions[1].Value)

	emit := p.Transitions[1].Actions[0]
	require.NotNil(t, emit.Message)
	assert.True(t, emit.Message.Reply)
	assert.Equal(t, 200, emit.Message.Status)
	assert.True(t, p.Transitions[2].Guards[0].Fault)
}

const minimal = `
name: minimal
components:
  - id: svc
    address: http://svc
    interfaces: [{id: api}]
pattern:
  on_unexpected: fail
  states:
    - {id: s, kind: initial}
    - {id: ok, kind: accept}
  transitions:
    - from: s
      to: ok
      guards: [{path: /status, equals: ok}]
`

func TestParse_JSONAndDefaults(t *testing.T) {
	spec, err := compiler.NewParser().Parse([]byte(`{
		"components": [{"id": "svc", "address": "http://svc", "interfaces": [{"id": "api"}]}],
		"pattern": {
			"on_unexpected": "ignore",
			"states": [{"id": "s", "kind": "initial"}, {"id": "ok", "kind": "accept"}],
			"transitions": [{"from": "s", "to": "ok", "guards": [{"status": 200, "equals": 42, "path": "/n"}]}]
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, domain.ModeIntercept, spec.Components[0].Interfaces[0].Mode)
	assert.Equal(t, "42", spec.Pattern.Transitions[0].Guards[0].Equals)
	assert.Equal(t, 200, spec.Pattern.Transitions[0].Guards[0].Status)

	_, err = compiler.NewParser().Parse([]byte(minimal))
	assert.NoError(t, err)
}

func TestParse_MissingAddressIsInvalidArchitecture(t *testing.T) {
	doc := `
components:
  - id: svc
    interfaces: [{id: api}]
pattern:
  on_unexpected: fail
  states: [{id: s, kind: initial}, {id: ok, kind: accept}]
  transitions: [{from: s, to: ok}]
`
	_, err := compiler.NewParser().Parse([]byte(doc))
	var ae *domain.InvalidArchitectureError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "svc", ae.ComponentID)
	assert.Equal(t, "address", ae.Field)
}

func TestParse_SchemaErrors(t *testing.T) {
	tests := map[string]string{
		"no pattern":   `components: []`,
		"bad mode":     "components: [{id: a, address: http://a, interfaces: [{id: i, mode: mirror}]}]\npattern: {states: [{id: s, kind: initial}], transitions: []}",
		"bad kind":     "pattern: {states: [{id: s, kind: start}], transitions: []}",
		"bad timeout":  "pattern: {budget: {timeout: soon}, states: [{id: s, kind: initial}], transitions: []}",
		"unknown key":  "pattern: {states: [{id: s, kind: initial}], transitions: [], retries: 3}",
		"wrong status": "pattern: {states: [{id: s, kind: initial}], transitions: [{from: s, to: s, guards: [{status: 42}]}]}",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := compiler.NewParser().Parse([]byte(doc))
			var se *domain.SchemaError
			assert.ErrorAs(t, err, &se)
		})
	}
}

func TestParse_InvalidPattern(t *testing.T) {
	doc := `
components:
  - id: svc
    address: http://svc
    interfaces: [{id: api}]
pattern:
  states: [{id: s, kind: initial}, {id: ok, kind: accept}]
  transitions: [{from: s, to: ghost, guards: [{interface: other}]}]
`
	_, err := compiler.NewParser().Parse([]byte(doc))
	var pe *domain.InvalidPatternError
	require.ErrorAs(t, err, &pe)
	assert.GreaterOrEqual(t, len(pe.Reasons), 3, "implicit policy, dangling target and undeclared interface")
}

func TestParse_Garbage(t *testing.T) {
	_, err := compiler.NewParser().Parse([]byte("   "))
	assert.Error(t, err)

	_, err = compiler.NewParser().Parse([]byte("pattern: [unterminated"))
	assert.Error(t, err)
}
