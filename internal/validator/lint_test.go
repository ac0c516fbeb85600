package validator

import (
	"testing"

	"github.com/aretw0/interop/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestLint(t *testing.T) {
	t.Run("Clean pattern", func(t *testing.T) {
		p := &domain.Pattern{
			States: []domain.State{
				{ID: "start", Kind: domain.KindInitial},
				{ID: "done", Kind: domain.KindAccept},
			},
			Transitions: []domain.Transition{
				{From: "start", To: "done", Guards: []domain.Guard{{Interface: "api"}}},
			},
		}
		assert.Empty(t, Lint(p))
	})

	t.Run("Unreachable and dead end", func(t *testing.T) {
		p := &domain.Pattern{
			States: []domain.State{
				{ID: "start", Kind: domain.KindInitial},
				{ID: "waiting", Kind: domain.KindIntermediate},
				{ID: "done", Kind: domain.KindAccept},
				{ID: "orphan", Kind: domain.KindFail},
			},
			Transitions: []domain.Transition{
				{From: "start", To: "waiting", Guards: []domain.Guard{{Interface: "api"}}},
				{From: "start", To: "done", Guards: []domain.Guard{{Interface: "other"}}},
			},
		}
		assert.Equal(t, []string{
			`state "waiting" has no outgoing transitions; a run reaching it can only time out`,
			`state "orphan" is unreachable from "start"`,
		}, Lint(p))
	})

	t.Run("Shadowed transition", func(t *testing.T) {
		p := &domain.Pattern{
			States: []domain.State{
				{ID: "start", Kind: domain.KindInitial},
				{ID: "a", Kind: domain.KindAccept},
				{ID: "b", Kind: domain.KindFail},
				{ID: "c", Kind: domain.KindFail},
			},
			Transitions: []domain.Transition{
				{From: "start", To: "a"},
				{From: "start", To: "b", Guards: []domain.Guard{{Interface: "api"}}},
				{From: "start", To: "c", Guards: []domain.Guard{{Fault: true}}},
			},
		}
		assert.Equal(t, []string{
			"transition #2 (start -> b) is shadowed by unguarded transition #1",
		}, Lint(p))
	})
}
