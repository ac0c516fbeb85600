package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/interop/internal/presentation/graph"
	"github.com/aretw0/interop/pkg/domain"
)

func orderPattern() *domain.Pattern {
	return &domain.Pattern{
		Name: "order-flow",
		States: []domain.State{
			{ID: "start", Kind: domain.KindInitial},
			{ID: "awaiting-payment", Kind: domain.KindIntermediate},
			{ID: "paid", Kind: domain.KindAccept},
			{ID: "rejected", Kind: domain.KindFail},
		},
		Transitions: []domain.Transition{
			{
				From:   "start",
				To:     "awaiting-payment",
				Guards: []domain.Guard{{Interface: "orders", Method: "post"}},
			},
			{
				From:    "awaiting-payment",
				To:      "paid",
				Guards:  []domain.Guard{{Interface: "billing", Path: "$.state", Equals: "\"ok\""}},
				Actions: []domain.Action{{Type: domain.ActionEmit, Message: &domain.MessageTemplate{Reply: true}}},
			},
			{From: "awaiting-payment", To: "rejected", Guards: []domain.Guard{{Fault: true}}},
		},
		OnUnexpected: domain.PolicyIgnore,
	}
}

func TestGenerateMermaid(t *testing.T) {
	out := graph.GenerateMermaid(orderPattern(), nil)

	contains := []string{
		"graph TD\n",
		"start((\"start\"))",
		"awaiting_payment[\"awaiting-payment\"]",
		"paid(((\"paid\")))",
		"rejected{{\"rejected\"}}",
		"start -- \"orders POST\" --> awaiting_payment",
		"awaiting_payment == \"billing $.state = 'ok'\" ==> paid",
		"awaiting_payment -- \"fault\" --> rejected",
	}
	for _, c := range contains {
		if !strings.Contains(out, c) {
			t.Errorf("expected output to contain %q\ngot:\n%s", c, out)
		}
	}
	if strings.Contains(out, "classDef") {
		t.Error("expected no overlay styles without an overlay")
	}
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	tests := []struct {
		name     string
		report   *domain.Report
		contains []string
		absent   []string
	}{
		{
			name: "Accepted Run",
			report: &domain.Report{
				Outcome:    domain.OutcomeAccepted,
				FinalState: "paid",
				Path:       []string{"start", "awaiting-payment", "paid"},
			},
			contains: []string{
				"class start visited;",
				"class awaiting_payment visited;",
				"class paid current;",
			},
			absent: []string{"class paid visited;"},
		},
		{
			name: "Timed Out Run",
			report: &domain.Report{
				Outcome:    domain.OutcomeTimeout,
				FinalState: "awaiting-payment",
				Path:       []string{"start", "awaiting-payment"},
			},
			contains: []string{
				"class start visited;",
				"class awaiting_payment failed;",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := graph.GenerateMermaid(orderPattern(), graph.OverlayFromReport(tt.report))
			for _, c := range tt.contains {
				if !strings.Contains(out, c) {
					t.Errorf("expected output to contain %q\ngot:\n%s", c, out)
				}
			}
			for _, a := range tt.absent {
				if strings.Contains(out, a) {
					t.Errorf("expected output not to contain %q", a)
				}
			}
		})
	}
}
