package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/interop/pkg/domain"
)

// GraphOverlay contains run data to visualize on the graph.
type GraphOverlay struct {
	VisitedStates []string
	CurrentState  string
	Outcome       domain.Outcome
}

// OverlayFromReport builds an overlay out of a run report.
func OverlayFromReport(r *domain.Report) *GraphOverlay {
	if r == nil {
		return nil
	}
	return &GraphOverlay{
		VisitedStates: append([]string(nil), r.Path...),
		CurrentState:  r.FinalState,
		Outcome:       r.Outcome,
	}
}

// GenerateMermaid produces a Mermaid flowchart of a pattern state machine.
// State shapes follow the state kind:
// - Initial: ((Circle))
// - Accept: (((Double circle)))
// - Fail: {{Hexagon}}
// - Intermediate: [Rectangle]
// Edges are labelled with a summary of their guards. Overlay styles
// (visited/current) are applied when an overlay is given.
func GenerateMermaid(p *domain.Pattern, overlay *GraphOverlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, s := range p.States {
		safeID := sanitizeMermaidID(s.ID)

		opener, closer := "[", "]"
		switch s.Kind {
		case domain.KindInitial:
			opener, closer = "((", "))"
		case domain.KindAccept:
			opener, closer = "(((", ")))"
		case domain.KindFail:
			opener, closer = "{{", "}}"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", safeID, opener, s.ID, closer)
	}

	for _, t := range p.Transitions {
		arrow := "-->"
		if label := guardLabel(t.Guards); label != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", label)
		}
		if hasEmit(t.Actions) {
			// Transitions that send messages are drawn thick.
			arrow = strings.ReplaceAll(arrow, "--", "==")
		}
		fmt.Fprintf(&sb, "    %s %s %s\n", sanitizeMermaidID(t.From), arrow, sanitizeMermaidID(t.To))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Force black text (color:#000) for contrast regardless of theme.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffcdd2,stroke:#b71c1c,stroke-width:4px,color:#000;\n")

		visited := make(map[string]bool)
		for _, id := range overlay.VisitedStates {
			safeID := sanitizeMermaidID(id)
			if safeID == "" || visited[safeID] || id == overlay.CurrentState {
				continue
			}
			visited[safeID] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", safeID)
		}

		if overlay.CurrentState != "" {
			class := "current"
			if overlay.Outcome == domain.OutcomeFailed || overlay.Outcome == domain.OutcomeTimeout {
				class = "failed"
			}
			fmt.Fprintf(&sb, "    class %s %s;\n", sanitizeMermaidID(overlay.CurrentState), class)
		}
	}

	return sb.String()
}

func guardLabel(guards []domain.Guard) string {
	var parts []string
	for _, g := range guards {
		var fields []string
		if g.Fault {
			fields = append(fields, "fault")
		}
		if g.Interface != "" {
			fields = append(fields, g.Interface)
		}
		if g.Direction != "" {
			fields = append(fields, string(g.Direction))
		}
		if g.Method != "" {
			fields = append(fields, strings.ToUpper(g.Method))
		}
		if g.Status != 0 {
			fields = append(fields, fmt.Sprint(g.Status))
		}
		if g.Path != "" {
			if g.Equals != "" {
				fields = append(fields, fmt.Sprintf("%s = %s", g.Path, g.Equals))
			} else {
				fields = append(fields, g.Path)
			}
		}
		if g.Schema != "" {
			fields = append(fields, "schema "+g.Schema)
		}
		if g.Expr != "" {
			fields = append(fields, g.Expr)
		}
		if len(fields) > 0 {
			parts = append(parts, strings.Join(fields, " "))
		}
	}
	// Escape double quotes for the Mermaid label.
	return strings.ReplaceAll(strings.Join(parts, " & "), "\"", "'")
}

func hasEmit(actions []domain.Action) bool {
	for _, a := range actions {
		if a.Type == domain.ActionEmit {
			return true
		}
	}
	return false
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
