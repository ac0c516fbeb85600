// Package report renders conformance reports for people and for tools.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/aretw0/interop/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Format selects the rendering of a report.
type Format string

const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// ParseFormat accepts the format names used on the command line.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatMarkdown, FormatJSON, FormatYAML:
		return f, nil
	case "md":
		return FormatMarkdown, nil
	case "yml":
		return FormatYAML, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want text, markdown, json or yaml)", s)
	}
}

// Write renders r to w. FormatText is rendered as Markdown; terminal styling
// is left to the caller.
func Write(w io.Writer, r *domain.Report, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	case FormatYAML:
		return writeYAML(w, r)
	case FormatText, FormatMarkdown, "":
		_, err := io.WriteString(w, Markdown(r))
		return err
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// writeYAML goes through JSON so field names and time formats match the
// JSON rendering.
func writeYAML(w io.Writer, r *domain.Report) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return enc.Close()
}

// Markdown renders r as a Markdown document.
func Markdown(r *domain.Report) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Conformance report: %s\n\n", r.Pattern)
	fmt.Fprintf(&sb, "%s %s\n\n", verdictIcon(r.Outcome), verdict(r.Outcome))

	sb.WriteString("| Field | Value |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Outcome | **%s** |\n", r.Outcome)
	fmt.Fprintf(&sb, "| Final state | `%s` |\n", r.FinalState)
	fmt.Fprintf(&sb, "| Events processed | %d |\n", r.EventsProcessed)
	if !r.StartedAt.IsZero() {
		fmt.Fprintf(&sb, "| Started | %s |\n", r.StartedAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
	}
	if !r.FinishedAt.IsZero() {
		fmt.Fprintf(&sb, "| Finished | %s |\n", r.FinishedAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
		if !r.StartedAt.IsZero() {
			fmt.Fprintf(&sb, "| Duration | %s |\n", r.FinishedAt.Sub(r.StartedAt))
		}
	}
	if r.Reason != "" {
		fmt.Fprintf(&sb, "\n> %s\n", r.Reason)
	}

	if len(r.Path) > 0 {
		sb.WriteString("\n## Path\n\n")
		steps := make([]string, len(r.Path))
		for i, s := range r.Path {
			steps[i] = "`" + s + "`"
		}
		sb.WriteString(strings.Join(steps, " → "))
		sb.WriteString("\n")
	}

	if len(r.Bindings) > 0 {
		sb.WriteString("\n## Bindings\n\n| Name | Value |\n|---|---|\n")
		for _, name := range sortedKeys(r.Bindings) {
			fmt.Fprintf(&sb, "| `%s` | `%s` |\n", name, cell(fmt.Sprint(r.Bindings[name])))
		}
	}

	if len(r.Exceptions) > 0 {
		sb.WriteString("\n## Exceptions\n\n| Seq | Interface | Message |\n|---|---|---|\n")
		for _, e := range r.Exceptions {
			iface := e.InterfaceID
			if iface == "" {
				iface = "-"
			}
			fmt.Fprintf(&sb, "| %d | %s | %s |\n", e.Seq, iface, cell(e.Message))
		}
	}

	if len(r.Unexpected) > 0 {
		sb.WriteString("\n## Unexpected events\n\n")
		seqs := make([]string, len(r.Unexpected))
		for i, s := range r.Unexpected {
			seqs[i] = fmt.Sprintf("#%d", s)
		}
		sb.WriteString(strings.Join(seqs, ", "))
		sb.WriteString("\n")
	}

	return sb.String()
}

func verdict(o domain.Outcome) string {
	switch o {
	case domain.OutcomeAccepted:
		return "The observed exchange conforms to the pattern."
	case domain.OutcomeFailed:
		return "The observed exchange violates the pattern."
	case domain.OutcomeTimeout:
		return "The pattern did not reach a terminal state."
	default:
		return "The run is still in progress."
	}
}

func verdictIcon(o domain.Outcome) string {
	switch o {
	case domain.OutcomeAccepted:
		return "✅"
	case domain.OutcomeFailed:
		return "❌"
	case domain.OutcomeTimeout:
		return "⏱️"
	default:
		return "⏳"
	}
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.ReplaceAll(s, "\n", " ")
}

func sortedKeys(b domain.Bindings) []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
