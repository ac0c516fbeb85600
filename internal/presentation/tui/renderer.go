package tui

import (
	"fmt"

	"github.com/aretw0/interop/internal/presentation/report"
	"github.com/aretw0/interop/pkg/domain"
	"github.com/charmbracelet/glamour"
)

// NewRenderer returns a function that renders markdown using glamour.
// The style follows the terminal background.
func NewRenderer() func(string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		// Fall back to plain markdown.
		return func(markdown string) (string, error) { return markdown, nil }
	}

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

// RenderReport renders a conformance report for the terminal.
func RenderReport(r *domain.Report) (string, error) {
	out, err := NewRenderer()(report.Markdown(r))
	if err != nil {
		return "", fmt.Errorf("failed to render report: %w", err)
	}
	return out, nil
}
