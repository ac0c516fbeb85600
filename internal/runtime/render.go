package runtime

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
)

// Interpolator renders a template string against data.
type Interpolator func(ctx context.Context, templateStr string, data any) (string, error)

// DefaultInterpolator uses text/template. Strings without actions are returned
// unchanged and a reference to a missing key is an error.
func DefaultInterpolator(_ context.Context, templateStr string, data any) (string, error) {
	if !strings.Contains(templateStr, "{{") {
		return templateStr, nil
	}
	tmpl, err := template.New("message").Option("missingkey=error").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}
	return buf.String(), nil
}
