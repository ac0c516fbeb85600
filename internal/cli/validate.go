package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aretw0/interop/internal/compiler"
	"github.com/aretw0/interop/internal/presentation/graph"
	"github.com/aretw0/interop/internal/validator"
	"github.com/aretw0/interop/pkg/domain"
)

// Validate loads the specification at path and returns lint warnings for its
// pattern. Load errors are returned as is.
func Validate(path string) ([]string, error) {
	spec, err := compiler.NewParser().ParseFile(path)
	if err != nil {
		return nil, err
	}
	return validator.Lint(&spec.Pattern), nil
}

// RunValidate prints the outcome of Validate to w.
func RunValidate(path string, w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}
	warnings, err := Validate(path)
	if err != nil {
		return err
	}
	for _, msg := range warnings {
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
	fmt.Fprintln(w, "Specification is valid! ✅")
	return nil
}

// GraphOptions contains the configuration of the graph command.
type GraphOptions struct {
	SpecPath string
	// ReportPath optionally points to a JSON report to overlay.
	ReportPath string
}

// RunGraph prints the pattern of a specification as a Mermaid diagram.
func RunGraph(opts GraphOptions, w io.Writer) error {
	if w == nil {
		w = os.Stdout
	}
	spec, err := compiler.NewParser().ParseFile(opts.SpecPath)
	if err != nil {
		return err
	}

	var overlay *graph.GraphOverlay
	if opts.ReportPath != "" {
		r, err := readReport(opts.ReportPath)
		if err != nil {
			return err
		}
		overlay = graph.OverlayFromReport(r)
	}

	_, err = io.WriteString(w, graph.GenerateMermaid(&spec.Pattern, overlay))
	return err
}

func readReport(path string) (*domain.Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read report %q: %w", path, err)
	}
	var r domain.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse report %q: %w", path, err)
	}
	return &r, nil
}
