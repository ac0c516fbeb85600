package cli

import (
	"context"
	"io"
	"os"

	"github.com/aretw0/interop"
	"github.com/aretw0/interop/internal/presentation/report"
	"github.com/aretw0/interop/internal/presentation/tui"
	"github.com/aretw0/interop/pkg/domain"
)

// ExecuteOptions contains the configuration of the execute command.
type ExecuteOptions struct {
	SpecPath     string
	TraceID      string
	Store        StoreOptions
	InterfaceMap map[string]string
	Format       string
	Debug        bool

	Stdout io.Writer
}

// RunExecute replays a stored trace against a specification and prints the
// report. It returns ErrNotConformant when the run is not accepted.
func RunExecute(opts ExecuteOptions) error {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	format, err := resolveFormat(opts.Format, stdout)
	if err != nil {
		return err
	}
	logger := createLogger(opts.Debug)

	store, err := OpenStore(opts.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	engOpts := []interop.Option{
		interop.WithLogger(logger),
		interop.WithTraceStore(store.Store),
		interop.WithInterfaceMap(opts.InterfaceMap),
	}
	if opts.Debug {
		engOpts = append(engOpts, interop.WithLifecycleHooks(createDebugHooks(logger)))
	}
	eng, err := interop.Load(opts.SpecPath, engOpts...)
	if err != nil {
		return err
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	r, err := eng.Execute(sigCtx, opts.TraceID)
	if err != nil {
		return err
	}
	if err := printReport(stdout, r, format); err != nil {
		return err
	}
	if !r.Conformant() {
		return ErrNotConformant
	}
	return nil
}

// resolveFormat turns the --format flag into a report format. Text output
// is styled only when writing to a terminal.
func resolveFormat(s string, w io.Writer) (report.Format, error) {
	f, err := report.ParseFormat(s)
	if err != nil {
		return "", err
	}
	if f == report.FormatText {
		if file, ok := w.(*os.File); !ok || !isTTY(file) {
			return report.FormatMarkdown, nil
		}
	}
	return f, nil
}

func printReport(w io.Writer, r *domain.Report, format report.Format) error {
	if format == report.FormatText {
		out, err := tui.RenderReport(r)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	}
	return report.Write(w, r, format)
}
