package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/aretw0/interop"
	httpAdapter "github.com/aretw0/interop/pkg/adapters/http"
	"github.com/aretw0/interop/pkg/capture"
	"github.com/aretw0/interop/pkg/domain"
	"github.com/aretw0/interop/pkg/observability"
	"github.com/aretw0/interop/pkg/ports"
	"github.com/aretw0/interop/pkg/wrapper"
)

// ErrNotConformant is returned when a run ends in any outcome but accepted.
var ErrNotConformant = errors.New("exchange does not conform to the pattern")

// CaptureOptions contains the configuration of the capture command.
type CaptureOptions struct {
	SpecPath     string
	Store        StoreOptions
	Yes          bool
	NoStore      bool
	StatusAddr   string
	Format       string
	ReplyTimeout time.Duration
	Debug        bool
	Quiet        bool

	Stdin  io.Reader
	Stdout io.Writer
}

// RunCapture deploys the wrappers of a specification, evaluates live traffic
// until the pattern terminates or the user interrupts, then stores the trace
// and prints the report.
func RunCapture(opts CaptureOptions) error {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stdin := opts.Stdin
	if stdin == nil {
		stdin = os.Stdin
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

	metrics := observability.NewMetrics()
	hooks := metrics.Hooks()
	if opts.Debug {
		hooks = domain.ComposeHooks(hooks, createDebugHooks(logger))
	}

	var wrapperOpts []wrapper.Option
	if opts.ReplyTimeout > 0 {
		wrapperOpts = append(wrapperOpts, wrapper.WithReplyTimeout(opts.ReplyTimeout))
	}

	streams := httpAdapter.NewStreamManager()
	defer streams.Close()

	sinks := []ports.EventSink{metrics.Sink(), streams}
	if opts.Debug {
		sinks = append(sinks, capture.NewLogSink(logger, slog.LevelDebug))
	}

	engOpts := []interop.Option{
		interop.WithLogger(logger),
		interop.WithLifecycleHooks(hooks),
		interop.WithSinks(sinks...),
		interop.WithWrapperOptions(wrapperOpts...),
	}
	if !opts.NoStore {
		engOpts = append(engOpts, interop.WithTraceStore(store.Store))
		if store.Locker != nil {
			engOpts = append(engOpts, interop.WithLocker(store.Locker))
		}
	}
	eng, err := interop.Load(opts.SpecPath, engOpts...)
	if err != nil {
		return err
	}

	sigCtx := NewSignalContext(context.Background())
	defer sigCtx.Cancel()

	session, err := eng.Capture(sigCtx)
	if err != nil {
		return err
	}
	defer session.Close(context.Background())

	if opts.StatusAddr != "" {
		srv := httpAdapter.NewServer(eng,
			httpAdapter.WithMetrics(metrics.Handler()),
			httpAdapter.WithVersion(interop.Version),
			httpAdapter.WithLogger(logger),
		)
		srv.Streams = streams
		stop, addr, err := serveStatus(opts.StatusAddr, srv.Handler())
		if err != nil {
			return err
		}
		defer stop()
		if !opts.Quiet {
			printSystemMessage(stdout, "Status API on http://%s", addr)
		}
	}

	if !opts.Quiet {
		urls := session.URLs()
		ids := make([]string, 0, len(urls))
		for id := range urls {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			printSystemMessage(stdout, "Interface '%s' listening on %s", id, urls[id])
		}
		printSystemMessage(stdout, "Capturing '%s'. Press Ctrl+C to stop.", eng.Name)
	}

	report, runErr := session.Run(sigCtx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	if err := session.Close(context.Background()); err != nil {
		logger.Warn("Wrapper release reported errors", "error", err)
	}
	if !opts.Quiet && sigCtx.Signal() != nil {
		printSystemMessage(stdout, "Interrupted in state '%s'.", report.FinalState)
	}

	if !opts.NoStore {
		save := opts.Yes
		if !save && isTerminalReader(stdin) {
			save, err = confirm(stdin, stdout, fmt.Sprintf("Store trace %s?", session.TraceID()))
			if err != nil {
				return err
			}
		}
		if save {
			id, err := session.StoreTrace(context.Background())
			if err != nil {
				return fmt.Errorf("failed to store trace: %w", err)
			}
			if !opts.Quiet {
				printSystemMessage(stdout, "Trace stored as '%s'.", id)
			}
		}
	}

	if err := printReport(stdout, report, format); err != nil {
		return err
	}
	if !report.Conformant() {
		return ErrNotConformant
	}
	return nil
}

func isTerminalReader(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && isTTY(f)
}

// serveStatus starts the status API on addr and returns a func stopping it
// along with the bound address.
func serveStatus(addr string, h http.Handler) (func(), string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("failed to start status API: %w", err)
	}
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go srv.Serve(ln)

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			srv.Close()
		}
	}
	return stop, ln.Addr().String(), nil
}
