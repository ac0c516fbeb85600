package logging

import (
	"io"
	"log/slog"
	"os"
)

// New creates the interop logger on stderr, leaving stdout to reports and
// prompts.
func New(level slog.Level) *slog.Logger {
	return NewWriter(os.Stderr, level)
}

// NewWriter creates the interop logger on w. Keys are normalized by
// replaceAttr.
func NewWriter(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceAttr,
	}))
}

// replaceAttr renames "error" to "err" and drops event fields that carry no
// value for the event at hand (no status on a request, no correlation id on
// a fault raised before one was assigned).
func replaceAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == "error" {
		a.Key = "err"
	}
	switch a.Key {
	case "status":
		if a.Value.Kind() == slog.KindInt64 && a.Value.Int64() == 0 {
			return slog.Attr{}
		}
	case "correlation_id", "method", "path":
		if a.Value.Kind() == slog.KindString && a.Value.String() == "" {
			return slog.Attr{}
		}
	}
	return a
}

// NewNop returns a logger that discards everything.
func NewNop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
