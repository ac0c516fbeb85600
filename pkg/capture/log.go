package capture

import (
	"context"
	"log/slog"

	"github.com/aretw0/interop/pkg/domain"
)

// LogSink is a debugging consumer that logs every push.
type LogSink struct {
	logger *slog.Logger
	level  slog.Level
}

// NewLogSink creates a sink logging at level.
func NewLogSink(logger *slog.Logger, level slog.Level) *LogSink {
	return &LogSink{logger: logger, level: level}
}

func (s *LogSink) PushEvent(ev domain.Event) {
	if ev.IsFault() {
		s.logger.Warn("Transport fault observed",
			"seq", ev.Seq,
			"interface", ev.InterfaceID,
			"correlation_id", ev.CorrelationID,
			"fault", ev.Fault,
		)
		return
	}
	s.logger.Log(context.Background(), s.level, "Event observed",
		"seq", ev.Seq,
		"interface", ev.InterfaceID,
		"direction", ev.Direction,
		"method", ev.Method,
		"path", ev.Path,
		"status", ev.Status,
		"correlation_id", ev.CorrelationID,
		"bytes", len(ev.Body),
	)
}

func (s *LogSink) LogException(err error) {
	s.logger.Warn("Transport fault observed", "error", err)
}
