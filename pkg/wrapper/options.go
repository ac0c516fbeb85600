package wrapper

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/interop/internal/logging"
	"github.com/google/uuid"
)

const (
	DefaultListen       = "127.0.0.1:0"
	DefaultReplyTimeout = 5 * time.Second
	DefaultStatus       = http.StatusNotImplemented
	DefaultMaxBodyBytes = 1 << 20
)

type config struct {
	logger       *slog.Logger
	replyTimeout time.Duration
	defaultCode  int
	maxBody      int64
	transport    http.RoundTripper
	newID        func() string
	now          func() time.Time
}

func defaultConfig() config {
	return config{
		logger:       logging.NewNop(),
		replyTimeout: DefaultReplyTimeout,
		defaultCode:  DefaultStatus,
		maxBody:      DefaultMaxBodyBytes,
		transport:    http.DefaultTransport,
		newID:        uuid.NewString,
		now:          time.Now,
	}
}

// Option configures a wrapper at deploy time.
type Option func(*config)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithReplyTimeout bounds how long a stub waits for a reply.
func WithReplyTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.replyTimeout = d
		}
	}
}

// WithDefaultStatus sets the status a stub answers with when no reply arrives.
func WithDefaultStatus(code int) Option {
	return func(c *config) {
		if code >= 100 && code <= 599 {
			c.defaultCode = code
		}
	}
}

// WithMaxBodyBytes caps the size of recorded bodies. Larger requests are
// rejected with 413 and reported as transport faults.
func WithMaxBodyBytes(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// WithTransport sets the round tripper intercepting wrappers forward with.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *config) {
		if rt != nil {
			c.transport = rt
		}
	}
}

// WithIDGenerator sets the correlation id generator.
func WithIDGenerator(fn func() string) Option {
	return func(c *config) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// WithClock sets the clock used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *config) {
		if now != nil {
			c.now = now
		}
	}
}
