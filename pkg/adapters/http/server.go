// Package http exposes a running capture over HTTP: health, the live report,
// Prometheus metrics and a server-sent event stream of captured events.
package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/interop/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// Engine is the part of the pattern engine the server reads from.
type Engine interface {
	Status() *domain.Report
	Pattern() domain.Pattern
}

// Server serves the status endpoints.
type Server struct {
	Engine  Engine
	Streams *StreamManager

	metrics http.Handler
	version string
	logger  *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics mounts h under /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = strings.TrimSpace(v)
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a server over engine. The returned server's Streams is
// an EventSink meant to be added to the capture fan-out.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{
		Engine:  engine,
		Streams: NewStreamManager(),
		version: "dev",
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Streams.logger = s.logger
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/status", s.GetStatus)
	r.Get("/events", s.SubscribeEvents)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	return r
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	p := s.Engine.Pattern()
	writeJSON(w, s.logger, http.StatusOK, map[string]string{
		"app":     "interop",
		"version": s.version,
		"pattern": p.Name,
	})
}

// GetStatus handles GET /status with a snapshot of the current report.
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	report := s.Engine.Status()
	if report == nil {
		http.Error(w, "no run in progress", http.StatusNotFound)
		return
	}
	writeJSON(w, s.logger, http.StatusOK, report)
}

// SubscribeEvents handles GET /events (SSE). The optional "interface" query
// parameter is a comma separated list of interface ids to keep.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	var filter map[string]bool
	if raw := r.URL.Query().Get("interface"); raw != "" {
		filter = make(map[string]bool)
		for _, id := range strings.Split(raw, ",") {
			filter[strings.TrimSpace(id)] = true
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.Streams.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case ev, ok := <-ch:
			if !ok {
				fmt.Fprintf(w, "event: end\ndata: closed\n\n")
				flusher.Flush()
				return
			}
			if filter != nil && !filter[ev.InterfaceID] {
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("SSE: event encode failed", "error", err)
				continue
			}
			kind := "message"
			if ev.IsFault() {
				kind = "fault"
			}
			fmt.Fprintf(w, "event: %s\nid: %d\ndata: %s\n\n", kind, ev.Seq, data)
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Response encode failed", "error", err)
	}
}

// StreamManager broadcasts captured events to SSE subscribers. It implements
// ports.EventSink.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan domain.Event]struct{}
	closed      bool
	logger      *slog.Logger
}

// NewStreamManager creates an empty stream manager.
func NewStreamManager() *StreamManager {
	return &StreamManager{
		subscribers: make(map[chan domain.Event]struct{}),
		logger:      slog.Default(),
	}
}

// Subscribe registers a subscriber. The returned func unregisters it.
func (sm *StreamManager) Subscribe() (<-chan domain.Event, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan domain.Event, 64)
	if sm.closed {
		close(ch)
		return ch, func() {}
	}
	sm.subscribers[ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subscribers[ch]; ok {
			delete(sm.subscribers, ch)
			close(ch)
		}
	}
}

// PushEvent broadcasts ev. Slow subscribers lose events instead of blocking
// the capture.
func (sm *StreamManager) PushEvent(ev domain.Event) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers {
		select {
		case ch <- ev:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping event", "seq", ev.Seq)
		}
	}
}

// LogException broadcasts err as a fault event.
func (sm *StreamManager) LogException(err error) {
	sm.PushEvent(domain.FaultEvent(err, time.Now()))
}

// Close ends every subscription.
func (sm *StreamManager) Close() {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	if sm.closed {
		return
	}
	sm.closed = true
	for ch := range sm.subscribers {
		close(ch)
		delete(sm.subscribers, ch)
	}
}
