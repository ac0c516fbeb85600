package wrapper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/interop/pkg/domain"
	"github.com/aretw0/interop/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Handle is a deployed wrapper.
type Handle struct {
	component domain.Component
	iface     domain.Interface
	sink      ports.EventSink
	cfg       config
	logger    *slog.Logger

	target   *url.URL
	proxy    *httputil.ReverseProxy
	listener net.Listener
	server   *http.Server
	done     chan struct{}
	closing  chan struct{}

	// pushMu keeps the events of this interface in arrival order.
	pushMu sync.Mutex

	pendMu  sync.Mutex
	pending map[string]chan domain.Message

	relMu    sync.Mutex
	released bool
}

type correlationKey struct{}

// Deploy validates iface, binds its listener and starts serving.
//
// It fails with *domain.InvalidInterfaceError or *domain.InvalidWrapperError
// when the declaration cannot become an endpoint, and with
// *domain.WrapperDeploymentError when the listener cannot be bound.
func Deploy(ctx context.Context, component domain.Component, iface domain.Interface, sink ports.EventSink, opts ...Option) (*Handle, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if iface.ID == "" {
		return nil, &domain.InvalidInterfaceError{InterfaceID: iface.ID, Reason: "missing id"}
	}
	if iface.Path != "" && !strings.HasPrefix(iface.Path, "/") {
		return nil, &domain.InvalidInterfaceError{InterfaceID: iface.ID, Reason: fmt.Sprintf("path %q must start with /", iface.Path)}
	}
	if !iface.Mode.Valid() {
		return nil, &domain.InvalidWrapperError{InterfaceID: iface.ID, Reason: fmt.Sprintf("unknown mode %q", iface.Mode)}
	}
	if sink == nil {
		return nil, &domain.InvalidWrapperError{InterfaceID: iface.ID, Reason: "no sink bound"}
	}

	h := &Handle{
		component: component,
		iface:     iface,
		sink:      sink,
		cfg:       cfg,
		logger:    cfg.logger.With("interface", iface.ID, "mode", iface.Mode),
		done:      make(chan struct{}),
		closing:   make(chan struct{}),
		pending:   make(map[string]chan domain.Message),
	}

	if iface.Mode == domain.ModeIntercept {
		target, err := url.Parse(component.Address)
		if err != nil {
			return nil, &domain.InvalidWrapperError{InterfaceID: iface.ID, Reason: "invalid component address", Err: err}
		}
		if (target.Scheme != "http" && target.Scheme != "https") || target.Host == "" {
			return nil, &domain.InvalidWrapperError{InterfaceID: iface.ID, Reason: fmt.Sprintf("address %q is not an absolute http(s) URL", component.Address)}
		}
		h.target = target
		h.proxy = h.newProxy()
	}

	listen := iface.Listen
	if listen == "" {
		listen = DefaultListen
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", listen)
	if err != nil {
		return nil, &domain.WrapperDeploymentError{InterfaceID: iface.ID, Op: "deploy", Err: err}
	}
	h.listener = ln
	h.server = &http.Server{Handler: h.routes()}

	go h.serve()

	h.logger.Debug("Wrapper deployed", "addr", ln.Addr().String(), "path", iface.Path)
	return h, nil
}

func (h *Handle) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	var handler http.HandlerFunc = h.intercept
	if h.iface.Mode == domain.ModeStub {
		handler = h.stub
	}

	prefix := strings.TrimSuffix(h.iface.Path, "/")
	if prefix == "" {
		r.HandleFunc("/*", handler)
	} else {
		r.HandleFunc(prefix, handler)
		r.HandleFunc(prefix+"/*", handler)
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		h.fault(h.correlationID(req), domain.DirectionRequest, fmt.Errorf("no route for %s %s", req.Method, req.URL.Path))
		http.Error(w, "not found", http.StatusNotFound)
	})
	return r
}

func (h *Handle) serve() {
	defer close(h.done)
	if err := h.server.Serve(h.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		h.logger.Error("Wrapper server stopped", "error", err)
		h.fault("", "", err)
	}
}

// ID returns the interface id the wrapper observes.
func (h *Handle) ID() string { return h.iface.ID }

// Mode returns the deployment mode.
func (h *Handle) Mode() domain.WrapperMode { return h.iface.Mode }

// Addr returns the address the wrapper listens on.
func (h *Handle) Addr() string {
	return h.listener.Addr().String()
}

// URL returns the base URL clients should call instead of the component.
func (h *Handle) URL() string {
	return "http://" + h.Addr()
}

// Release stops the wrapper. It is a no-op on a nil or already released
// handle.
func (h *Handle) Release(ctx context.Context) error {
	if h == nil {
		return nil
	}

	h.relMu.Lock()
	defer h.relMu.Unlock()

	if h.released || h.server == nil {
		return nil
	}
	h.released = true
	close(h.closing)

	if err := h.server.Shutdown(ctx); err != nil {
		_ = h.server.Close()
		return &domain.WrapperDeploymentError{InterfaceID: h.iface.ID, Op: "release", Err: err}
	}
	<-h.done

	h.logger.Debug("Wrapper released")
	return nil
}

// Released reports whether Release has run.
func (h *Handle) Released() bool {
	if h == nil {
		return true
	}
	h.relMu.Lock()
	defer h.relMu.Unlock()
	return h.released
}

func (h *Handle) push(ev domain.Event) {
	h.pushMu.Lock()
	defer h.pushMu.Unlock()
	h.sink.PushEvent(ev)
}

func (h *Handle) fault(correlationID string, dir domain.Direction, err error) {
	h.pushMu.Lock()
	defer h.pushMu.Unlock()
	h.sink.LogException(&domain.TransportError{
		InterfaceID:   h.iface.ID,
		CorrelationID: correlationID,
		Direction:     dir,
		Err:           err,
	})
}

func (h *Handle) correlationID(r *http.Request) string {
	if id, ok := r.Context().Value(correlationKey{}).(string); ok && id != "" {
		return id
	}
	if id := r.Header.Get(domain.KeyCorrelation); id != "" {
		return id
	}
	return h.cfg.newID()
}

// readBody reads the request body within the configured limit. On failure it
// reports the fault, answers the client and returns ok=false.
func (h *Handle) readBody(w http.ResponseWriter, r *http.Request, correlationID string) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.cfg.maxBody))
	if err == nil {
		return body, true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.fault(correlationID, domain.DirectionRequest, fmt.Errorf("request body exceeds %d bytes", h.cfg.maxBody))
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return nil, false
	}
	h.fault(correlationID, domain.DirectionRequest, fmt.Errorf("failed to read request body: %w", err))
	http.Error(w, "malformed request", http.StatusBadRequest)
	return nil, false
}

func (h *Handle) requestEvent(r *http.Request, correlationID string, body []byte) domain.Event {
	return domain.Event{
		InterfaceID:   h.iface.ID,
		Direction:     domain.DirectionRequest,
		Method:        r.Method,
		Path:          r.URL.RequestURI(),
		Headers:       domain.FlattenHeaders(r.Header),
		Body:          string(body),
		Timestamp:     h.cfg.now(),
		CorrelationID: correlationID,
	}
}

func (h *Handle) intercept(w http.ResponseWriter, r *http.Request) {
	id := h.correlationID(r)
	body, ok := h.readBody(w, r, id)
	if !ok {
		return
	}

	r.Header.Set(domain.KeyCorrelation, id)
	h.push(h.requestEvent(r, id, body))

	r.Body = io.NopCloser(bytes.NewReader(body))
	r.ContentLength = int64(len(body))
	h.proxy.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), correlationKey{}, id)))
}

func (h *Handle) newProxy() *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(h.target)
			pr.SetXForwarded()
		},
		Transport: h.cfg.transport,
		ModifyResponse: func(resp *http.Response) error {
			id := h.correlationID(resp.Request)
			body, err := io.ReadAll(io.LimitReader(resp.Body, h.cfg.maxBody+1))
			_ = resp.Body.Close()
			if err != nil {
				return fmt.Errorf("failed to read response body: %w", err)
			}
			if int64(len(body)) > h.cfg.maxBody {
				return fmt.Errorf("response body exceeds %d bytes", h.cfg.maxBody)
			}
			resp.Body = io.NopCloser(bytes.NewReader(body))
			resp.ContentLength = int64(len(body))
			resp.Header.Set(domain.KeyCorrelation, id)

			h.push(domain.Event{
				InterfaceID:   h.iface.ID,
				Direction:     domain.DirectionResponse,
				Method:        resp.Request.Method,
				Path:          resp.Request.URL.RequestURI(),
				Status:        resp.StatusCode,
				Headers:       domain.FlattenHeaders(resp.Header),
				Body:          string(body),
				Timestamp:     h.cfg.now(),
				CorrelationID: id,
			})
			return nil
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			h.logger.Warn("Forwarding failed", "error", err, "target", h.target.String())
			h.fault(h.correlationID(r), domain.DirectionResponse, err)
			w.WriteHeader(http.StatusBadGateway)
		},
	}
}

func (h *Handle) stub(w http.ResponseWriter, r *http.Request) {
	id := h.correlationID(r)
	body, ok := h.readBody(w, r, id)
	if !ok {
		return
	}

	replies := make(chan domain.Message, 1)
	h.pendMu.Lock()
	h.pending[id] = replies
	h.pendMu.Unlock()
	defer func() {
		h.pendMu.Lock()
		delete(h.pending, id)
		h.pendMu.Unlock()
	}()

	r.Header.Set(domain.KeyCorrelation, id)
	h.push(h.requestEvent(r, id, body))

	timer := time.NewTimer(h.cfg.replyTimeout)
	defer timer.Stop()

	var reply domain.Message
	select {
	case reply = <-replies:
	case <-timer.C:
		h.logger.Debug("No reply before timeout", "correlation_id", id, "timeout", h.cfg.replyTimeout)
		reply = domain.Message{
			Status: h.cfg.defaultCode,
			Body:   fmt.Sprintf("no reply from pattern within %s", h.cfg.replyTimeout),
		}
	case <-h.closing:
		reply = domain.Message{Status: http.StatusServiceUnavailable, Body: "wrapper released"}
	case <-r.Context().Done():
		h.fault(id, domain.DirectionResponse, fmt.Errorf("client went away: %w", r.Context().Err()))
		return
	}

	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}
	for k, v := range reply.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set(domain.KeyCorrelation, id)
	w.WriteHeader(status)
	if _, err := io.WriteString(w, reply.Body); err != nil {
		h.fault(id, domain.DirectionResponse, fmt.Errorf("failed to write reply: %w", err))
		return
	}

	h.push(domain.Event{
		InterfaceID:   h.iface.ID,
		Direction:     domain.DirectionResponse,
		Method:        r.Method,
		Path:          r.URL.RequestURI(),
		Status:        status,
		Headers:       domain.FlattenHeaders(w.Header()),
		Body:          reply.Body,
		Timestamp:     h.cfg.now(),
		CorrelationID: id,
	})
}

// Reply delivers msg as the response to the stub request identified by
// correlationID. It fails with domain.ErrNoPendingRequest when no request
// with that id is waiting.
func (h *Handle) Reply(correlationID string, msg domain.Message) error {
	if h.iface.Mode != domain.ModeStub {
		return fmt.Errorf("interface %q is not a stub: %w", h.iface.ID, domain.ErrNoPendingRequest)
	}

	h.pendMu.Lock()
	replies, ok := h.pending[correlationID]
	h.pendMu.Unlock()
	if !ok {
		return fmt.Errorf("reply to %q on interface %q: %w", correlationID, h.iface.ID, domain.ErrNoPendingRequest)
	}

	select {
	case replies <- msg:
		return nil
	default:
		return fmt.Errorf("request %q on interface %q already answered", correlationID, h.iface.ID)
	}
}
