package architecture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aretw0/interop/pkg/domain"
)

// ErrClosed is returned by Emit once Cleanup has started.
var ErrClosed = errors.New("architecture is shut down")

// Emit sends a message synthesized by a pattern action.
//
// A message answering a request (InReplyTo set) is handed to the interface's
// stub. Any other message is sent as a new HTTP request through the
// interface's wrapper, so both legs are observed like any other traffic. The
// request is sent in the background; transport failures are reported to the
// sink as exceptions.
func (m *Model) Emit(ctx context.Context, msg domain.Message) error {
	ep, ok := m.endpoints[msg.InterfaceID]
	if !ok {
		return fmt.Errorf("emit: unknown interface %q", msg.InterfaceID)
	}

	if m.isClosed() {
		return fmt.Errorf("emit on %q: %w", msg.InterfaceID, ErrClosed)
	}

	if msg.IsReply() {
		if err := ep.Reply(msg.InReplyTo, msg); err != nil {
			return fmt.Errorf("emit reply on %q: %w", msg.InterfaceID, err)
		}
		return nil
	}

	method := msg.Method
	if method == "" {
		method = http.MethodPost
	}
	path := msg.Path
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	base := m.ctx
	if base == nil {
		base = ctx
	}
	req, err := http.NewRequestWithContext(base, method, ep.URL()+path, strings.NewReader(msg.Body))
	if err != nil {
		return fmt.Errorf("emit on %q: %w", msg.InterfaceID, err)
	}
	for k, v := range msg.Headers {
		req.Header.Set(k, v)
	}

	if !m.trackEmit() {
		return fmt.Errorf("emit on %q: %w", msg.InterfaceID, ErrClosed)
	}
	go func() {
		defer m.emits.Done()
		resp, err := m.client.Do(req)
		if err != nil {
			m.logger.Warn("Emitted request failed", "interface", msg.InterfaceID, "error", err)
			if m.sink != nil {
				m.sink.LogException(&domain.TransportError{
					InterfaceID: msg.InterfaceID,
					Direction:   domain.DirectionRequest,
					Err:         err,
				})
			}
			return
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	return nil
}

// trackEmit registers an in-flight emit unless Cleanup has started, so the
// WaitGroup is never added to while Cleanup waits on it.
func (m *Model) trackEmit() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.emits.Add(1)
	return true
}

func (m *Model) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
