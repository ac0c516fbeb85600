package http

import (
	"bufio"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/interop/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct {
	report *domain.Report
}

func (s *stubEngine) Status() *domain.Report { return s.report }
func (s *stubEngine) Pattern() domain.Pattern {
	return domain.Pattern{Name: "order-flow"}
}

func TestServer_HealthAndInfo(t *testing.T) {
	srv := NewServer(&stubEngine{}, WithVersion("1.2.3\n"))
	h := srv.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/info", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"app":"interop","version":"1.2.3","pattern":"order-flow"}`, w.Body.String())
}

func TestServer_Status(t *testing.T) {
	eng := &stubEngine{}
	h := NewServer(eng).Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	eng.report = &domain.Report{
		Pattern:    "order-flow",
		Outcome:    domain.OutcomeRunning,
		FinalState: "awaiting-payment",
		Path:       []string{"start", "awaiting-payment"},
	}
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var got domain.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, domain.OutcomeRunning, got.Outcome)
	assert.Equal(t, "awaiting-payment", got.FinalState)
	assert.Equal(t, []string{"start", "awaiting-payment"}, got.Path)
}

func TestServer_MetricsMounted(t *testing.T) {
	h := NewServer(&stubEngine{}).Handler()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("interop_events_total 3\n"))
	})
	h = NewServer(&stubEngine{}, WithMetrics(metrics)).Handler()
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "interop_events_total 3")
}

// readUntil consumes SSE lines until one contains substr and returns it.
func readUntil(t *testing.T, r *bufio.Reader, substr string) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err, "stream ended before %q", substr)
		if strings.Contains(line, substr) {
			return strings.TrimSpace(line)
		}
	}
}

func TestServer_SubscribeEvents(t *testing.T) {
	srv := NewServer(&stubEngine{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL + "/events?interface=orders")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r := bufio.NewReader(resp.Body)
	readUntil(t, r, "data: connected")

	srv.Streams.PushEvent(domain.Event{Seq: 1, InterfaceID: "billing", Direction: domain.DirectionRequest})
	srv.Streams.PushEvent(domain.Event{Seq: 2, InterfaceID: "orders", Direction: domain.DirectionRequest, Method: "POST"})
	srv.Streams.LogException(&domain.TransportError{InterfaceID: "orders", Err: errors.New("connection reset")})

	assert.Equal(t, "id: 2", readUntil(t, r, "id: "))
	data := readUntil(t, r, "data: ")
	var ev domain.Event
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(data, "data: ")), &ev))
	assert.Equal(t, "orders", ev.InterfaceID)
	assert.Equal(t, "POST", ev.Method)

	assert.Equal(t, "event: fault", readUntil(t, r, "event: "))

	srv.Streams.Close()
	readUntil(t, r, "event: end")
}

func TestStreamManager_SubscribeAfterClose(t *testing.T) {
	sm := NewStreamManager()
	sm.Close()
	ch, cancel := sm.Subscribe()
	defer cancel()
	_, ok := <-ch
	assert.False(t, ok)
	sm.PushEvent(domain.Event{Seq: 1})
}
