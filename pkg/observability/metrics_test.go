package observability_test

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aretw0/interop/internal/runtime"
	"github.com/aretw0/interop/pkg/capture"
	"github.com/aretw0/interop/pkg/domain"
	"github.com/aretw0/interop/pkg/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pattern() *domain.Pattern {
	return &domain.Pattern{
		Name: "ping",
		States: []domain.State{
			{ID: "start", Kind: domain.KindInitial},
			{ID: "pong", Kind: domain.KindAccept},
		},
		Transitions: []domain.Transition{
			{From: "start", To: "pong", Guards: []domain.Guard{{Interface: "api", Status: 200}}},
		},
		OnUnexpected: domain.PolicyIgnore,
	}
}

func TestMetrics_CountsRun(t *testing.T) {
	m := observability.NewMetrics()
	q := capture.NewQueue()
	sink := capture.NewFanout(q, m.Sink())

	sink.PushEvent(domain.Event{InterfaceID: "api", Direction: domain.DirectionRequest})
	sink.LogException(&domain.TransportError{InterfaceID: "api", Err: errors.New("connection reset")})
	sink.PushEvent(domain.Event{InterfaceID: "api", Direction: domain.DirectionResponse, Status: 200})
	q.Close()

	eng, err := runtime.NewEngine(pattern(), runtime.WithLifecycleHooks(m.Hooks()))
	require.NoError(t, err)
	report, err := eng.Run(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeAccepted, report.Outcome)

	expected := `
# HELP interop_events_total Events observed by interface wrappers.
# TYPE interop_events_total counter
interop_events_total{direction="request",interface="api"} 1
interop_events_total{direction="response",interface="api"} 1
# HELP interop_transport_faults_total Transport exceptions reported by interface wrappers.
# TYPE interop_transport_faults_total counter
interop_transport_faults_total{interface="api"} 1
# HELP interop_unexpected_events_total Events that matched no outgoing guard.
# TYPE interop_unexpected_events_total counter
interop_unexpected_events_total{pattern="ping",state="start"} 1
# HELP interop_exceptions_total Exceptions recorded in run reports.
# TYPE interop_exceptions_total counter
interop_exceptions_total{pattern="ping"} 1
# HELP interop_transitions_total Pattern transitions taken.
# TYPE interop_transitions_total counter
interop_transitions_total{from="start",pattern="ping",to="pong"} 1
# HELP interop_runs_total Finished pattern runs by outcome.
# TYPE interop_runs_total counter
interop_runs_total{outcome="accepted",pattern="ping"} 1
# HELP interop_runs_in_progress Pattern runs currently in progress.
# TYPE interop_runs_in_progress gauge
interop_runs_in_progress{pattern="ping"} 0
`
	err = testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"interop_events_total",
		"interop_transport_faults_total",
		"interop_unexpected_events_total",
		"interop_exceptions_total",
		"interop_transitions_total",
		"interop_runs_total",
		"interop_runs_in_progress",
	)
	assert.NoError(t, err)
}

func TestMetrics_Handler(t *testing.T) {
	m := observability.NewMetrics()
	m.Sink().PushEvent(domain.Event{InterfaceID: "api", Direction: domain.DirectionRequest})

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `interop_events_total{direction="request",interface="api"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
