package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/interop/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pingSpec = "testdata/ping.yaml"

func seedTrace(t *testing.T, dir string, events ...domain.Event) StoreOptions {
	t.Helper()
	opts := StoreOptions{URI: "file:" + dir}
	opened, err := OpenStore(opts)
	require.NoError(t, err)
	defer opened.Close()
	require.NoError(t, opened.Store.Save(context.Background(), &domain.Trace{ID: "run-1", Pattern: "ping", Events: events}))
	return opts
}

func TestRunExecute(t *testing.T) {
	store := seedTrace(t, t.TempDir(),
		domain.Event{Seq: 1, InterfaceID: "api", Direction: domain.DirectionRequest, Method: "GET", Path: "/ping"},
		domain.Event{Seq: 2, InterfaceID: "api", Direction: domain.DirectionResponse, Status: 200, Body: `{"reply":"pong"}`},
	)

	var out bytes.Buffer
	err := RunExecute(ExecuteOptions{
		SpecPath: pingSpec,
		TraceID:  "run-1",
		Store:    store,
		Format:   "json",
		Stdout:   &out,
	})
	require.NoError(t, err)

	var r domain.Report
	require.NoError(t, json.Unmarshal(out.Bytes(), &r))
	assert.Equal(t, domain.OutcomeAccepted, r.Outcome)
	assert.Equal(t, []string{"start", "pinged", "pong"}, r.Path)
	assert.Equal(t, "pong", r.Bindings["reply"])
}

func TestRunExecute_NotConformant(t *testing.T) {
	store := seedTrace(t, t.TempDir(),
		domain.Event{Seq: 1, InterfaceID: "api", Direction: domain.DirectionRequest, Method: "GET"},
		domain.Event{Seq: 2, InterfaceID: "api", Direction: domain.DirectionResponse, Status: 500},
	)

	var out bytes.Buffer
	err := RunExecute(ExecuteOptions{
		SpecPath: pingSpec,
		TraceID:  "run-1",
		Store:    store,
		Format:   "markdown",
		Stdout:   &out,
	})
	assert.ErrorIs(t, err, ErrNotConformant)
	assert.Contains(t, out.String(), "# Conformance report: ping")
	assert.Contains(t, out.String(), "**timeout**")
}

func TestRunExecute_MissingTrace(t *testing.T) {
	err := RunExecute(ExecuteOptions{
		SpecPath: pingSpec,
		TraceID:  "nope",
		Store:    StoreOptions{URI: "file:" + t.TempDir()},
		Stdout:   &bytes.Buffer{},
	})
	assert.ErrorIs(t, err, domain.ErrTraceNotFound)
}

func TestRunValidate(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RunValidate(pingSpec, &out))
	assert.Contains(t, out.String(), `warning: state "orphan" is unreachable from "start"`)
	assert.Contains(t, out.String(), "Specification is valid!")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("name: broken\ncomponents: []\n"), 0o644))
	assert.Error(t, RunValidate(bad, &bytes.Buffer{}))
}

func TestRunGraph(t *testing.T) {
	reportPath := filepath.Join(t.TempDir(), "report.json")
	data, err := json.Marshal(domain.Report{
		Outcome:    domain.OutcomeAccepted,
		FinalState: "pong",
		Path:       []string{"start", "pinged", "pong"},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(reportPath, data, 0o644))

	var out bytes.Buffer
	require.NoError(t, RunGraph(GraphOptions{SpecPath: pingSpec, ReportPath: reportPath}, &out))
	assert.True(t, strings.HasPrefix(out.String(), "graph TD\n"))
	assert.Contains(t, out.String(), "class pinged visited;")
	assert.Contains(t, out.String(), "class pong current;")
}

func TestConfirm(t *testing.T) {
	tests := map[string]bool{
		"y\n":   true,
		"YES\n": true,
		"n\n":   false,
		"\n":    false,
		"":      false,
	}
	for in, want := range tests {
		var out bytes.Buffer
		got, err := confirm(strings.NewReader(in), &out, "Store trace?")
		require.NoError(t, err)
		assert.Equal(t, want, got, "input %q", in)
		assert.Equal(t, "Store trace? [y/N] ", out.String())
	}
}
