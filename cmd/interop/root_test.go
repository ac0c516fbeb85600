package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	assert.Contains(t, execute(t, "version"), "interop version ")
}

func TestValidateCommand(t *testing.T) {
	out := execute(t, "validate", "../../internal/cli/testdata/ping.yaml")
	assert.Contains(t, out, "orphan")
	assert.Contains(t, out, "Specification is valid!")
}

func TestGraphCommand(t *testing.T) {
	out := execute(t, "graph", "../../internal/cli/testdata/ping.yaml")
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, "pong(((\"pong\")))")
}

func TestTracesListEmptyStore(t *testing.T) {
	assert.Empty(t, execute(t, "traces", "list", "--store", "memory"))
}
