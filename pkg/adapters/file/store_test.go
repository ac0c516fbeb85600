package file_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aretw0/interop/pkg/adapters/file"
	"github.com/aretw0/interop/pkg/domain"
	"github.com/aretw0/interop/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Contract(t *testing.T) {
	store := file.New(t.TempDir())
	ports.RunTraceStoreContract(t, store)
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)
	ctx := context.Background()

	trace := &domain.Trace{
		ID:      "run-1",
		Pattern: "order-flow",
		Events: []domain.Event{
			{Seq: 1, InterfaceID: "orders", Body: "{\"multi\":\n\"line\"}"},
			{Seq: 2, InterfaceID: "orders", Status: 201},
		},
	}
	require.NoError(t, store.Save(ctx, trace))

	data, err := os.ReadFile(filepath.Join(dir, "run-1.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3, "header plus one line per event")
	assert.Contains(t, lines[0], `"events":2`)

	loaded, err := store.Load(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, trace.Events[0].Body, loaded.Events[0].Body)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileStore_RejectsTraversal(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	err := store.Save(ctx, &domain.Trace{ID: "../escape"})
	assert.Error(t, err)

	_, err = store.Load(ctx, "")
	assert.Error(t, err)
}

func TestFileStore_ListMissingDir(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "missing"))
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
