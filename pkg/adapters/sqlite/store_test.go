package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aretw0/interop/pkg/adapters/sqlite"
	"github.com/aretw0/interop/pkg/domain"
	"github.com/aretw0/interop/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) (*sqlite.Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "traces.db")
	store, err := sqlite.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, path
}

func TestSQLiteStore_Contract(t *testing.T) {
	store, _ := openStore(t)
	ports.RunTraceStoreContract(t, store)
}

func TestSQLiteStore_Reopen(t *testing.T) {
	store, path := openStore(t)
	ctx := context.Background()

	trace := &domain.Trace{ID: "persisted", Events: []domain.Event{
		{Seq: 2, InterfaceID: "b"},
		{Seq: 1, InterfaceID: "a"},
	}}
	require.NoError(t, store.Save(ctx, trace))
	require.NoError(t, store.Close())

	reopened, err := sqlite.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.Load(ctx, "persisted")
	require.NoError(t, err)
	require.Len(t, loaded.Events, 2)
	assert.Equal(t, "a", loaded.Events[0].InterfaceID, "events come back in sequence order")
	assert.Nil(t, loaded.Events[0].Headers)
}

func TestSQLiteStore_DuplicateSeqRollsBack(t *testing.T) {
	store, _ := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &domain.Trace{ID: "t", Events: []domain.Event{{Seq: 1, Body: "kept"}}}))

	err := store.Save(ctx, &domain.Trace{ID: "t", Events: []domain.Event{{Seq: 5}, {Seq: 5}}})
	require.Error(t, err)

	loaded, err := store.Load(ctx, "t")
	require.NoError(t, err)
	require.Len(t, loaded.Events, 1)
	assert.Equal(t, "kept", loaded.Events[0].Body)
}
