package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/interop/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTraceStoreContract runs a suite of tests to verify that a TraceStore implementation
// adheres to the defined interface contract.
func RunTraceStoreContract(t *testing.T, store TraceStore) {
	ctx := context.Background()
	traceID := "contract-test-trace-" + time.Now().Format("20060102150405")
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	newTrace := func(id string) *domain.Trace {
		return &domain.Trace{
			ID:        id,
			Pattern:   "contract",
			CreatedAt: base,
			Events: []domain.Event{
				{
					Seq:           1,
					InterfaceID:   "orders",
					Direction:     domain.DirectionRequest,
					Method:        "POST",
					Path:          "/orders",
					Headers:       map[string]string{"Content-Type": "application/json"},
					Body:          `{"id":"A1"}`,
					Timestamp:     base,
					CorrelationID: "c-1",
				},
				{
					Seq:           2,
					InterfaceID:   "orders",
					Direction:     domain.DirectionResponse,
					Status:        201,
					Body:          `{"ok":true}`,
					Timestamp:     base.Add(time.Millisecond),
					CorrelationID: "c-1",
				},
				{
					Seq:         3,
					InterfaceID: "orders",
					Fault:       "connection refused",
					Timestamp:   base.Add(2 * time.Millisecond),
				},
			},
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		trace := newTrace(traceID)

		err := store.Save(ctx, trace)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, traceID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, trace.ID, loaded.ID)
		assert.Equal(t, trace.Pattern, loaded.Pattern)
		assert.True(t, trace.CreatedAt.Equal(loaded.CreatedAt))
		require.Len(t, loaded.Events, len(trace.Events))
		for i, ev := range trace.Events {
			got := loaded.Events[i]
			assert.Equal(t, ev.Seq, got.Seq)
			assert.Equal(t, ev.InterfaceID, got.InterfaceID)
			assert.Equal(t, ev.Direction, got.Direction)
			assert.Equal(t, ev.Method, got.Method)
			assert.Equal(t, ev.Status, got.Status)
			assert.Equal(t, ev.Body, got.Body)
			assert.Equal(t, ev.Fault, got.Fault)
			assert.Equal(t, ev.CorrelationID, got.CorrelationID)
			assert.True(t, ev.Timestamp.Equal(got.Timestamp))
		}
		assert.Equal(t, "application/json", loaded.Events[0].Headers["Content-Type"])
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		trace := newTrace(traceID)
		trace.Events = trace.Events[:1]
		require.NoError(t, store.Save(ctx, trace))

		loaded, err := store.Load(ctx, traceID)
		require.NoError(t, err)
		assert.Len(t, loaded.Events, 1)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+traceID)
		assert.ErrorIs(t, err, domain.ErrTraceNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, newTrace(traceID)))

		err := store.Delete(ctx, traceID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, traceID)
		assert.ErrorIs(t, err, domain.ErrTraceNotFound, "Load after Delete should return ErrTraceNotFound")

		assert.NoError(t, store.Delete(ctx, traceID), "Deleting twice should be a no-op")
	})

	t.Run("List", func(t *testing.T) {
		id1 := traceID + "-1"
		id2 := traceID + "-2"
		require.NoError(t, store.Save(ctx, newTrace(id1)))
		require.NoError(t, store.Save(ctx, newTrace(id2)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
