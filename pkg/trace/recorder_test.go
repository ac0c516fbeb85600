package trace_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/interop/pkg/adapters/memory"
	"github.com/aretw0/interop/pkg/adapters/redis"
	"github.com/aretw0/interop/pkg/domain"
	"github.com/aretw0/interop/pkg/trace"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder_KeepsArrivalOrder(t *testing.T) {
	rec := trace.NewRecorder(memory.NewStore(), trace.WithTraceID("t1"), trace.WithPattern("p"))

	rec.PushEvent(domain.Event{InterfaceID: "a"})
	rec.LogException(&domain.TransportError{InterfaceID: "b", Err: errors.New("reset")})
	rec.PushEvent(domain.Event{Seq: 10, InterfaceID: "c"})
	rec.PushEvent(domain.Event{Seq: 4, InterfaceID: "d"})

	snap := rec.Snapshot()
	require.Len(t, snap.Events, 4)
	assert.Equal(t, "t1", snap.ID)
	assert.Equal(t, "p", snap.Pattern)

	var seqs []uint64
	for _, ev := range snap.Events {
		seqs = append(seqs, ev.Seq)
	}
	assert.Equal(t, []uint64{1, 2, 10, 11}, seqs)
	assert.True(t, snap.Events[1].IsFault())
	assert.Equal(t, "b", snap.Events[1].InterfaceID)
}

func TestRecorder_NothingDurableBeforeStore(t *testing.T) {
	store := memory.NewStore()
	rec := trace.NewRecorder(store)
	rec.PushEvent(domain.Event{InterfaceID: "a"})

	_, err := store.Load(context.Background(), rec.ID())
	assert.ErrorIs(t, err, domain.ErrTraceNotFound)

	id, err := rec.StoreTrace(context.Background())
	require.NoError(t, err)
	assert.Equal(t, rec.ID(), id)

	stored, err := store.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, stored.Events, 1)
}

func TestRecorder_ConcurrentPushes(t *testing.T) {
	rec := trace.NewRecorder(memory.NewStore())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				rec.PushEvent(domain.Event{InterfaceID: "x"})
			}
		}()
	}
	wg.Wait()

	snap := rec.Snapshot()
	require.Len(t, snap.Events, 400)
	for i, ev := range snap.Events {
		assert.Equal(t, uint64(i+1), ev.Seq)
	}
}

func TestRecorder_StoreWithLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := redis.NewFromClient(client)

	rec := trace.NewRecorder(store,
		trace.WithTraceID("locked"),
		trace.WithLocker(redis.NewLocker(client, redis.DefaultPrefix)),
	)
	rec.PushEvent(domain.Event{InterfaceID: "a"})

	id, err := rec.StoreTrace(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "locked", id)
	assert.False(t, mr.Exists(redis.DefaultPrefix+"lock:locked"), "lock released after store")

	// Another holder keeps the id locked: storing waits and gives up with the context.
	unlock, err := redis.NewLocker(client, redis.DefaultPrefix).Lock(context.Background(), "locked", time.Minute)
	require.NoError(t, err)
	defer unlock(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()
	_, err = rec.StoreTrace(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRecorder_NoStore(t *testing.T) {
	_, err := trace.NewRecorder(nil).StoreTrace(context.Background())
	assert.Error(t, err)
}

func TestRecorder_InjectedClock(t *testing.T) {
	at := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	r := trace.NewRecorder(memory.NewStore(), trace.WithRecorderClock(func() time.Time { return at }))

	r.LogException(errors.New("connection refused"))

	snap := r.Snapshot()
	assert.True(t, at.Equal(snap.CreatedAt))
	require.Len(t, snap.Events, 1)
	assert.True(t, at.Equal(snap.Events[0].Timestamp))
	assert.Equal(t, "connection refused", snap.Events[0].Fault)
	assert.Equal(t, uint64(1), snap.Events[0].Seq)
}
