package trace_test

import (
	"context"
	"testing"

	"github.com/aretw0/interop/internal/runtime"
	"github.com/aretw0/interop/pkg/adapters/file"
	"github.com/aretw0/interop/pkg/adapters/memory"
	"github.com/aretw0/interop/pkg/capture"
	"github.com/aretw0/interop/pkg/domain"
	"github.com/aretw0/interop/pkg/trace"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderPattern(iface string) *domain.Pattern {
	return &domain.Pattern{
		Name: "order",
		States: []domain.State{
			{ID: "start", Kind: domain.KindInitial},
			{ID: "ordered", Kind: domain.KindIntermediate},
			{ID: "done", Kind: domain.KindAccept},
		},
		Transitions: []domain.Transition{
			{
				From:    "start",
				To:      "ordered",
				Guards:  []domain.Guard{{Interface: iface, Direction: domain.DirectionRequest}},
				Actions: []domain.Action{{Type: domain.ActionBind, Var: "id", Path: "/id"}},
			},
			{
				From:   "ordered",
				To:     "done",
				Guards: []domain.Guard{{Interface: iface, Direction: domain.DirectionResponse, Path: "/id", Equals: "${id}"}},
			},
		},
		OnUnexpected: domain.PolicyIgnore,
	}
}

func liveEvents() []domain.Event {
	return []domain.Event{
		{InterfaceID: "orders", Direction: domain.DirectionRequest, Body: `{"id":"X-1"}`, CorrelationID: "c1"},
		{InterfaceID: "orders", Direction: domain.DirectionResponse, Status: 500, Body: `{"error":"busy"}`, CorrelationID: "c1"},
		{InterfaceID: "orders", Direction: domain.DirectionResponse, Status: 201, Body: `{"id":"x-1"}`, CorrelationID: "c1"},
	}
}

func TestRecordReplay_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := file.New(t.TempDir())

	// Live run: the queue feeds the engine, the recorder listens alongside.
	queue := capture.NewQueue()
	rec := trace.NewRecorder(store, trace.WithPattern("order"))
	sink := capture.NewFanout(queue, rec)
	for _, ev := range liveEvents() {
		sink.PushEvent(ev)
	}
	queue.Close()

	live, err := runtime.NewEngine(orderPattern("orders"))
	require.NoError(t, err)
	liveReport, err := live.Run(ctx, queue)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeAccepted, liveReport.Outcome)

	id, err := rec.StoreTrace(ctx)
	require.NoError(t, err)

	// Offline run against a fresh, structurally identical engine.
	src, err := trace.NewReplayer(store).Source(ctx, id)
	require.NoError(t, err)
	replayed, err := runtime.NewEngine(orderPattern("orders"))
	require.NoError(t, err)
	replayReport, err := replayed.Run(ctx, src)
	require.NoError(t, err)

	assert.Equal(t, liveReport.Outcome, replayReport.Outcome)
	assert.Equal(t, liveReport.FinalState, replayReport.FinalState)
	assert.Equal(t, liveReport.Path, replayReport.Path)
	assert.Equal(t, liveReport.Bindings, replayReport.Bindings)
	assert.Equal(t, liveReport.Unexpected, replayReport.Unexpected)
}

func TestReplay_InterfaceMap(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	rec := trace.NewRecorder(store)
	for _, ev := range liveEvents() {
		rec.PushEvent(ev)
	}
	id, err := rec.StoreTrace(ctx)
	require.NoError(t, err)

	src, err := trace.NewReplayer(store, trace.WithInterfaceMap(map[string]string{"orders": "purchases"})).Source(ctx, id)
	require.NoError(t, err)

	eng, err := runtime.NewEngine(orderPattern("purchases"))
	require.NoError(t, err)
	report, err := eng.Run(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeAccepted, report.Outcome)
	assert.Equal(t, "X-1", report.Bindings["id"])
}

func TestReplay_OrderAndCount(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Save(ctx, &domain.Trace{ID: "t", Events: []domain.Event{
		{Seq: 1, InterfaceID: "a"},
		{Seq: 2, InterfaceID: "b", Fault: "refused"},
		{Seq: 3, InterfaceID: "c"},
	}}))

	rec := trace.NewRecorder(nil)
	n, err := trace.NewReplayer(store).Replay(ctx, "t", rec)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got := rec.Snapshot().Events
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].InterfaceID)
	assert.Equal(t, "refused", got[1].Fault)
	assert.Equal(t, uint64(3), got[2].Seq)
}

func TestReplay_MissingTrace(t *testing.T) {
	_, err := trace.NewReplayer(memory.NewStore()).Replay(context.Background(), "nope", capture.NewQueue())
	assert.ErrorIs(t, err, domain.ErrTraceNotFound)
}

func TestReplay_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := trace.NewReplayer(memory.NewStore()).ReplayTrace(ctx, &domain.Trace{Events: []domain.Event{{Seq: 1}}}, capture.NewQueue())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}
