package events

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"anchorplatform/core/types"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func statusEvent(id string) LifecycleEvent {
	return NewTransactionEvent(TypeTransactionStatusChanged, &types.TransactionView{ID: id, Sep: types.ProtocolSEP24}, time.Unix(1700000000, 0))
}

func TestQueueDropsOldest(t *testing.T) {
	clock := newFakeClock(time.Unix(1700000000, 0).UTC())
	queue := NewQueue(
		WithTaskCapacity(3),
		WithHistoryCapacity(2),
		WithTTL(time.Minute),
		WithClock(clock.Now),
	)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, queue.Publish(context.Background(), statusEvent(id)))
	}

	history := queue.Events()
	require.Len(t, history, 2)
	require.EqualValues(t, 4, history[0].Sequence)
	require.EqualValues(t, 5, history[1].Sequence)
	require.Equal(t, "24", history[0].Sep)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var ids []string
	for len(ids) < 3 {
		task, ok := queue.Dequeue(ctx)
		require.True(t, ok)
		ids = append(ids, task.Event.Transaction.ID)
	}
	require.Equal(t, []string{"c", "d", "e"}, ids)
}

func TestQueueEvictsExpired(t *testing.T) {
	clock := newFakeClock(time.Unix(1700000000, 0).UTC())
	queue := NewQueue(WithTTL(10*time.Second), WithClock(clock.Now))
	require.NoError(t, queue.Publish(context.Background(), statusEvent("old")))
	clock.Advance(11 * time.Second)
	require.NoError(t, queue.Publish(context.Background(), statusEvent("new")))

	history := queue.Events()
	require.Len(t, history, 1)
	require.Equal(t, "new", history[0].Transaction.ID)
}

func TestQueueSubscribeReplaysBacklog(t *testing.T) {
	queue := NewQueue()
	require.NoError(t, queue.Publish(context.Background(), statusEvent("a")))
	require.NoError(t, queue.Publish(context.Background(), statusEvent("b")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	updates, stop, backlog := queue.Subscribe(ctx, 1)
	defer stop()
	require.Len(t, backlog, 1)
	require.Equal(t, "b", backlog[0].Transaction.ID)

	require.NoError(t, queue.Publish(context.Background(), statusEvent("c")))
	select {
	case evt := <-updates:
		require.Equal(t, "c", evt.Transaction.ID)
		require.EqualValues(t, 3, evt.Sequence)
	case <-time.After(time.Second):
		t.Fatal("expected live event")
	}
}

func TestQueuePublishAfterClose(t *testing.T) {
	queue := NewQueue()
	queue.Close()
	require.ErrorIs(t, queue.Publish(context.Background(), statusEvent("a")), ErrQueueClosed)
}

func TestDelivererRetriesUntilSuccess(t *testing.T) {
	var calls atomic.Int32
	received := make(chan LifecycleEvent, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.Equal(t, Sign("secret", body), r.Header.Get(signatureHeader))
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var evt LifecycleEvent
		require.NoError(t, json.Unmarshal(body, &evt))
		received <- evt
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	queue := NewQueue()
	deliverer, err := NewDeliverer(queue, DelivererConfig{
		Endpoints:   []Endpoint{{URL: srv.URL, Secret: "secret"}},
		BaseBackoff: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go deliverer.Run(ctx)

	require.NoError(t, queue.Publish(ctx, statusEvent("tx-1")))
	select {
	case evt := <-received:
		require.Equal(t, "tx-1", evt.Transaction.ID)
		require.Equal(t, TypeTransactionStatusChanged, evt.Type)
	case <-ctx.Done():
		t.Fatal("webhook not delivered")
	}
	require.EqualValues(t, 2, calls.Load())
}

func TestEndpointTypeFilter(t *testing.T) {
	ep := Endpoint{URL: "http://example", Types: []Type{TypeCustomerUpdated}}
	require.True(t, ep.accepts(TypeCustomerUpdated))
	require.False(t, ep.accepts(TypeTransactionStatusChanged))
}
