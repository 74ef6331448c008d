package ws

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/enum"
	"github.com/nasser0p/digi-ai/internal/feed"
)

type countView struct {
	Open int `json:"open"`
}

func openOrder(rid uuid.UUID) database.Order {
	return database.Order{
		ID:           uuid.New(),
		RestaurantID: rid,
		OrderType:    enum.OrderTypeDineIn,
		Status:       enum.OrderStatusNew,
		Version:      1,
		CreatedAt:    time.Now(),
	}
}

type viewHarness struct {
	broker     *feed.Broker
	rid        uuid.UUID
	out        chan int
	pokes      chan struct{}
	subscribes atomic.Int32
	snapshots  func(n int32) []database.Order
	buffer     int
}

func newViewHarness() *viewHarness {
	return &viewHarness{
		broker:    feed.NewBroker(discardLogger()),
		rid:       uuid.New(),
		out:       make(chan int),
		pokes:     make(chan struct{}, 1),
		snapshots: func(int32) []database.Order { return nil },
		buffer:    4,
	}
}

func (h *viewHarness) view() *view {
	return &view{
		typ: "test.view",
		subscribe: func(ctx context.Context) ([]database.Order, *feed.Subscription, error) {
			n := h.subscribes.Add(1)
			sub := h.broker.Subscribe(ctx, feed.Filter{RestaurantID: h.rid, OpenOnly: true}, h.buffer)
			return h.snapshots(n), sub, nil
		},
		build: func(ctx context.Context, open []database.Order) (any, error) {
			return countView{Open: len(open)}, nil
		},
		pokes: h.pokes,
		send: func(msg []byte) bool {
			var e Event
			if err := json.Unmarshal(msg, &e); err != nil {
				return false
			}
			var v countView
			if err := json.Unmarshal(e.Payload, &v); err != nil {
				return false
			}
			h.out <- v.Open
			return true
		},
		log: discardLogger(),
	}
}

func (h *viewHarness) next(t *testing.T) int {
	t.Helper()
	select {
	case n := <-h.out:
		return n
	case <-time.After(time.Second):
		t.Fatal("no view pushed")
		return 0
	}
}

func TestView_PushesSnapshotThenChanges(t *testing.T) {
	h := newViewHarness()
	h.snapshots = func(int32) []database.Order { return []database.Order{openOrder(h.rid)} }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.view().run(ctx) }()

	if got := h.next(t); got != 1 {
		t.Fatalf("initial view: got %d open, want 1", got)
	}

	h.broker.Publish(feed.Event{Kind: feed.KindCreated, Order: openOrder(h.rid)})
	if got := h.next(t); got != 2 {
		t.Fatalf("after create: got %d open, want 2", got)
	}

	h.pokes <- struct{}{}
	if got := h.next(t); got != 2 {
		t.Fatalf("after poke: got %d open, want 2", got)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not stop after cancel")
	}
}

func TestView_ResubscribesAfterLag(t *testing.T) {
	h := newViewHarness()
	h.buffer = 1
	h.snapshots = func(n int32) []database.Order {
		if n == 1 {
			return nil
		}
		out := make([]database.Order, 5)
		for i := range out {
			out[i] = openOrder(h.rid)
		}
		return out
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.view().run(ctx)

	if got := h.next(t); got != 0 {
		t.Fatalf("initial view: got %d open, want 0", got)
	}

	// The view blocks in send while these arrive, so the subscription lags.
	for i := 0; i < 3; i++ {
		h.broker.Publish(feed.Event{Kind: feed.KindCreated, Order: openOrder(h.rid)})
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-h.out:
			if n == 5 {
				if h.subscribes.Load() != 2 {
					t.Fatalf("subscribes: got %d, want 2", h.subscribes.Load())
				}
				return
			}
		case <-deadline:
			t.Fatal("view never reloaded its snapshot")
		}
	}
}

func TestView_StopsWhenTerminalGone(t *testing.T) {
	h := newViewHarness()
	v := h.view()
	v.send = func([]byte) bool { return false }

	done := make(chan error, 1)
	go func() { done <- v.run(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("run did not stop when send failed")
	}
}
