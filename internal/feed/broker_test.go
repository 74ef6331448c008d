package feed

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/enum"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func event(rid uuid.UUID, status string, version int32) Event {
	return Event{
		Kind: KindUpdated,
		Order: database.Order{
			ID:           uuid.New(),
			RestaurantID: rid,
			OrderType:    enum.OrderTypeDineIn,
			Status:       status,
			Version:      version,
		},
	}
}

func receive(t *testing.T, sub *Subscription) (Event, bool) {
	t.Helper()
	select {
	case e, ok := <-sub.Events():
		return e, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}, false
	}
}

func TestBroker_DeliversMatchingEvents(t *testing.T) {
	b := NewBroker(testLogger())
	ridA, ridB := uuid.New(), uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := b.Subscribe(ctx, Filter{RestaurantID: ridA}, 4)

	b.Publish(event(ridB, enum.OrderStatusNew, 1))
	want := event(ridA, enum.OrderStatusNew, 1)
	b.Publish(want)

	got, ok := receive(t, sub)
	if !ok {
		t.Fatal("subscription closed unexpectedly")
	}
	if got.Order.ID != want.Order.ID {
		t.Errorf("got order %s, want %s", got.Order.ID, want.Order.ID)
	}
}

func TestBroker_CancelClosesSubscription(t *testing.T) {
	b := NewBroker(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	sub := b.Subscribe(ctx, Filter{}, 1)

	cancel()

	if _, ok := receive(t, sub); ok {
		t.Fatal("expected closed channel after cancel")
	}
	if sub.Err() != nil {
		t.Errorf("Err() = %v, want nil after cancel", sub.Err())
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
}

func TestBroker_DropsLaggingSubscriber(t *testing.T) {
	b := NewBroker(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := b.Subscribe(ctx, Filter{}, 1)

	rid := uuid.New()
	b.Publish(event(rid, enum.OrderStatusNew, 1))
	b.Publish(event(rid, enum.OrderStatusNew, 1))

	if _, ok := receive(t, sub); !ok {
		t.Fatal("first event should still be buffered")
	}
	if _, ok := receive(t, sub); ok {
		t.Fatal("expected channel closed after overflow")
	}
	if sub.Err() != ErrLagged {
		t.Errorf("Err() = %v, want ErrLagged", sub.Err())
	}
}

func TestFilter_OpenOnlyStillPassesCompletion(t *testing.T) {
	f := Filter{OpenOnly: true}
	done := event(uuid.New(), enum.OrderStatusCompleted, 3)
	done.Kind = KindCompleted
	if !f.Match(done) {
		t.Error("completion events must reach open-only subscribers")
	}
	stale := event(uuid.New(), enum.OrderStatusCompleted, 3)
	if f.Match(stale) {
		t.Error("non-completion writes to completed orders should be filtered")
	}
}

func TestFilter_OrderType(t *testing.T) {
	f := Filter{OrderType: enum.OrderTypeTakeaway}
	if f.Match(event(uuid.New(), enum.OrderStatusNew, 1)) {
		t.Error("dine-in order should not match takeaway filter")
	}
}

func TestBroker_ResetEndsEverySubscription(t *testing.T) {
	b := NewBroker(testLogger())
	ctx := context.Background()
	a := b.Subscribe(ctx, Filter{}, 1)
	c := b.Subscribe(ctx, Filter{RestaurantID: uuid.New()}, 1)

	if n := b.Reset(); n != 2 {
		t.Fatalf("Reset() = %d, want 2", n)
	}
	for _, sub := range []*Subscription{a, c} {
		if _, ok := <-sub.Events(); ok {
			t.Error("subscription still open")
		}
		if !errors.Is(sub.Err(), ErrLagged) {
			t.Errorf("Err() = %v, want ErrLagged", sub.Err())
		}
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
}

func TestBroker_UnsubscribeReleasesWatcher(t *testing.T) {
	b := NewBroker(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	before := runtime.NumGoroutine()
	for i := 0; i < 100; i++ {
		b.Unsubscribe(b.Subscribe(ctx, Filter{}, 1))
	}
	deadline := time.Now().Add(time.Second)
	for runtime.NumGoroutine() > before+5 {
		if time.Now().After(deadline) {
			t.Fatalf("goroutines = %d after unsubscribing, started with %d", runtime.NumGoroutine(), before)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
