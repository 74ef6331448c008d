package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/enum"
	"github.com/nasser0p/digi-ai/internal/feed"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockClient creates a client without a real WebSocket connection.
func mockClient(restaurantID uuid.UUID) *Client {
	return &Client{
		restaurantID: restaurantID,
		send:         make(chan []byte, 256),
		log:          discardLogger(),
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func receiveEvent(t *testing.T, c *Client) Event {
	t.Helper()
	select {
	case msg := <-c.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("unmarshal message: %v", err)
		}
		return received
	case <-time.After(time.Second):
		t.Fatal("client did not receive message")
		return Event{}
	}
}

func TestHubRegistration(t *testing.T) {
	hub := startHub(t)
	rid := uuid.New()
	client := mockClient(rid)

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if !hub.rooms[rid][client] {
		t.Fatal("client not registered in restaurant room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := startHub(t)
	rid := uuid.New()
	client := mockClient(rid)

	hub.register <- client
	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if hub.rooms[rid] != nil {
		t.Fatal("room not cleaned up after last client unregistered")
	}
	if _, ok := <-client.send; ok {
		t.Fatal("send channel should be closed")
	}
}

func TestBroadcast_OnlyReachesOwnRestaurant(t *testing.T) {
	hub := startHub(t)
	r1, r2 := uuid.New(), uuid.New()
	client1 := mockClient(r1)
	client2 := mockClient(r2)
	hub.register <- client1
	hub.register <- client2

	payload := json.RawMessage(`{"order_id":"test-123"}`)
	hub.Broadcast(r1, Event{Type: "order.created", Payload: payload})

	got := receiveEvent(t, client1)
	if got.Type != "order.created" {
		t.Errorf("type: got %q, want %q", got.Type, "order.created")
	}
	if string(got.Payload) != string(payload) {
		t.Errorf("payload: got %s, want %s", got.Payload, payload)
	}

	select {
	case <-client2.send:
		t.Fatal("client2 should not receive another restaurant's event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRelay_ForwardsFeedEvents(t *testing.T) {
	hub := startHub(t)
	broker := feed.NewBroker(discardLogger())
	rid := uuid.New()
	client := mockClient(rid)
	hub.register <- client

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Relay(ctx, broker)

	deadline := time.Now().Add(time.Second)
	for broker.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	o := database.Order{ID: uuid.New(), RestaurantID: rid, Status: enum.OrderStatusNew, Version: 1}
	broker.Publish(feed.Event{Kind: feed.KindCreated, Order: o})

	got := receiveEvent(t, client)
	if got.Type != "order.created" {
		t.Errorf("type: got %q, want %q", got.Type, "order.created")
	}
	var payload database.Order
	if err := json.Unmarshal(got.Payload, &payload); err != nil {
		t.Fatalf("unmarshal order: %v", err)
	}
	if payload.ID != o.ID {
		t.Errorf("order id: got %s, want %s", payload.ID, o.ID)
	}
}

func TestPoke_WakesWatchersOfRestaurant(t *testing.T) {
	hub := NewHub(discardLogger())
	r1, r2 := uuid.New(), uuid.New()
	w1, stop1 := hub.Watch(r1)
	w2, stop2 := hub.Watch(r2)
	defer stop2()

	hub.Poke(r1)
	hub.Poke(r1) // coalesced, must not block

	select {
	case <-w1:
	default:
		t.Fatal("watcher of r1 was not poked")
	}
	select {
	case <-w2:
		t.Fatal("watcher of r2 should not be poked")
	default:
	}

	stop1()
	hub.Poke(r1)
	select {
	case <-w1:
		t.Fatal("stopped watcher should not be poked")
	default:
	}
}
