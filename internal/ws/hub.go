package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/feed"
)

// Event is one message pushed to a terminal.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type restaurantEvent struct {
	RestaurantID uuid.UUID
	Event        Event
}

// Hub keeps one room of raw-event clients per restaurant and the poke
// channels of live views that must refresh on changes the order feed does
// not carry (table status).
type Hub struct {
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *restaurantEvent

	mu sync.RWMutex

	watchMu  sync.Mutex
	watchers map[uuid.UUID]map[chan struct{}]struct{}

	done chan struct{}
	log  *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *restaurantEvent, 256),
		watchers:   make(map[uuid.UUID]map[chan struct{}]struct{}),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run processes registrations and broadcasts until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.restaurantID] == nil {
				h.rooms[client.restaurantID] = make(map[*Client]bool)
			}
			h.rooms[client.restaurantID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			h.drop(client)
			h.mu.Unlock()

		case event := <-h.broadcast:
			message, err := json.Marshal(event.Event)
			if err != nil {
				h.log.Error("marshal ws event", "type", event.Event.Type, "error", err)
				continue
			}

			h.mu.Lock()
			for client := range h.rooms[event.RestaurantID] {
				select {
				case client.send <- message:
				default:
					h.log.Warn("dropping slow ws client", "restaurant_id", event.RestaurantID)
					h.drop(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// drop must be called with h.mu held.
func (h *Hub) drop(client *Client) {
	clients, ok := h.rooms[client.restaurantID]
	if !ok {
		return
	}
	if _, exists := clients[client]; !exists {
		return
	}
	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.rooms, client.restaurantID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, clients := range h.rooms {
		for client := range clients {
			h.drop(client)
		}
	}
}

// Register adds a raw-event client. It reports false once the hub stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues an event for every raw-event client of a restaurant.
func (h *Hub) Broadcast(restaurantID uuid.UUID, event Event) {
	select {
	case h.broadcast <- &restaurantEvent{RestaurantID: restaurantID, Event: event}:
	case <-h.done:
	}
}

// Relay forwards every committed order write from the feed to the rooms
// until ctx is done.
func (h *Hub) Relay(ctx context.Context, broker *feed.Broker) {
	for {
		sub := broker.Subscribe(ctx, feed.Filter{}, feed.DefaultBuffer)
		for e := range sub.Events() {
			payload, err := json.Marshal(e.Order)
			if err != nil {
				h.log.Error("marshal order for ws", "order_id", e.Order.ID, "error", err)
				continue
			}
			h.Broadcast(e.Order.RestaurantID, Event{Type: "order." + string(e.Kind), Payload: payload})
		}
		if !errors.Is(sub.Err(), feed.ErrLagged) || ctx.Err() != nil {
			return
		}
		h.log.Warn("ws relay lagged, resubscribing")
	}
}

// Watch returns a channel that receives a signal whenever Poke is called
// for the restaurant. stop must be called to release it.
func (h *Hub) Watch(restaurantID uuid.UUID) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	h.watchMu.Lock()
	if h.watchers[restaurantID] == nil {
		h.watchers[restaurantID] = make(map[chan struct{}]struct{})
	}
	h.watchers[restaurantID][ch] = struct{}{}
	h.watchMu.Unlock()

	stop := func() {
		h.watchMu.Lock()
		defer h.watchMu.Unlock()
		delete(h.watchers[restaurantID], ch)
		if len(h.watchers[restaurantID]) == 0 {
			delete(h.watchers, restaurantID)
		}
	}
	return ch, stop
}

// Poke wakes every view watching the restaurant. It never blocks.
func (h *Hub) Poke(restaurantID uuid.UUID) {
	h.watchMu.Lock()
	defer h.watchMu.Unlock()
	for ch := range h.watchers[restaurantID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
