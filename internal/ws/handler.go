package ws

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/auth"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/feed"
	"github.com/nasser0p/digi-ai/internal/floor"
	"github.com/nasser0p/digi-ai/internal/kitchen"
	"github.com/nasser0p/digi-ai/internal/service"
	"github.com/nasser0p/digi-ai/internal/store"
)

// DefaultRefresh is how often live views are recomputed without a change,
// so timer colours keep advancing.
const DefaultRefresh = 15 * time.Second

// KitchenView is the payload of a "kitchen.view" message.
type KitchenView struct {
	Station string           `json:"station,omitempty"`
	Groups  []kitchen.Group  `json:"groups"`
	Tickets []kitchen.Ticket `json:"tickets"`
}

// FloorView is the payload of a "floor.view" message.
type FloorView struct {
	Tables []floor.Status `json:"tables"`
}

type Handler struct {
	hub       *Hub
	store     *store.OrderStore
	kitchen   *service.KitchenService
	jwtSecret string
	refresh   time.Duration
	log       *slog.Logger
}

func NewHandler(hub *Hub, s *store.OrderStore, k *service.KitchenService, jwtSecret string, refresh time.Duration, log *slog.Logger) *Handler {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}
	return &Handler{hub: hub, store: s, kitchen: k, jwtSecret: jwtSecret, refresh: refresh, log: log}
}

// authorize checks the token query parameter against the {rid} path
// parameter. Browsers cannot set headers on a WebSocket handshake.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	claims, err := auth.ValidateToken(h.jwtSecret, tokenStr)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	rid, err := uuid.Parse(chi.URLParam(r, "rid"))
	if err != nil {
		http.Error(w, "invalid restaurant id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	if !claims.CanAccess(rid) {
		http.Error(w, "restaurant access denied", http.StatusForbidden)
		return uuid.Nil, false
	}
	return rid, true
}

// ServeOrders streams raw order events.
// Endpoint: WS /ws/restaurants/{rid}/orders?token=JWT
func (h *Handler) ServeOrders(w http.ResponseWriter, r *http.Request) {
	rid, ok := h.authorize(w, r)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(conn, rid, h.log)
	client.onClose = func() { h.hub.Unregister(client) }
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// ServeKitchen streams the kitchen display for one station, or all
// stations when none is given.
// Endpoint: WS /ws/restaurants/{rid}/kitchen?station=&token=JWT
func (h *Handler) ServeKitchen(w http.ResponseWriter, r *http.Request) {
	rid, ok := h.authorize(w, r)
	if !ok {
		return
	}
	station := r.URL.Query().Get("station")
	if _, err := h.kitchen.Options(r.Context(), rid, station); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, store.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, store.ErrStoreUnavailable):
			status = http.StatusServiceUnavailable
		}
		http.Error(w, err.Error(), status)
		return
	}

	build := func(ctx context.Context, open []database.Order) (any, error) {
		opts, err := h.kitchen.Options(ctx, rid, station)
		if err != nil {
			return nil, err
		}
		return KitchenView{
			Station: station,
			Groups:  kitchen.Aggregate(open, opts),
			Tickets: kitchen.Tickets(open, opts),
		}, nil
	}
	h.serveView(w, r, rid, "kitchen.view", build, nil, nil)
}

// ServeFloor streams derived table statuses.
// Endpoint: WS /ws/restaurants/{rid}/floor?token=JWT
func (h *Handler) ServeFloor(w http.ResponseWriter, r *http.Request) {
	rid, ok := h.authorize(w, r)
	if !ok {
		return
	}

	build := func(ctx context.Context, open []database.Order) (any, error) {
		tables, err := h.store.Queries().ListFloorTables(ctx, rid)
		if err != nil {
			return nil, store.Classify(err)
		}
		return FloorView{Tables: floor.DeriveAll(tables, open)}, nil
	}
	pokes, stop := h.hub.Watch(rid)
	h.serveView(w, r, rid, "floor.view", build, pokes, stop)
}

func (h *Handler) serveView(w http.ResponseWriter, r *http.Request, rid uuid.UUID, typ string, build ViewFunc, pokes <-chan struct{}, release func()) {
	filter := feed.Filter{RestaurantID: rid, OpenOnly: true}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		if release != nil {
			release()
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := newClient(conn, rid, h.log)
	client.onClose = cancel

	ticker := time.NewTicker(h.refresh)
	v := &view{
		typ: typ,
		subscribe: func(ctx context.Context) ([]database.Order, *feed.Subscription, error) {
			return h.store.Subscribe(ctx, filter)
		},
		build:   build,
		pokes:   pokes,
		refresh: ticker.C,
		send: func(msg []byte) bool {
			select {
			case client.send <- msg:
				return true
			default:
				return false
			}
		},
		log: h.log.With("restaurant_id", rid),
	}

	go client.writePump()
	go client.readPump()
	go func() {
		defer func() {
			ticker.Stop()
			cancel()
			if release != nil {
				release()
			}
			close(client.send)
		}()
		if err := v.run(ctx); err != nil {
			h.log.Error("live view stopped", "view", typ, "restaurant_id", rid, "error", err)
		}
	}()
}
