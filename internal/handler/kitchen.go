package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/middleware"
	"github.com/nasser0p/digi-ai/internal/service"
)

// KitchenHandler serves the kitchen display and completion actions.
type KitchenHandler struct {
	kitchen *service.KitchenService
	log     *slog.Logger
}

func NewKitchenHandler(k *service.KitchenService, log *slog.Logger) *KitchenHandler {
	return &KitchenHandler{kitchen: k, log: log}
}

// RegisterRoutes expects to be mounted at /restaurants/{rid}/kitchen.
func (h *KitchenHandler) RegisterRoutes(r chi.Router) {
	r.Get("/groups", h.Groups)
	r.Get("/tickets", h.Tickets)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(kitchenRoles...))
		r.Post("/items/complete", h.CompleteItem)
		r.Post("/groups/bump", h.BumpGroup)
	})
}

type completeItemRequest struct {
	OrderID   string `json:"order_id"`
	LineIndex *int   `json:"line_index"`
}

type bumpGroupRequest struct {
	Key     string `json:"key"`
	Station string `json:"station"`
}

func (h *KitchenHandler) Groups(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	groups, err := h.kitchen.Groups(r.Context(), rid, strings.TrimSpace(r.URL.Query().Get("station")))
	if err != nil {
		writeError(w, h.log, "kitchen groups", err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *KitchenHandler) Tickets(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	tickets, err := h.kitchen.Tickets(r.Context(), rid, strings.TrimSpace(r.URL.Query().Get("station")))
	if err != nil {
		writeError(w, h.log, "kitchen tickets", err)
		return
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (h *KitchenHandler) CompleteItem(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	var req completeItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order_id"})
		return
	}
	if req.LineIndex == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "line_index is required"})
		return
	}

	o, err := h.kitchen.CompleteItem(r.Context(), rid, orderID, *req.LineIndex)
	if err != nil {
		writeError(w, h.log, "complete item", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// BumpGroup completes every outstanding line of a group in one
// transaction.
func (h *KitchenHandler) BumpGroup(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	var req bumpGroupRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Key == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "key is required"})
		return
	}

	orders, err := h.kitchen.BumpGroup(r.Context(), rid, req.Key, strings.TrimSpace(req.Station))
	if err != nil {
		writeError(w, h.log, "bump group", err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}
