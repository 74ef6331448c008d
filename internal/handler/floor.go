package handler

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/middleware"
	"github.com/nasser0p/digi-ai/internal/service"
)

// FloorHandler serves table status and table actions.
type FloorHandler struct {
	floor  *service.FloorService
	orders *service.OrderService
	log    *slog.Logger

	// changed is told about manual status changes, which do not travel
	// on the order feed.
	changed func(restaurantID uuid.UUID)
}

func NewFloorHandler(f *service.FloorService, orders *service.OrderService, changed func(uuid.UUID), log *slog.Logger) *FloorHandler {
	if changed == nil {
		changed = func(uuid.UUID) {}
	}
	return &FloorHandler{floor: f, orders: orders, changed: changed, log: log}
}

// RegisterRoutes expects to be mounted at /restaurants/{rid}/floor.
func (h *FloorHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/tables/{label}", h.Table)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(staffRoles...))
		r.Post("/tables/{label}/clear", h.Clear)
		r.Post("/tables/{label}/seat", h.Seat)
		r.Post("/tables/{label}/items", h.AppendItems)
	})
}

func (h *FloorHandler) List(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	statuses, err := h.floor.Statuses(r.Context(), rid)
	if err != nil {
		writeError(w, h.log, "floor statuses", err)
		return
	}
	writeJSON(w, http.StatusOK, statuses)
}

func (h *FloorHandler) Table(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	view, err := h.floor.Table(r.Context(), rid, labelParam(r))
	if err != nil {
		writeError(w, h.log, "floor table", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *FloorHandler) Clear(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	status, err := h.floor.ClearTable(r.Context(), rid, labelParam(r))
	if err != nil {
		writeError(w, h.log, "clear table", err)
		return
	}
	h.changed(rid)
	writeJSON(w, http.StatusOK, status)
}

func (h *FloorHandler) Seat(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	status, err := h.floor.SeatTable(r.Context(), rid, labelParam(r))
	if err != nil {
		writeError(w, h.log, "seat table", err)
		return
	}
	h.changed(rid)
	writeJSON(w, http.StatusOK, status)
}

func labelParam(r *http.Request) string {
	raw := chi.URLParam(r, "label")
	if label, err := url.PathUnescape(raw); err == nil {
		return label
	}
	return raw
}

// AppendItems adds lines to the table's open order, opening one if the
// table has none.
func (h *FloorHandler) AppendItems(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	var req appendItemsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	items, ok := toLineRequests(w, req.Items)
	if !ok {
		return
	}
	res, err := h.orders.AppendToTable(r.Context(), rid, labelParam(r), items, createdBy(r))
	if err != nil {
		writeError(w, h.log, "append to table", err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, res)
}
