package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/middleware"
	"github.com/nasser0p/digi-ai/internal/pricing"
	"github.com/nasser0p/digi-ai/internal/service"
	"github.com/shopspring/decimal"
)

// OrderHandler serves order submission, edits and payment.
type OrderHandler struct {
	orders    *service.OrderService
	finalizer *service.Finalizer
	log       *slog.Logger
}

func NewOrderHandler(orders *service.OrderService, finalizer *service.Finalizer, log *slog.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, finalizer: finalizer, log: log}
}

// RegisterRoutes expects to be mounted at /restaurants/{rid}/orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(staffRoles...))
		r.Post("/", h.Create)
		r.Post("/{id}/items", h.AppendItems)
		r.Put("/{id}/tip", h.SetTip)
		r.Post("/{id}/finalize", h.Finalize)
	})
	r.With(middleware.RequireRole(managerRoles...)).Put("/{id}/discounts", h.ApplyDiscounts)
}

// --- Request types ---

type lineRequest struct {
	MenuItemID string   `json:"menu_item_id"`
	Quantity   int32    `json:"quantity"`
	Modifiers  []string `json:"modifiers"`
	Notes      string   `json:"notes"`
}

type createOrderRequest struct {
	OrderType   string             `json:"order_type"`
	PlateNumber string             `json:"plate_number"`
	Notes       string             `json:"notes"`
	Items       []lineRequest      `json:"items"`
	Discounts   []pricing.Discount `json:"discounts"`
	Tip         decimal.Decimal    `json:"tip"`
	PlatformFee decimal.Decimal    `json:"platform_fee"`
}

type appendItemsRequest struct {
	Items []lineRequest `json:"items"`
}

type discountsRequest struct {
	Discounts []pricing.Discount `json:"discounts"`
}

type tipRequest struct {
	Tip decimal.Decimal `json:"tip"`
}

type finalizeRequest struct {
	PaymentMethod string              `json:"payment_method"`
	Tendered      decimal.NullDecimal `json:"tendered"`
}

func toLineRequests(w http.ResponseWriter, in []lineRequest) ([]service.LineRequest, bool) {
	out := make([]service.LineRequest, 0, len(in))
	for _, l := range in {
		id, err := uuid.Parse(l.MenuItemID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid menu_item_id: " + l.MenuItemID})
			return nil, false
		}
		out = append(out, service.LineRequest{
			MenuItemID: id,
			Quantity:   l.Quantity,
			Modifiers:  l.Modifiers,
			Notes:      l.Notes,
		})
	}
	return out, true
}

// createdBy returns the authenticated user, or uuid.Nil for public orders.
func createdBy(r *http.Request) uuid.UUID {
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil {
		return claims.UserID
	}
	return uuid.Nil
}

// --- Handlers ---

func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	orders, err := h.orders.ListOpen(r.Context(), rid)
	if err != nil {
		writeError(w, h.log, "list orders", err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id", "order ID")
	if !ok {
		return
	}
	o, err := h.orders.Get(r.Context(), rid, id)
	if err != nil {
		writeError(w, h.log, "get order", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	o, ok := h.create(w, r, rid, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *OrderHandler) create(w http.ResponseWriter, r *http.Request, rid uuid.UUID, req createOrderRequest) (database.Order, bool) {
	items, ok := toLineRequests(w, req.Items)
	if !ok {
		return database.Order{}, false
	}
	o, err := h.orders.Create(r.Context(), service.CreateOrderRequest{
		RestaurantID: rid,
		OrderType:    req.OrderType,
		PlateNumber:  req.PlateNumber,
		Notes:        req.Notes,
		CreatedBy:    createdBy(r),
		Items:        items,
		Discounts:    req.Discounts,
		Tip:          req.Tip,
		PlatformFee:  req.PlatformFee,
	})
	if err != nil {
		writeError(w, h.log, "create order", err)
		return database.Order{}, false
	}
	return o, true
}

func (h *OrderHandler) AppendItems(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id", "order ID")
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
	o, err := h.orders.AppendItems(r.Context(), rid, id, items)
	if err != nil {
		writeError(w, h.log, "append items", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) ApplyDiscounts(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id", "order ID")
	if !ok {
		return
	}
	var req discountsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	o, err := h.orders.ApplyDiscounts(r.Context(), rid, id, req.Discounts)
	if err != nil {
		writeError(w, h.log, "apply discounts", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrderHandler) SetTip(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id", "order ID")
	if !ok {
		return
	}
	var req tipRequest
	if !decodeBody(w, r, &req) {
		return
	}
	o, err := h.orders.SetTip(r.Context(), rid, id, req.Tip)
	if err != nil {
		writeError(w, h.log, "set tip", err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// Finalize records payment and completes the order. Repeating it for a
// completed order returns the stored order with already_closed set.
func (h *OrderHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id", "order ID")
	if !ok {
		return
	}
	var req finalizeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	res, err := h.finalizer.Finalize(r.Context(), service.FinalizeRequest{
		RestaurantID:  rid,
		OrderID:       id,
		PaymentMethod: req.PaymentMethod,
		Tendered:      req.Tendered,
	})
	if err != nil {
		writeError(w, h.log, "finalize order", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
