package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// RegisterPublicRoutes exposes customer ordering without authentication.
// Expected at /public/restaurants/{rid}.
func (h *OrderHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/orders", h.PublicCreate)
}

type publicOrderResponse struct {
	ID          string `json:"id"`
	PlateNumber string `json:"plate_number"`
	Status      string `json:"status"`
	Total       string `json:"total"`
}

// PublicCreate places a customer order. Customers cannot set their own
// discounts, tip or platform fee; those fields in the body are ignored.
func (h *OrderHandler) PublicCreate(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	var req createOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	req.Discounts = nil
	req.Tip = decimal.Zero
	req.PlatformFee = decimal.Zero

	o, ok := h.create(w, r, rid, req)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, publicOrderResponse{
		ID:          o.ID.String(),
		PlateNumber: o.PlateNumber,
		Status:      o.Status,
		Total:       o.Total.String(),
	})
}
