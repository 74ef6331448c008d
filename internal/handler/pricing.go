package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nasser0p/digi-ai/internal/pricing"
	"github.com/nasser0p/digi-ai/internal/service"
	"github.com/shopspring/decimal"
)

// PricingHandler prices carts for the terminal's payment screen.
type PricingHandler struct {
	orders *service.OrderService
	log    *slog.Logger
}

func NewPricingHandler(orders *service.OrderService, log *slog.Logger) *PricingHandler {
	return &PricingHandler{orders: orders, log: log}
}

// RegisterRoutes expects to be mounted at /restaurants/{rid}/pricing.
func (h *PricingHandler) RegisterRoutes(r chi.Router) {
	r.Post("/quote", h.Quote)
}

type quoteRequest struct {
	Items       []lineRequest       `json:"items"`
	Discounts   []pricing.Discount  `json:"discounts"`
	Tip         decimal.Decimal     `json:"tip"`
	PlatformFee decimal.Decimal     `json:"platform_fee"`
	Tendered    decimal.NullDecimal `json:"tendered"`
}

// Quote prices a cart without storing it.
func (h *PricingHandler) Quote(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	var req quoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	items, ok := toLineRequests(w, req.Items)
	if !ok {
		return
	}
	res, err := h.orders.Quote(r.Context(), service.QuoteRequest{
		RestaurantID: rid,
		Items:        items,
		Discounts:    req.Discounts,
		Tip:          req.Tip,
		PlatformFee:  req.PlatformFee,
		Tendered:     req.Tendered,
	})
	if err != nil {
		writeError(w, h.log, "quote", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
