package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/middleware"
	"github.com/nasser0p/digi-ai/internal/store"
	"github.com/shopspring/decimal"
)

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReportsStore interface {
	ListIngredients(ctx context.Context, restaurantID uuid.UUID) ([]database.Ingredient, error)
	GetDailySales(ctx context.Context, arg database.GetDailySalesParams) ([]database.GetDailySalesRow, error)
}

type ReportsHandler struct {
	store ReportsStore
	log   *slog.Logger
	now   func() time.Time
}

func NewReportsHandler(store ReportsStore, log *slog.Logger) *ReportsHandler {
	return &ReportsHandler{store: store, log: log, now: time.Now}
}

// RegisterRoutes expects to be mounted at /restaurants/{rid}/reports.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Use(middleware.RequireRole(managerRoles...))
	r.Get("/inventory", h.Inventory)
	r.Get("/daily-sales", h.DailySales)
}

type inventoryLine struct {
	database.Ingredient
	Negative bool `json:"negative"`
	Low      bool `json:"low"`
}

type inventoryResponse struct {
	Threshold   decimal.Decimal `json:"threshold"`
	Ingredients []inventoryLine `json:"ingredients"`
	Negative    int             `json:"negative_count"`
	Low         int             `json:"low_count"`
}

// Inventory lists ingredients lowest stock first, marking negative stock
// and stock at or below ?threshold= (default 0).
func (h *ReportsHandler) Inventory(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	threshold := decimal.Zero
	if s := r.URL.Query().Get("threshold"); s != "" {
		d, err := decimal.NewFromString(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid threshold"})
			return
		}
		threshold = d
	}

	ingredients, err := h.store.ListIngredients(r.Context(), rid)
	if err != nil {
		writeError(w, h.log, "inventory report", store.Classify(err))
		return
	}

	resp := inventoryResponse{Threshold: threshold, Ingredients: make([]inventoryLine, len(ingredients))}
	for i, ing := range ingredients {
		line := inventoryLine{
			Ingredient: ing,
			Negative:   ing.Stock.IsNegative(),
			Low:        ing.Stock.LessThanOrEqual(threshold),
		}
		if line.Negative {
			resp.Negative++
		}
		if line.Low {
			resp.Low++
		}
		resp.Ingredients[i] = line
	}
	writeJSON(w, http.StatusOK, resp)
}

type dailySalesResponse struct {
	Date           string          `json:"date"`
	OrderCount     int64           `json:"order_count"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Tip            decimal.Decimal `json:"tip"`
	Total          decimal.Decimal `json:"total"`
}

// DailySales returns per-day totals of completed orders between
// ?start_date= and ?end_date= (inclusive, YYYY-MM-DD, UTC). The default is
// the last 30 days.
func (h *ReportsHandler) DailySales(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	start, end, err := parseDateRange(r, h.now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.GetDailySales(r.Context(), database.GetDailySalesParams{
		RestaurantID: rid,
		StartDate:    start,
		EndDate:      end,
	})
	if err != nil {
		writeError(w, h.log, "daily sales", store.Classify(err))
		return
	}

	resp := make([]dailySalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = dailySalesResponse{
			Date:           row.SaleDate.Format("2006-01-02"),
			OrderCount:     row.OrderCount,
			Subtotal:       row.Subtotal,
			TaxAmount:      row.TaxAmount,
			DiscountAmount: row.DiscountAmount,
			Tip:            row.Tip,
			Total:          row.Total,
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func parseDateRange(r *http.Request, now time.Time) (time.Time, time.Time, error) {
	const layout = "2006-01-02"

	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := today.AddDate(0, 0, -30)
	end := today.AddDate(0, 0, 1)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse(layout, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format: %w", err)
		}
		start = t
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse(layout, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format: %w", err)
		}
		end = t.AddDate(0, 0, 1)
	}
	if !start.Before(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must not be after end_date")
	}
	return start, end, nil
}
