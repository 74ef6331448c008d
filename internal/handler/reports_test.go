package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/enum"
	"github.com/nasser0p/digi-ai/internal/handler"
)

type mockReportsStore struct {
	listIngredientsFn func(ctx context.Context, restaurantID uuid.UUID) ([]database.Ingredient, error)
	dailySalesFn      func(ctx context.Context, arg database.GetDailySalesParams) ([]database.GetDailySalesRow, error)
}

func (m *mockReportsStore) ListIngredients(ctx context.Context, restaurantID uuid.UUID) ([]database.Ingredient, error) {
	if m.listIngredientsFn != nil {
		return m.listIngredientsFn(ctx, restaurantID)
	}
	return []database.Ingredient{}, nil
}

func (m *mockReportsStore) GetDailySales(ctx context.Context, arg database.GetDailySalesParams) ([]database.GetDailySalesRow, error) {
	if m.dailySalesFn != nil {
		return m.dailySalesFn(ctx, arg)
	}
	return []database.GetDailySalesRow{}, nil
}

func reportsRouter(store *mockReportsStore) chi.Router {
	return mountAt("/reports", handler.NewReportsHandler(store, discardLogger()).RegisterRoutes)
}

func TestInventoryReport(t *testing.T) {
	rid := uuid.New()
	store := &mockReportsStore{
		listIngredientsFn: func(ctx context.Context, restaurantID uuid.UUID) ([]database.Ingredient, error) {
			return []database.Ingredient{
				{ID: uuid.New(), Name: "Beef", Stock: d("-2")},
				{ID: uuid.New(), Name: "Buns", Stock: d("3")},
				{ID: uuid.New(), Name: "Salt", Stock: d("40")},
			}, nil
		},
	}
	token, _ := tokenFor(rid, enum.UserRoleManager)

	rr := doJSON(t, reportsRouter(store), "GET", "/restaurants/"+rid.String()+"/reports/inventory?threshold=5", token, nil)
	expectStatus(t, rr, http.StatusOK)
	resp := decodeResponse(t, rr)

	if resp["negative_count"] != float64(1) {
		t.Errorf("negative_count: got %v, want 1", resp["negative_count"])
	}
	if resp["low_count"] != float64(2) {
		t.Errorf("low_count: got %v, want 2", resp["low_count"])
	}
	lines := resp["ingredients"].([]interface{})
	if len(lines) != 3 {
		t.Fatalf("ingredients: got %d, want 3", len(lines))
	}
	first := lines[0].(map[string]interface{})
	if first["name"] != "Beef" || first["negative"] != true {
		t.Errorf("first line: %v", first)
	}
}

func TestInventoryReport_Rejects(t *testing.T) {
	rid := uuid.New()
	router := reportsRouter(&mockReportsStore{})

	foh, _ := tokenFor(rid, enum.UserRoleFOH)
	expectStatus(t, doJSON(t, router, "GET", "/restaurants/"+rid.String()+"/reports/inventory", foh, nil), http.StatusForbidden)

	owner, _ := tokenFor(rid, enum.UserRoleOwner)
	expectStatus(t, doJSON(t, router, "GET", "/restaurants/"+rid.String()+"/reports/inventory?threshold=lots", owner, nil), http.StatusBadRequest)
}

func TestInventoryReport_StoreDown(t *testing.T) {
	rid := uuid.New()
	store := &mockReportsStore{
		listIngredientsFn: func(ctx context.Context, restaurantID uuid.UUID) ([]database.Ingredient, error) {
			return nil, errors.New("connection refused")
		},
	}
	token, _ := tokenFor(rid, enum.UserRoleOwner)
	rr := doJSON(t, reportsRouter(store), "GET", "/restaurants/"+rid.String()+"/reports/inventory", token, nil)
	if rr.Code < 500 {
		t.Errorf("status: got %d, want 5xx", rr.Code)
	}
}

func TestDailySales(t *testing.T) {
	rid := uuid.New()
	var got database.GetDailySalesParams
	store := &mockReportsStore{
		dailySalesFn: func(ctx context.Context, arg database.GetDailySalesParams) ([]database.GetDailySalesRow, error) {
			got = arg
			return []database.GetDailySalesRow{{
				SaleDate:   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
				OrderCount: 4,
				Subtotal:   d("20.000"),
				TaxAmount:  d("1.000"),
				Total:      d("21.000"),
			}}, nil
		},
	}
	token, _ := tokenFor(rid, enum.UserRoleManager)

	rr := doJSON(t, reportsRouter(store), "GET", "/restaurants/"+rid.String()+"/reports/daily-sales?start_date=2026-03-01&end_date=2026-03-07", token, nil)
	expectStatus(t, rr, http.StatusOK)

	if !got.StartDate.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("start: got %s", got.StartDate)
	}
	if !got.EndDate.Equal(time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("end should be exclusive next day, got %s", got.EndDate)
	}
	var rows []map[string]interface{}
	decodeInto(t, rr, &rows)
	if len(rows) != 1 || rows[0]["date"] != "2026-03-02" || rows[0]["order_count"] != float64(4) {
		t.Errorf("rows: %v", rows)
	}
}

func TestDailySales_BadRange(t *testing.T) {
	rid := uuid.New()
	token, _ := tokenFor(rid, enum.UserRoleManager)
	router := reportsRouter(&mockReportsStore{})

	for _, q := range []string{
		"start_date=03-01-2026",
		"end_date=yesterday",
		"start_date=2026-03-09&end_date=2026-03-01",
	} {
		rr := doJSON(t, router, "GET", "/restaurants/"+rid.String()+"/reports/daily-sales?"+q, token, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("%s: got %d, want 400", q, rr.Code)
		}
	}
}
