package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/nasser0p/digi-ai/internal/auth"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/handler"
	"github.com/nasser0p/digi-ai/internal/middleware"
	"github.com/nasser0p/digi-ai/internal/service"
	"github.com/nasser0p/digi-ai/internal/store"
	"github.com/nasser0p/digi-ai/internal/store/storetest"
	"github.com/shopspring/decimal"
)

const testSecret = "test-secret"

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// env is a restaurant served by real services over the in-memory store.
type env struct {
	fake    *storetest.Fake
	store   *store.OrderStore
	router  chi.Router
	rid     uuid.UUID
	burger  database.MenuItem
	fries   database.MenuItem
	beef    database.Ingredient
	pokes   []uuid.UUID
	catalog *service.Catalog
}

// newEnv seeds 5 % VAT, a grill burger (2.000, Cheese +0.500, 2 beef) and
// fryer fries (1.000, 3 beef), 10 beef in stock and tables T1 and T2.
func newEnv(t *testing.T) *env {
	t.Helper()
	s, fake, _ := storetest.NewStore(store.DefaultMaxRetries)
	log := discardLogger()

	rid := uuid.New()
	vat := fake.AddTax(database.Tax{RestaurantID: rid, Name: "VAT", Rate: d("5")})
	fake.AddRestaurant(database.Restaurant{
		ID:              rid,
		Name:            "Handler Kitchen",
		AppliedTaxIDs:   []uuid.UUID{vat.ID},
		KitchenStations: []string{"grill", "fryer"},
	})
	beef := fake.AddIngredient(database.Ingredient{RestaurantID: rid, Name: "Beef", Unit: "unit", Stock: d("10")})
	burger := fake.AddMenuItem(database.MenuItem{
		RestaurantID: rid,
		Name:         "Burger",
		Price:        d("2.000"),
		IsAvailable:  true,
		Recipe:       []database.RecipeLine{{IngredientID: beef.ID, Quantity: d("2"), Unit: "unit"}},
		ModifierGroups: []database.ModifierGroup{{
			Name:    "Extras",
			Options: []database.ModifierOption{{Name: "Cheese", Price: d("0.500")}},
		}},
		Station:           pgtype.Text{String: "grill", Valid: true},
		TargetPrepMinutes: pgtype.Int4{Int32: 10, Valid: true},
	})
	fries := fake.AddMenuItem(database.MenuItem{
		RestaurantID: rid,
		Name:         "Fries",
		Price:        d("1.000"),
		IsAvailable:  true,
		Recipe:       []database.RecipeLine{{IngredientID: beef.ID, Quantity: d("3"), Unit: "unit"}},
		Station:      pgtype.Text{String: "fryer", Valid: true},
	})
	fake.AddTable(database.FloorTable{RestaurantID: rid, Label: "T1"})
	fake.AddTable(database.FloorTable{RestaurantID: rid, Label: "T2"})

	catalog := service.NewCatalog(s.Queries, time.Minute)
	orders := service.NewOrderService(s, catalog, log)
	kitchen := service.NewKitchenService(s, catalog, log)
	finalizer := service.NewFinalizer(s, catalog, service.NewInventoryLedger(log), log)
	floor := service.NewFloorService(s, log)

	e := &env{fake: fake, store: s, rid: rid, burger: burger, fries: fries, beef: beef, catalog: catalog}

	orderHandler := handler.NewOrderHandler(orders, finalizer, log)
	r := chi.NewRouter()
	r.Route("/public/restaurants/{rid}", orderHandler.RegisterPublicRoutes)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testSecret))
		r.Route("/restaurants/{rid}", func(r chi.Router) {
			r.Use(middleware.RequireRestaurant)
			r.Route("/orders", orderHandler.RegisterRoutes)
			r.Route("/pricing", handler.NewPricingHandler(orders, log).RegisterRoutes)
			r.Route("/kitchen", handler.NewKitchenHandler(kitchen, log).RegisterRoutes)
			r.Route("/floor", handler.NewFloorHandler(floor, orders, func(id uuid.UUID) {
				e.pokes = append(e.pokes, id)
			}, log).RegisterRoutes)
		})
	})
	e.router = r
	return e
}

func (e *env) token(t *testing.T, role string) string {
	t.Helper()
	tok, err := auth.GenerateToken(testSecret, uuid.New(), e.rid, role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return tok
}

func (e *env) path(suffix string) string {
	return "/restaurants/" + e.rid.String() + suffix
}

func doJSON(t *testing.T, router http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeInto(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	decodeInto(t, rr, &resp)
	return resp
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status: got %d, want %d (body %s)", rr.Code, want, rr.Body.String())
	}
}

func line(id uuid.UUID, qty int32, mods ...string) map[string]interface{} {
	return map[string]interface{}{"menu_item_id": id.String(), "quantity": qty, "modifiers": mods}
}

func tokenFor(restaurantID uuid.UUID, role string) (string, error) {
	return auth.GenerateToken(testSecret, uuid.New(), restaurantID, role)
}
