package router_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nasser0p/digi-ai/internal/auth"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/enum"
	"github.com/nasser0p/digi-ai/internal/router"
	"github.com/nasser0p/digi-ai/internal/service"
	"github.com/nasser0p/digi-ai/internal/store"
	"github.com/nasser0p/digi-ai/internal/store/storetest"
	"github.com/nasser0p/digi-ai/internal/ws"
	"github.com/shopspring/decimal"
)

const testSecret = "test-secret"

// noQueries answers every direct query with nothing.
type noQueries struct{}

func (noQueries) GetUserByEmail(context.Context, string) (database.User, error) {
	return database.User{}, pgx.ErrNoRows
}
func (noQueries) GetUserByRestaurantAndPin(context.Context, database.GetUserByRestaurantAndPinParams) (database.User, error) {
	return database.User{}, pgx.ErrNoRows
}
func (noQueries) GetUserByID(context.Context, uuid.UUID) (database.User, error) {
	return database.User{}, pgx.ErrNoRows
}
func (noQueries) ListMenuItems(context.Context, uuid.UUID) ([]database.MenuItem, error) {
	return []database.MenuItem{}, nil
}
func (noQueries) GetMenuItem(context.Context, database.GetMenuItemParams) (database.MenuItem, error) {
	return database.MenuItem{}, pgx.ErrNoRows
}
func (noQueries) CreateMenuItem(context.Context, database.CreateMenuItemParams) (database.MenuItem, error) {
	return database.MenuItem{}, pgx.ErrNoRows
}
func (noQueries) UpdateMenuItem(context.Context, database.UpdateMenuItemParams) (database.MenuItem, error) {
	return database.MenuItem{}, pgx.ErrNoRows
}
func (noQueries) DeleteMenuItem(context.Context, database.GetMenuItemParams) (int64, error) {
	return 0, nil
}
func (noQueries) ListIngredients(context.Context, uuid.UUID) ([]database.Ingredient, error) {
	return []database.Ingredient{}, nil
}
func (noQueries) GetDailySales(context.Context, database.GetDailySalesParams) ([]database.GetDailySalesRow, error) {
	return []database.GetDailySalesRow{}, nil
}

type fixture struct {
	handler http.Handler
	open    uuid.UUID
	locked  uuid.UUID
	item    uuid.UUID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	s, fake, _ := storetest.NewStore(store.DefaultMaxRetries)

	open := fake.AddRestaurant(database.Restaurant{Name: "Open"}).ID
	locked := fake.AddRestaurant(database.Restaurant{Name: "Locked", Locked: true}).ID
	item := uuid.New()
	for _, rid := range []uuid.UUID{open, locked} {
		fake.AddMenuItem(database.MenuItem{ID: uuid.New(), RestaurantID: rid, Name: "Tea", Price: decimal.RequireFromString("0.300"), IsAvailable: true})
	}
	fake.AddMenuItem(database.MenuItem{ID: item, RestaurantID: open, Name: "Coffee", Price: decimal.RequireFromString("1.000"), IsAvailable: true})

	catalog := service.NewCatalog(s.Queries, time.Minute)
	orders := service.NewOrderService(s, catalog, log)
	kitchen := service.NewKitchenService(s, catalog, log)
	hub := ws.NewHub(log)

	h := router.New(router.Deps{
		JWTSecret:      testSecret,
		AllowedOrigins: []string{"*"},
		Log:            log,
		Queries:        noQueries{},
		Catalog:        catalog,
		Orders:         orders,
		Kitchen:        kitchen,
		Floor:          service.NewFloorService(s, log),
		Finalizer:      service.NewFinalizer(s, catalog, service.NewInventoryLedger(log), log),
		Hub:            hub,
		WS:             ws.NewHandler(hub, s, kitchen, testSecret, ws.DefaultRefresh, log),
	})
	return fixture{handler: h, open: open, locked: locked, item: item}
}

func (f fixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	f.handler.ServeHTTP(rr, req)
	return rr
}

func token(t *testing.T, rid uuid.UUID, role string) string {
	t.Helper()
	tok, err := auth.GenerateToken(testSecret, uuid.New(), rid, role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return tok
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rr := f.do(t, "GET", "/health", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if rr.Body.String() != `{"status":"ok"}` {
		t.Errorf("body: %s", rr.Body.String())
	}
}

func TestLockedRestaurant(t *testing.T) {
	f := newFixture(t)
	owner := token(t, f.locked, enum.UserRoleOwner)

	rr := f.do(t, "GET", "/restaurants/"+f.locked.String()+"/orders/", owner, "")
	if rr.Code != http.StatusOK {
		t.Errorf("read on locked restaurant: got %d, want 200", rr.Code)
	}

	body := `{"order_type":"TAKEAWAY","plate_number":"A1","items":[{"menu_item_id":"` + uuid.New().String() + `","quantity":1}]}`
	rr = f.do(t, "POST", "/restaurants/"+f.locked.String()+"/orders/", owner, body)
	if rr.Code != http.StatusLocked {
		t.Errorf("write on locked restaurant: got %d, want 423", rr.Code)
	}

	rr = f.do(t, "POST", "/public/restaurants/"+f.locked.String()+"/orders", "", body)
	if rr.Code != http.StatusLocked {
		t.Errorf("public write on locked restaurant: got %d, want 423", rr.Code)
	}
}

func TestOpenRestaurant_OrderRoundTrip(t *testing.T) {
	f := newFixture(t)
	foh := token(t, f.open, enum.UserRoleFOH)

	body := `{"order_type":"TAKEAWAY","plate_number":"A1","items":[{"menu_item_id":"` + f.item.String() + `","quantity":2}]}`
	rr := f.do(t, "POST", "/restaurants/"+f.open.String()+"/orders/", foh, body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: got %d (%s)", rr.Code, rr.Body.String())
	}

	rr = f.do(t, "GET", "/restaurants/"+f.open.String()+"/menu/", foh, "")
	if rr.Code != http.StatusOK {
		t.Errorf("menu: got %d, want 200", rr.Code)
	}

	rr = f.do(t, "GET", "/restaurants/"+f.open.String()+"/reports/inventory", foh, "")
	if rr.Code != http.StatusForbidden {
		t.Errorf("reports as FOH: got %d, want 403", rr.Code)
	}
}

func TestCrossRestaurantAccess(t *testing.T) {
	f := newFixture(t)
	foreign := token(t, f.locked, enum.UserRoleOwner)

	rr := f.do(t, "GET", "/restaurants/"+f.open.String()+"/orders/", foreign, "")
	if rr.Code != http.StatusForbidden {
		t.Errorf("foreign owner: got %d, want 403", rr.Code)
	}

	admin := token(t, uuid.Nil, enum.UserRoleSuperAdmin)
	rr = f.do(t, "GET", "/restaurants/"+f.open.String()+"/orders/", admin, "")
	if rr.Code != http.StatusOK {
		t.Errorf("super admin: got %d, want 200", rr.Code)
	}
}

func TestUnknownRestaurantWrite(t *testing.T) {
	f := newFixture(t)
	ghost := uuid.New()
	rr := f.do(t, "POST", "/public/restaurants/"+ghost.String()+"/orders", "", `{}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown restaurant: got %d, want 404", rr.Code)
	}
}
