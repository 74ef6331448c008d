package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/enum"
	"github.com/nasser0p/digi-ai/internal/handler"
	"github.com/nasser0p/digi-ai/internal/middleware"
)

type mockMenuStore struct {
	listFn   func(ctx context.Context, restaurantID uuid.UUID) ([]database.MenuItem, error)
	getFn    func(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
	createFn func(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error)
	updateFn func(ctx context.Context, arg database.UpdateMenuItemParams) (database.MenuItem, error)
	deleteFn func(ctx context.Context, arg database.GetMenuItemParams) (int64, error)
}

func (m *mockMenuStore) ListMenuItems(ctx context.Context, restaurantID uuid.UUID) ([]database.MenuItem, error) {
	if m.listFn != nil {
		return m.listFn(ctx, restaurantID)
	}
	return []database.MenuItem{}, nil
}

func (m *mockMenuStore) GetMenuItem(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error) {
	if m.getFn != nil {
		return m.getFn(ctx, arg)
	}
	return database.MenuItem{}, pgx.ErrNoRows
}

func (m *mockMenuStore) CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error) {
	if m.createFn != nil {
		return m.createFn(ctx, arg)
	}
	return database.MenuItem{}, pgx.ErrNoRows
}

func (m *mockMenuStore) UpdateMenuItem(ctx context.Context, arg database.UpdateMenuItemParams) (database.MenuItem, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, arg)
	}
	return database.MenuItem{}, pgx.ErrNoRows
}

func (m *mockMenuStore) DeleteMenuItem(ctx context.Context, arg database.GetMenuItemParams) (int64, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, arg)
	}
	return 0, nil
}

// mountAt builds an authenticated router with register mounted under
// /restaurants/{rid}/<prefix>.
func mountAt(prefix string, register func(chi.Router)) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testSecret))
	r.Route("/restaurants/{rid}", func(r chi.Router) {
		r.Use(middleware.RequireRestaurant)
		r.Route(prefix, register)
	})
	return r
}

func menuRouter(store *mockMenuStore, invalidated *[]uuid.UUID) chi.Router {
	h := handler.NewMenuHandler(store, func(id uuid.UUID) {
		*invalidated = append(*invalidated, id)
	}, discardLogger())
	return mountAt("/menu", h.RegisterRoutes)
}

func TestMenuCreate(t *testing.T) {
	rid := uuid.New()
	var got database.CreateMenuItemParams
	store := &mockMenuStore{
		createFn: func(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error) {
			got = arg
			return database.MenuItem{ID: uuid.New(), RestaurantID: arg.RestaurantID, Name: arg.Name, Price: arg.Price}, nil
		},
	}
	var invalidated []uuid.UUID
	router := menuRouter(store, &invalidated)
	token, _ := tokenFor(rid, enum.UserRoleManager)

	rr := doJSON(t, router, "POST", "/restaurants/"+rid.String()+"/menu/", token, map[string]interface{}{
		"name":                "  Shawarma ",
		"price":               "1.250",
		"station":             "grill",
		"target_prep_minutes": 8,
	})
	expectStatus(t, rr, http.StatusCreated)

	if got.Name != "Shawarma" || got.RestaurantID != rid {
		t.Errorf("params: name %q restaurant %s", got.Name, got.RestaurantID)
	}
	if !got.IsAvailable {
		t.Error("items default to available")
	}
	if !got.Station.Valid || got.Station.String != "grill" || !got.TargetPrepMinutes.Valid || got.TargetPrepMinutes.Int32 != 8 {
		t.Errorf("station %v prep %v", got.Station, got.TargetPrepMinutes)
	}
	if got.Recipe == nil || got.ModifierGroups == nil {
		t.Error("recipe and modifier groups should be empty, not nil")
	}
	if len(invalidated) != 1 || invalidated[0] != rid {
		t.Errorf("invalidated: got %v, want [%s]", invalidated, rid)
	}
}

func TestMenuCreate_Validation(t *testing.T) {
	rid := uuid.New()
	store := &mockMenuStore{
		createFn: func(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error) {
			t.Fatal("store must not be called")
			return database.MenuItem{}, nil
		},
	}
	var invalidated []uuid.UUID
	router := menuRouter(store, &invalidated)
	token, _ := tokenFor(rid, enum.UserRoleOwner)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing name", map[string]interface{}{"price": "1"}},
		{"negative price", map[string]interface{}{"name": "X", "price": "-1"}},
		{"negative prep", map[string]interface{}{"name": "X", "price": "1", "target_prep_minutes": -2}},
		{"recipe without ingredient", map[string]interface{}{"name": "X", "price": "1",
			"recipe": []interface{}{map[string]interface{}{"quantity": "1"}}}},
		{"empty modifier group", map[string]interface{}{"name": "X", "price": "1",
			"modifier_groups": []interface{}{map[string]interface{}{"name": "Size"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, router, "POST", "/restaurants/"+rid.String()+"/menu/", token, tt.body)
			expectStatus(t, rr, http.StatusBadRequest)
		})
	}
	if len(invalidated) != 0 {
		t.Errorf("invalidated: got %d, want 0", len(invalidated))
	}
}

func TestMenuWrites_RequireManager(t *testing.T) {
	rid := uuid.New()
	var invalidated []uuid.UUID
	router := menuRouter(&mockMenuStore{}, &invalidated)
	token, _ := tokenFor(rid, enum.UserRoleFOH)

	rr := doJSON(t, router, "POST", "/restaurants/"+rid.String()+"/menu/", token, map[string]interface{}{"name": "X", "price": "1"})
	expectStatus(t, rr, http.StatusForbidden)

	rr = doJSON(t, router, "GET", "/restaurants/"+rid.String()+"/menu/", token, nil)
	expectStatus(t, rr, http.StatusOK)
}

func TestMenuUpdate_NotFound(t *testing.T) {
	rid := uuid.New()
	var invalidated []uuid.UUID
	router := menuRouter(&mockMenuStore{}, &invalidated)
	token, _ := tokenFor(rid, enum.UserRoleManager)

	rr := doJSON(t, router, "PUT", "/restaurants/"+rid.String()+"/menu/"+uuid.New().String(), token, map[string]interface{}{"name": "X", "price": "1"})
	expectStatus(t, rr, http.StatusNotFound)
	if len(invalidated) != 0 {
		t.Error("a failed update must not invalidate the menu")
	}
}

func TestMenuDelete(t *testing.T) {
	rid := uuid.New()
	existing := uuid.New()
	store := &mockMenuStore{
		deleteFn: func(ctx context.Context, arg database.GetMenuItemParams) (int64, error) {
			if arg.ID == existing && arg.RestaurantID == rid {
				return 1, nil
			}
			return 0, nil
		},
	}
	var invalidated []uuid.UUID
	router := menuRouter(store, &invalidated)
	token, _ := tokenFor(rid, enum.UserRoleManager)

	rr := doJSON(t, router, "DELETE", "/restaurants/"+rid.String()+"/menu/"+existing.String(), token, nil)
	expectStatus(t, rr, http.StatusNoContent)

	rr = doJSON(t, router, "DELETE", "/restaurants/"+rid.String()+"/menu/"+uuid.New().String(), token, nil)
	expectStatus(t, rr, http.StatusNotFound)

	if len(invalidated) != 1 {
		t.Errorf("invalidated: got %d, want 1", len(invalidated))
	}
}

func TestMenuGet(t *testing.T) {
	rid := uuid.New()
	id := uuid.New()
	store := &mockMenuStore{
		getFn: func(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error) {
			if arg.ID != id {
				return database.MenuItem{}, pgx.ErrNoRows
			}
			return database.MenuItem{ID: id, RestaurantID: rid, Name: "Tea", Price: d("0.300")}, nil
		},
	}
	var invalidated []uuid.UUID
	router := menuRouter(store, &invalidated)
	token, _ := tokenFor(rid, enum.UserRoleKitchen)

	rr := doJSON(t, router, "GET", "/restaurants/"+rid.String()+"/menu/"+id.String(), token, nil)
	expectStatus(t, rr, http.StatusOK)
	var item database.MenuItem
	decodeInto(t, rr, &item)
	if item.Name != "Tea" {
		t.Errorf("name: got %q, want Tea", item.Name)
	}

	rr = doJSON(t, router, "GET", "/restaurants/"+rid.String()+"/menu/"+uuid.New().String(), token, nil)
	expectStatus(t, rr, http.StatusNotFound)

	rr = doJSON(t, router, "GET", "/restaurants/"+rid.String()+"/menu/bad", token, nil)
	expectStatus(t, rr, http.StatusBadRequest)
}
