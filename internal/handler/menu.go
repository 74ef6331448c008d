package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/middleware"
	"github.com/nasser0p/digi-ai/internal/store"
	"github.com/shopspring/decimal"
)

// MenuStore defines the database methods needed by menu handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type MenuStore interface {
	ListMenuItems(ctx context.Context, restaurantID uuid.UUID) ([]database.MenuItem, error)
	GetMenuItem(ctx context.Context, arg database.GetMenuItemParams) (database.MenuItem, error)
	CreateMenuItem(ctx context.Context, arg database.CreateMenuItemParams) (database.MenuItem, error)
	UpdateMenuItem(ctx context.Context, arg database.UpdateMenuItemParams) (database.MenuItem, error)
	DeleteMenuItem(ctx context.Context, arg database.GetMenuItemParams) (int64, error)
}

// MenuHandler handles menu item CRUD. Every write invalidates the cached
// menu of the restaurant.
type MenuHandler struct {
	store      MenuStore
	invalidate func(restaurantID uuid.UUID)
	log        *slog.Logger
}

func NewMenuHandler(store MenuStore, invalidate func(uuid.UUID), log *slog.Logger) *MenuHandler {
	if invalidate == nil {
		invalidate = func(uuid.UUID) {}
	}
	return &MenuHandler{store: store, invalidate: invalidate, log: log}
}

// RegisterRoutes expects to be mounted at /restaurants/{rid}/menu.
func (h *MenuHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireRole(managerRoles...))
		r.Post("/", h.Create)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

// --- Request types ---

type menuItemRequest struct {
	Name              string                   `json:"name"`
	Category          string                   `json:"category"`
	Price             decimal.Decimal          `json:"price"`
	IsAvailable       *bool                    `json:"is_available"`
	Recipe            []database.RecipeLine    `json:"recipe"`
	ModifierGroups    []database.ModifierGroup `json:"modifier_groups"`
	Station           string                   `json:"station"`
	TargetPrepMinutes *int32                   `json:"target_prep_minutes"`
}

var errMenuItemNotFound = errors.New("menu item not found")

func (req *menuItemRequest) validate() error {
	req.Name = strings.TrimSpace(req.Name)
	req.Station = strings.TrimSpace(req.Station)
	switch {
	case req.Name == "":
		return errors.New("name is required")
	case req.Price.IsNegative():
		return errors.New("price must not be negative")
	case req.TargetPrepMinutes != nil && *req.TargetPrepMinutes < 0:
		return errors.New("target_prep_minutes must not be negative")
	}
	for _, line := range req.Recipe {
		if line.IngredientID == uuid.Nil || !line.Quantity.IsPositive() {
			return errors.New("recipe lines need an ingredient_id and a positive quantity")
		}
	}
	for _, g := range req.ModifierGroups {
		if strings.TrimSpace(g.Name) == "" || len(g.Options) == 0 {
			return errors.New("modifier groups need a name and at least one option")
		}
		if g.MaxSelect < 0 {
			return errors.New("max_select must not be negative")
		}
		for _, o := range g.Options {
			if o.Price.IsNegative() {
				return errors.New("modifier prices must not be negative")
			}
		}
	}
	return nil
}

func (req menuItemRequest) available() bool {
	return req.IsAvailable == nil || *req.IsAvailable
}

func (req menuItemRequest) station() pgtype.Text {
	return pgtype.Text{String: req.Station, Valid: req.Station != ""}
}

func (req menuItemRequest) prep() pgtype.Int4 {
	if req.TargetPrepMinutes == nil {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: *req.TargetPrepMinutes, Valid: true}
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// --- Handlers ---

func (h *MenuHandler) List(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	items, err := h.store.ListMenuItems(r.Context(), rid)
	if err != nil {
		writeError(w, h.log, "list menu", store.Classify(err))
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *MenuHandler) Get(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id", "menu item ID")
	if !ok {
		return
	}
	item, err := h.store.GetMenuItem(r.Context(), database.GetMenuItemParams{ID: id, RestaurantID: rid})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": errMenuItemNotFound.Error()})
			return
		}
		writeError(w, h.log, "get menu item", store.Classify(err))
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *MenuHandler) Create(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	var req menuItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	item, err := h.store.CreateMenuItem(r.Context(), database.CreateMenuItemParams{
		RestaurantID:      rid,
		Name:              req.Name,
		Category:          strings.TrimSpace(req.Category),
		Price:             req.Price,
		IsAvailable:       req.available(),
		Recipe:            emptyIfNil(req.Recipe),
		ModifierGroups:    emptyIfNil(req.ModifierGroups),
		Station:           req.station(),
		TargetPrepMinutes: req.prep(),
	})
	if err != nil {
		writeError(w, h.log, "create menu item", store.Classify(err))
		return
	}
	h.invalidate(rid)
	writeJSON(w, http.StatusCreated, item)
}

func (h *MenuHandler) Update(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id", "menu item ID")
	if !ok {
		return
	}
	var req menuItemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	item, err := h.store.UpdateMenuItem(r.Context(), database.UpdateMenuItemParams{
		ID:                id,
		RestaurantID:      rid,
		Name:              req.Name,
		Category:          strings.TrimSpace(req.Category),
		Price:             req.Price,
		IsAvailable:       req.available(),
		Recipe:            emptyIfNil(req.Recipe),
		ModifierGroups:    emptyIfNil(req.ModifierGroups),
		Station:           req.station(),
		TargetPrepMinutes: req.prep(),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": errMenuItemNotFound.Error()})
			return
		}
		writeError(w, h.log, "update menu item", store.Classify(err))
		return
	}
	h.invalidate(rid)
	writeJSON(w, http.StatusOK, item)
}

// Delete removes a menu item. Open orders keep their snapshot of it; the
// lines are flagged when the order is finalized.
func (h *MenuHandler) Delete(w http.ResponseWriter, r *http.Request) {
	rid, ok := restaurantParam(w, r)
	if !ok {
		return
	}
	id, ok := uuidParam(w, r, "id", "menu item ID")
	if !ok {
		return
	}
	n, err := h.store.DeleteMenuItem(r.Context(), database.GetMenuItemParams{ID: id, RestaurantID: rid})
	if err != nil {
		writeError(w, h.log, "delete menu item", store.Classify(err))
		return
	}
	if n == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": errMenuItemNotFound.Error()})
		return
	}
	h.invalidate(rid)
	w.WriteHeader(http.StatusNoContent)
}
