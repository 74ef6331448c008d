package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/cache"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/pricing"
	"github.com/nasser0p/digi-ai/internal/store"
)

// Menu is a restaurant's menu keyed by item id.
type Menu struct {
	Items map[uuid.UUID]database.MenuItem
}

// Item looks up one menu item.
func (m Menu) Item(id uuid.UUID) (database.MenuItem, bool) {
	it, ok := m.Items[id]
	return it, ok
}

// StationOf resolves a line's station from the live menu, falling back to
// the station captured when the line was added.
func (m Menu) StationOf(it database.OrderItem) string {
	if mi, ok := m.Items[it.MenuItemID]; ok && mi.Station.Valid {
		return mi.Station.String
	}
	return it.Station
}

// Profile is the restaurant record plus its tax table.
type Profile struct {
	Restaurant database.Restaurant
	Taxes      []database.Tax
}

// Decimals is the restaurant's currency precision. Zero is a valid
// precision; only a profile with no restaurant loaded gets the default.
func (p Profile) Decimals() int32 {
	if p.Restaurant.ID == uuid.Nil {
		return pricing.DefaultDecimals
	}
	return pricing.Places(p.Restaurant.CurrencyDecimals)
}

func (p Profile) Pricing() pricing.Profile {
	return pricing.Profile{
		AppliedTaxIDs: p.Restaurant.AppliedTaxIDs,
		Taxes:         p.Taxes,
		Decimals:      p.Decimals(),
	}
}

// HasStation reports whether name is one of the restaurant's kitchen
// stations. A restaurant without configured stations accepts any name.
func (p Profile) HasStation(name string) bool {
	if len(p.Restaurant.KitchenStations) == 0 {
		return true
	}
	for _, s := range p.Restaurant.KitchenStations {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// Catalog serves menus and profiles through per-restaurant caches.
type Catalog struct {
	Menus    *cache.Cache[Menu]
	Profiles *cache.Cache[Profile]
}

// NewCatalog builds read-through caches over the store's queries.
func NewCatalog(q func() store.Queries, ttl time.Duration) *Catalog {
	return &Catalog{
		Menus:    cache.New(ttl, LoadMenu(q)),
		Profiles: cache.New(ttl, LoadProfile(q)),
	}
}

// LoadMenu reads the full menu of a restaurant.
func LoadMenu(q func() store.Queries) cache.LoadFunc[Menu] {
	return func(ctx context.Context, restaurantID uuid.UUID) (Menu, error) {
		items, err := q().ListMenuItems(ctx, restaurantID)
		if err != nil {
			return Menu{}, fmt.Errorf("load menu: %w", store.Classify(err))
		}
		m := Menu{Items: make(map[uuid.UUID]database.MenuItem, len(items))}
		for _, it := range items {
			m.Items[it.ID] = it
		}
		return m, nil
	}
}

// LoadProfile reads the restaurant record and its taxes.
func LoadProfile(q func() store.Queries) cache.LoadFunc[Profile] {
	return func(ctx context.Context, restaurantID uuid.UUID) (Profile, error) {
		r, err := q().GetRestaurant(ctx, restaurantID)
		if err != nil {
			return Profile{}, fmt.Errorf("load restaurant %s: %w", restaurantID, store.Classify(err))
		}
		taxes, err := q().ListTaxes(ctx, restaurantID)
		if err != nil {
			return Profile{}, fmt.Errorf("load taxes: %w", store.Classify(err))
		}
		return Profile{Restaurant: r, Taxes: taxes}, nil
	}
}

func (c *Catalog) Menu(ctx context.Context, restaurantID uuid.UUID) (Menu, error) {
	return c.Menus.Get(ctx, restaurantID)
}

func (c *Catalog) Profile(ctx context.Context, restaurantID uuid.UUID) (Profile, error) {
	return c.Profiles.Get(ctx, restaurantID)
}

// InvalidateMenu drops the cached menu after an edit.
func (c *Catalog) InvalidateMenu(restaurantID uuid.UUID) {
	c.Menus.Invalidate(restaurantID)
}

// InvalidateProfile drops the cached profile after a tax or restaurant edit.
func (c *Catalog) InvalidateProfile(restaurantID uuid.UUID) {
	c.Profiles.Invalidate(restaurantID)
}
