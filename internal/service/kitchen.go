package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/kitchen"
	"github.com/nasser0p/digi-ai/internal/store"
)

var (
	ErrLineNotFound   = fmt.Errorf("%w: %w", store.ErrValidation, kitchen.ErrLineNotFound)
	ErrGroupNotFound  = fmt.Errorf("%w: no outstanding items in group", store.ErrNotFound)
	ErrUnknownStation = fmt.Errorf("%w: unknown kitchen station", store.ErrValidation)
)

// KitchenService builds the kitchen display and applies completions.
type KitchenService struct {
	store   *store.OrderStore
	catalog *Catalog
	log     *slog.Logger
	now     func() time.Time
}

func NewKitchenService(s *store.OrderStore, catalog *Catalog, log *slog.Logger) *KitchenService {
	return &KitchenService{store: s, catalog: catalog, log: log, now: time.Now}
}

// Options returns view options resolving stations against the live menu.
func (s *KitchenService) Options(ctx context.Context, restaurantID uuid.UUID, station string) (kitchen.Options, error) {
	opts := kitchen.Options{Station: station, Now: s.now()}
	if station != "" {
		profile, err := s.catalog.Profile(ctx, restaurantID)
		if err != nil {
			return kitchen.Options{}, err
		}
		if !profile.HasStation(station) {
			return kitchen.Options{}, fmt.Errorf("%w: %q", ErrUnknownStation, station)
		}
	}
	menu, err := s.catalog.Menu(ctx, restaurantID)
	if err != nil {
		return kitchen.Options{}, err
	}
	opts.StationOf = menu.StationOf
	return opts, nil
}

func (s *KitchenService) Groups(ctx context.Context, restaurantID uuid.UUID, station string) ([]kitchen.Group, error) {
	opts, err := s.Options(ctx, restaurantID, station)
	if err != nil {
		return nil, err
	}
	orders, err := s.store.ListOpen(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	return kitchen.Aggregate(orders, opts), nil
}

func (s *KitchenService) Tickets(ctx context.Context, restaurantID uuid.UUID, station string) ([]kitchen.Ticket, error) {
	opts, err := s.Options(ctx, restaurantID, station)
	if err != nil {
		return nil, err
	}
	orders, err := s.store.ListOpen(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	return kitchen.Tickets(orders, opts), nil
}

// CompleteItem marks one line done. Completing an already completed line
// succeeds without a write.
func (s *KitchenService) CompleteItem(ctx context.Context, restaurantID, orderID uuid.UUID, lineIndex int) (database.Order, error) {
	return s.store.Update(ctx, restaurantID, orderID, func(o *database.Order) error {
		changed, err := kitchen.CompleteItem(o, lineIndex)
		switch {
		case errors.Is(err, kitchen.ErrOrderClosed):
			return store.ErrOrderCompleted
		case errors.Is(err, kitchen.ErrLineNotFound):
			return fmt.Errorf("line %d: %w", lineIndex, ErrLineNotFound)
		case err != nil:
			return err
		case !changed:
			return store.ErrUnchanged
		}
		return nil
	})
}

// BumpGroup completes every outstanding occurrence of a dish group across
// orders in one transaction. The occurrences are re-evaluated on the locked
// rows, so lines completed concurrently are not counted twice.
func (s *KitchenService) BumpGroup(ctx context.Context, restaurantID uuid.UUID, key, station string) ([]database.Order, error) {
	opts, err := s.Options(ctx, restaurantID, station)
	if err != nil {
		return nil, err
	}
	orders, err := s.store.ListOpen(ctx, restaurantID)
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	for _, g := range kitchen.Aggregate(orders, opts) {
		if g.Key != key {
			continue
		}
		seen := make(map[uuid.UUID]bool, len(g.Occurrences))
		for _, occ := range g.Occurrences {
			if !seen[occ.OrderID] {
				seen[occ.OrderID] = true
				ids = append(ids, occ.OrderID)
			}
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("group %q: %w", key, ErrGroupNotFound)
	}

	updated, err := s.store.UpdateMany(ctx, restaurantID, ids, func(o *database.Order) error {
		if !kitchen.Visible(*o) {
			return store.ErrUnchanged
		}
		n, err := kitchen.CompleteGroup(o, key, opts)
		if err != nil {
			return err
		}
		if n == 0 {
			return store.ErrUnchanged
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("kitchen group bumped", "restaurant_id", restaurantID, "key", key, "orders", len(updated))
	return updated, nil
}
