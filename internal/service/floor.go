package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/cart"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/enum"
	"github.com/nasser0p/digi-ai/internal/floor"
	"github.com/nasser0p/digi-ai/internal/store"
)

var (
	ErrTableNotFound     = fmt.Errorf("%w: table not found", store.ErrNotFound)
	ErrTableNotCleanable = fmt.Errorf("%w: table does not need cleaning", store.ErrValidation)
	ErrTableNotAvailable = fmt.Errorf("%w: table is not available", store.ErrValidation)
)

// TableView is a table's status with its open orders merged into one
// ticket for continued editing.
type TableView struct {
	floor.Status
	Ticket cart.Cart `json:"ticket"`
}

// FloorService derives table status and applies table actions.
type FloorService struct {
	store *store.OrderStore
	log   *slog.Logger
}

func NewFloorService(s *store.OrderStore, log *slog.Logger) *FloorService {
	return &FloorService{store: s, log: log}
}

func (s *FloorService) Statuses(ctx context.Context, restaurantID uuid.UUID) ([]floor.Status, error) {
	tables, err := s.store.Queries().ListFloorTables(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", store.Classify(err))
	}
	orders, err := s.store.ListOpen(ctx, restaurantID)
	if err != nil {
		return nil, err
	}
	return floor.DeriveAll(tables, orders), nil
}

// Table returns one table's status and consolidated ticket.
func (s *FloorService) Table(ctx context.Context, restaurantID uuid.UUID, label string) (TableView, error) {
	tables, err := s.store.Queries().ListFloorTables(ctx, restaurantID)
	if err != nil {
		return TableView{}, fmt.Errorf("list tables: %w", store.Classify(err))
	}
	for _, t := range tables {
		if !floor.Matches(t.Label, label) {
			continue
		}
		orders, err := s.store.ListOpen(ctx, restaurantID)
		if err != nil {
			return TableView{}, err
		}
		return TableView{
			Status: floor.StatusOf(t, orders),
			Ticket: cart.Consolidate(floor.OpenOrdersFor(t.Label, orders)),
		}, nil
	}
	return TableView{}, fmt.Errorf("%q: %w", label, ErrTableNotFound)
}

// transition sets a table's manual status under the row lock once allowed
// accepts the status derived from the locked open orders.
func (s *FloorService) transition(ctx context.Context, restaurantID uuid.UUID, label string, allowed func(derived string) error, to string) (floor.Status, error) {
	label = strings.TrimSpace(label)
	var out floor.Status
	err := s.store.InTx(ctx, func(tx *store.Tx) error {
		table, err := tx.Queries().GetFloorTableByLabelForUpdate(ctx, database.GetFloorTableByLabelParams{
			RestaurantID: restaurantID,
			Label:        label,
		})
		if err != nil {
			if errors.Is(store.Classify(err), store.ErrNotFound) {
				return fmt.Errorf("%q: %w", label, ErrTableNotFound)
			}
			return fmt.Errorf("lock table %q: %w", label, store.Classify(err))
		}
		open, err := tx.OpenOrdersForTable(ctx, restaurantID, table.Label)
		if err != nil {
			return err
		}
		if err := allowed(floor.StatusOf(table, open).Status); err != nil {
			return err
		}
		updated, err := tx.SetTableStatus(ctx, restaurantID, table.Label, to)
		if err != nil {
			return err
		}
		out = floor.StatusOf(updated, open)
		return nil
	})
	return out, err
}

// ClearTable confirms a NEEDS_CLEANING table as AVAILABLE again.
func (s *FloorService) ClearTable(ctx context.Context, restaurantID uuid.UUID, label string) (floor.Status, error) {
	st, err := s.transition(ctx, restaurantID, label, func(derived string) error {
		if derived != enum.TableStatusNeedsCleaning {
			return fmt.Errorf("%w: %s", ErrTableNotCleanable, derived)
		}
		return nil
	}, enum.TableManualAvailable)
	if err == nil {
		s.log.Info("table cleared", "restaurant_id", restaurantID, "table", st.Label)
	}
	return st, err
}

// SeatTable marks an empty table as seated.
func (s *FloorService) SeatTable(ctx context.Context, restaurantID uuid.UUID, label string) (floor.Status, error) {
	return s.transition(ctx, restaurantID, label, func(derived string) error {
		if derived != enum.TableStatusAvailable {
			return fmt.Errorf("%w: %s", ErrTableNotAvailable, derived)
		}
		return nil
	}, enum.TableManualSeated)
}
