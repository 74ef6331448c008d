package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/enum"
	"github.com/nasser0p/digi-ai/internal/feed"
)

// ErrOrderCompleted is returned when a write targets a completed order.
var ErrOrderCompleted = fmt.Errorf("%w: order is completed", ErrValidation)

// Notification is the NOTIFY payload announcing a committed order write.
type Notification struct {
	RestaurantID uuid.UUID `json:"restaurant_id"`
	OrderID      uuid.UUID `json:"order_id"`
	Version      int32     `json:"version"`
	Kind         feed.Kind `json:"kind"`
	Origin       string    `json:"origin"`
}

// Tx is one attempt of a store transaction. Orders must be read through
// the Tx (which locks them) before they can be saved.
type Tx struct {
	s       *OrderStore
	q       Queries
	loaded  map[uuid.UUID]database.Order
	kinds   map[uuid.UUID]feed.Kind
	written []uuid.UUID
}

func newTx(s *OrderStore, q Queries) *Tx {
	return &Tx{
		s:      s,
		q:      q,
		loaded: make(map[uuid.UUID]database.Order),
		kinds:  make(map[uuid.UUID]feed.Kind),
	}
}

// Queries exposes the transaction-bound queries for the ingredient and
// table writes that commit together with order writes.
func (t *Tx) Queries() Queries {
	return t.q
}

// Create validates and inserts a new order. A missing ID is generated and
// a missing status defaults to NEW.
func (t *Tx) Create(ctx context.Context, o database.Order) (database.Order, error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = enum.OrderStatusNew
	}
	if err := o.Validate(); err != nil {
		return database.Order{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if o.Taxes == nil {
		o.Taxes = []database.OrderTax{}
	}
	if o.AppliedDiscounts == nil {
		o.AppliedDiscounts = []database.AppliedDiscount{}
	}

	created, err := t.q.CreateOrder(ctx, database.CreateOrderParams{
		ID:               o.ID,
		RestaurantID:     o.RestaurantID,
		OrderType:        o.OrderType,
		PlateNumber:      strings.TrimSpace(o.PlateNumber),
		Items:            o.Items,
		Subtotal:         o.Subtotal,
		Taxes:            o.Taxes,
		TaxAmount:        o.TaxAmount,
		AppliedDiscounts: o.AppliedDiscounts,
		DiscountAmount:   o.DiscountAmount,
		Tip:              o.Tip,
		PlatformFee:      o.PlatformFee,
		Total:            o.Total,
		Status:           o.Status,
		Notes:            o.Notes,
		CreatedBy:        o.CreatedBy,
	})
	if err != nil {
		return database.Order{}, fmt.Errorf("create order: %w", Classify(err))
	}
	if err := t.record(ctx, created, feed.KindCreated); err != nil {
		return database.Order{}, err
	}
	return created, nil
}

// Order locks and returns one order.
func (t *Tx) Order(ctx context.Context, restaurantID, id uuid.UUID) (database.Order, error) {
	o, err := t.q.GetOrderForUpdate(ctx, database.GetOrderParams{ID: id, RestaurantID: restaurantID})
	if err != nil {
		return database.Order{}, fmt.Errorf("order %s: %w", id, Classify(err))
	}
	if err := o.Validate(); err != nil {
		return database.Order{}, fmt.Errorf("order %s is malformed: %w", id, err)
	}
	t.loaded[o.ID] = o
	return o, nil
}

// Orders locks several orders in ascending id order. Every id must exist.
func (t *Tx) Orders(ctx context.Context, restaurantID uuid.UUID, ids []uuid.UUID) ([]database.Order, error) {
	unique := make(map[uuid.UUID]struct{}, len(ids))
	sorted := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := unique[id]; ok {
			continue
		}
		unique[id] = struct{}{}
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })

	orders, err := t.q.ListOrdersForUpdate(ctx, database.ListOrdersForUpdateParams{
		RestaurantID: restaurantID,
		IDs:          sorted,
	})
	if err != nil {
		return nil, fmt.Errorf("lock orders: %w", Classify(err))
	}
	for _, o := range orders {
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("order %s is malformed: %w", o.ID, err)
		}
		delete(unique, o.ID)
		t.loaded[o.ID] = o
	}
	if len(unique) > 0 {
		missing := make([]string, 0, len(unique))
		for id := range unique {
			missing = append(missing, id.String())
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("orders %s: %w", strings.Join(missing, ","), ErrNotFound)
	}
	return orders, nil
}

// LockTable serializes this transaction with every other one that locks
// the same table label, until commit or rollback.
func (t *Tx) LockTable(ctx context.Context, restaurantID uuid.UUID, label string) error {
	err := t.q.LockTableLabel(ctx, database.LockTableLabelParams{
		RestaurantID: restaurantID,
		Label:        label,
	})
	if err != nil {
		return fmt.Errorf("lock table %q: %w", label, Classify(err))
	}
	return nil
}

// OpenOrdersForTable locks the open dine-in orders whose plate number
// matches label (trimmed, case-insensitive).
func (t *Tx) OpenOrdersForTable(ctx context.Context, restaurantID uuid.UUID, label string) ([]database.Order, error) {
	orders, err := t.q.ListOpenOrdersByPlateForUpdate(ctx, database.ListOpenOrdersByPlateParams{
		RestaurantID: restaurantID,
		PlateNumber:  label,
	})
	if err != nil {
		return nil, fmt.Errorf("lock table orders: %w", Classify(err))
	}
	for _, o := range orders {
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("order %s is malformed: %w", o.ID, err)
		}
		t.loaded[o.ID] = o
	}
	return orders, nil
}

// Save writes o over the version read earlier in this transaction.
func (t *Tx) Save(ctx context.Context, o database.Order) (database.Order, error) {
	prev, ok := t.loaded[o.ID]
	if !ok {
		return database.Order{}, fmt.Errorf("save order %s: not read in this transaction", o.ID)
	}
	if prev.Status == enum.OrderStatusCompleted {
		return database.Order{}, fmt.Errorf("order %s: %w", o.ID, ErrOrderCompleted)
	}
	if err := o.Validate(); err != nil {
		return database.Order{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	if o.Taxes == nil {
		o.Taxes = []database.OrderTax{}
	}
	if o.AppliedDiscounts == nil {
		o.AppliedDiscounts = []database.AppliedDiscount{}
	}

	saved, err := t.q.UpdateOrder(ctx, database.UpdateOrderParams{
		ID:               o.ID,
		RestaurantID:     prev.RestaurantID,
		Version:          prev.Version,
		Items:            o.Items,
		Subtotal:         o.Subtotal,
		Taxes:            o.Taxes,
		TaxAmount:        o.TaxAmount,
		AppliedDiscounts: o.AppliedDiscounts,
		DiscountAmount:   o.DiscountAmount,
		Tip:              o.Tip,
		PlatformFee:      o.PlatformFee,
		Total:            o.Total,
		Status:           o.Status,
		PaymentMethod:    o.PaymentMethod,
		Tendered:         o.Tendered,
		ChangeDue:        o.ChangeDue,
		Notes:            o.Notes,
		CompletedAt:      o.CompletedAt,
	})
	if err != nil {
		if errors.Is(Classify(err), ErrNotFound) {
			return database.Order{}, fmt.Errorf("order %s version %d: %w", o.ID, prev.Version, ErrConflict)
		}
		return database.Order{}, fmt.Errorf("update order %s: %w", o.ID, Classify(err))
	}
	if err := t.record(ctx, saved, kindFor(saved)); err != nil {
		return database.Order{}, err
	}
	return saved, nil
}

// SetTableStatus sets the manual status of the table labelled label. It
// returns ErrNotFound when no such table exists.
func (t *Tx) SetTableStatus(ctx context.Context, restaurantID uuid.UUID, label, status string) (database.FloorTable, error) {
	table, err := t.q.GetFloorTableByLabelForUpdate(ctx, database.GetFloorTableByLabelParams{
		RestaurantID: restaurantID,
		Label:        label,
	})
	if err != nil {
		return database.FloorTable{}, fmt.Errorf("table %q: %w", label, Classify(err))
	}
	updated, err := t.q.SetFloorTableManualStatus(ctx, database.SetFloorTableManualStatusParams{
		ID:           table.ID,
		ManualStatus: pgtype.Text{String: status, Valid: status != ""},
	})
	if err != nil {
		return database.FloorTable{}, fmt.Errorf("set table %q status: %w", label, Classify(err))
	}
	return updated, nil
}

func (t *Tx) record(ctx context.Context, o database.Order, kind feed.Kind) error {
	if _, seen := t.kinds[o.ID]; !seen {
		t.written = append(t.written, o.ID)
	}
	if t.kinds[o.ID] != feed.KindCreated {
		t.kinds[o.ID] = kind
	}
	t.loaded[o.ID] = o

	payload, err := json.Marshal(Notification{
		RestaurantID: o.RestaurantID,
		OrderID:      o.ID,
		Version:      o.Version,
		Kind:         kind,
		Origin:       t.s.instanceID,
	})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := t.q.NotifyOrderChanged(ctx, NotifyChannel, string(payload)); err != nil {
		return fmt.Errorf("notify order %s: %w", o.ID, Classify(err))
	}
	return nil
}

func (t *Tx) events() []feed.Event {
	out := make([]feed.Event, 0, len(t.written))
	for _, id := range t.written {
		out = append(out, feed.Event{
			Kind:   t.kinds[id],
			Order:  t.loaded[id],
			Origin: t.s.instanceID,
		})
	}
	return out
}
