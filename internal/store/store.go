// Package store is the durable, versioned record of orders. Every write
// runs inside a Postgres transaction that locks the touched rows in id
// order, checks the order version, and queues a NOTIFY; committed writes are
// then published to the in-process feed.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/enum"
	"github.com/nasser0p/digi-ai/internal/feed"
)

// NotifyChannel is the Postgres channel committed order writes are
// announced on.
const NotifyChannel = "order_changes"

// DefaultMaxRetries bounds how often a transaction is re-run after losing
// a race.
const DefaultMaxRetries = 3

// ErrUnchanged may be returned by a mutator to signal that the order needs
// no write. The update then succeeds without bumping the version.
var ErrUnchanged = errors.New("order unchanged")

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Pool is satisfied by *pgxpool.Pool.
type Pool interface {
	TxBeginner
	database.DBTX
}

// Queries defines the DB methods the store and its transactions need.
// Satisfied by *database.Queries.
type Queries interface {
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOpenOrders(ctx context.Context, restaurantID uuid.UUID) ([]database.Order, error)
	ListOrdersForUpdate(ctx context.Context, arg database.ListOrdersForUpdateParams) ([]database.Order, error)
	ListOpenOrdersByPlateForUpdate(ctx context.Context, arg database.ListOpenOrdersByPlateParams) ([]database.Order, error)
	LockTableLabel(ctx context.Context, arg database.LockTableLabelParams) error
	UpdateOrder(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error)
	NotifyOrderChanged(ctx context.Context, channel, payload string) error

	GetRestaurant(ctx context.Context, id uuid.UUID) (database.Restaurant, error)
	ListTaxes(ctx context.Context, restaurantID uuid.UUID) ([]database.Tax, error)
	ListMenuItems(ctx context.Context, restaurantID uuid.UUID) ([]database.MenuItem, error)
	DecrementIngredientStock(ctx context.Context, arg database.DecrementIngredientStockParams) (database.Ingredient, error)
	ListFloorTables(ctx context.Context, restaurantID uuid.UUID) ([]database.FloorTable, error)
	GetFloorTableByLabelForUpdate(ctx context.Context, arg database.GetFloorTableByLabelParams) (database.FloorTable, error)
	SetFloorTableManualStatus(ctx context.Context, arg database.SetFloorTableManualStatusParams) (database.FloorTable, error)
}

// NewQueries creates a Queries bound to a pool or transaction.
type NewQueries func(db database.DBTX) Queries

type Config struct {
	MaxRetries int
	InstanceID string
}

// OrderStore is the single source of truth for orders.
type OrderStore struct {
	pool       Pool
	newQueries NewQueries
	broker     *feed.Broker
	log        *slog.Logger
	maxRetries int
	instanceID string
}

func New(pool Pool, newQueries NewQueries, broker *feed.Broker, log *slog.Logger, cfg Config) *OrderStore {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	return &OrderStore{
		pool:       pool,
		newQueries: newQueries,
		broker:     broker,
		log:        log,
		maxRetries: cfg.MaxRetries,
		instanceID: cfg.InstanceID,
	}
}

// InstanceID identifies this process in NOTIFY payloads.
func (s *OrderStore) InstanceID() string {
	return s.instanceID
}

// Queries returns a Queries bound to the pool, for reads outside a
// transaction.
func (s *OrderStore) Queries() Queries {
	return s.newQueries(s.pool)
}

// InTx runs fn in a transaction. A run that fails with ErrConflict is
// rolled back and re-run from scratch, at most MaxRetries more times; fn
// must therefore re-read whatever it mutates. Events for the orders fn
// wrote are published only after a successful commit.
func (s *OrderStore) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	var lastErr error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		events, err := s.runTx(ctx, fn)
		if err == nil {
			for _, e := range events {
				s.broker.Publish(e)
			}
			return nil
		}
		if !errors.Is(err, ErrConflict) {
			return err
		}
		lastErr = err
		if ctx.Err() != nil {
			return Classify(ctx.Err())
		}
		s.log.Debug("transaction conflict, retrying", "attempt", attempt+1, "error", err)
	}
	return fmt.Errorf("gave up after %d attempts: %w", s.maxRetries+1, lastErr)
}

func (s *OrderStore) runTx(ctx context.Context, fn func(tx *Tx) error) ([]feed.Event, error) {
	pgTx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", Classify(err))
	}
	defer pgTx.Rollback(ctx) //nolint:errcheck

	tx := newTx(s, s.newQueries(pgTx))
	if err := fn(tx); err != nil {
		return nil, Classify(err)
	}
	if err := pgTx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", Classify(err))
	}
	return tx.events(), nil
}

// Create persists a new order and returns it as stored.
func (s *OrderStore) Create(ctx context.Context, o database.Order) (database.Order, error) {
	var created database.Order
	err := s.InTx(ctx, func(tx *Tx) error {
		var err error
		created, err = tx.Create(ctx, o)
		return err
	})
	return created, err
}

// Get reads one order. A stored record failing validation is rejected.
func (s *OrderStore) Get(ctx context.Context, restaurantID, id uuid.UUID) (database.Order, error) {
	o, err := s.Queries().GetOrder(ctx, database.GetOrderParams{ID: id, RestaurantID: restaurantID})
	if err != nil {
		return database.Order{}, fmt.Errorf("get order %s: %w", id, Classify(err))
	}
	if err := o.Validate(); err != nil {
		s.log.Error("malformed order record", "order_id", id, "error", err)
		return database.Order{}, fmt.Errorf("order %s is malformed: %w", id, err)
	}
	return o, nil
}

// ListOpen returns every non-completed order of a restaurant. Malformed
// records are logged and left out.
func (s *OrderStore) ListOpen(ctx context.Context, restaurantID uuid.UUID) ([]database.Order, error) {
	orders, err := s.Queries().ListOpenOrders(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("list open orders: %w", Classify(err))
	}
	out := orders[:0]
	for _, o := range orders {
		if err := o.Validate(); err != nil {
			s.log.Error("malformed order record", "order_id", o.ID, "error", err)
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

// Update applies mutate to a freshly locked copy of the order and saves
// the result.
func (s *OrderStore) Update(ctx context.Context, restaurantID, id uuid.UUID, mutate func(*database.Order) error) (database.Order, error) {
	var updated database.Order
	err := s.InTx(ctx, func(tx *Tx) error {
		o, err := tx.Order(ctx, restaurantID, id)
		if err != nil {
			return err
		}
		if err := mutate(&o); err != nil {
			if errors.Is(err, ErrUnchanged) {
				updated = o
				return nil
			}
			return err
		}
		updated, err = tx.Save(ctx, o)
		return err
	})
	return updated, err
}

// UpdateMany applies mutate to each order in one transaction. Either every
// write commits or none does.
func (s *OrderStore) UpdateMany(ctx context.Context, restaurantID uuid.UUID, ids []uuid.UUID, mutate func(*database.Order) error) ([]database.Order, error) {
	var updated []database.Order
	err := s.InTx(ctx, func(tx *Tx) error {
		orders, err := tx.Orders(ctx, restaurantID, ids)
		if err != nil {
			return err
		}
		updated = make([]database.Order, 0, len(orders))
		for i := range orders {
			o := orders[i]
			if err := mutate(&o); err != nil {
				if errors.Is(err, ErrUnchanged) {
					updated = append(updated, o)
					continue
				}
				return fmt.Errorf("order %s: %w", o.ID, err)
			}
			saved, err := tx.Save(ctx, o)
			if err != nil {
				return err
			}
			updated = append(updated, saved)
		}
		return nil
	})
	return updated, err
}

// Subscribe opens a live stream for f and returns the open-order snapshot
// taken after the stream was registered. Applying the stream on top of the
// snapshot with feed.Projection yields the current open set.
func (s *OrderStore) Subscribe(ctx context.Context, f feed.Filter) ([]database.Order, *feed.Subscription, error) {
	if f.RestaurantID == uuid.Nil {
		return nil, nil, fmt.Errorf("%w: restaurant_id is required to subscribe", ErrValidation)
	}
	sub := s.broker.Subscribe(ctx, f, feed.DefaultBuffer)
	snapshot, err := s.ListOpen(ctx, f.RestaurantID)
	if err != nil {
		s.broker.Unsubscribe(sub)
		return nil, nil, err
	}
	if f.OrderType != "" {
		filtered := snapshot[:0]
		for _, o := range snapshot {
			if o.OrderType == f.OrderType {
				filtered = append(filtered, o)
			}
		}
		snapshot = filtered
	}
	return snapshot, sub, nil
}

func kindFor(o database.Order) feed.Kind {
	if o.Status == enum.OrderStatusCompleted {
		return feed.KindCompleted
	}
	return feed.KindUpdated
}
