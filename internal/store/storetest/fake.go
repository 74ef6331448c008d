// Package storetest provides an in-memory, transactional stand-in for the
// Postgres query layer. Writes made inside a transaction are staged on the
// transaction and applied only when it commits; a commit whose orders were
// changed by someone else since Begin fails with a serialization error,
// like a REPEATABLE READ transaction would. Table label locks block like
// Postgres advisory locks and refresh the holder's view of rows it has not
// written, the way the next statement under READ COMMITTED would see them.
package storetest

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/feed"
	"github.com/nasser0p/digi-ai/internal/store"
	"github.com/shopspring/decimal"
)

// ErrSerialization is what an injected conflict looks like to the store.
var ErrSerialization = &pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"}

type state struct {
	restaurants map[uuid.UUID]database.Restaurant
	taxes       map[uuid.UUID]database.Tax
	menu        map[uuid.UUID]database.MenuItem
	ingredients map[uuid.UUID]database.Ingredient
	tables      map[uuid.UUID]database.FloorTable
	orders      map[uuid.UUID]database.Order
}

func newState() state {
	return state{
		restaurants: make(map[uuid.UUID]database.Restaurant),
		taxes:       make(map[uuid.UUID]database.Tax),
		menu:        make(map[uuid.UUID]database.MenuItem),
		ingredients: make(map[uuid.UUID]database.Ingredient),
		tables:      make(map[uuid.UUID]database.FloorTable),
		orders:      make(map[uuid.UUID]database.Order),
	}
}

func (s state) clone() state {
	c := newState()
	for k, v := range s.restaurants {
		c.restaurants[k] = v
	}
	for k, v := range s.taxes {
		c.taxes[k] = v
	}
	for k, v := range s.menu {
		c.menu[k] = v
	}
	for k, v := range s.ingredients {
		c.ingredients[k] = v
	}
	for k, v := range s.tables {
		c.tables[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = CloneOrder(v)
	}
	return c
}

// CloneOrder deep-copies the slices of an order.
func CloneOrder(o database.Order) database.Order {
	if o.Items != nil {
		items := make([]database.OrderItem, len(o.Items))
		for i, it := range o.Items {
			if it.SelectedModifiers != nil {
				it.SelectedModifiers = append([]database.SelectedModifier(nil), it.SelectedModifiers...)
			}
			items[i] = it
		}
		o.Items = items
	}
	if o.Taxes != nil {
		o.Taxes = append([]database.OrderTax(nil), o.Taxes...)
	}
	if o.AppliedDiscounts != nil {
		o.AppliedDiscounts = append([]database.AppliedDiscount(nil), o.AppliedDiscounts...)
	}
	return o
}

// Fake is the committed state plus failure injection.
type Fake struct {
	mu sync.Mutex
	st state

	locks         map[string]*labelLock
	notifications []string
	commitErrs    []error
	beginErr      error
	commits       int
	rollbacks     int

	// Now stamps created_at/updated_at.
	Now func() time.Time
}

func New() *Fake {
	return &Fake{st: newState(), locks: make(map[string]*labelLock), Now: time.Now}
}

// NewStore wires an OrderStore to a fresh Fake.
func NewStore(maxRetries int) (*store.OrderStore, *Fake, *feed.Broker) {
	f := New()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	broker := feed.NewBroker(log)
	s := store.New(f, f.NewQueries, broker, log, store.Config{MaxRetries: maxRetries, InstanceID: "test"})
	return s, f, broker
}

// NewQueries binds queries to the committed state (db is the Fake) or to a
// transaction started by Begin.
func (f *Fake) NewQueries(db database.DBTX) store.Queries {
	switch v := db.(type) {
	case *Tx:
		return &queries{f: f, tx: v}
	case *Fake:
		return &queries{f: f}
	}
	panic("storetest: NewQueries called with foreign DBTX")
}

// FailCommits makes the next len(errs) commits fail with the given errors
// without applying anything.
func (f *Fake) FailCommits(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitErrs = append(f.commitErrs, errs...)
}

// FailBegin makes every Begin fail with err until cleared with nil.
func (f *Fake) FailBegin(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.beginErr = err
}

func (f *Fake) Commits() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commits
}

func (f *Fake) Rollbacks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rollbacks
}

// Notifications returns the NOTIFY payloads of committed transactions.
func (f *Fake) Notifications() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.notifications...)
}

// --- DBTX (autocommit access goes through NewQueries) ---

func (f *Fake) Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error) {
	panic("storetest: use NewQueries")
}

func (f *Fake) Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	panic("storetest: use NewQueries")
}

func (f *Fake) QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row {
	panic("storetest: use NewQueries")
}

// Begin snapshots the committed state into a new transaction.
func (f *Fake) Begin(ctx context.Context) (pgx.Tx, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return &Tx{
		f:           f,
		st:          f.st.clone(),
		orderBase:   make(map[uuid.UUID]int32),
		ingredients: make(map[uuid.UUID]decimal.Decimal),
		tables:      make(map[uuid.UUID]struct{}),
	}, nil
}

// --- Seeding and inspection ---

func (f *Fake) AddRestaurant(r database.Restaurant) database.Restaurant {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	// Mirrors the column default.
	if r.CurrencyDecimals == 0 {
		r.CurrencyDecimals = 3
	}
	f.st.restaurants[r.ID] = r
	return r
}

func (f *Fake) AddTax(t database.Tax) database.Tax {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	f.st.taxes[t.ID] = t
	return t
}

func (f *Fake) AddMenuItem(m database.MenuItem) database.MenuItem {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	f.st.menu[m.ID] = m
	return m
}

func (f *Fake) DeleteMenuItem(id uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.st.menu, id)
}

func (f *Fake) AddIngredient(i database.Ingredient) database.Ingredient {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	f.st.ingredients[i.ID] = i
	return i
}

func (f *Fake) AddTable(t database.FloorTable) database.FloorTable {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	f.st.tables[t.ID] = t
	return t
}

// AddOrder stores o as committed, without validation.
func (f *Fake) AddOrder(o database.Order) database.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Version == 0 {
		o.Version = 1
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = f.Now()
	}
	f.st.orders[o.ID] = CloneOrder(o)
	return o
}

func (f *Fake) Order(id uuid.UUID) (database.Order, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.st.orders[id]
	return CloneOrder(o), ok
}

func (f *Fake) Ingredient(id uuid.UUID) database.Ingredient {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st.ingredients[id]
}

func (f *Fake) Table(id uuid.UUID) database.FloorTable {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.st.tables[id]
}

type labelLock struct {
	owner    *Tx
	released chan struct{}
}

// Tx is a staged transaction over a snapshot of the committed state.
type Tx struct {
	f    *Fake
	st   state
	held []string

	orderBase     map[uuid.UUID]int32
	ingredients   map[uuid.UUID]decimal.Decimal
	tables        map[uuid.UUID]struct{}
	notifications []string
	done          bool
}

func (t *Tx) Commit(ctx context.Context) error {
	f := t.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	defer t.release()

	if len(f.commitErrs) > 0 {
		err := f.commitErrs[0]
		f.commitErrs = f.commitErrs[1:]
		f.rollbacks++
		return err
	}
	for id, base := range t.orderBase {
		if f.st.orders[id].Version != base {
			f.rollbacks++
			return ErrSerialization
		}
	}

	for id := range t.orderBase {
		f.st.orders[id] = CloneOrder(t.st.orders[id])
	}
	for id, delta := range t.ingredients {
		ing := f.st.ingredients[id]
		ing.Stock = ing.Stock.Sub(delta)
		f.st.ingredients[id] = ing
	}
	for id := range t.tables {
		f.st.tables[id] = t.st.tables[id]
	}
	f.notifications = append(f.notifications, t.notifications...)
	f.commits++
	return nil
}

func (t *Tx) Rollback(ctx context.Context) error {
	f := t.f
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.release()
	f.rollbacks++
	return nil
}

// acquire blocks until t holds the lock on key.
func (t *Tx) acquire(ctx context.Context, key string) error {
	f := t.f
	for {
		f.mu.Lock()
		l, taken := f.locks[key]
		if !taken || l.owner == t {
			if !taken {
				f.locks[key] = &labelLock{owner: t, released: make(chan struct{})}
				t.held = append(t.held, key)
			}
			t.refresh()
			f.mu.Unlock()
			return nil
		}
		wait := l.released
		f.mu.Unlock()
		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// refresh copies committed rows this transaction has not written into its
// snapshot. f.mu must be held.
func (t *Tx) refresh() {
	for id, o := range t.f.st.orders {
		if _, mine := t.orderBase[id]; !mine {
			t.st.orders[id] = CloneOrder(o)
		}
	}
	for id, tbl := range t.f.st.tables {
		if _, mine := t.tables[id]; !mine {
			t.st.tables[id] = tbl
		}
	}
}

// release drops every lock t holds. f.mu must be held.
func (t *Tx) release() {
	for _, key := range t.held {
		if l, ok := t.f.locks[key]; ok && l.owner == t {
			close(l.released)
			delete(t.f.locks, key)
		}
	}
	t.held = nil
}

func (t *Tx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }
func (t *Tx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}
func (t *Tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}
func (t *Tx) LargeObjects() pgx.LargeObjects { panic("not implemented") }
func (t *Tx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}
func (t *Tx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	panic("storetest: use NewQueries")
}
func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("storetest: use NewQueries")
}
func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("storetest: use NewQueries")
}
func (t *Tx) Conn() *pgx.Conn { panic("not implemented") }

// queries implements store.Queries against either a Tx or, when tx is
// nil, the committed state directly (autocommit).
type queries struct {
	f  *Fake
	tx *Tx
}

// view runs fn against the state this query handle sees.
func (q *queries) view(fn func(st *state)) {
	if q.tx != nil {
		fn(&q.tx.st)
		return
	}
	q.f.mu.Lock()
	defer q.f.mu.Unlock()
	fn(&q.f.st)
}

func (q *queries) checkOpen() error {
	if q.tx != nil && q.tx.done {
		return pgx.ErrTxClosed
	}
	return nil
}

func (q *queries) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	if err := q.checkOpen(); err != nil {
		return database.Order{}, err
	}
	var out database.Order
	var err error
	q.view(func(st *state) {
		if _, exists := st.orders[arg.ID]; exists {
			err = &pgconn.PgError{Code: "23505", ConstraintName: "orders_pkey"}
			return
		}
		now := q.f.Now()
		out = database.Order{
			ID:               arg.ID,
			RestaurantID:     arg.RestaurantID,
			OrderType:        arg.OrderType,
			PlateNumber:      arg.PlateNumber,
			Items:            arg.Items,
			Subtotal:         arg.Subtotal,
			Taxes:            arg.Taxes,
			TaxAmount:        arg.TaxAmount,
			AppliedDiscounts: arg.AppliedDiscounts,
			DiscountAmount:   arg.DiscountAmount,
			Tip:              arg.Tip,
			PlatformFee:      arg.PlatformFee,
			Total:            arg.Total,
			Status:           arg.Status,
			Notes:            arg.Notes,
			CreatedBy:        arg.CreatedBy,
			Version:          1,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if !out.Total.Equal(out.ExpectedTotal()) {
			err = &pgconn.PgError{Code: "23514", ConstraintName: "orders_total_consistent"}
			return
		}
		st.orders[out.ID] = CloneOrder(out)
		if q.tx != nil {
			if _, tracked := q.tx.orderBase[out.ID]; !tracked {
				q.tx.orderBase[out.ID] = 0
			}
		}
	})
	return CloneOrder(out), err
}

func (q *queries) GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
	if err := q.checkOpen(); err != nil {
		return database.Order{}, err
	}
	var out database.Order
	found := false
	q.view(func(st *state) {
		o, ok := st.orders[arg.ID]
		if ok && o.RestaurantID == arg.RestaurantID {
			out, found = CloneOrder(o), true
		}
	})
	if !found {
		return database.Order{}, pgx.ErrNoRows
	}
	return out, nil
}

func (q *queries) GetOrderForUpdate(ctx context.Context, arg database.GetOrderParams) (database.Order, error) {
	return q.GetOrder(ctx, arg)
}

func sortByCreated(orders []database.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID.String() < orders[j].ID.String()
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}

func sortByID(orders []database.Order) {
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID.String() < orders[j].ID.String() })
}

func (q *queries) ListOpenOrders(ctx context.Context, restaurantID uuid.UUID) ([]database.Order, error) {
	if err := q.checkOpen(); err != nil {
		return nil, err
	}
	out := []database.Order{}
	q.view(func(st *state) {
		for _, o := range st.orders {
			if o.RestaurantID == restaurantID && o.Status != "COMPLETED" {
				out = append(out, CloneOrder(o))
			}
		}
	})
	sortByCreated(out)
	return out, nil
}

func (q *queries) ListOrdersForUpdate(ctx context.Context, arg database.ListOrdersForUpdateParams) ([]database.Order, error) {
	if err := q.checkOpen(); err != nil {
		return nil, err
	}
	want := make(map[uuid.UUID]bool, len(arg.IDs))
	for _, id := range arg.IDs {
		want[id] = true
	}
	out := []database.Order{}
	q.view(func(st *state) {
		for id, o := range st.orders {
			if want[id] && o.RestaurantID == arg.RestaurantID {
				out = append(out, CloneOrder(o))
			}
		}
	})
	sortByID(out)
	return out, nil
}

func (q *queries) ListOpenOrdersByPlateForUpdate(ctx context.Context, arg database.ListOpenOrdersByPlateParams) ([]database.Order, error) {
	if err := q.checkOpen(); err != nil {
		return nil, err
	}
	label := strings.TrimSpace(arg.PlateNumber)
	out := []database.Order{}
	q.view(func(st *state) {
		for _, o := range st.orders {
			if o.RestaurantID != arg.RestaurantID || o.Status == "COMPLETED" || o.OrderType != "DINE_IN" {
				continue
			}
			if strings.EqualFold(strings.TrimSpace(o.PlateNumber), label) {
				out = append(out, CloneOrder(o))
			}
		}
	})
	sortByID(out)
	return out, nil
}

func (q *queries) LockTableLabel(ctx context.Context, arg database.LockTableLabelParams) error {
	if err := q.checkOpen(); err != nil {
		return err
	}
	if q.tx == nil {
		// Autocommit: the lock would be released at statement end.
		return nil
	}
	key := arg.RestaurantID.String() + ":" + strings.ToLower(strings.TrimSpace(arg.Label))
	return q.tx.acquire(ctx, key)
}

func (q *queries) UpdateOrder(ctx context.Context, arg database.UpdateOrderParams) (database.Order, error) {
	if err := q.checkOpen(); err != nil {
		return database.Order{}, err
	}
	var out database.Order
	var err error
	q.view(func(st *state) {
		o, ok := st.orders[arg.ID]
		if !ok || o.RestaurantID != arg.RestaurantID || o.Version != arg.Version {
			err = pgx.ErrNoRows
			return
		}
		if q.tx != nil {
			if _, tracked := q.tx.orderBase[o.ID]; !tracked {
				q.tx.orderBase[o.ID] = o.Version
			}
		}
		o.Items = arg.Items
		o.Subtotal = arg.Subtotal
		o.Taxes = arg.Taxes
		o.TaxAmount = arg.TaxAmount
		o.AppliedDiscounts = arg.AppliedDiscounts
		o.DiscountAmount = arg.DiscountAmount
		o.Tip = arg.Tip
		o.PlatformFee = arg.PlatformFee
		o.Total = arg.Total
		o.Status = arg.Status
		o.PaymentMethod = arg.PaymentMethod
		o.Tendered = arg.Tendered
		o.ChangeDue = arg.ChangeDue
		o.Notes = arg.Notes
		o.CompletedAt = arg.CompletedAt
		o.Version++
		o.UpdatedAt = q.f.Now()
		if !o.Total.Equal(o.ExpectedTotal()) {
			err = &pgconn.PgError{Code: "23514", ConstraintName: "orders_total_consistent"}
			return
		}
		out = CloneOrder(o)
		st.orders[o.ID] = CloneOrder(o)
	})
	return out, err
}

func (q *queries) NotifyOrderChanged(ctx context.Context, channel, payload string) error {
	if err := q.checkOpen(); err != nil {
		return err
	}
	if q.tx != nil {
		q.tx.notifications = append(q.tx.notifications, payload)
		return nil
	}
	q.f.mu.Lock()
	defer q.f.mu.Unlock()
	q.f.notifications = append(q.f.notifications, payload)
	return nil
}

func (q *queries) GetRestaurant(ctx context.Context, id uuid.UUID) (database.Restaurant, error) {
	var out database.Restaurant
	found := false
	q.view(func(st *state) {
		out, found = st.restaurants[id]
	})
	if !found {
		return database.Restaurant{}, pgx.ErrNoRows
	}
	return out, nil
}

func (q *queries) ListTaxes(ctx context.Context, restaurantID uuid.UUID) ([]database.Tax, error) {
	out := []database.Tax{}
	q.view(func(st *state) {
		for _, t := range st.taxes {
			if t.RestaurantID == restaurantID {
				out = append(out, t)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (q *queries) ListMenuItems(ctx context.Context, restaurantID uuid.UUID) ([]database.MenuItem, error) {
	out := []database.MenuItem{}
	q.view(func(st *state) {
		for _, m := range st.menu {
			if m.RestaurantID == restaurantID {
				out = append(out, m)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (q *queries) DecrementIngredientStock(ctx context.Context, arg database.DecrementIngredientStockParams) (database.Ingredient, error) {
	if err := q.checkOpen(); err != nil {
		return database.Ingredient{}, err
	}
	var out database.Ingredient
	found := false
	q.view(func(st *state) {
		ing, ok := st.ingredients[arg.ID]
		if !ok || ing.RestaurantID != arg.RestaurantID {
			return
		}
		ing.Stock = ing.Stock.Sub(arg.Amount)
		ing.UpdatedAt = q.f.Now()
		st.ingredients[arg.ID] = ing
		out, found = ing, true
		if q.tx != nil {
			q.tx.ingredients[arg.ID] = q.tx.ingredients[arg.ID].Add(arg.Amount)
		}
	})
	if !found {
		return database.Ingredient{}, pgx.ErrNoRows
	}
	return out, nil
}

func (q *queries) ListFloorTables(ctx context.Context, restaurantID uuid.UUID) ([]database.FloorTable, error) {
	out := []database.FloorTable{}
	q.view(func(st *state) {
		for _, t := range st.tables {
			if t.RestaurantID == restaurantID {
				out = append(out, t)
			}
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

func (q *queries) GetFloorTableByLabelForUpdate(ctx context.Context, arg database.GetFloorTableByLabelParams) (database.FloorTable, error) {
	if err := q.checkOpen(); err != nil {
		return database.FloorTable{}, err
	}
	var out database.FloorTable
	found := false
	label := strings.TrimSpace(arg.Label)
	q.view(func(st *state) {
		for _, t := range st.tables {
			if t.RestaurantID == arg.RestaurantID && strings.EqualFold(strings.TrimSpace(t.Label), label) {
				out, found = t, true
				return
			}
		}
	})
	if !found {
		return database.FloorTable{}, pgx.ErrNoRows
	}
	return out, nil
}

func (q *queries) SetFloorTableManualStatus(ctx context.Context, arg database.SetFloorTableManualStatusParams) (database.FloorTable, error) {
	if err := q.checkOpen(); err != nil {
		return database.FloorTable{}, err
	}
	var out database.FloorTable
	found := false
	q.view(func(st *state) {
		t, ok := st.tables[arg.ID]
		if !ok {
			return
		}
		t.ManualStatus = arg.ManualStatus
		t.UpdatedAt = q.f.Now()
		st.tables[arg.ID] = t
		out, found = t, true
		if q.tx != nil {
			q.tx.tables[arg.ID] = struct{}{}
		}
	})
	if !found {
		return database.FloorTable{}, pgx.ErrNoRows
	}
	return out, nil
}

var _ store.Queries = (*queries)(nil)
var _ store.Pool = (*Fake)(nil)
