package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/nasser0p/digi-ai/internal/cart"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/enum"
	"github.com/nasser0p/digi-ai/internal/pricing"
	"github.com/nasser0p/digi-ai/internal/store"
	"github.com/shopspring/decimal"
)

// Errors returned by the order service. All are validation failures.
var (
	ErrEmptyItems          = fmt.Errorf("%w: items are required", store.ErrValidation)
	ErrInvalidOrderType    = fmt.Errorf("%w: invalid order_type", store.ErrValidation)
	ErrMissingPlate        = fmt.Errorf("%w: plate_number is required", store.ErrValidation)
	ErrInvalidQuantity     = fmt.Errorf("%w: quantity must be >= 1", store.ErrValidation)
	ErrMenuItemNotFound    = fmt.Errorf("%w: menu item not found", store.ErrValidation)
	ErrMenuItemUnavailable = fmt.Errorf("%w: menu item is not available", store.ErrValidation)
	ErrModifierNotFound    = fmt.Errorf("%w: modifier option not found", store.ErrValidation)
	ErrModifierSelection   = fmt.Errorf("%w: modifier selection does not satisfy its group", store.ErrValidation)
)

// LineRequest is one requested cart line. Modifiers are option names;
// their prices come from the menu at the time the line is added.
type LineRequest struct {
	MenuItemID uuid.UUID
	Quantity   int32
	Modifiers  []string
	Notes      string
}

// CreateOrderRequest is the input for submitting a cart.
type CreateOrderRequest struct {
	RestaurantID uuid.UUID
	OrderType    string
	PlateNumber  string
	Notes        string
	CreatedBy    uuid.UUID
	Items        []LineRequest
	Discounts    []pricing.Discount
	Tip          decimal.Decimal
	PlatformFee  decimal.Decimal
}

// QuoteRequest prices a cart without persisting it.
type QuoteRequest struct {
	RestaurantID uuid.UUID
	Items        []LineRequest
	Discounts    []pricing.Discount
	Tip          decimal.Decimal
	PlatformFee  decimal.Decimal
	Tendered     decimal.NullDecimal
}

// QuoteResult is a priced cart plus cash helpers.
type QuoteResult struct {
	pricing.Quote
	Items     []database.OrderItem `json:"items"`
	ChangeDue decimal.NullDecimal  `json:"change_due"`
	QuickCash []decimal.Decimal    `json:"quick_cash"`
}

// OrderService handles cart submission and order edits.
type OrderService struct {
	store   *store.OrderStore
	catalog *Catalog
	log     *slog.Logger
	now     func() time.Time
}

func NewOrderService(s *store.OrderStore, catalog *Catalog, log *slog.Logger) *OrderService {
	return &OrderService{store: s, catalog: catalog, log: log, now: time.Now}
}

func validationErr(err error) error {
	return fmt.Errorf("%w: %w", store.ErrValidation, err)
}

func validateOrderType(t string) (string, error) {
	switch strings.ToUpper(strings.TrimSpace(t)) {
	case enum.OrderTypeDineIn:
		return enum.OrderTypeDineIn, nil
	case enum.OrderTypeTakeaway:
		return enum.OrderTypeTakeaway, nil
	}
	return "", ErrInvalidOrderType
}

// resolveModifiers looks the requested option names up in the item's
// modifier groups and checks the group rules.
func resolveModifiers(mi database.MenuItem, names []string) ([]database.SelectedModifier, error) {
	selected := make([]database.SelectedModifier, 0, len(names))
	perGroup := make(map[int]int, len(mi.ModifierGroups))
	for _, name := range names {
		want := strings.TrimSpace(name)
		found := false
		for gi, g := range mi.ModifierGroups {
			for _, opt := range g.Options {
				if strings.EqualFold(strings.TrimSpace(opt.Name), want) {
					selected = append(selected, database.SelectedModifier{OptionName: opt.Name, OptionPrice: opt.Price})
					perGroup[gi]++
					found = true
					break
				}
			}
			if found {
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %q on %s", ErrModifierNotFound, name, mi.Name)
		}
	}
	for gi, g := range mi.ModifierGroups {
		n := perGroup[gi]
		if g.Required && n == 0 {
			return nil, fmt.Errorf("%w: %s requires a %s choice", ErrModifierSelection, mi.Name, g.Name)
		}
		if g.MaxSelect > 0 && n > g.MaxSelect {
			return nil, fmt.Errorf("%w: at most %d %s on %s", ErrModifierSelection, g.MaxSelect, g.Name, mi.Name)
		}
	}
	return selected, nil
}

// buildLines resolves requested lines against the menu, merges them the
// way the cart does and snapshots price, station and prep target.
func buildLines(menu Menu, reqs []LineRequest, now time.Time) ([]database.OrderItem, error) {
	if len(reqs) == 0 {
		return nil, ErrEmptyItems
	}
	var c cart.Cart
	for i, r := range reqs {
		if r.Quantity < 1 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		mi, ok := menu.Item(r.MenuItemID)
		if !ok {
			return nil, fmt.Errorf("item[%d]: %w: %s", i, ErrMenuItemNotFound, r.MenuItemID)
		}
		if !mi.IsAvailable {
			return nil, fmt.Errorf("item[%d]: %w: %s", i, ErrMenuItemUnavailable, mi.Name)
		}
		mods, err := resolveModifiers(mi, r.Modifiers)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, err)
		}
		if err := c.Add(cart.Item{
			MenuItemID:        mi.ID,
			Name:              mi.Name,
			BasePrice:         mi.Price,
			Quantity:          r.Quantity,
			SelectedModifiers: mods,
			Notes:             r.Notes,
		}); err != nil {
			return nil, validationErr(err)
		}
	}

	lines := make([]database.OrderItem, 0, len(c.Items))
	for _, it := range c.Items {
		mi, _ := menu.Item(it.MenuItemID)
		line := database.OrderItem{
			CartItemID:        it.CartItemID,
			MenuItemID:        it.MenuItemID,
			Name:              it.Name,
			BasePrice:         it.BasePrice,
			Quantity:          it.Quantity,
			SelectedModifiers: it.SelectedModifiers,
			Notes:             it.Notes,
			Price:             it.UnitPrice(),
			AddedAt:           now,
		}
		if mi.Station.Valid {
			line.Station = mi.Station.String
		}
		if mi.TargetPrepMinutes.Valid {
			line.TargetPrepMinutes = mi.TargetPrepMinutes.Int32
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// Create prices a cart and stores it as a NEW order.
func (s *OrderService) Create(ctx context.Context, req CreateOrderRequest) (database.Order, error) {
	o, err := s.newOrder(ctx, req)
	if err != nil {
		return database.Order{}, err
	}
	created, err := s.store.Create(ctx, o)
	if err != nil {
		return database.Order{}, err
	}
	s.log.Info("order created", "order_id", created.ID, "restaurant_id", created.RestaurantID,
		"plate", created.PlateNumber, "total", created.Total.String())
	return created, nil
}

func (s *OrderService) newOrder(ctx context.Context, req CreateOrderRequest) (database.Order, error) {
	orderType, err := validateOrderType(req.OrderType)
	if err != nil {
		return database.Order{}, err
	}
	plate := strings.TrimSpace(req.PlateNumber)
	if plate == "" {
		return database.Order{}, ErrMissingPlate
	}
	menu, err := s.catalog.Menu(ctx, req.RestaurantID)
	if err != nil {
		return database.Order{}, err
	}
	profile, err := s.catalog.Profile(ctx, req.RestaurantID)
	if err != nil {
		return database.Order{}, err
	}
	lines, err := buildLines(menu, req.Items, s.now())
	if err != nil {
		return database.Order{}, err
	}
	q, err := pricing.Price(lines, profile.Pricing(), req.Discounts, req.Tip, req.PlatformFee)
	if err != nil {
		return database.Order{}, validationErr(err)
	}

	o := database.Order{
		RestaurantID: req.RestaurantID,
		OrderType:    orderType,
		PlateNumber:  plate,
		Items:        lines,
		Status:       enum.OrderStatusNew,
		Notes:        strings.TrimSpace(req.Notes),
	}
	if req.CreatedBy != uuid.Nil {
		o.CreatedBy = pgtype.UUID{Bytes: req.CreatedBy, Valid: true}
	}
	pricing.Apply(&o, q)
	return o, nil
}

// appendLines adds a new batch to o. Existing lines are left as they are;
// a READY order goes back to IN_PROGRESS since it has new work.
func appendLines(o *database.Order, lines []database.OrderItem, p pricing.Profile) error {
	if o.Status == enum.OrderStatusCompleted {
		return store.ErrOrderCompleted
	}
	o.Items = append(o.Items, lines...)
	if o.Status == enum.OrderStatusReady {
		o.Status = enum.OrderStatusInProgress
	}
	if err := pricing.Reprice(o, p); err != nil {
		return validationErr(err)
	}
	return nil
}

// AppendItems adds a batch of lines to an open order and re-prices it.
func (s *OrderService) AppendItems(ctx context.Context, restaurantID, orderID uuid.UUID, reqs []LineRequest) (database.Order, error) {
	menu, err := s.catalog.Menu(ctx, restaurantID)
	if err != nil {
		return database.Order{}, err
	}
	profile, err := s.catalog.Profile(ctx, restaurantID)
	if err != nil {
		return database.Order{}, err
	}
	lines, err := buildLines(menu, reqs, s.now())
	if err != nil {
		return database.Order{}, err
	}
	return s.store.Update(ctx, restaurantID, orderID, func(o *database.Order) error {
		return appendLines(o, cloneLines(lines), profile.Pricing())
	})
}

func cloneLines(lines []database.OrderItem) []database.OrderItem {
	out := make([]database.OrderItem, len(lines))
	copy(out, lines)
	return out
}

// TableAppendResult reports which order a table append landed on.
type TableAppendResult struct {
	Order   database.Order `json:"order"`
	Created bool           `json:"created"`
}

// AppendToTable adds lines to the oldest open dine-in order of a table,
// or opens a new one when the table has none. The table label is locked
// before the lookup, so racing terminals on an empty table open one order.
func (s *OrderService) AppendToTable(ctx context.Context, restaurantID uuid.UUID, label string, reqs []LineRequest, createdBy uuid.UUID) (TableAppendResult, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return TableAppendResult{}, ErrMissingPlate
	}
	menu, err := s.catalog.Menu(ctx, restaurantID)
	if err != nil {
		return TableAppendResult{}, err
	}
	profile, err := s.catalog.Profile(ctx, restaurantID)
	if err != nil {
		return TableAppendResult{}, err
	}
	lines, err := buildLines(menu, reqs, s.now())
	if err != nil {
		return TableAppendResult{}, err
	}

	var res TableAppendResult
	err = s.store.InTx(ctx, func(tx *store.Tx) error {
		if err := tx.LockTable(ctx, restaurantID, label); err != nil {
			return err
		}
		open, err := tx.OpenOrdersForTable(ctx, restaurantID, label)
		if err != nil {
			return err
		}
		if len(open) == 0 {
			q, err := pricing.Price(lines, profile.Pricing(), nil, decimal.Zero, decimal.Zero)
			if err != nil {
				return validationErr(err)
			}
			o := database.Order{
				RestaurantID: restaurantID,
				OrderType:    enum.OrderTypeDineIn,
				PlateNumber:  label,
				Items:        cloneLines(lines),
				Status:       enum.OrderStatusNew,
			}
			if createdBy != uuid.Nil {
				o.CreatedBy = pgtype.UUID{Bytes: createdBy, Valid: true}
			}
			pricing.Apply(&o, q)
			created, err := tx.Create(ctx, o)
			if err != nil {
				return err
			}
			res = TableAppendResult{Order: created, Created: true}
			return nil
		}

		sort.SliceStable(open, func(i, j int) bool { return open[i].CreatedAt.Before(open[j].CreatedAt) })
		target := open[0]
		if err := appendLines(&target, cloneLines(lines), profile.Pricing()); err != nil {
			return err
		}
		saved, err := tx.Save(ctx, target)
		if err != nil {
			return err
		}
		res = TableAppendResult{Order: saved}
		return nil
	})
	return res, err
}

// ApplyDiscounts replaces the order's discounts and re-prices it.
func (s *OrderService) ApplyDiscounts(ctx context.Context, restaurantID, orderID uuid.UUID, discounts []pricing.Discount) (database.Order, error) {
	profile, err := s.catalog.Profile(ctx, restaurantID)
	if err != nil {
		return database.Order{}, err
	}
	return s.store.Update(ctx, restaurantID, orderID, func(o *database.Order) error {
		if o.Status == enum.OrderStatusCompleted {
			return store.ErrOrderCompleted
		}
		q, err := pricing.Price(o.Items, profile.Pricing(), discounts, o.Tip, o.PlatformFee)
		if err != nil {
			return validationErr(err)
		}
		pricing.Apply(o, q)
		return nil
	})
}

// SetTip records a tip and re-prices the order.
func (s *OrderService) SetTip(ctx context.Context, restaurantID, orderID uuid.UUID, tip decimal.Decimal) (database.Order, error) {
	if tip.IsNegative() {
		return database.Order{}, validationErr(pricing.ErrNegativeAmount)
	}
	profile, err := s.catalog.Profile(ctx, restaurantID)
	if err != nil {
		return database.Order{}, err
	}
	return s.store.Update(ctx, restaurantID, orderID, func(o *database.Order) error {
		if o.Status == enum.OrderStatusCompleted {
			return store.ErrOrderCompleted
		}
		if o.Tip.Equal(tip) {
			return store.ErrUnchanged
		}
		o.Tip = tip
		if err := pricing.Reprice(o, profile.Pricing()); err != nil {
			return validationErr(err)
		}
		return nil
	})
}

// Quote prices a cart without storing anything.
func (s *OrderService) Quote(ctx context.Context, req QuoteRequest) (QuoteResult, error) {
	menu, err := s.catalog.Menu(ctx, req.RestaurantID)
	if err != nil {
		return QuoteResult{}, err
	}
	profile, err := s.catalog.Profile(ctx, req.RestaurantID)
	if err != nil {
		return QuoteResult{}, err
	}
	lines, err := buildLines(menu, req.Items, s.now())
	if err != nil {
		return QuoteResult{}, err
	}
	q, err := pricing.Price(lines, profile.Pricing(), req.Discounts, req.Tip, req.PlatformFee)
	if err != nil {
		return QuoteResult{}, validationErr(err)
	}
	res := QuoteResult{Quote: q, Items: lines, QuickCash: pricing.QuickCash(q.Total)}
	if req.Tendered.Valid {
		res.ChangeDue = decimal.NewNullDecimal(pricing.ChangeDue(q.Total, req.Tendered.Decimal, profile.Decimals()))
	}
	return res, nil
}

func (s *OrderService) Get(ctx context.Context, restaurantID, orderID uuid.UUID) (database.Order, error) {
	return s.store.Get(ctx, restaurantID, orderID)
}

func (s *OrderService) ListOpen(ctx context.Context, restaurantID uuid.UUID) ([]database.Order, error) {
	return s.store.ListOpen(ctx, restaurantID)
}
