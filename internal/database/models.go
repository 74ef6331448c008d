package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

type Restaurant struct {
	ID               uuid.UUID   `json:"id"`
	Name             string      `json:"name"`
	AppliedTaxIDs    []uuid.UUID `json:"applied_tax_ids"`
	KitchenStations  []string    `json:"kitchen_stations"`
	Locked           bool        `json:"locked"`
	CurrencyDecimals int32       `json:"currency_decimals"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

type User struct {
	ID             uuid.UUID   `json:"id"`
	RestaurantID   uuid.UUID   `json:"restaurant_id"`
	Email          string      `json:"email"`
	HashedPassword string      `json:"-"`
	FullName       string      `json:"full_name"`
	Role           string      `json:"role"`
	Pin            pgtype.Text `json:"-"`
	IsActive       bool        `json:"is_active"`
	CreatedAt      time.Time   `json:"created_at"`
}

type Tax struct {
	ID           uuid.UUID       `json:"id"`
	RestaurantID uuid.UUID       `json:"restaurant_id"`
	Name         string          `json:"name"`
	Rate         decimal.Decimal `json:"rate"`
	IsDefault    bool            `json:"is_default"`
	CreatedAt    time.Time       `json:"created_at"`
}

type Ingredient struct {
	ID           uuid.UUID       `json:"id"`
	RestaurantID uuid.UUID       `json:"restaurant_id"`
	Name         string          `json:"name"`
	Unit         string          `json:"unit"`
	Cost         decimal.Decimal `json:"cost"`
	Stock        decimal.Decimal `json:"stock"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// RecipeLine is one ingredient requirement per serving of a menu item.
type RecipeLine struct {
	IngredientID uuid.UUID       `json:"ingredient_id"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
}

type ModifierOption struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type ModifierGroup struct {
	Name      string           `json:"name"`
	Required  bool             `json:"required"`
	MaxSelect int              `json:"max_select"`
	Options   []ModifierOption `json:"options"`
}

type MenuItem struct {
	ID                uuid.UUID       `json:"id"`
	RestaurantID      uuid.UUID       `json:"restaurant_id"`
	Name              string          `json:"name"`
	Category          string          `json:"category"`
	Price             decimal.Decimal `json:"price"`
	IsAvailable       bool            `json:"is_available"`
	Recipe            []RecipeLine    `json:"recipe"`
	ModifierGroups    []ModifierGroup `json:"modifier_groups"`
	Station           pgtype.Text     `json:"station"`
	TargetPrepMinutes pgtype.Int4     `json:"target_prep_minutes"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

type FloorTable struct {
	ID           uuid.UUID   `json:"id"`
	RestaurantID uuid.UUID   `json:"restaurant_id"`
	Label        string      `json:"label"`
	ManualStatus pgtype.Text `json:"manual_status"`
	Geometry     []byte      `json:"geometry"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// SelectedModifier is copied verbatim from the cart; it is never re-resolved
// against the live menu.
type SelectedModifier struct {
	OptionName  string          `json:"option_name"`
	OptionPrice decimal.Decimal `json:"option_price"`
}

// OrderItem is one persisted order line, stored inside orders.items (JSONB).
type OrderItem struct {
	CartItemID        string             `json:"cart_item_id"`
	MenuItemID        uuid.UUID          `json:"menu_item_id"`
	Name              string             `json:"name"`
	BasePrice         decimal.Decimal    `json:"base_price"`
	Quantity          int32              `json:"quantity"`
	SelectedModifiers []SelectedModifier `json:"selected_modifiers"`
	Notes             string             `json:"notes,omitempty"`
	Price             decimal.Decimal    `json:"price"`
	IsCompleted       bool               `json:"is_completed"`
	InventoryDeducted bool               `json:"inventory_deducted"`
	Station           string             `json:"station,omitempty"`
	TargetPrepMinutes int32              `json:"target_prep_minutes,omitempty"`
	AddedAt           time.Time          `json:"added_at"`
	Flag              string             `json:"flag,omitempty"`
}

// OrderTax is the snapshot of one applied tax at pricing time.
type OrderTax struct {
	TaxID  uuid.UUID       `json:"tax_id"`
	Name   string          `json:"name"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

type AppliedDiscount struct {
	Name   string          `json:"name"`
	Type   string          `json:"type"`
	Value  decimal.Decimal `json:"value"`
	Amount decimal.Decimal `json:"amount"`
}

type Order struct {
	ID               uuid.UUID           `json:"id"`
	RestaurantID     uuid.UUID           `json:"restaurant_id"`
	OrderType        string              `json:"order_type"`
	PlateNumber      string              `json:"plate_number"`
	Items            []OrderItem         `json:"items"`
	Subtotal         decimal.Decimal     `json:"subtotal"`
	Taxes            []OrderTax          `json:"taxes"`
	TaxAmount        decimal.Decimal     `json:"tax_amount"`
	AppliedDiscounts []AppliedDiscount   `json:"applied_discounts"`
	DiscountAmount   decimal.Decimal     `json:"discount_amount"`
	Tip              decimal.Decimal     `json:"tip"`
	PlatformFee      decimal.Decimal     `json:"platform_fee"`
	Total            decimal.Decimal     `json:"total"`
	Status           string              `json:"status"`
	PaymentMethod    pgtype.Text         `json:"payment_method"`
	Tendered         decimal.NullDecimal `json:"tendered"`
	ChangeDue        decimal.NullDecimal `json:"change_due"`
	Notes            string              `json:"notes"`
	CreatedBy        pgtype.UUID         `json:"created_by"`
	Version          int32               `json:"version"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
	CompletedAt      pgtype.Timestamptz  `json:"completed_at"`
}
