package storetest

import (
	"time"

	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/enum"
	"github.com/shopspring/decimal"
)

// NewItem builds an order line whose price is base plus modifiers.
func NewItem(menuItemID uuid.UUID, name, base string, qty int32, mods ...database.SelectedModifier) database.OrderItem {
	b := decimal.RequireFromString(base)
	if mods == nil {
		mods = []database.SelectedModifier{}
	}
	return database.OrderItem{
		CartItemID:        menuItemID.String(),
		MenuItemID:        menuItemID,
		Name:              name,
		BasePrice:         b,
		Quantity:          qty,
		SelectedModifiers: mods,
		Price:             database.LinePrice(b, mods),
		AddedAt:           time.Now(),
	}
}

// Mod builds a selected modifier.
func Mod(name, price string) database.SelectedModifier {
	return database.SelectedModifier{OptionName: name, OptionPrice: decimal.RequireFromString(price)}
}

// NewOrder builds a NEW dine-in order with untaxed, consistent totals.
func NewOrder(restaurantID uuid.UUID, plate string, items ...database.OrderItem) database.Order {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Price.Mul(decimal.NewFromInt32(it.Quantity)))
	}
	return database.Order{
		RestaurantID:     restaurantID,
		OrderType:        enum.OrderTypeDineIn,
		PlateNumber:      plate,
		Items:            items,
		Subtotal:         subtotal,
		Taxes:            []database.OrderTax{},
		AppliedDiscounts: []database.AppliedDiscount{},
		Total:            subtotal,
		Status:           enum.OrderStatusNew,
	}
}
