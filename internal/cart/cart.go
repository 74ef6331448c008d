// Package cart composes and merges order lines before submission.
package cart

import (
	"errors"
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidQuantity = errors.New("quantity must be >= 1")
	ErrLineNotFound    = errors.New("cart line not found")
)

// Item is one cart line.
type Item struct {
	CartItemID        string                      `json:"cart_item_id"`
	MenuItemID        uuid.UUID                   `json:"menu_item_id"`
	Name              string                      `json:"name"`
	BasePrice         decimal.Decimal             `json:"base_price"`
	Quantity          int32                       `json:"quantity"`
	SelectedModifiers []database.SelectedModifier `json:"selected_modifiers"`
	Notes             string                      `json:"notes,omitempty"`
}

// UnitPrice is the base price plus every selected modifier.
func (i Item) UnitPrice() decimal.Decimal {
	return database.LinePrice(i.BasePrice, i.SelectedModifiers)
}

// ModifierNames returns the canonical (whitespace-free, sorted) option
// names of the selection.
func ModifierNames(mods []database.SelectedModifier) []string {
	names := make([]string, 0, len(mods))
	for _, m := range mods {
		names = append(names, stripSpace(m.OptionName))
	}
	sort.Strings(names)
	return names
}

// Key is the merge key of a line: the menu item id plus its canonical
// modifier names. Notes are deliberately not part of it.
func Key(menuItemID uuid.UUID, mods []database.SelectedModifier) string {
	names := ModifierNames(mods)
	if len(names) == 0 {
		return menuItemID.String()
	}
	return menuItemID.String() + "::" + strings.Join(names, "|")
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// Cart is an ordered list of lines.
type Cart struct {
	Items []Item `json:"items"`
}

// Add merges item into the cart: a line with the same key and the same
// note absorbs the quantity, otherwise a new line is appended.
func (c *Cart) Add(item Item) error {
	if item.Quantity < 1 {
		return ErrInvalidQuantity
	}
	item.CartItemID = Key(item.MenuItemID, item.SelectedModifiers)
	item.Notes = strings.TrimSpace(item.Notes)
	if item.SelectedModifiers == nil {
		item.SelectedModifiers = []database.SelectedModifier{}
	}

	for i := range c.Items {
		if c.Items[i].CartItemID == item.CartItemID && c.Items[i].Notes == item.Notes {
			c.Items[i].Quantity += item.Quantity
			return nil
		}
	}
	c.Items = append(c.Items, item)
	return nil
}

// SetQuantity changes the quantity of line index. Zero removes the line.
func (c *Cart) SetQuantity(index int, qty int32) error {
	if index < 0 || index >= len(c.Items) {
		return ErrLineNotFound
	}
	switch {
	case qty == 0:
		return c.Remove(index)
	case qty < 0:
		return ErrInvalidQuantity
	}
	c.Items[index].Quantity = qty
	return nil
}

func (c *Cart) Remove(index int) error {
	if index < 0 || index >= len(c.Items) {
		return ErrLineNotFound
	}
	c.Items = append(c.Items[:index], c.Items[index+1:]...)
	return nil
}

// Subtotal is Σ unit price × quantity.
func (c Cart) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.UnitPrice().Mul(decimal.NewFromInt32(it.Quantity)))
	}
	return total
}

// FromOrderItem turns a persisted line back into a cart line.
func FromOrderItem(it database.OrderItem) Item {
	return Item{
		CartItemID:        Key(it.MenuItemID, it.SelectedModifiers),
		MenuItemID:        it.MenuItemID,
		Name:              it.Name,
		BasePrice:         it.BasePrice,
		Quantity:          it.Quantity,
		SelectedModifiers: it.SelectedModifiers,
		Notes:             it.Notes,
	}
}

// Consolidate merges every line of every given order into one cart, in
// order of appearance. Used to re-open all open orders of a table as one
// ticket.
func Consolidate(orders []database.Order) Cart {
	var c Cart
	for _, o := range orders {
		for _, it := range o.Items {
			if it.Quantity < 1 {
				continue
			}
			_ = c.Add(FromOrderItem(it))
		}
	}
	if c.Items == nil {
		c.Items = []Item{}
	}
	return c
}
