package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/enum"
	"github.com/nasser0p/digi-ai/internal/store"
	"github.com/shopspring/decimal"
)

// Deduction is what one ledger run took from stock.
type Deduction struct {
	Amounts      map[uuid.UUID]decimal.Decimal `json:"amounts"`
	Negative     []database.Ingredient         `json:"negative"`
	MissingItems []int                         `json:"missing_items"`
}

// InventoryLedger turns finalized order lines into ingredient decrements.
type InventoryLedger struct {
	log *slog.Logger
}

func NewInventoryLedger(log *slog.Logger) *InventoryLedger {
	return &InventoryLedger{log: log}
}

// Deduct takes the recipe quantities of every not yet deducted line of o
// from stock, one decrement per ingredient, and marks those lines deducted.
// It must run in the transaction that saves o so the flags and the stock
// commit together. Lines whose menu item no longer exists are flagged and
// reported; stock may go negative.
func (l *InventoryLedger) Deduct(ctx context.Context, tx *store.Tx, o *database.Order) (Deduction, error) {
	d := Deduction{Amounts: make(map[uuid.UUID]decimal.Decimal), Negative: []database.Ingredient{}, MissingItems: []int{}}

	pending := false
	for _, it := range o.Items {
		if !it.InventoryDeducted {
			pending = true
			break
		}
	}
	if !pending {
		return d, nil
	}

	items, err := tx.Queries().ListMenuItems(ctx, o.RestaurantID)
	if err != nil {
		return d, fmt.Errorf("load recipes: %w", store.Classify(err))
	}
	menu := make(map[uuid.UUID]database.MenuItem, len(items))
	for _, mi := range items {
		menu[mi.ID] = mi
	}

	for i := range o.Items {
		it := &o.Items[i]
		if it.InventoryDeducted {
			continue
		}
		mi, ok := menu[it.MenuItemID]
		if !ok {
			it.Flag = enum.ItemFlagMenuItemMissing
			d.MissingItems = append(d.MissingItems, i)
			l.log.Warn("menu item missing at finalization", "order_id", o.ID, "line", i, "menu_item_id", it.MenuItemID, "name", it.Name)
			continue
		}
		qty := decimal.NewFromInt32(it.Quantity)
		for _, r := range mi.Recipe {
			d.Amounts[r.IngredientID] = d.Amounts[r.IngredientID].Add(r.Quantity.Mul(qty))
		}
		it.InventoryDeducted = true
	}

	ids := make([]uuid.UUID, 0, len(d.Amounts))
	for id := range d.Amounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	for _, id := range ids {
		amount := d.Amounts[id]
		if amount.IsZero() {
			continue
		}
		ing, err := tx.Queries().DecrementIngredientStock(ctx, database.DecrementIngredientStockParams{
			ID:           id,
			RestaurantID: o.RestaurantID,
			Amount:       amount,
		})
		if err != nil {
			if errors.Is(store.Classify(err), store.ErrNotFound) {
				l.log.Warn("recipe references unknown ingredient", "order_id", o.ID, "ingredient_id", id)
				delete(d.Amounts, id)
				continue
			}
			return d, fmt.Errorf("decrement ingredient %s: %w", id, store.Classify(err))
		}
		if ing.Stock.IsNegative() {
			d.Negative = append(d.Negative, ing)
			l.log.Warn("ingredient stock below zero", "ingredient_id", ing.ID, "name", ing.Name, "stock", ing.Stock.String())
		}
	}
	return d, nil
}
