// Package pricing computes order subtotals, taxes, discounts, totals and
// cash change.
package pricing

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/enum"
	"github.com/shopspring/decimal"
)

// DefaultDecimals is the currency precision used when a restaurant has
// none configured.
const DefaultDecimals = 3

// MaxDecimals is the scale of every stored money column.
const MaxDecimals = 3

var (
	ErrInvalidDiscount = errors.New("invalid discount")
	ErrNegativeAmount  = errors.New("amount must not be negative")
)

var hundred = decimal.NewFromInt(100)

// Profile is the restaurant configuration pricing depends on.
type Profile struct {
	AppliedTaxIDs []uuid.UUID
	Taxes         []database.Tax
	Decimals      int32
}

// Discount is a requested discount before it is evaluated against a
// subtotal.
type Discount struct {
	Name  string          `json:"name"`
	Type  string          `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// Quote is a fully priced set of lines.
type Quote struct {
	Subtotal         decimal.Decimal            `json:"subtotal"`
	Taxes            []database.OrderTax        `json:"taxes"`
	TaxAmount        decimal.Decimal            `json:"tax_amount"`
	AppliedDiscounts []database.AppliedDiscount `json:"applied_discounts"`
	DiscountAmount   decimal.Decimal            `json:"discount_amount"`
	Tip              decimal.Decimal            `json:"tip"`
	PlatformFee      decimal.Decimal            `json:"platform_fee"`
	Total            decimal.Decimal            `json:"total"`
}

// Round rounds half-up (half away from zero) to places decimals.
func Round(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(Places(places))
}

// Places clamps a currency precision to what the money columns can hold.
func Places(decimals int32) int32 {
	if decimals < 0 {
		return 0
	}
	if decimals > MaxDecimals {
		return MaxDecimals
	}
	return decimals
}

// Subtotal is Σ (base price + Σ modifier price) × quantity.
func Subtotal(items []database.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		unit := database.LinePrice(it.BasePrice, it.SelectedModifiers)
		total = total.Add(unit.Mul(decimal.NewFromInt32(it.Quantity)))
	}
	return total
}

// ApplicableTaxes returns the profile's taxes whose id is in the applied
// list, in applied-list order.
func ApplicableTaxes(p Profile) []database.Tax {
	byID := make(map[uuid.UUID]database.Tax, len(p.Taxes))
	for _, t := range p.Taxes {
		byID[t.ID] = t
	}
	out := make([]database.Tax, 0, len(p.AppliedTaxIDs))
	seen := make(map[uuid.UUID]bool, len(p.AppliedTaxIDs))
	for _, id := range p.AppliedTaxIDs {
		if t, ok := byID[id]; ok && !seen[id] {
			out = append(out, t)
			seen[id] = true
		}
	}
	return out
}

// Price evaluates items against the profile. Taxes are levied on the
// subtotal; discounts are capped so that together they never exceed it.
func Price(items []database.OrderItem, p Profile, discounts []Discount, tip, platformFee decimal.Decimal) (Quote, error) {
	places := Places(p.Decimals)
	if tip.IsNegative() {
		return Quote{}, fmt.Errorf("tip: %w", ErrNegativeAmount)
	}
	if platformFee.IsNegative() {
		return Quote{}, fmt.Errorf("platform_fee: %w", ErrNegativeAmount)
	}

	q := Quote{
		Subtotal:         Round(Subtotal(items), places),
		Taxes:            []database.OrderTax{},
		AppliedDiscounts: []database.AppliedDiscount{},
		TaxAmount:        decimal.Zero,
		DiscountAmount:   decimal.Zero,
		Tip:              Round(tip, places),
		PlatformFee:      Round(platformFee, places),
	}

	for i, d := range discounts {
		amount, err := discountAmount(d, q.Subtotal, places)
		if err != nil {
			return Quote{}, fmt.Errorf("discount[%d]: %w", i, err)
		}
		if remaining := q.Subtotal.Sub(q.DiscountAmount); amount.GreaterThan(remaining) {
			amount = remaining
		}
		q.AppliedDiscounts = append(q.AppliedDiscounts, database.AppliedDiscount{
			Name:   d.Name,
			Type:   d.Type,
			Value:  d.Value,
			Amount: amount,
		})
		q.DiscountAmount = q.DiscountAmount.Add(amount)
	}

	for _, t := range ApplicableTaxes(p) {
		amount := Round(q.Subtotal.Mul(t.Rate).Div(hundred), places)
		q.Taxes = append(q.Taxes, database.OrderTax{
			TaxID:  t.ID,
			Name:   t.Name,
			Rate:   t.Rate,
			Amount: amount,
		})
		q.TaxAmount = q.TaxAmount.Add(amount)
	}

	q.Total = q.Subtotal.Sub(q.DiscountAmount).Add(q.TaxAmount).Add(q.Tip).Add(q.PlatformFee)
	return q, nil
}

func discountAmount(d Discount, subtotal decimal.Decimal, places int32) (decimal.Decimal, error) {
	if d.Value.IsNegative() {
		return decimal.Zero, ErrInvalidDiscount
	}
	switch d.Type {
	case enum.DiscountTypePercentage:
		if d.Value.GreaterThan(hundred) {
			return decimal.Zero, fmt.Errorf("%w: percentage above 100", ErrInvalidDiscount)
		}
		return Round(subtotal.Mul(d.Value).Div(hundred), places), nil
	case enum.DiscountTypeFixed:
		return Round(d.Value, places), nil
	}
	return decimal.Zero, fmt.Errorf("%w: unknown type %q", ErrInvalidDiscount, d.Type)
}

// DiscountsOf recovers the requested discounts from an order's snapshot.
func DiscountsOf(o database.Order) []Discount {
	out := make([]Discount, 0, len(o.AppliedDiscounts))
	for _, d := range o.AppliedDiscounts {
		out = append(out, Discount{Name: d.Name, Type: d.Type, Value: d.Value})
	}
	return out
}

// Reprice recomputes every money field of o from its lines, its current
// discounts, tip and platform fee. The tip is preserved, not recomputed.
func Reprice(o *database.Order, p Profile) error {
	q, err := Price(o.Items, p, DiscountsOf(*o), o.Tip, o.PlatformFee)
	if err != nil {
		return err
	}
	Apply(o, q)
	return nil
}

// Apply copies a quote onto an order.
func Apply(o *database.Order, q Quote) {
	o.Subtotal = q.Subtotal
	o.Taxes = q.Taxes
	o.TaxAmount = q.TaxAmount
	o.AppliedDiscounts = q.AppliedDiscounts
	o.DiscountAmount = q.DiscountAmount
	o.Tip = q.Tip
	o.PlatformFee = q.PlatformFee
	o.Total = q.Total
}

// ChangeDue is tendered − total, clamped at zero.
func ChangeDue(total, tendered decimal.Decimal, places int32) decimal.Decimal {
	change := tendered.Sub(total)
	if change.IsNegative() {
		return Round(decimal.Zero, places)
	}
	return Round(change, places)
}

// QuickCash suggests tender amounts: the total rounded up to the next
// whole unit, the next multiple of 5 and the next multiple of 10,
// de-duplicated and ascending.
func QuickCash(total decimal.Decimal) []decimal.Decimal {
	candidates := []decimal.Decimal{
		total.Ceil(),
		ceilTo(total, 5),
		ceilTo(total, 10),
	}
	out := make([]decimal.Decimal, 0, 3)
	for _, c := range candidates {
		if len(out) > 0 && out[len(out)-1].GreaterThanOrEqual(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func ceilTo(d decimal.Decimal, step int64) decimal.Decimal {
	s := decimal.NewFromInt(step)
	return d.Div(s).Ceil().Mul(s)
}
