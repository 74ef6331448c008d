package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/nasser0p/digi-ai/internal/enum"
	"github.com/shopspring/decimal"
)

// Errors reported by Order.Validate.
var (
	ErrEmptyItems          = errors.New("order has no items")
	ErrMissingPlate        = errors.New("plate_number is required")
	ErrInvalidOrderType    = errors.New("invalid order_type")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrInvalidPayment      = errors.New("invalid payment_method")
	ErrInvalidQuantity     = errors.New("quantity must be >= 1")
	ErrLinePriceMismatch   = errors.New("line price does not match base price plus modifiers")
	ErrNegativeAmount      = errors.New("amount must not be negative")
	ErrDiscountExceeds     = errors.New("discount exceeds subtotal")
	ErrTotalInconsistent   = errors.New("total does not equal subtotal - discount + tax + tip + platform fee")
	ErrMissingRestaurantID = errors.New("restaurant_id is required")
)

// LinePrice is the unit price of an order line: base price plus every
// selected modifier.
func LinePrice(base decimal.Decimal, mods []SelectedModifier) decimal.Decimal {
	p := base
	for _, m := range mods {
		p = p.Add(m.OptionPrice)
	}
	return p
}

// ExpectedTotal computes subtotal - discount + tax + tip + platform fee.
func (o Order) ExpectedTotal() decimal.Decimal {
	return o.Subtotal.Sub(o.DiscountAmount).Add(o.TaxAmount).Add(o.Tip).Add(o.PlatformFee)
}

// Validate checks the structural invariants every persisted order must hold.
func (o Order) Validate() error {
	if o.RestaurantID == uuid.Nil {
		return ErrMissingRestaurantID
	}
	switch o.OrderType {
	case enum.OrderTypeDineIn, enum.OrderTypeTakeaway:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidOrderType, o.OrderType)
	}
	if strings.TrimSpace(o.PlateNumber) == "" {
		return ErrMissingPlate
	}
	switch o.Status {
	case enum.OrderStatusNew, enum.OrderStatusInProgress, enum.OrderStatusReady, enum.OrderStatusCompleted:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, o.Status)
	}
	if o.PaymentMethod.Valid {
		switch o.PaymentMethod.String {
		case enum.PaymentMethodCash, enum.PaymentMethodCard, enum.PaymentMethodOther:
		default:
			return fmt.Errorf("%w: %q", ErrInvalidPayment, o.PaymentMethod.String)
		}
	}
	if len(o.Items) == 0 {
		return ErrEmptyItems
	}
	for i, item := range o.Items {
		if item.Quantity < 1 {
			return fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		if !item.Price.Equal(LinePrice(item.BasePrice, item.SelectedModifiers)) {
			return fmt.Errorf("item[%d]: %w", i, ErrLinePriceMismatch)
		}
	}
	for name, v := range map[string]decimal.Decimal{
		"subtotal":        o.Subtotal,
		"tax_amount":      o.TaxAmount,
		"discount_amount": o.DiscountAmount,
		"tip":             o.Tip,
		"platform_fee":    o.PlatformFee,
	} {
		if v.IsNegative() {
			return fmt.Errorf("%s: %w", name, ErrNegativeAmount)
		}
	}
	if o.DiscountAmount.GreaterThan(o.Subtotal) {
		return ErrDiscountExceeds
	}
	if !o.Total.Equal(o.ExpectedTotal()) {
		return fmt.Errorf("%w: total %s, expected %s", ErrTotalInconsistent, o.Total, o.ExpectedTotal())
	}
	return nil
}
