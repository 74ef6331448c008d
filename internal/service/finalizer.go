package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/nasser0p/digi-ai/internal/database"
	"github.com/nasser0p/digi-ai/internal/enum"
	"github.com/nasser0p/digi-ai/internal/pricing"
	"github.com/nasser0p/digi-ai/internal/store"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidPaymentMethod = fmt.Errorf("%w: invalid payment_method", store.ErrValidation)
	ErrInsufficientTender   = fmt.Errorf("%w: tendered amount is below the total", store.ErrValidation)
)

// FinalizeRequest is a payment against an open order.
type FinalizeRequest struct {
	RestaurantID  uuid.UUID
	OrderID       uuid.UUID
	PaymentMethod string
	Tendered      decimal.NullDecimal
}

// FinalizeResult describes a completed order.
type FinalizeResult struct {
	Order         database.Order `json:"order"`
	AlreadyClosed bool           `json:"already_closed"`
	TableCleaning bool           `json:"table_needs_cleaning"`
	Deduction     Deduction      `json:"deduction"`
}

// Finalizer closes orders: payment, inventory and table state commit in
// one transaction.
type Finalizer struct {
	store   *store.OrderStore
	catalog *Catalog
	ledger  *InventoryLedger
	log     *slog.Logger
	now     func() time.Time
}

func NewFinalizer(s *store.OrderStore, catalog *Catalog, ledger *InventoryLedger, log *slog.Logger) *Finalizer {
	return &Finalizer{store: s, catalog: catalog, ledger: ledger, log: log, now: time.Now}
}

func validPaymentMethod(m string) (string, bool) {
	switch m = strings.ToUpper(strings.TrimSpace(m)); m {
	case enum.PaymentMethodCash, enum.PaymentMethodCard, enum.PaymentMethodOther:
		return m, true
	}
	return "", false
}

// Finalize completes an order. Finalizing an order that is already
// COMPLETED returns it unchanged and deducts nothing.
func (f *Finalizer) Finalize(ctx context.Context, req FinalizeRequest) (FinalizeResult, error) {
	method, ok := validPaymentMethod(req.PaymentMethod)
	if !ok {
		return FinalizeResult{}, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, req.PaymentMethod)
	}
	if req.Tendered.Valid && req.Tendered.Decimal.IsNegative() {
		return FinalizeResult{}, validationErr(pricing.ErrNegativeAmount)
	}
	profile, err := f.catalog.Profile(ctx, req.RestaurantID)
	if err != nil {
		return FinalizeResult{}, err
	}
	places := profile.Decimals()

	var res FinalizeResult
	err = f.store.InTx(ctx, func(tx *store.Tx) error {
		res = FinalizeResult{}
		o, err := tx.Order(ctx, req.RestaurantID, req.OrderID)
		if err != nil {
			return err
		}
		if o.Status == enum.OrderStatusCompleted {
			res.Order = o
			res.AlreadyClosed = true
			return nil
		}
		if len(o.Items) == 0 {
			return ErrEmptyItems
		}

		switch {
		case method == enum.PaymentMethodCash:
			if !req.Tendered.Valid || req.Tendered.Decimal.LessThan(o.Total) {
				return fmt.Errorf("%w: total %s", ErrInsufficientTender, o.Total)
			}
			o.Tendered = decimal.NewNullDecimal(pricing.Round(req.Tendered.Decimal, places))
			o.ChangeDue = decimal.NewNullDecimal(pricing.ChangeDue(o.Total, req.Tendered.Decimal, places))
		case req.Tendered.Valid:
			o.Tendered = decimal.NewNullDecimal(pricing.Round(req.Tendered.Decimal, places))
			o.ChangeDue = decimal.NullDecimal{}
		default:
			o.Tendered = decimal.NullDecimal{}
			o.ChangeDue = decimal.NullDecimal{}
		}

		for i := range o.Items {
			o.Items[i].IsCompleted = true
		}
		d, err := f.ledger.Deduct(ctx, tx, &o)
		if err != nil {
			return err
		}
		res.Deduction = d

		o.Status = enum.OrderStatusCompleted
		o.PaymentMethod = pgtype.Text{String: method, Valid: true}
		o.CompletedAt = pgtype.Timestamptz{Time: f.now(), Valid: true}
		saved, err := tx.Save(ctx, o)
		if err != nil {
			return err
		}
		res.Order = saved

		if saved.OrderType != enum.OrderTypeDineIn {
			return nil
		}
		siblings, err := tx.OpenOrdersForTable(ctx, req.RestaurantID, saved.PlateNumber)
		if err != nil {
			return err
		}
		if len(siblings) > 0 {
			return nil
		}
		if _, err := tx.SetTableStatus(ctx, req.RestaurantID, saved.PlateNumber, enum.TableManualNeedsCleaning); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				// Plate numbers need not name a configured table.
				return nil
			}
			return err
		}
		res.TableCleaning = true
		return nil
	})
	if err != nil {
		return FinalizeResult{}, err
	}
	if !res.AlreadyClosed {
		f.log.Info("order finalized", "order_id", res.Order.ID, "method", method,
			"total", res.Order.Total.String(), "table_needs_cleaning", res.TableCleaning)
	}
	return res, nil
}
