package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, restaurant_id, order_type, plate_number, items, subtotal, taxes, tax_amount,
	applied_discounts, discount_amount, tip, platform_fee, total, status, payment_method,
	tendered, change_due, notes, created_by, version, created_at, updated_at, completed_at`

func scanOrder(row pgx.Row) (Order, error) {
	var i Order
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.OrderType,
		&i.PlateNumber,
		&i.Items,
		&i.Subtotal,
		&i.Taxes,
		&i.TaxAmount,
		&i.AppliedDiscounts,
		&i.DiscountAmount,
		&i.Tip,
		&i.PlatformFee,
		&i.Total,
		&i.Status,
		&i.PaymentMethod,
		&i.Tendered,
		&i.ChangeDue,
		&i.Notes,
		&i.CreatedBy,
		&i.Version,
		&i.CreatedAt,
		&i.UpdatedAt,
		&i.CompletedAt,
	)
	return i, err
}

func scanOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	items := []Order{}
	for rows.Next() {
		i, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createOrder = `-- name: CreateOrder :one
INSERT INTO orders (
    id, restaurant_id, order_type, plate_number, items, subtotal, taxes, tax_amount,
    applied_discounts, discount_amount, tip, platform_fee, total, status, notes, created_by
) VALUES (
    $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
)
RETURNING ` + orderColumns

type CreateOrderParams struct {
	ID               uuid.UUID
	RestaurantID     uuid.UUID
	OrderType        string
	PlateNumber      string
	Items            []OrderItem
	Subtotal         decimal.Decimal
	Taxes            []OrderTax
	TaxAmount        decimal.Decimal
	AppliedDiscounts []AppliedDiscount
	DiscountAmount   decimal.Decimal
	Tip              decimal.Decimal
	PlatformFee      decimal.Decimal
	Total            decimal.Decimal
	Status           string
	Notes            string
	CreatedBy        pgtype.UUID
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, createOrder,
		arg.ID,
		arg.RestaurantID,
		arg.OrderType,
		arg.PlateNumber,
		arg.Items,
		arg.Subtotal,
		arg.Taxes,
		arg.TaxAmount,
		arg.AppliedDiscounts,
		arg.DiscountAmount,
		arg.Tip,
		arg.PlatformFee,
		arg.Total,
		arg.Status,
		arg.Notes,
		arg.CreatedBy,
	)
	return scanOrder(row)
}

const getOrder = `-- name: GetOrder :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND restaurant_id = $2`

type GetOrderParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) GetOrder(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, getOrder, arg.ID, arg.RestaurantID)
	return scanOrder(row)
}

const getOrderForUpdate = `-- name: GetOrderForUpdate :one
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND restaurant_id = $2
FOR UPDATE`

func (q *Queries) GetOrderForUpdate(ctx context.Context, arg GetOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, getOrderForUpdate, arg.ID, arg.RestaurantID)
	return scanOrder(row)
}

const listOpenOrders = `-- name: ListOpenOrders :many
SELECT ` + orderColumns + `
FROM orders
WHERE restaurant_id = $1 AND status <> 'COMPLETED'
ORDER BY created_at, id`

func (q *Queries) ListOpenOrders(ctx context.Context, restaurantID uuid.UUID) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOpenOrders, restaurantID)
	if err != nil {
		return nil, err
	}
	return scanOrders(rows)
}

// Locks are taken in id order so concurrent multi-order writers never deadlock.
const listOrdersForUpdate = `-- name: ListOrdersForUpdate :many
SELECT ` + orderColumns + `
FROM orders
WHERE restaurant_id = $1 AND id = ANY($2::uuid[])
ORDER BY id
FOR UPDATE`

type ListOrdersForUpdateParams struct {
	RestaurantID uuid.UUID
	IDs          []uuid.UUID
}

func (q *Queries) ListOrdersForUpdate(ctx context.Context, arg ListOrdersForUpdateParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersForUpdate, arg.RestaurantID, arg.IDs)
	if err != nil {
		return nil, err
	}
	return scanOrders(rows)
}

const listOpenOrdersByPlateForUpdate = `-- name: ListOpenOrdersByPlateForUpdate :many
SELECT ` + orderColumns + `
FROM orders
WHERE restaurant_id = $1
  AND status <> 'COMPLETED'
  AND order_type = 'DINE_IN'
  AND lower(btrim(plate_number)) = lower(btrim($2))
ORDER BY id
FOR UPDATE`

type ListOpenOrdersByPlateParams struct {
	RestaurantID uuid.UUID
	PlateNumber  string
}

func (q *Queries) ListOpenOrdersByPlateForUpdate(ctx context.Context, arg ListOpenOrdersByPlateParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOpenOrdersByPlateForUpdate, arg.RestaurantID, arg.PlateNumber)
	if err != nil {
		return nil, err
	}
	return scanOrders(rows)
}

const updateOrder = `-- name: UpdateOrder :one
UPDATE orders SET
    items = $4,
    subtotal = $5,
    taxes = $6,
    tax_amount = $7,
    applied_discounts = $8,
    discount_amount = $9,
    tip = $10,
    platform_fee = $11,
    total = $12,
    status = $13,
    payment_method = $14,
    tendered = $15,
    change_due = $16,
    notes = $17,
    completed_at = $18,
    version = version + 1,
    updated_at = now()
WHERE id = $1 AND restaurant_id = $2 AND version = $3
RETURNING ` + orderColumns

type UpdateOrderParams struct {
	ID               uuid.UUID
	RestaurantID     uuid.UUID
	Version          int32
	Items            []OrderItem
	Subtotal         decimal.Decimal
	Taxes            []OrderTax
	TaxAmount        decimal.Decimal
	AppliedDiscounts []AppliedDiscount
	DiscountAmount   decimal.Decimal
	Tip              decimal.Decimal
	PlatformFee      decimal.Decimal
	Total            decimal.Decimal
	Status           string
	PaymentMethod    pgtype.Text
	Tendered         decimal.NullDecimal
	ChangeDue        decimal.NullDecimal
	Notes            string
	CompletedAt      pgtype.Timestamptz
}

// UpdateOrder returns pgx.ErrNoRows when the stored version no longer
// matches arg.Version.
func (q *Queries) UpdateOrder(ctx context.Context, arg UpdateOrderParams) (Order, error) {
	row := q.db.QueryRow(ctx, updateOrder,
		arg.ID,
		arg.RestaurantID,
		arg.Version,
		arg.Items,
		arg.Subtotal,
		arg.Taxes,
		arg.TaxAmount,
		arg.AppliedDiscounts,
		arg.DiscountAmount,
		arg.Tip,
		arg.PlatformFee,
		arg.Total,
		arg.Status,
		arg.PaymentMethod,
		arg.Tendered,
		arg.ChangeDue,
		arg.Notes,
		arg.CompletedAt,
	)
	return scanOrder(row)
}

const notifyOrderChanged = `-- name: NotifyOrderChanged :exec
SELECT pg_notify($1, $2)`

// NotifyOrderChanged queues a notification that Postgres delivers only if
// the surrounding transaction commits.
func (q *Queries) NotifyOrderChanged(ctx context.Context, channel, payload string) error {
	_, err := q.db.Exec(ctx, notifyOrderChanged, channel, payload)
	return err
}
