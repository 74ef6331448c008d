package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const getRestaurant = `-- name: GetRestaurant :one
SELECT id, name, applied_tax_ids, kitchen_stations, locked, currency_decimals, created_at, updated_at
FROM restaurants
WHERE id = $1`

func (q *Queries) GetRestaurant(ctx context.Context, id uuid.UUID) (Restaurant, error) {
	row := q.db.QueryRow(ctx, getRestaurant, id)
	var i Restaurant
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.AppliedTaxIDs,
		&i.KitchenStations,
		&i.Locked,
		&i.CurrencyDecimals,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const createRestaurant = `-- name: CreateRestaurant :one
INSERT INTO restaurants (name, kitchen_stations, currency_decimals)
VALUES ($1, $2, $3)
RETURNING id, name, applied_tax_ids, kitchen_stations, locked, currency_decimals, created_at, updated_at`

type CreateRestaurantParams struct {
	Name             string
	KitchenStations  []string
	CurrencyDecimals int32
}

func (q *Queries) CreateRestaurant(ctx context.Context, arg CreateRestaurantParams) (Restaurant, error) {
	row := q.db.QueryRow(ctx, createRestaurant, arg.Name, arg.KitchenStations, arg.CurrencyDecimals)
	var i Restaurant
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.AppliedTaxIDs,
		&i.KitchenStations,
		&i.Locked,
		&i.CurrencyDecimals,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const setAppliedTaxes = `-- name: SetAppliedTaxes :exec
UPDATE restaurants SET applied_tax_ids = $2, updated_at = now()
WHERE id = $1`

func (q *Queries) SetAppliedTaxes(ctx context.Context, id uuid.UUID, taxIDs []uuid.UUID) error {
	_, err := q.db.Exec(ctx, setAppliedTaxes, id, taxIDs)
	return err
}

const listTaxes = `-- name: ListTaxes :many
SELECT id, restaurant_id, name, rate, is_default, created_at
FROM taxes
WHERE restaurant_id = $1
ORDER BY name`

func (q *Queries) ListTaxes(ctx context.Context, restaurantID uuid.UUID) ([]Tax, error) {
	rows, err := q.db.Query(ctx, listTaxes, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Tax{}
	for rows.Next() {
		var i Tax
		if err := rows.Scan(
			&i.ID,
			&i.RestaurantID,
			&i.Name,
			&i.Rate,
			&i.IsDefault,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const createTax = `-- name: CreateTax :one
INSERT INTO taxes (restaurant_id, name, rate, is_default)
VALUES ($1, $2, $3, $4)
RETURNING id, restaurant_id, name, rate, is_default, created_at`

type CreateTaxParams struct {
	RestaurantID uuid.UUID
	Name         string
	Rate         decimal.Decimal
	IsDefault    bool
}

func (q *Queries) CreateTax(ctx context.Context, arg CreateTaxParams) (Tax, error) {
	row := q.db.QueryRow(ctx, createTax, arg.RestaurantID, arg.Name, arg.Rate, arg.IsDefault)
	var i Tax
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.Name,
		&i.Rate,
		&i.IsDefault,
		&i.CreatedAt,
	)
	return i, err
}
