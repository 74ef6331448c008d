package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const decrementIngredientStock = `-- name: DecrementIngredientStock :one
UPDATE ingredients
SET stock = stock - $3, updated_at = now()
WHERE id = $1 AND restaurant_id = $2
RETURNING id, restaurant_id, name, unit, cost, stock, updated_at`

type DecrementIngredientStockParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
	Amount       decimal.Decimal
}

func (q *Queries) DecrementIngredientStock(ctx context.Context, arg DecrementIngredientStockParams) (Ingredient, error) {
	row := q.db.QueryRow(ctx, decrementIngredientStock, arg.ID, arg.RestaurantID, arg.Amount)
	var i Ingredient
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.Name,
		&i.Unit,
		&i.Cost,
		&i.Stock,
		&i.UpdatedAt,
	)
	return i, err
}

const listIngredients = `-- name: ListIngredients :many
SELECT id, restaurant_id, name, unit, cost, stock, updated_at
FROM ingredients
WHERE restaurant_id = $1
ORDER BY stock ASC, name`

func (q *Queries) ListIngredients(ctx context.Context, restaurantID uuid.UUID) ([]Ingredient, error) {
	rows, err := q.db.Query(ctx, listIngredients, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Ingredient{}
	for rows.Next() {
		var i Ingredient
		if err := rows.Scan(
			&i.ID,
			&i.RestaurantID,
			&i.Name,
			&i.Unit,
			&i.Cost,
			&i.Stock,
			&i.UpdatedAt,
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

const createIngredient = `-- name: CreateIngredient :one
INSERT INTO ingredients (restaurant_id, name, unit, cost, stock)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, restaurant_id, name, unit, cost, stock, updated_at`

type CreateIngredientParams struct {
	RestaurantID uuid.UUID
	Name         string
	Unit         string
	Cost         decimal.Decimal
	Stock        decimal.Decimal
}

func (q *Queries) CreateIngredient(ctx context.Context, arg CreateIngredientParams) (Ingredient, error) {
	row := q.db.QueryRow(ctx, createIngredient, arg.RestaurantID, arg.Name, arg.Unit, arg.Cost, arg.Stock)
	var i Ingredient
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.Name,
		&i.Unit,
		&i.Cost,
		&i.Stock,
		&i.UpdatedAt,
	)
	return i, err
}
