package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const menuItemColumns = `id, restaurant_id, name, category, price, is_available, recipe, modifier_groups,
	station, target_prep_minutes, created_at, updated_at`

func scanMenuItem(row pgx.Row) (MenuItem, error) {
	var i MenuItem
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.Name,
		&i.Category,
		&i.Price,
		&i.IsAvailable,
		&i.Recipe,
		&i.ModifierGroups,
		&i.Station,
		&i.TargetPrepMinutes,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	return i, err
}

const listMenuItems = `-- name: ListMenuItems :many
SELECT ` + menuItemColumns + `
FROM menu_items
WHERE restaurant_id = $1
ORDER BY category, name`

func (q *Queries) ListMenuItems(ctx context.Context, restaurantID uuid.UUID) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItems, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []MenuItem{}
	for rows.Next() {
		i, err := scanMenuItem(rows)
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

const getMenuItem = `-- name: GetMenuItem :one
SELECT ` + menuItemColumns + `
FROM menu_items
WHERE id = $1 AND restaurant_id = $2`

type GetMenuItemParams struct {
	ID           uuid.UUID
	RestaurantID uuid.UUID
}

func (q *Queries) GetMenuItem(ctx context.Context, arg GetMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, getMenuItem, arg.ID, arg.RestaurantID)
	return scanMenuItem(row)
}

const createMenuItem = `-- name: CreateMenuItem :one
INSERT INTO menu_items (
    restaurant_id, name, category, price, is_available, recipe, modifier_groups, station, target_prep_minutes
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING ` + menuItemColumns

type CreateMenuItemParams struct {
	RestaurantID      uuid.UUID
	Name              string
	Category          string
	Price             decimal.Decimal
	IsAvailable       bool
	Recipe            []RecipeLine
	ModifierGroups    []ModifierGroup
	Station           pgtype.Text
	TargetPrepMinutes pgtype.Int4
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, createMenuItem,
		arg.RestaurantID,
		arg.Name,
		arg.Category,
		arg.Price,
		arg.IsAvailable,
		arg.Recipe,
		arg.ModifierGroups,
		arg.Station,
		arg.TargetPrepMinutes,
	)
	return scanMenuItem(row)
}

const updateMenuItem = `-- name: UpdateMenuItem :one
UPDATE menu_items SET
    name = $3,
    category = $4,
    price = $5,
    is_available = $6,
    recipe = $7,
    modifier_groups = $8,
    station = $9,
    target_prep_minutes = $10,
    updated_at = now()
WHERE id = $1 AND restaurant_id = $2
RETURNING ` + menuItemColumns

type UpdateMenuItemParams struct {
	ID                uuid.UUID
	RestaurantID      uuid.UUID
	Name              string
	Category          string
	Price             decimal.Decimal
	IsAvailable       bool
	Recipe            []RecipeLine
	ModifierGroups    []ModifierGroup
	Station           pgtype.Text
	TargetPrepMinutes pgtype.Int4
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	row := q.db.QueryRow(ctx, updateMenuItem,
		arg.ID,
		arg.RestaurantID,
		arg.Name,
		arg.Category,
		arg.Price,
		arg.IsAvailable,
		arg.Recipe,
		arg.ModifierGroups,
		arg.Station,
		arg.TargetPrepMinutes,
	)
	return scanMenuItem(row)
}

const deleteMenuItem = `-- name: DeleteMenuItem :execrows
DELETE FROM menu_items
WHERE id = $1 AND restaurant_id = $2`

func (q *Queries) DeleteMenuItem(ctx context.Context, arg GetMenuItemParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteMenuItem, arg.ID, arg.RestaurantID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
