package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const floorTableColumns = `id, restaurant_id, label, manual_status, geometry, updated_at`

func scanFloorTable(row pgx.Row) (FloorTable, error) {
	var i FloorTable
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.Label,
		&i.ManualStatus,
		&i.Geometry,
		&i.UpdatedAt,
	)
	return i, err
}

const listFloorTables = `-- name: ListFloorTables :many
SELECT ` + floorTableColumns + `
FROM floor_tables
WHERE restaurant_id = $1
ORDER BY label`

func (q *Queries) ListFloorTables(ctx context.Context, restaurantID uuid.UUID) ([]FloorTable, error) {
	rows, err := q.db.Query(ctx, listFloorTables, restaurantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []FloorTable{}
	for rows.Next() {
		i, err := scanFloorTable(rows)
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

const getFloorTableByLabelForUpdate = `-- name: GetFloorTableByLabelForUpdate :one
SELECT ` + floorTableColumns + `
FROM floor_tables
WHERE restaurant_id = $1 AND lower(btrim(label)) = lower(btrim($2))
FOR UPDATE`

type GetFloorTableByLabelParams struct {
	RestaurantID uuid.UUID
	Label        string
}

func (q *Queries) GetFloorTableByLabelForUpdate(ctx context.Context, arg GetFloorTableByLabelParams) (FloorTable, error) {
	row := q.db.QueryRow(ctx, getFloorTableByLabelForUpdate, arg.RestaurantID, arg.Label)
	return scanFloorTable(row)
}

const setFloorTableManualStatus = `-- name: SetFloorTableManualStatus :one
UPDATE floor_tables
SET manual_status = $2, updated_at = now()
WHERE id = $1
RETURNING ` + floorTableColumns

type SetFloorTableManualStatusParams struct {
	ID           uuid.UUID
	ManualStatus pgtype.Text
}

func (q *Queries) SetFloorTableManualStatus(ctx context.Context, arg SetFloorTableManualStatusParams) (FloorTable, error) {
	row := q.db.QueryRow(ctx, setFloorTableManualStatus, arg.ID, arg.ManualStatus)
	return scanFloorTable(row)
}

const createFloorTable = `-- name: CreateFloorTable :one
INSERT INTO floor_tables (restaurant_id, label, geometry)
VALUES ($1, btrim($2), $3)
RETURNING ` + floorTableColumns

type CreateFloorTableParams struct {
	RestaurantID uuid.UUID
	Label        string
	Geometry     []byte
}

func (q *Queries) CreateFloorTable(ctx context.Context, arg CreateFloorTableParams) (FloorTable, error) {
	row := q.db.QueryRow(ctx, createFloorTable, arg.RestaurantID, arg.Label, arg.Geometry)
	return scanFloorTable(row)
}

const lockTableLabel = `-- name: LockTableLabel :exec
SELECT pg_advisory_xact_lock(hashtextextended($1::text || ':' || lower(btrim($2::text)), 0))`

type LockTableLabelParams struct {
	RestaurantID uuid.UUID
	Label        string
}

// LockTableLabel takes a transaction-scoped advisory lock on a table label.
// It holds even when the label has no floor_tables row or open orders.
func (q *Queries) LockTableLabel(ctx context.Context, arg LockTableLabelParams) error {
	_, err := q.db.Exec(ctx, lockTableLabel, arg.RestaurantID.String(), arg.Label)
	return err
}
