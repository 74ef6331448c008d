package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const userColumns = `id, restaurant_id, email, hashed_password, full_name, role, pin, is_active, created_at`

func scanUser(row pgx.Row) (User, error) {
	var i User
	err := row.Scan(
		&i.ID,
		&i.RestaurantID,
		&i.Email,
		&i.HashedPassword,
		&i.FullName,
		&i.Role,
		&i.Pin,
		&i.IsActive,
		&i.CreatedAt,
	)
	return i, err
}

const getUserByEmail = `-- name: GetUserByEmail :one
SELECT ` + userColumns + `
FROM users
WHERE email = $1 AND is_active = true`

func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.db.QueryRow(ctx, getUserByEmail, email)
	return scanUser(row)
}

const getUserByRestaurantAndPin = `-- name: GetUserByRestaurantAndPin :one
SELECT ` + userColumns + `
FROM users
WHERE restaurant_id = $1 AND pin = $2 AND is_active = true`

type GetUserByRestaurantAndPinParams struct {
	RestaurantID uuid.UUID
	Pin          pgtype.Text
}

func (q *Queries) GetUserByRestaurantAndPin(ctx context.Context, arg GetUserByRestaurantAndPinParams) (User, error) {
	row := q.db.QueryRow(ctx, getUserByRestaurantAndPin, arg.RestaurantID, arg.Pin)
	return scanUser(row)
}

const getUserByID = `-- name: GetUserByID :one
SELECT ` + userColumns + `
FROM users
WHERE id = $1 AND is_active = true`

func (q *Queries) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := q.db.QueryRow(ctx, getUserByID, id)
	return scanUser(row)
}

const createUser = `-- name: CreateUser :one
INSERT INTO users (restaurant_id, email, hashed_password, full_name, role, pin)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + userColumns

type CreateUserParams struct {
	RestaurantID   uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Role           string
	Pin            pgtype.Text
}

func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.db.QueryRow(ctx, createUser,
		arg.RestaurantID,
		arg.Email,
		arg.HashedPassword,
		arg.FullName,
		arg.Role,
		arg.Pin,
	)
	return scanUser(row)
}
