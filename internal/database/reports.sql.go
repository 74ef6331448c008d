package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const getDailySales = `-- name: GetDailySales :many
SELECT
    date_trunc('day', completed_at)::date AS sale_date,
    count(*)::bigint AS order_count,
    coalesce(sum(subtotal), 0)::numeric AS subtotal,
    coalesce(sum(tax_amount), 0)::numeric AS tax_amount,
    coalesce(sum(discount_amount), 0)::numeric AS discount_amount,
    coalesce(sum(tip), 0)::numeric AS tip,
    coalesce(sum(total), 0)::numeric AS total
FROM orders
WHERE restaurant_id = $1
  AND status = 'COMPLETED'
  AND completed_at >= $2
  AND completed_at < $3
GROUP BY sale_date
ORDER BY sale_date`

type GetDailySalesParams struct {
	RestaurantID uuid.UUID
	StartDate    time.Time
	EndDate      time.Time
}

type GetDailySalesRow struct {
	SaleDate       time.Time       `json:"sale_date"`
	OrderCount     int64           `json:"order_count"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	Tip            decimal.Decimal `json:"tip"`
	Total          decimal.Decimal `json:"total"`
}

func (q *Queries) GetDailySales(ctx context.Context, arg GetDailySalesParams) ([]GetDailySalesRow, error) {
	rows, err := q.db.Query(ctx, getDailySales, arg.RestaurantID, arg.StartDate, arg.EndDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []GetDailySalesRow{}
	for rows.Next() {
		var i GetDailySalesRow
		if err := rows.Scan(
			&i.SaleDate,
			&i.OrderCount,
			&i.Subtotal,
			&i.TaxAmount,
			&i.DiscountAmount,
			&i.Tip,
			&i.Total,
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
