package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, lead_id, code, items, total, method, delivery_address, status, paid, created_at, updated_at`

// NextOrderNumber atomically reserves the next sequence value for a year.
// The upsert keeps concurrent reservations from ever returning the same
// number.
func (r *PostgresRepository) NextOrderNumber(ctx context.Context, year int) (int64, error) {
	const q = `
INSERT INTO order_counters (year, value)
VALUES ($1, 1)
ON CONFLICT (year) DO UPDATE
SET value = order_counters.value + 1
RETURNING value;`
	var value int64
	if err := r.pool.QueryRow(ctx, q, year).Scan(&value); err != nil {
		return 0, fmt.Errorf("next order number: %w", err)
	}
	return value, nil
}

// InsertOrder persists a new order and returns the stored row.
func (r *PostgresRepository) InsertOrder(ctx context.Context, order Order) (*Order, error) {
	items, err := itemsToJSON(order.Items)
	if err != nil {
		return nil, err
	}
	const q = `
INSERT INTO orders (lead_id, code, items, total, method, delivery_address, status, paid)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING ` + orderColumns + `;`
	row := r.pool.QueryRow(ctx, q,
		order.LeadID, order.Code, items, order.Total, order.Method, order.DeliveryAddress, order.Status, order.Paid)
	stored, err := scanOrder(row)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	return stored, nil
}

// GetOrderByCode returns an order by its public reference code.
func (r *PostgresRepository) GetOrderByCode(ctx context.Context, code string) (*Order, error) {
	const q = `SELECT ` + orderColumns + ` FROM orders WHERE code = $1 LIMIT 1;`
	order, err := scanOrder(r.pool.QueryRow(ctx, q, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get order by code: %w", err)
	}
	return order, nil
}

// MarkOrderPaid settles an order by its public reference code.
func (r *PostgresRepository) MarkOrderPaid(ctx context.Context, code string) error {
	const q = `
UPDATE orders
SET paid = TRUE,
    status = $2,
    updated_at = NOW()
WHERE code = $1;`
	ct, err := r.pool.Exec(ctx, q, code, PaymentStatePaid)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var order Order
	var items []byte
	if err := row.Scan(
		&order.ID, &order.LeadID, &order.Code, &items, &order.Total, &order.Method,
		&order.DeliveryAddress, &order.Status, &order.Paid, &order.CreatedAt, &order.UpdatedAt,
	); err != nil {
		return nil, err
	}
	order.Items = itemsFromJSON(items)
	return &order, nil
}
