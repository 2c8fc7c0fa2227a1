package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/karatline/storefront/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (
			id, customer_id, items, subtotal, discount, total,
			coupon_code, status, payment_ref
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	completedOrderCountSQL = `SELECT COUNT(*) FROM orders
		WHERE customer_id = $1 AND status = 'confirmed'`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a captured order. The priced lines are serialized to
// JSON for storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.CustomerID, itemsJSON,
		o.Subtotal, o.Discount, o.Total,
		o.CouponCode, o.Status, o.PaymentRef,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// CompletedOrderCount returns how many confirmed orders the customer has.
func (r *OrderRepository) CompletedOrderCount(ctx context.Context, customerID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, completedOrderCountSQL, customerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting orders for customer %q: %w", customerID, err)
	}
	return count, nil
}
