package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/butcherhub/orders/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders
	(order_number, user_id, vendor_id, status, total_amount,
	 delivery_address, delivery_phone, notes, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	insertOrderItemSQL = `INSERT INTO order_items
	(order_number, position, item_id, name, quantity, unit, price_per_unit, subtotal)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	drainCartItemsSQL = `DELETE FROM cart_items WHERE user_id = $1 AND vendor_id = $2`

	recomputeCartTotalSQL = `UPDATE carts SET total = COALESCE(
	(SELECT SUM(ROUND(quantity * price_per_unit, 2)) FROM cart_items WHERE user_id = $1), 0),
	updated_at = now()
	WHERE user_id = $1`

	selectOrderSQL = `SELECT order_number, user_id, vendor_id, status, total_amount,
	delivery_address, delivery_phone, notes, cancellation_reason,
	created_at, confirmed_at, cancelled_at, delivered_at
	FROM orders WHERE order_number = $1`

	selectOrdersByUserSQL = `SELECT order_number, user_id, vendor_id, status, total_amount,
	delivery_address, delivery_phone, notes, cancellation_reason,
	created_at, confirmed_at, cancelled_at, delivered_at
	FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	selectOrdersByVendorSQL = `SELECT order_number, user_id, vendor_id, status, total_amount,
	delivery_address, delivery_phone, notes, cancellation_reason,
	created_at, confirmed_at, cancelled_at, delivered_at
	FROM orders WHERE vendor_id = $1 ORDER BY created_at DESC`

	selectOrderItemsSQL = `SELECT item_id, name, quantity, unit, price_per_unit, subtotal
	FROM order_items WHERE order_number = $1 ORDER BY position`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, cancellation_reason = $3,
	confirmed_at = $4, cancelled_at = $5, delivered_at = $6
	WHERE order_number = $1`
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

// CreateAndDrainCart inserts the order with its items and removes the
// consumed vendor's lines from the user's cart in one transaction. The cart
// row is locked first so a concurrent cart mutation cannot interleave.
func (r *OrderRepository) CreateAndDrainCart(ctx context.Context, o *order.Order) error {
	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		// Serialize against concurrent cart mutations for this user.
		if _, err := tx.Exec(ctx, lockCartSQL, o.UserID); err != nil {
			return fmt.Errorf("locking cart %q: %w", o.UserID, err)
		}

		_, err := tx.Exec(ctx, insertOrderSQL,
			o.OrderNumber, o.UserID, o.VendorID, string(o.Status), o.TotalAmount,
			o.DeliveryAddress, o.DeliveryPhone, o.Notes, o.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("creating order %q: %w", o.OrderNumber, err)
		}

		for i, it := range o.Items {
			_, err := tx.Exec(ctx, insertOrderItemSQL,
				o.OrderNumber, i, it.ItemID, it.Name, it.Quantity, it.Unit, it.PricePerUnit, it.Subtotal,
			)
			if err != nil {
				return fmt.Errorf("creating order item %q: %w", it.ItemID, err)
			}
		}

		if _, err := tx.Exec(ctx, drainCartItemsSQL, o.UserID, o.VendorID); err != nil {
			return fmt.Errorf("draining cart %q: %w", o.UserID, err)
		}
		if _, err := tx.Exec(ctx, recomputeCartTotalSQL, o.UserID); err != nil {
			return fmt.Errorf("recomputing cart total %q: %w", o.UserID, err)
		}
		return nil
	})
}

// Get returns the order with the given number, or order.ErrNotFound.
func (r *OrderRepository) Get(ctx context.Context, orderNumber string) (*order.Order, error) {
	row := r.pool.QueryRow(ctx, selectOrderSQL, orderNumber)
	o, err := scanOrder(row)
	if err == pgx.ErrNoRows {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading order %q: %w", orderNumber, err)
	}

	items, err := r.loadItems(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

// UpdateStatus persists the mutable part of an order: status, lifecycle
// timestamps, and cancellation reason.
func (r *OrderRepository) UpdateStatus(ctx context.Context, o *order.Order) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL,
		o.OrderNumber, string(o.Status), o.CancellationReason,
		o.ConfirmedAt, o.CancelledAt, o.DeliveredAt,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.OrderNumber, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// ListByUser returns the customer's orders, newest first, items included.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	return r.list(ctx, selectOrdersByUserSQL, userID)
}

// ListByVendor returns the vendor's orders, newest first, items included.
func (r *OrderRepository) ListByVendor(ctx context.Context, vendorID string) ([]order.Order, error) {
	return r.list(ctx, selectOrdersByVendorSQL, vendorID)
}

func (r *OrderRepository) list(ctx context.Context, query, arg string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading orders: %w", err)
	}

	for i := range out {
		items, err := r.loadItems(ctx, out[i].OrderNumber)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderNumber string) ([]order.Item, error) {
	rows, err := r.pool.Query(ctx, selectOrderItemsSQL, orderNumber)
	if err != nil {
		return nil, fmt.Errorf("loading order items %q: %w", orderNumber, err)
	}
	defer rows.Close()

	var items []order.Item
	for rows.Next() {
		var it order.Item
		if err := rows.Scan(&it.ItemID, &it.Name, &it.Quantity, &it.Unit, &it.PricePerUnit, &it.Subtotal); err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading order items: %w", err)
	}
	return items, nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var o order.Order
	var status string
	err := row.Scan(
		&o.OrderNumber, &o.UserID, &o.VendorID, &status, &o.TotalAmount,
		&o.DeliveryAddress, &o.DeliveryPhone, &o.Notes, &o.CancellationReason,
		&o.CreatedAt, &o.ConfirmedAt, &o.CancelledAt, &o.DeliveredAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = order.Status(status)
	return &o, nil
}
