package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/butcherhub/orders/internal/domain/cart"
)

const (
	ensureCartSQL = `INSERT INTO carts (user_id) VALUES ($1)
	ON CONFLICT (user_id) DO NOTHING`

	lockCartSQL = `SELECT total, updated_at FROM carts WHERE user_id = $1 FOR UPDATE`

	selectCartSQL = `SELECT total, updated_at FROM carts WHERE user_id = $1`

	selectCartItemsSQL = `SELECT item_id, vendor_id, name, quantity, unit, price_per_unit, added_at
	FROM cart_items WHERE user_id = $1 ORDER BY added_at, item_id`

	deleteCartItemsSQL = `DELETE FROM cart_items WHERE user_id = $1`

	insertCartItemSQL = `INSERT INTO cart_items
	(user_id, item_id, vendor_id, name, quantity, unit, price_per_unit, added_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	updateCartTotalSQL = `UPDATE carts SET total = $2, updated_at = now() WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. Mutations
// lock the cart row so concurrent changes to the same user's cart serialize
// instead of losing merged quantities.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get loads the user's cart. A user with no cart record gets an empty cart.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	c := cart.New(userID)

	err := r.pool.QueryRow(ctx, selectCartSQL, userID).Scan(&c.Total, &c.UpdatedAt)
	if err == pgx.ErrNoRows {
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading cart %q: %w", userID, err)
	}

	items, err := loadCartItems(ctx, r.pool, userID)
	if err != nil {
		return nil, err
	}
	c.Items = items
	return c, nil
}

// Mutate loads the cart under a row lock, applies fn, and rewrites the item
// set and total in the same transaction.
func (r *CartRepository) Mutate(ctx context.Context, userID string, fn func(*cart.Cart) error) (*cart.Cart, error) {
	c := cart.New(userID)

	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		// Make sure a row exists to lock, then take the lock.
		if _, err := tx.Exec(ctx, ensureCartSQL, userID); err != nil {
			return fmt.Errorf("ensuring cart %q: %w", userID, err)
		}
		if err := tx.QueryRow(ctx, lockCartSQL, userID).Scan(&c.Total, &c.UpdatedAt); err != nil {
			return fmt.Errorf("locking cart %q: %w", userID, err)
		}

		items, err := loadCartItems(ctx, tx, userID)
		if err != nil {
			return err
		}
		c.Items = items

		if err := fn(c); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, deleteCartItemsSQL, userID); err != nil {
			return fmt.Errorf("clearing cart items %q: %w", userID, err)
		}
		for _, it := range c.Items {
			// Lines survive the rewrite with their original added_at so the
			// cart keeps insertion order across mutations.
			addedAt := it.AddedAt
			if addedAt.IsZero() {
				addedAt = time.Now()
			}
			_, err := tx.Exec(ctx, insertCartItemSQL,
				userID, it.ItemID, it.VendorID, it.Name, it.Quantity, it.Unit, it.PricePerUnit, addedAt,
			)
			if err != nil {
				return fmt.Errorf("inserting cart item %q: %w", it.ItemID, err)
			}
		}
		if _, err := tx.Exec(ctx, updateCartTotalSQL, userID, c.Total); err != nil {
			return fmt.Errorf("updating cart total %q: %w", userID, err)
		}
		c.UpdatedAt = time.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

// querier covers both pgxpool.Pool and pgx.Tx for shared read helpers.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadCartItems(ctx context.Context, q querier, userID string) ([]cart.Item, error) {
	rows, err := q.Query(ctx, selectCartItemsSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("loading cart items %q: %w", userID, err)
	}
	defer rows.Close()

	var items []cart.Item
	for rows.Next() {
		var it cart.Item
		if err := rows.Scan(&it.ItemID, &it.VendorID, &it.Name, &it.Quantity, &it.Unit, &it.PricePerUnit, &it.AddedAt); err != nil {
			return nil, fmt.Errorf("scanning cart item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading cart items: %w", err)
	}
	return items, nil
}
