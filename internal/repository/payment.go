package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/butcherhub/orders/internal/domain/payment"
)

const (
	insertPaymentSQL = `INSERT INTO payments
	(id, order_number, subscription_id, amount, currency, provider_order_ref, status, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	selectPaymentByRefSQL = `SELECT id, order_number, subscription_id, amount, currency,
	provider_order_ref, status, created_at, confirmed_at
	FROM payments WHERE provider_order_ref = $1`

	confirmPaymentSQL = `UPDATE payments SET status = $2, confirmed_at = $3
	WHERE id = $1 AND status <> $2`

	selectPaymentStatusSQL = `SELECT status FROM payments WHERE id = $1`
)

var _ payment.Repository = (*PaymentRepository)(nil)

// PaymentRepository implements payment.Repository backed by PostgreSQL.
type PaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository returns a PaymentRepository that uses the given pool.
func NewPaymentRepository(pool *pgxpool.Pool) *PaymentRepository {
	return &PaymentRepository{pool: pool}
}

// Create persists a new payment intent.
func (r *PaymentRepository) Create(ctx context.Context, in *payment.Intent) error {
	_, err := r.pool.Exec(ctx, insertPaymentSQL,
		in.ID, in.OrderNumber, in.SubscriptionID, in.Amount, in.Currency,
		in.ProviderOrderRef, in.Status, in.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating payment %q: %w", in.ID, err)
	}
	return nil
}

// GetByProviderRef returns the intent holding the given provider order
// reference, or payment.ErrNotFound.
func (r *PaymentRepository) GetByProviderRef(ctx context.Context, providerOrderRef string) (*payment.Intent, error) {
	var in payment.Intent
	err := r.pool.QueryRow(ctx, selectPaymentByRefSQL, providerOrderRef).Scan(
		&in.ID, &in.OrderNumber, &in.SubscriptionID, &in.Amount, &in.Currency,
		&in.ProviderOrderRef, &in.Status, &in.CreatedAt, &in.ConfirmedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, payment.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading payment by ref %q: %w", providerOrderRef, err)
	}
	return &in, nil
}

// Confirm transitions the intent to confirmed exactly once. A second call
// for the same intent changes nothing and reports alreadyConfirmed.
func (r *PaymentRepository) Confirm(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, confirmPaymentSQL, id, payment.StatusConfirmed, at)
	if err != nil {
		return false, fmt.Errorf("confirming payment %q: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return false, nil
	}

	// No row moved: either the intent is already confirmed or it is gone.
	var status string
	err = r.pool.QueryRow(ctx, selectPaymentStatusSQL, id).Scan(&status)
	if err == pgx.ErrNoRows {
		return false, payment.ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("checking payment %q: %w", id, err)
	}
	return status == payment.StatusConfirmed, nil
}
