// Package order implements the order aggregate and its fulfilment
// lifecycle: placement from a cart, the butcher state machine, and
// customer cancellation.
package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates no order exists with the requested number.
var ErrNotFound = errors.New("order not found")

// Item is a frozen line of an order. PricePerUnit and Subtotal are
// snapshots taken at placement time; later catalog changes never affect
// them. Items have no lifecycle of their own.
type Item struct {
	ItemID       string          `json:"item_id"`
	Name         string          `json:"name"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	Subtotal     decimal.Decimal `json:"subtotal"`
}

// Order is an immutable-identity record tracked through the fulfilment
// state machine. Only Status, the lifecycle timestamps, and the
// cancellation reason change after creation. Orders are never deleted.
type Order struct {
	OrderNumber        string          `json:"order_number"`
	UserID             string          `json:"user_id"`
	VendorID           string          `json:"vendor_id"`
	Status             Status          `json:"status"`
	Items              []Item          `json:"items"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	DeliveryAddress    string          `json:"delivery_address"`
	DeliveryPhone      string          `json:"delivery_phone"`
	Notes              string          `json:"notes,omitempty"`
	CancellationReason string          `json:"cancellation_reason,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	ConfirmedAt        *time.Time      `json:"confirmed_at,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	DeliveredAt        *time.Time      `json:"delivered_at,omitempty"`
}

// Repository defines persistence operations for orders.
type Repository interface {
	// CreateAndDrainCart inserts the order with its items and removes the
	// consumed lines (those of the order's vendor) from the user's cart,
	// recomputing the remaining cart total, all in one transaction. Either
	// the order exists and the cart is drained, or neither happened.
	CreateAndDrainCart(ctx context.Context, o *Order) error

	// Get returns the order with the given number, or ErrNotFound.
	Get(ctx context.Context, orderNumber string) (*Order, error)

	// UpdateStatus persists the order's status, lifecycle timestamps, and
	// cancellation reason.
	UpdateStatus(ctx context.Context, o *Order) error

	ListByUser(ctx context.Context, userID string) ([]Order, error)
	ListByVendor(ctx context.Context, vendorID string) ([]Order, error)
}
