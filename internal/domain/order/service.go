package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/butcherhub/orders/internal/domain/cart"
)

// Sentinel errors for order operations.
var (
	// ErrEmptyCart indicates the cart holds nothing for the requested vendor.
	ErrEmptyCart = errors.New("cart has no items for this vendor")

	// ErrMultiVendorCart indicates the cart violates the single-vendor rule.
	// The cart aggregate prevents this; the placer re-checks anyway.
	ErrMultiVendorCart = errors.New("cart contains items from multiple vendors")

	// ErrUnauthorized indicates the acting principal does not own the order.
	ErrUnauthorized = errors.New("order does not belong to the acting principal")

	// ErrInvalidOrderStatus indicates the order can no longer be cancelled.
	ErrInvalidOrderStatus = errors.New("order status does not allow cancellation")
)

// Notifier pushes a fresh snapshot to any live subscriber of the order.
// Implementations must swallow delivery failures; a dead socket never
// affects the state change that triggered the push.
type Notifier interface {
	OrderUpdated(ctx context.Context, o *Order)
}

// Invalidator evicts cached read views after a mutation.
type Invalidator interface {
	InvalidateOrders(ctx context.Context)
	InvalidateCart(ctx context.Context, userID string)
}

// PlaceOrderRequest holds the input for converting a cart into an order.
type PlaceOrderRequest struct {
	UserID          string
	VendorID        string
	DeliveryAddress string
	DeliveryPhone   string
	Notes           string
}

// Service encapsulates order placement, fulfilment transitions, and
// cancellation.
type Service struct {
	orders   Repository
	carts    cart.Repository
	notifier Notifier
	cache    Invalidator
	now      func() time.Time
}

// NewService creates an order Service with the required dependencies.
// notifier and cache may be nil in tests.
func NewService(orders Repository, carts cart.Repository, notifier Notifier, cache Invalidator) *Service {
	return &Service{
		orders:   orders,
		carts:    carts,
		notifier: notifier,
		cache:    cache,
		now:      time.Now,
	}
}

// orderNumber derives the order identity from the creation time at second
// granularity. Two orders placed within the same second collide; the unique
// constraint on the column surfaces that as a placement error.
func orderNumber(t time.Time) string {
	return "ORD" + t.UTC().Format("20060102150405")
}

// PlaceOrder atomically converts the vendor's share of the user's cart into
// a persisted order. The consumed lines leave the cart in the same
// transaction; item prices are frozen at their cart values.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*Order, error) {
	c, err := s.carts.Get(ctx, req.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if c.IsEmpty() {
		return nil, ErrEmptyCart
	}

	// The cart aggregate enforces one vendor per cart. Re-verify before
	// money changes hands.
	for _, it := range c.Items {
		if it.VendorID != c.Items[0].VendorID {
			return nil, ErrMultiVendorCart
		}
	}

	selected := c.ItemsForVendor(req.VendorID)
	if len(selected) == 0 {
		return nil, ErrEmptyCart
	}

	now := s.now()
	o := &Order{
		OrderNumber:     orderNumber(now),
		UserID:          req.UserID,
		VendorID:        req.VendorID,
		Status:          StatusPending,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryPhone:   req.DeliveryPhone,
		Notes:           req.Notes,
		CreatedAt:       now,
	}

	total := decimal.Zero
	for _, ci := range selected {
		item := Item{
			ItemID:       ci.ItemID,
			Name:         ci.Name,
			Quantity:     ci.Quantity,
			Unit:         ci.Unit,
			PricePerUnit: ci.PricePerUnit,
			Subtotal:     ci.Subtotal(),
		}
		o.Items = append(o.Items, item)
		total = total.Add(item.Subtotal)
	}
	o.TotalAmount = total

	if err := s.orders.CreateAndDrainCart(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	s.invalidate(ctx, req.UserID)
	s.notify(ctx, o)
	return o, nil
}

// UpdateStatus applies a fulfilment transition requested by the vendor that
// owns the order. The transition table in status.go decides what is allowed.
func (s *Service) UpdateStatus(ctx context.Context, orderNumber string, requested Status, actingVendorID string) (*Order, error) {
	o, err := s.orders.Get(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if o.VendorID != actingVendorID {
		return nil, ErrUnauthorized
	}
	if !o.Status.CanTransitionTo(requested) {
		return nil, &InvalidTransitionError{From: o.Status, To: requested}
	}

	now := s.now()
	o.Status = requested
	switch requested {
	case StatusConfirmed:
		o.ConfirmedAt = &now
	case StatusDelivered:
		o.DeliveredAt = &now
	}

	if err := s.orders.UpdateStatus(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update status")
	}

	s.invalidate(ctx, o.UserID)
	s.notify(ctx, o)
	return o, nil
}

// Cancel terminates an order on behalf of the customer who placed it.
// Cancellation is only possible while the order is PENDING or CONFIRMED.
func (s *Service) Cancel(ctx context.Context, orderNumber, actingUserID, reason string) (*Order, error) {
	o, err := s.orders.Get(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if o.UserID != actingUserID {
		return nil, ErrUnauthorized
	}
	if !o.Status.CanCancel() {
		return nil, ErrInvalidOrderStatus
	}

	now := s.now()
	o.Status = StatusCancelled
	o.CancelledAt = &now
	o.CancellationReason = reason

	if err := s.orders.UpdateStatus(ctx, o); err != nil {
		return nil, errors.Wrap(err, "cancel order")
	}

	s.invalidate(ctx, o.UserID)
	s.notify(ctx, o)
	return o, nil
}

// ConfirmPayment moves an order to CONFIRMED after a verified payment.
// The call is idempotent: confirming an order that already advanced past
// PENDING is a no-op, so a payment provider resending the same confirmation
// never double-applies. Confirming a cancelled order fails.
func (s *Service) ConfirmPayment(ctx context.Context, orderNumber string) (*Order, error) {
	o, err := s.orders.Get(ctx, orderNumber)
	if err != nil {
		return nil, err
	}

	switch {
	case o.Status == StatusCancelled:
		return nil, ErrInvalidOrderStatus
	case o.Status != StatusPending:
		// Already confirmed (or further along). Nothing to apply.
		return o, nil
	}

	now := s.now()
	o.Status = StatusConfirmed
	o.ConfirmedAt = &now

	if err := s.orders.UpdateStatus(ctx, o); err != nil {
		return nil, errors.Wrap(err, "confirm order")
	}

	s.invalidate(ctx, o.UserID)
	s.notify(ctx, o)
	return o, nil
}

// Get returns a single order snapshot.
func (s *Service) Get(ctx context.Context, orderNumber string) (*Order, error) {
	return s.orders.Get(ctx, orderNumber)
}

// ListByUser returns the customer's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

// ListByVendor returns the vendor's orders, newest first.
func (s *Service) ListByVendor(ctx context.Context, vendorID string) ([]Order, error) {
	return s.orders.ListByVendor(ctx, vendorID)
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if s.cache != nil {
		s.cache.InvalidateOrders(ctx)
		s.cache.InvalidateCart(ctx, userID)
	}
}

func (s *Service) notify(ctx context.Context, o *Order) {
	if s.notifier != nil {
		s.notifier.OrderUpdated(ctx, o)
	}
}
