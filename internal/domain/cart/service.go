package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Sentinel errors for cart validation.
var (
	ErrInvalidQuantity = errors.New("quantity must be greater than 0")
	ErrInvalidPrice    = errors.New("price per unit must be greater than 0")
)

// Invalidator evicts cached cart read views after a mutation.
type Invalidator interface {
	InvalidateCart(ctx context.Context, userID string)
}

// AddItemInput holds the catalog data for an item entering the cart. The
// caller resolves name and price against the catalog; the cart freezes them.
type AddItemInput struct {
	ItemID       string
	VendorID     string
	Name         string
	Quantity     decimal.Decimal
	Unit         string
	PricePerUnit decimal.Decimal
}

// Service implements the cart operations exposed over the API.
type Service struct {
	carts Repository
	cache Invalidator
}

// NewService creates a cart Service.
func NewService(carts Repository, cache Invalidator) *Service {
	return &Service{carts: carts, cache: cache}
}

// AddItem merges an item into the user's cart, enforcing the single-vendor
// rule, and returns the updated cart snapshot.
func (s *Service) AddItem(ctx context.Context, userID string, in AddItemInput) (*Cart, error) {
	if in.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidQuantity
	}
	if in.PricePerUnit.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidPrice
	}

	c, err := s.carts.Mutate(ctx, userID, func(c *Cart) error {
		return c.Add(Item{
			ItemID:       in.ItemID,
			VendorID:     in.VendorID,
			Name:         in.Name,
			Quantity:     in.Quantity,
			Unit:         in.Unit,
			PricePerUnit: in.PricePerUnit,
		})
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, userID)
	return c, nil
}

// UpdateQuantity sets the absolute quantity of a cart line. A quantity of
// zero or below removes the line.
func (s *Service) UpdateQuantity(ctx context.Context, userID, itemID string, qty decimal.Decimal) (*Cart, error) {
	c, err := s.carts.Mutate(ctx, userID, func(c *Cart) error {
		c.SetQuantity(itemID, qty)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, userID)
	return c, nil
}

// RemoveItem deletes a line from the user's cart.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID string) (*Cart, error) {
	c, err := s.carts.Mutate(ctx, userID, func(c *Cart) error {
		c.Remove(itemID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, userID)
	return c, nil
}

// Get returns the user's cart. Users without a cart get an empty,
// zero-total cart, never an error.
func (s *Service) Get(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	return c, nil
}

// Clear empties the user's cart. Clearing an already empty cart succeeds.
func (s *Service) Clear(ctx context.Context, userID string) (*Cart, error) {
	c, err := s.carts.Mutate(ctx, userID, func(c *Cart) error {
		c.Clear()
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx, userID)
	return c, nil
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if s.cache != nil {
		s.cache.InvalidateCart(ctx, userID)
	}
}
