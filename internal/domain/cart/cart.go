// Package cart implements the in-progress selection a customer builds
// before placing an order. A cart holds items from a single vendor only.
package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// VendorMismatchError indicates an attempt to add an item from a different
// vendor than the one already present in the cart.
type VendorMismatchError struct {
	CartVendorID      string
	RequestedVendorID string
}

func (e *VendorMismatchError) Error() string {
	return fmt.Sprintf("cart already holds items from vendor %s, cannot add items from vendor %s",
		e.CartVendorID, e.RequestedVendorID)
}

// Item is a vendor-scoped line in a cart. PricePerUnit is captured at add
// time; catalog price changes do not touch items already in a cart.
type Item struct {
	ItemID       string          `json:"item_id"`
	VendorID     string          `json:"vendor_id"`
	Name         string          `json:"name"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	AddedAt      time.Time       `json:"added_at"`
}

// Subtotal returns quantity × price per unit.
func (i Item) Subtotal() decimal.Decimal {
	return i.PricePerUnit.Mul(i.Quantity).Round(2)
}

// Cart is a user's pending selection. The zero-item cart is valid and is
// what Get returns for users who never added anything.
type Cart struct {
	UserID    string          `json:"user_id"`
	Items     []Item          `json:"items"`
	Total     decimal.Decimal `json:"total"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// New returns an empty cart for the given user.
func New(userID string) *Cart {
	return &Cart{
		UserID: userID,
		Total:  decimal.Zero,
	}
}

// VendorID returns the vendor id all items share, or "" for an empty cart.
func (c *Cart) VendorID() string {
	if len(c.Items) == 0 {
		return ""
	}
	return c.Items[0].VendorID
}

// IsEmpty reports whether the cart has no items.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Add merges the item into the cart. Adding an item that is already present
// sums the quantities instead of duplicating the line. Adding an item from a
// vendor other than the cart's current vendor fails with VendorMismatchError
// and leaves the cart untouched.
func (c *Cart) Add(item Item) error {
	if v := c.VendorID(); v != "" && v != item.VendorID {
		return &VendorMismatchError{CartVendorID: v, RequestedVendorID: item.VendorID}
	}

	for i := range c.Items {
		if c.Items[i].ItemID == item.ItemID {
			c.Items[i].Quantity = c.Items[i].Quantity.Add(item.Quantity)
			c.recompute()
			return nil
		}
	}

	c.Items = append(c.Items, item)
	c.recompute()
	return nil
}

// SetQuantity replaces the quantity of the given line. A quantity of zero or
// below removes the line. Setting a quantity for an item not in the cart is
// a no-op.
func (c *Cart) SetQuantity(itemID string, qty decimal.Decimal) {
	if qty.LessThanOrEqual(decimal.Zero) {
		c.Remove(itemID)
		return
	}
	for i := range c.Items {
		if c.Items[i].ItemID == itemID {
			c.Items[i].Quantity = qty
			break
		}
	}
	c.recompute()
}

// Remove deletes the line with the given item id, if present.
func (c *Cart) Remove(itemID string) {
	for i := range c.Items {
		if c.Items[i].ItemID == itemID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			break
		}
	}
	c.recompute()
}

// Clear empties the cart. The cart record itself survives.
func (c *Cart) Clear() {
	c.Items = nil
	c.recompute()
}

// ItemsForVendor returns the lines belonging to the given vendor.
func (c *Cart) ItemsForVendor(vendorID string) []Item {
	var out []Item
	for _, it := range c.Items {
		if it.VendorID == vendorID {
			out = append(out, it)
		}
	}
	return out
}

// DrainVendor removes every line belonging to the given vendor and
// recomputes the remaining total.
func (c *Cart) DrainVendor(vendorID string) {
	kept := c.Items[:0]
	for _, it := range c.Items {
		if it.VendorID != vendorID {
			kept = append(kept, it)
		}
	}
	c.Items = kept
	c.recompute()
}

func (c *Cart) recompute() {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.Subtotal())
	}
	c.Total = total
}

// Repository defines persistence operations for carts.
//
// Mutate loads the user's cart under a row-level lock, applies fn, and
// persists the result in the same transaction. Two concurrent mutations of
// the same user's cart are serialized; carts of different users are fully
// independent. When fn returns an error nothing is persisted and the error
// is returned unchanged.
type Repository interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Mutate(ctx context.Context, userID string, fn func(*Cart) error) (*Cart, error)
}
