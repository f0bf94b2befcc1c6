// Package cache provides redis-backed read views for carts and orders.
// Invalidation is coarse: every mutation evicts the whole relevant region
// rather than picking keys, because read volume right after a mutation is
// low and staleness tolerance is zero.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/butcherhub/orders/internal/domain/cart"
	"github.com/butcherhub/orders/internal/domain/order"
)

// ErrMiss indicates the key is not cached.
var ErrMiss = errors.New("cache miss")

const ordersRegion = "orders:"

// Redis caches cart and order read views. A nil *Redis is a valid no-op
// cache, so call sites never need nil checks of their own.
type Redis struct {
	client  *redis.Client
	baseTTL time.Duration
}

// New creates a cache over the given redis client.
func New(client *redis.Client) *Redis {
	return &Redis{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

func cartKey(userID string) string     { return "cart:" + userID }
func userKey(userID string) string     { return ordersRegion + "user:" + userID }
func vendorKey(vendorID string) string { return ordersRegion + "vendor:" + vendorID }

// GetCart returns the cached cart view for the user, or ErrMiss.
func (r *Redis) GetCart(ctx context.Context, userID string) (*cart.Cart, error) {
	if r == nil {
		return nil, ErrMiss
	}
	var c cart.Cart
	if err := r.get(ctx, cartKey(userID), &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// SetCart stores the cart view. Failures are logged, not returned: a cold
// cache is not an error.
func (r *Redis) SetCart(ctx context.Context, userID string, c *cart.Cart) {
	if r == nil {
		return
	}
	r.set(ctx, cartKey(userID), c)
}

// InvalidateCart evicts the user's cart view. The cart region is keyed per
// user, so this is the full scope of views the mutation can have staled.
func (r *Redis) InvalidateCart(ctx context.Context, userID string) {
	if r == nil {
		return
	}
	if err := r.client.Del(ctx, cartKey(userID)).Err(); err != nil {
		zctx.From(ctx).Warn("cart cache eviction failed",
			zap.String("user_id", userID), zap.Error(err))
	}
}

// GetUserOrders returns the cached order list for a customer, or ErrMiss.
func (r *Redis) GetUserOrders(ctx context.Context, userID string) ([]order.Order, error) {
	if r == nil {
		return nil, ErrMiss
	}
	var list []order.Order
	if err := r.get(ctx, userKey(userID), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SetUserOrders stores a customer's order list.
func (r *Redis) SetUserOrders(ctx context.Context, userID string, list []order.Order) {
	if r == nil {
		return
	}
	r.set(ctx, userKey(userID), list)
}

// GetVendorOrders returns the cached order list for a vendor, or ErrMiss.
func (r *Redis) GetVendorOrders(ctx context.Context, vendorID string) ([]order.Order, error) {
	if r == nil {
		return nil, ErrMiss
	}
	var list []order.Order
	if err := r.get(ctx, vendorKey(vendorID), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SetVendorOrders stores a vendor's order list.
func (r *Redis) SetVendorOrders(ctx context.Context, vendorID string, list []order.Order) {
	if r == nil {
		return
	}
	r.set(ctx, vendorKey(vendorID), list)
}

// InvalidateOrders evicts every cached order view. Any order mutation can
// stale both the customer's and the vendor's lists, so the whole region goes.
func (r *Redis) InvalidateOrders(ctx context.Context) {
	if r == nil {
		return
	}

	iter := r.client.Scan(ctx, 0, ordersRegion+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		zctx.From(ctx).Warn("orders cache scan failed", zap.Error(err))
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		zctx.From(ctx).Warn("orders cache eviction failed",
			zap.Int("keys", len(keys)), zap.Error(err))
	}
}

func (r *Redis) get(ctx context.Context, key string, dest any) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal cached %s: %w", key, err)
	}
	return nil
}

func (r *Redis) set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		zctx.From(ctx).Warn("cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}

	// Jitter spreads expirations so hot keys do not refill in lockstep.
	ttl := r.baseTTL + time.Duration(rand.Intn(5))*time.Minute
	if err := r.client.Set(ctx, key, data, ttl).Err(); err != nil {
		zctx.From(ctx).Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}
