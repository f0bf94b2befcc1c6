// Package hub tracks live order-status subscriptions and pushes fresh order
// snapshots on every state change. Delivery is fire-and-forget: there is no
// queue or retry, and a reconnecting client receives the latest snapshot
// immediately on registration.
package hub

import (
	"context"
	"sync"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/butcherhub/orders/internal/domain/order"
)

// Conn is a live client connection able to receive JSON snapshots.
// *websocket.Conn satisfies it.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

var _ order.Notifier = (*Hub)(nil)

// subscriber pairs a connection with its write lock. gorilla/websocket
// allows only one concurrent writer per connection, so every WriteJSON goes
// through wmu.
type subscriber struct {
	conn Conn
	wmu  sync.Mutex
}

// Hub maintains the bidirectional mapping between connections and order
// numbers. Exactly one connection is tracked per order number; registering a
// second one displaces (and closes) the first.
type Hub struct {
	mu      sync.Mutex
	byOrder map[string]*subscriber
	byConn  map[Conn]string
}

// New creates an empty Hub.
func New() *Hub {
	return &Hub{
		byOrder: make(map[string]*subscriber),
		byConn:  make(map[Conn]string),
	}
}

// Register subscribes conn to the given order and immediately pushes the
// current snapshot. A previously registered connection for the same order is
// closed and replaced.
func (h *Hub) Register(ctx context.Context, orderNumber string, conn Conn, snapshot *order.Order) {
	sub := &subscriber{conn: conn}

	h.mu.Lock()
	if old, ok := h.byOrder[orderNumber]; ok {
		if old.conn == conn {
			// Re-registering the same connection keeps its write lock.
			sub = old
		} else {
			delete(h.byConn, old.conn)
			_ = old.conn.Close()
		}
	}
	h.byOrder[orderNumber] = sub
	h.byConn[conn] = orderNumber
	h.mu.Unlock()

	if snapshot != nil {
		h.push(ctx, orderNumber, sub, snapshot)
	}
}

// Unregister removes both directions of the connection's mapping. It is safe
// to call for connections that were already displaced or never registered.
func (h *Hub) Unregister(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	orderNumber, ok := h.byConn[conn]
	if !ok {
		return
	}
	delete(h.byConn, conn)
	if sub, ok := h.byOrder[orderNumber]; ok && sub.conn == conn {
		delete(h.byOrder, orderNumber)
	}
}

// OrderUpdated pushes a fresh snapshot to the order's subscriber, if any.
// No subscriber is a silent no-op.
func (h *Hub) OrderUpdated(ctx context.Context, o *order.Order) {
	h.mu.Lock()
	sub, ok := h.byOrder[o.OrderNumber]
	h.mu.Unlock()
	if !ok {
		return
	}

	h.push(ctx, o.OrderNumber, sub, o)
}

// push writes a snapshot to one connection, holding the connection's write
// lock for the duration of the write. A write failure is logged and the dead
// connection dropped; it never propagates to the state change that triggered
// the push.
func (h *Hub) push(ctx context.Context, orderNumber string, sub *subscriber, o *order.Order) {
	sub.wmu.Lock()
	err := sub.conn.WriteJSON(o)
	sub.wmu.Unlock()

	if err != nil {
		zctx.From(ctx).Warn("order snapshot push failed",
			zap.String("order_number", orderNumber),
			zap.Error(err),
		)
		h.Unregister(sub.conn)
		_ = sub.conn.Close()
	}
}
