package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/butcherhub/orders/internal/domain/auth"
	"github.com/butcherhub/orders/internal/domain/order"
)

// Origin checking is the CORS middleware's concern; the socket itself is
// gated by the bearer token.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 10,
	WriteBufferSize: 4 << 10,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// subscribeOrder upgrades the connection and registers it for order-status
// pushes. The server sends the current snapshot immediately and one snapshot
// per status change afterwards; the client sends nothing.
func (h *Handler) subscribeOrder(w http.ResponseWriter, r *http.Request) {
	p, err := auth.FromContext(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	orderNumber := chi.URLParam(r, "orderNumber")
	o, err := h.orders.Get(r.Context(), orderNumber)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if o.UserID != p.UserID && o.VendorID != p.VendorID {
		h.respondError(w, r, order.ErrUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		zctx.From(r.Context()).Warn("websocket upgrade failed",
			zap.String("order_number", orderNumber), zap.Error(err))
		return
	}

	h.hub.Register(r.Context(), orderNumber, conn, o)

	// Drain control frames until the client goes away, then drop the
	// registration in both directions.
	go func() {
		defer func() {
			h.hub.Unregister(conn)
			_ = conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
