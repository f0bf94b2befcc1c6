// Package handler exposes the order core over REST and WebSocket.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/butcherhub/orders/internal/cache"
	"github.com/butcherhub/orders/internal/domain/auth"
	"github.com/butcherhub/orders/internal/domain/cart"
	"github.com/butcherhub/orders/internal/domain/order"
	"github.com/butcherhub/orders/internal/domain/payment"
	"github.com/butcherhub/orders/internal/hub"
)

// Handler wires the domain services to the HTTP surface.
type Handler struct {
	carts     *cart.Service
	orders    *order.Service
	payments  *payment.Gateway
	hub       *hub.Hub
	cache     *cache.Redis
	jwtSecret []byte
}

// NewHandler constructs a Handler with the required dependencies.
func NewHandler(
	carts *cart.Service,
	orders *order.Service,
	payments *payment.Gateway,
	h *hub.Hub,
	c *cache.Redis,
	jwtSecret []byte,
) *Handler {
	return &Handler{
		carts:     carts,
		orders:    orders,
		payments:  payments,
		hub:       h,
		cache:     c,
		jwtSecret: jwtSecret,
	}
}

// Routes mounts the REST and WebSocket surface on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Route("/api", func(r chi.Router) {
		r.Use(h.authenticate)

		r.Route("/cart", func(r chi.Router) {
			r.Post("/add", h.addCartItem)
			r.Get("/", h.getCart)
			r.Delete("/", h.clearCart)
			r.Put("/item/{itemID}", h.updateCartItem)
			r.Delete("/item/{itemID}", h.removeCartItem)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/place", h.placeOrder)
			r.Get("/my", h.listMyOrders)
			r.Get("/{orderNumber}", h.getOrder)
			r.Put("/{orderNumber}/cancel", h.cancelOrder)
		})

		r.Route("/vendor/orders", func(r chi.Router) {
			r.Get("/", h.listVendorOrders)
			r.Put("/{orderNumber}/status", h.updateOrderStatus)
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/create", h.createPayment)
			r.Post("/verify", h.verifyPayment)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)
		r.Get("/ws/orders/{orderNumber}", h.subscribeOrder)
	})

	return r
}

// errorBody is the JSON error envelope for every non-2xx response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondErrorCode(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorBody{Code: code, Message: message})
}

// respondError maps domain errors onto the HTTP error surface. Unknown
// errors are logged and collapsed into a generic 500; any state committed
// before the fault stays committed.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		vendorMismatch *cart.VendorMismatchError
		badTransition  *order.InvalidTransitionError
	)

	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		respondErrorCode(w, http.StatusUnauthorized, "unauthorized", "authentication required")
	case errors.Is(err, order.ErrUnauthorized):
		respondErrorCode(w, http.StatusForbidden, "unauthorized", "order belongs to another principal")
	case errors.Is(err, order.ErrEmptyCart):
		respondErrorCode(w, http.StatusUnprocessableEntity, "empty_cart", "cart has no items for this vendor")
	case errors.Is(err, order.ErrMultiVendorCart):
		respondErrorCode(w, http.StatusUnprocessableEntity, "multi_vendor_cart", "cart contains items from multiple vendors")
	case errors.As(err, &vendorMismatch):
		respondErrorCode(w, http.StatusConflict, "vendor_mismatch", vendorMismatch.Error())
	case errors.As(err, &badTransition):
		respondErrorCode(w, http.StatusConflict, "invalid_transition", badTransition.Error())
	case errors.Is(err, order.ErrInvalidOrderStatus):
		respondErrorCode(w, http.StatusConflict, "invalid_order_status", "order status does not allow this operation")
	case errors.Is(err, order.ErrNotFound):
		respondErrorCode(w, http.StatusNotFound, "order_not_found", "order not found")
	case errors.Is(err, cart.ErrInvalidQuantity), errors.Is(err, cart.ErrInvalidPrice),
		errors.Is(err, payment.ErrInvalidAmount):
		respondErrorCode(w, http.StatusBadRequest, "bad_request", err.Error())
	default:
		zctx.From(r.Context()).Error("internal error", zap.Error(err))
		respondErrorCode(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

func decodeBody(r *http.Request, dest any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dest)
}
