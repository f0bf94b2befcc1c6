package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/butcherhub/orders/internal/domain/auth"
	"github.com/butcherhub/orders/internal/domain/order"
)

type placeOrderRequest struct {
	VendorID        string `json:"vendor_id"`
	DeliveryAddress string `json:"delivery_address"`
	DeliveryPhone   string `json:"delivery_phone"`
	Notes           string `json:"notes"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	p, err := auth.FromContext(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req placeOrderRequest
	if err := decodeBody(r, &req); err != nil {
		respondErrorCode(w, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}
	if req.VendorID == "" || req.DeliveryAddress == "" || req.DeliveryPhone == "" {
		respondErrorCode(w, http.StatusBadRequest, "bad_request", "vendor_id, delivery_address and delivery_phone are required")
		return
	}

	o, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		UserID:          p.UserID,
		VendorID:        req.VendorID,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryPhone:   req.DeliveryPhone,
		Notes:           req.Notes,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

func (h *Handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	p, err := auth.FromContext(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if cached, err := h.cache.GetUserOrders(r.Context(), p.UserID); err == nil {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	list, err := h.orders.ListByUser(r.Context(), p.UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.cache.SetUserOrders(r.Context(), p.UserID, list)
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	p, err := auth.FromContext(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderNumber"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if o.UserID != p.UserID && o.VendorID != p.VendorID {
		h.respondError(w, r, order.ErrUnauthorized)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	p, err := auth.FromContext(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req cancelOrderRequest
	if err := decodeBody(r, &req); err != nil {
		respondErrorCode(w, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}

	o, err := h.orders.Cancel(r.Context(), chi.URLParam(r, "orderNumber"), p.UserID, req.Reason)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handler) listVendorOrders(w http.ResponseWriter, r *http.Request) {
	p, err := requireVendor(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if cached, err := h.cache.GetVendorOrders(r.Context(), p.VendorID); err == nil {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	list, err := h.orders.ListByVendor(r.Context(), p.VendorID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.cache.SetVendorOrders(r.Context(), p.VendorID, list)
	respondJSON(w, http.StatusOK, list)
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	p, err := requireVendor(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req updateStatusRequest
	if err := decodeBody(r, &req); err != nil {
		respondErrorCode(w, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}

	requested := order.Status(req.Status)
	if !requested.Valid() {
		respondErrorCode(w, http.StatusBadRequest, "bad_request", "unknown status "+req.Status)
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "orderNumber"), requested, p.VendorID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}
