package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/butcherhub/orders/internal/domain/auth"
	"github.com/butcherhub/orders/internal/domain/cart"
)

type addCartItemRequest struct {
	ItemID       string          `json:"item_id"`
	VendorID     string          `json:"vendor_id"`
	Name         string          `json:"name"`
	Quantity     decimal.Decimal `json:"quantity"`
	Unit         string          `json:"unit"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
}

type updateCartItemRequest struct {
	Quantity decimal.Decimal `json:"quantity"`
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	p, err := auth.FromContext(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req addCartItemRequest
	if err := decodeBody(r, &req); err != nil {
		respondErrorCode(w, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}
	if req.ItemID == "" || req.VendorID == "" {
		respondErrorCode(w, http.StatusBadRequest, "bad_request", "item_id and vendor_id are required")
		return
	}

	c, err := h.carts.AddItem(r.Context(), p.UserID, cart.AddItemInput{
		ItemID:       req.ItemID,
		VendorID:     req.VendorID,
		Name:         req.Name,
		Quantity:     req.Quantity,
		Unit:         req.Unit,
		PricePerUnit: req.PricePerUnit,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	p, err := auth.FromContext(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	// A miss or a broken cache both degrade to a database read.
	if cached, err := h.cache.GetCart(r.Context(), p.UserID); err == nil {
		respondJSON(w, http.StatusOK, cached)
		return
	}

	c, err := h.carts.Get(r.Context(), p.UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.cache.SetCart(r.Context(), p.UserID, c)
	respondJSON(w, http.StatusOK, c)
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	p, err := auth.FromContext(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req updateCartItemRequest
	if err := decodeBody(r, &req); err != nil {
		respondErrorCode(w, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}

	c, err := h.carts.UpdateQuantity(r.Context(), p.UserID, chi.URLParam(r, "itemID"), req.Quantity)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	p, err := auth.FromContext(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	c, err := h.carts.RemoveItem(r.Context(), p.UserID, chi.URLParam(r, "itemID"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	p, err := auth.FromContext(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	c, err := h.carts.Clear(r.Context(), p.UserID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}
