package handler

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/butcherhub/orders/internal/domain/payment"
)

type createPaymentRequest struct {
	Amount         decimal.Decimal      `json:"amount"`
	Currency       string               `json:"currency"`
	OrderNumber    string               `json:"order_number"`
	SubscriptionID string               `json:"subscription_id"`
	Customer       payment.CustomerInfo `json:"customer"`
}

type verifyPaymentRequest struct {
	ProviderOrderRef   string `json:"provider_order_ref"`
	ProviderPaymentRef string `json:"provider_payment_ref"`
	ProviderSignature  string `json:"provider_signature"`
	OrderNumber        string `json:"order_number"`
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := decodeBody(r, &req); err != nil {
		respondErrorCode(w, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}

	resp, err := h.payments.Create(r.Context(), payment.CreateRequest{
		Amount:         req.Amount,
		Currency:       req.Currency,
		OrderNumber:    req.OrderNumber,
		SubscriptionID: req.SubscriptionID,
		Customer:       req.Customer,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := decodeBody(r, &req); err != nil {
		respondErrorCode(w, http.StatusBadRequest, "bad_request", "malformed request body")
		return
	}
	if req.ProviderOrderRef == "" || req.ProviderPaymentRef == "" {
		respondErrorCode(w, http.StatusBadRequest, "bad_request", "provider_order_ref and provider_payment_ref are required")
		return
	}

	resp, err := h.payments.Verify(r.Context(), payment.VerifyRequest{
		ProviderOrderRef:   req.ProviderOrderRef,
		ProviderPaymentRef: req.ProviderPaymentRef,
		ProviderSignature:  req.ProviderSignature,
		OrderNumber:        req.OrderNumber,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
