package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/butcherhub/orders/internal/domain/order"
)

// Sentinel errors for payment validation.
var (
	ErrInvalidAmount = errors.New("amount must be greater than 0")
)

// OrderConfirmer applies the idempotent payment-confirmation transition.
type OrderConfirmer interface {
	ConfirmPayment(ctx context.Context, orderNumber string) (*order.Order, error)
}

// Invalidator evicts cached order read views after a confirmation.
type Invalidator interface {
	InvalidateOrders(ctx context.Context)
}

// CreateRequest holds the input for creating a payment intent.
type CreateRequest struct {
	Amount         decimal.Decimal
	Currency       string
	OrderNumber    string
	SubscriptionID string
	Customer       CustomerInfo
}

// CreateResponse carries what the client needs to complete checkout.
type CreateResponse struct {
	PaymentID        string `json:"payment_id"`
	ProviderOrderRef string `json:"provider_order_ref,omitempty"`
	PublicKey        string `json:"public_key,omitempty"`
	Status           string `json:"status"`
}

// VerifyRequest holds a provider-signed confirmation.
type VerifyRequest struct {
	ProviderOrderRef   string
	ProviderPaymentRef string
	ProviderSignature  string
	OrderNumber        string
}

// VerifyResponse is the outcome of a verification. A signature mismatch is a
// normal negative result, not an error.
type VerifyResponse struct {
	Verified    bool         `json:"verified"`
	OrderStatus order.Status `json:"order_status,omitempty"`
}

// Gateway creates payment intents and verifies provider confirmations.
type Gateway struct {
	intents  Repository
	provider Provider // nil when the remote integration is disabled
	orders   OrderConfirmer
	cache    Invalidator
	secret   []byte
	now      func() time.Time
}

// NewGateway creates a payment Gateway. provider may be nil to run without
// the remote integration; cache may be nil in tests.
func NewGateway(intents Repository, provider Provider, orders OrderConfirmer, cache Invalidator, secret []byte) *Gateway {
	return &Gateway{
		intents:  intents,
		provider: provider,
		orders:   orders,
		cache:    cache,
		secret:   secret,
		now:      time.Now,
	}
}

// Create generates a payment intent and, when the remote integration is
// enabled, obtains a provider-side order reference through the circuit
// breaker. Provider unavailability degrades the response to
// failed_temporary; it never blocks beyond the breaker's timeout and never
// surfaces as an error to the caller.
func (g *Gateway) Create(ctx context.Context, req CreateRequest) (*CreateResponse, error) {
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}

	in := &Intent{
		ID:             uuid.New().String(),
		OrderNumber:    req.OrderNumber,
		SubscriptionID: req.SubscriptionID,
		Amount:         req.Amount,
		Currency:       currency,
		Status:         StatusCreated,
		CreatedAt:      g.now(),
	}

	if g.provider != nil {
		po, err := g.provider.CreateOrder(ctx, req.Amount, currency, in.ID, req.Customer)
		if err != nil {
			zctx.From(ctx).Warn("payment provider unavailable",
				zap.String("payment_id", in.ID),
				zap.Error(err),
			)
			in.Status = StatusFailed
			if persistErr := g.intents.Create(ctx, in); persistErr != nil {
				return nil, errors.Wrap(persistErr, "persist failed intent")
			}
			return &CreateResponse{
				PaymentID: in.ID,
				Status:    StatusFailedTemporary,
			}, nil
		}
		in.ProviderOrderRef = po.OrderRef
	}

	if err := g.intents.Create(ctx, in); err != nil {
		return nil, errors.Wrap(err, "persist intent")
	}

	resp := &CreateResponse{
		PaymentID:        in.ID,
		ProviderOrderRef: in.ProviderOrderRef,
		Status:           StatusCreated,
	}
	if g.provider != nil {
		resp.PublicKey = g.provider.PublicKey()
	}
	return resp, nil
}

// Verify recomputes the expected HMAC signature over the provider
// confirmation and, on match, confirms the linked order. Re-verifying the
// same confirmed payment reports verified=true again without repeating any
// side effect. Any failure past the signature check fails closed: the
// response never claims verified=true and the order never reaches CONFIRMED
// on an error path.
func (g *Gateway) Verify(ctx context.Context, req VerifyRequest) (*VerifyResponse, error) {
	if !g.signatureValid(req.ProviderOrderRef, req.ProviderPaymentRef, req.ProviderSignature) {
		return &VerifyResponse{Verified: false}, nil
	}

	in, err := g.intents.GetByProviderRef(ctx, req.ProviderOrderRef)
	switch {
	case errors.Is(err, ErrNotFound):
		// A signed confirmation for an unknown reference: treat as a
		// negative result rather than trusting the signature alone.
		return &VerifyResponse{Verified: false}, nil
	case err != nil:
		return nil, errors.Wrap(err, "lookup intent")
	}

	if _, err := g.intents.Confirm(ctx, in.ID, g.now()); err != nil {
		return nil, errors.Wrap(err, "confirm intent")
	}

	resp := &VerifyResponse{Verified: true}
	orderNumber := req.OrderNumber
	if orderNumber == "" {
		orderNumber = in.OrderNumber
	}
	if orderNumber != "" {
		o, err := g.orders.ConfirmPayment(ctx, orderNumber)
		if err != nil {
			return nil, errors.Wrap(err, "confirm order")
		}
		resp.OrderStatus = o.Status
		if g.cache != nil {
			g.cache.InvalidateOrders(ctx)
		}
	}
	return resp, nil
}

// signatureValid recomputes HMAC-SHA256(secret, orderRef + "|" + paymentRef)
// and compares it to the provided hex signature in constant time.
func (g *Gateway) signatureValid(orderRef, paymentRef, signature string) bool {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(orderRef + "|" + paymentRef))
	expected := mac.Sum(nil)

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, provided)
}
