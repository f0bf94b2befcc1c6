// Package payment creates payment intents against the external provider and
// verifies provider-signed confirmations. Verification drives the idempotent
// PENDING→CONFIRMED order transition.
package payment

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound indicates no intent matches the lookup.
var ErrNotFound = errors.New("payment intent not found")

// Intent statuses. failed_temporary is a response-only status used while the
// provider circuit is open; stored intents are created, confirmed, or failed.
const (
	StatusCreated         = "created"
	StatusConfirmed       = "confirmed"
	StatusFailed          = "failed"
	StatusFailedTemporary = "failed_temporary"
)

// Intent is the internal record of a payment attempt. It is created once and
// transitioned to confirmed exactly once.
type Intent struct {
	ID               string          `json:"id"`
	OrderNumber      string          `json:"order_number,omitempty"`
	SubscriptionID   string          `json:"subscription_id,omitempty"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	ProviderOrderRef string          `json:"provider_order_ref,omitempty"`
	Status           string          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	ConfirmedAt      *time.Time      `json:"confirmed_at,omitempty"`
}

// Repository defines persistence operations for payment intents.
type Repository interface {
	Create(ctx context.Context, in *Intent) error

	// GetByProviderRef returns the intent holding the given provider order
	// reference, or ErrNotFound.
	GetByProviderRef(ctx context.Context, providerOrderRef string) (*Intent, error)

	// Confirm marks the intent confirmed. Confirming an already confirmed
	// intent is a no-op reporting alreadyConfirmed=true.
	Confirm(ctx context.Context, id string, at time.Time) (alreadyConfirmed bool, err error)
}

// CustomerInfo is forwarded to the provider when creating a checkout order.
type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// ProviderOrder is the provider-side handle for a checkout.
type ProviderOrder struct {
	OrderRef string
}

// Provider creates checkout orders on the external payment provider.
// Implementations guard the remote call with a circuit breaker and a bounded
// timeout; when the circuit is open, CreateOrder fails fast.
type Provider interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string, customer CustomerInfo) (*ProviderOrder, error)

	// PublicKey returns the publishable key the client needs to complete
	// checkout against the provider.
	PublicKey() string
}
