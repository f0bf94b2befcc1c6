// Package provider implements the HTTP client for the external payment
// provider. Every remote call goes through a circuit breaker so a failing
// provider degrades checkout instead of stalling it.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"github.com/butcherhub/orders/internal/domain/payment"
)

// ErrUnavailable wraps any provider failure, including an open circuit.
var ErrUnavailable = errors.New("payment provider unavailable")

const (
	callTimeout = 5 * time.Second

	// The breaker opens once at least 5 calls were observed and half of
	// them failed, stays open for 10s, then lets 3 probe calls through.
	tripMinCalls     = 5
	tripFailureRatio = 0.5
	openCooldown     = 10 * time.Second
	halfOpenProbes   = 3
)

var _ payment.Provider = (*Client)(nil)

// Config holds the provider connection settings.
type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
}

// Client talks to the payment provider's order API.
type Client struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*payment.ProviderOrder]
}

// New creates a provider Client with its circuit breaker.
func New(cfg Config) *Client {
	settings := gobreaker.Settings{
		Name:        "payment-provider",
		MaxRequests: halfOpenProbes,
		Timeout:     openCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < tripMinCalls {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= tripFailureRatio
		},
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: callTimeout},
		breaker: gobreaker.NewCircuitBreaker[*payment.ProviderOrder](settings),
	}
}

type createOrderRequest struct {
	Amount   string               `json:"amount"`
	Currency string               `json:"currency"`
	Receipt  string               `json:"receipt"`
	Customer payment.CustomerInfo `json:"customer"`
}

type createOrderResponse struct {
	ID string `json:"id"`
}

// CreateOrder registers a checkout order with the provider and returns its
// reference. While the circuit is open the call short-circuits immediately
// with ErrUnavailable instead of dialing out.
func (c *Client) CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string, customer payment.CustomerInfo) (*payment.ProviderOrder, error) {
	res, err := c.breaker.Execute(func() (*payment.ProviderOrder, error) {
		return c.createOrder(ctx, amount, currency, receipt, customer)
	})
	if err != nil {
		return nil, errors.Wrap(ErrUnavailable, err.Error())
	}
	return res, nil
}

func (c *Client) createOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string, customer payment.CustomerInfo) (*payment.ProviderOrder, error) {
	body, err := json.Marshal(createOrderRequest{
		Amount:   amount.StringFixed(2),
		Currency: currency,
		Receipt:  receipt,
		Customer: customer,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "call provider")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return nil, errors.Errorf("provider returned status %d", resp.StatusCode)
	}

	var out createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}
	if out.ID == "" {
		return nil, errors.New("provider response missing order id")
	}
	return &payment.ProviderOrder{OrderRef: out.ID}, nil
}

// PublicKey returns the publishable key clients use to complete checkout.
func (c *Client) PublicKey() string {
	return c.cfg.KeyID
}
