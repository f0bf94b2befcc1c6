package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/butcherhub/orders/internal/domain/payment"
)

func newTestClient(baseURL string) *Client {
	return New(Config{
		BaseURL:   baseURL,
		KeyID:     "key_id_test",
		KeySecret: "key_secret_test",
	})
}

func TestCreateOrder(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key_id_test", user)
		assert.Equal(t, "key_secret_test", pass)

		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "prov_abc123"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	po, err := c.CreateOrder(context.Background(), decimal.NewFromInt(150), "INR", "receipt-1", payment.CustomerInfo{
		Name: "A Customer",
	})
	require.NoError(t, err)
	assert.Equal(t, "prov_abc123", po.OrderRef)

	assert.Equal(t, "150.00", gotBody["amount"], "amounts go over the wire as fixed-point strings")
	assert.Equal(t, "INR", gotBody["currency"])
	assert.Equal(t, "receipt-1", gotBody["receipt"])
}

func TestCreateOrder_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.CreateOrder(context.Background(), decimal.NewFromInt(150), "INR", "receipt-1", payment.CustomerInfo{})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestCreateOrder_MissingID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.CreateOrder(context.Background(), decimal.NewFromInt(150), "INR", "receipt-1", payment.CustomerInfo{})
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestCreateOrder_BreakerOpensAndShortCircuits(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	ctx := context.Background()

	for i := 0; i < tripMinCalls; i++ {
		_, err := c.CreateOrder(ctx, decimal.NewFromInt(150), "INR", "receipt-1", payment.CustomerInfo{})
		require.ErrorIs(t, err, ErrUnavailable)
	}
	dialed := hits.Load()
	assert.Equal(t, int64(tripMinCalls), dialed)

	// The circuit is open now: further calls fail fast without dialing out.
	for i := 0; i < 3; i++ {
		_, err := c.CreateOrder(ctx, decimal.NewFromInt(150), "INR", "receipt-1", payment.CustomerInfo{})
		require.ErrorIs(t, err, ErrUnavailable)
	}
	assert.Equal(t, dialed, hits.Load(), "open circuit must not reach the provider")
}

func TestPublicKey(t *testing.T) {
	c := newTestClient("http://provider.invalid")
	assert.Equal(t, "key_id_test", c.PublicKey())
}
