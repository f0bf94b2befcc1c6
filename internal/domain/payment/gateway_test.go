package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/butcherhub/orders/internal/domain/order"
)

// --- Mock implementations ---

type mockIntentRepo struct {
	byID  map[string]*Intent
	byRef map[string]*Intent
}

func newMockIntentRepo() *mockIntentRepo {
	return &mockIntentRepo{byID: make(map[string]*Intent), byRef: make(map[string]*Intent)}
}

func (m *mockIntentRepo) Create(_ context.Context, in *Intent) error {
	cp := *in
	m.byID[in.ID] = &cp
	if in.ProviderOrderRef != "" {
		m.byRef[in.ProviderOrderRef] = &cp
	}
	return nil
}

func (m *mockIntentRepo) GetByProviderRef(_ context.Context, ref string) (*Intent, error) {
	in, ok := m.byRef[ref]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *in
	return &cp, nil
}

func (m *mockIntentRepo) Confirm(_ context.Context, id string, at time.Time) (bool, error) {
	in, ok := m.byID[id]
	if !ok {
		return false, ErrNotFound
	}
	if in.Status == StatusConfirmed {
		return true, nil
	}
	in.Status = StatusConfirmed
	in.ConfirmedAt = &at
	return false, nil
}

type mockProvider struct {
	err   error
	calls int
}

func (m *mockProvider) CreateOrder(_ context.Context, _ decimal.Decimal, _, receipt string, _ CustomerInfo) (*ProviderOrder, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &ProviderOrder{OrderRef: "prov_" + receipt}, nil
}

func (m *mockProvider) PublicKey() string { return "key_public_test" }

type mockConfirmer struct {
	confirmed []string
	err       error
}

func (m *mockConfirmer) ConfirmPayment(_ context.Context, orderNumber string) (*order.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.confirmed = append(m.confirmed, orderNumber)
	return &order.Order{OrderNumber: orderNumber, Status: order.StatusConfirmed}, nil
}

// --- Helpers ---

var testSecret = []byte("test-webhook-secret")

func sign(orderRef, paymentRef string) string {
	mac := hmac.New(sha256.New, testSecret)
	mac.Write([]byte(orderRef + "|" + paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// --- Create ---

func TestCreate(t *testing.T) {
	repo := newMockIntentRepo()
	provider := &mockProvider{}
	g := NewGateway(repo, provider, &mockConfirmer{}, nil, testSecret)

	resp, err := g.Create(context.Background(), CreateRequest{
		Amount:      dec("150"),
		OrderNumber: "ORD20250314092653",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusCreated, resp.Status)
	assert.NotEmpty(t, resp.PaymentID)
	assert.Equal(t, "prov_"+resp.PaymentID, resp.ProviderOrderRef)
	assert.Equal(t, "key_public_test", resp.PublicKey)

	stored := repo.byID[resp.PaymentID]
	require.NotNil(t, stored)
	assert.Equal(t, "INR", stored.Currency, "currency defaults when omitted")
	assert.Equal(t, "ORD20250314092653", stored.OrderNumber)
}

func TestCreate_InvalidAmount(t *testing.T) {
	g := NewGateway(newMockIntentRepo(), nil, &mockConfirmer{}, nil, testSecret)

	_, err := g.Create(context.Background(), CreateRequest{Amount: decimal.Zero})
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = g.Create(context.Background(), CreateRequest{Amount: dec("-10")})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestCreate_ProviderDownDegrades(t *testing.T) {
	repo := newMockIntentRepo()
	provider := &mockProvider{err: errors.New("connection refused")}
	g := NewGateway(repo, provider, &mockConfirmer{}, nil, testSecret)

	resp, err := g.Create(context.Background(), CreateRequest{Amount: dec("150")})
	require.NoError(t, err, "provider failure must not surface as an error")

	assert.Equal(t, StatusFailedTemporary, resp.Status)
	assert.Empty(t, resp.ProviderOrderRef)

	// The attempt is still recorded.
	stored := repo.byID[resp.PaymentID]
	require.NotNil(t, stored)
	assert.Equal(t, StatusFailed, stored.Status)
}

func TestCreate_ProviderDisabled(t *testing.T) {
	g := NewGateway(newMockIntentRepo(), nil, &mockConfirmer{}, nil, testSecret)

	resp, err := g.Create(context.Background(), CreateRequest{Amount: dec("150")})
	require.NoError(t, err)
	assert.Equal(t, StatusCreated, resp.Status)
	assert.Empty(t, resp.ProviderOrderRef)
	assert.Empty(t, resp.PublicKey)
}

// --- Verify ---

func verifyFixture(t *testing.T) (*Gateway, *mockIntentRepo, *mockConfirmer, CreateRequest) {
	t.Helper()
	repo := newMockIntentRepo()
	confirmer := &mockConfirmer{}
	g := NewGateway(repo, &mockProvider{}, confirmer, nil, testSecret)
	return g, repo, confirmer, CreateRequest{Amount: dec("150"), OrderNumber: "ORD20250314092653"}
}

func TestVerify(t *testing.T) {
	g, _, confirmer, req := verifyFixture(t)
	ctx := context.Background()

	created, err := g.Create(ctx, req)
	require.NoError(t, err)

	resp, err := g.Verify(ctx, VerifyRequest{
		ProviderOrderRef:   created.ProviderOrderRef,
		ProviderPaymentRef: "pay_123",
		ProviderSignature:  sign(created.ProviderOrderRef, "pay_123"),
	})
	require.NoError(t, err)

	assert.True(t, resp.Verified)
	assert.Equal(t, order.StatusConfirmed, resp.OrderStatus)
	assert.Equal(t, []string{"ORD20250314092653"}, confirmer.confirmed)
}

func TestVerify_BadSignature(t *testing.T) {
	g, _, confirmer, req := verifyFixture(t)
	ctx := context.Background()

	created, err := g.Create(ctx, req)
	require.NoError(t, err)

	for _, sig := range []string{
		sign(created.ProviderOrderRef, "pay_other"), // signed over different payload
		"deadbeef",     // wrong value
		"not-hex-at!!", // not decodable
		"",             // empty
	} {
		resp, err := g.Verify(ctx, VerifyRequest{
			ProviderOrderRef:   created.ProviderOrderRef,
			ProviderPaymentRef: "pay_123",
			ProviderSignature:  sig,
		})
		require.NoError(t, err, "mismatch is a negative result, not an error")
		assert.False(t, resp.Verified)
	}
	assert.Empty(t, confirmer.confirmed, "no side effects on rejected signatures")
}

func TestVerify_UnknownReference(t *testing.T) {
	g, _, confirmer, _ := verifyFixture(t)

	resp, err := g.Verify(context.Background(), VerifyRequest{
		ProviderOrderRef:   "prov_unknown",
		ProviderPaymentRef: "pay_123",
		ProviderSignature:  sign("prov_unknown", "pay_123"),
	})
	require.NoError(t, err)
	assert.False(t, resp.Verified)
	assert.Empty(t, confirmer.confirmed)
}

func TestVerify_Idempotent(t *testing.T) {
	g, repo, confirmer, req := verifyFixture(t)
	ctx := context.Background()

	created, err := g.Create(ctx, req)
	require.NoError(t, err)

	vr := VerifyRequest{
		ProviderOrderRef:   created.ProviderOrderRef,
		ProviderPaymentRef: "pay_123",
		ProviderSignature:  sign(created.ProviderOrderRef, "pay_123"),
	}

	first, err := g.Verify(ctx, vr)
	require.NoError(t, err)
	second, err := g.Verify(ctx, vr)
	require.NoError(t, err)

	assert.True(t, first.Verified)
	assert.True(t, second.Verified)
	assert.Equal(t, StatusConfirmed, repo.byID[created.PaymentID].Status)
	// The order confirmer is idempotent itself, so re-invoking it is fine;
	// what must hold is that both responses report success.
	assert.Len(t, confirmer.confirmed, 2)
}

func TestVerify_OrderConfirmFailureFailsClosed(t *testing.T) {
	repo := newMockIntentRepo()
	confirmer := &mockConfirmer{err: errors.New("database down")}
	g := NewGateway(repo, &mockProvider{}, confirmer, nil, testSecret)
	ctx := context.Background()

	created, err := g.Create(ctx, CreateRequest{Amount: dec("150"), OrderNumber: "ORD20250314092653"})
	require.NoError(t, err)

	resp, err := g.Verify(ctx, VerifyRequest{
		ProviderOrderRef:   created.ProviderOrderRef,
		ProviderPaymentRef: "pay_123",
		ProviderSignature:  sign(created.ProviderOrderRef, "pay_123"),
	})
	require.Error(t, err)
	assert.Nil(t, resp, "a failed confirmation never reports verified=true")
}
