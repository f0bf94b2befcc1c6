package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/butcherhub/orders/internal/domain/cart"
)

// --- Mock implementations ---

type mockOrderRepo struct {
	orders map[string]*Order
	carts  *mockCartRepo
}

func newMockOrderRepo(carts *mockCartRepo) *mockOrderRepo {
	return &mockOrderRepo{orders: make(map[string]*Order), carts: carts}
}

func (m *mockOrderRepo) CreateAndDrainCart(_ context.Context, o *Order) error {
	cp := *o
	cp.Items = append([]Item(nil), o.Items...)
	m.orders[o.OrderNumber] = &cp
	if c, ok := m.carts.carts[o.UserID]; ok {
		c.DrainVendor(o.VendorID)
	}
	return nil
}

func (m *mockOrderRepo) Get(_ context.Context, orderNumber string) (*Order, error) {
	o, ok := m.orders[orderNumber]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *o
	cp.Items = append([]Item(nil), o.Items...)
	return &cp, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, o *Order) error {
	stored, ok := m.orders[o.OrderNumber]
	if !ok {
		return ErrNotFound
	}
	stored.Status = o.Status
	stored.ConfirmedAt = o.ConfirmedAt
	stored.CancelledAt = o.CancelledAt
	stored.DeliveredAt = o.DeliveredAt
	stored.CancellationReason = o.CancellationReason
	return nil
}

func (m *mockOrderRepo) ListByUser(_ context.Context, userID string) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) ListByVendor(_ context.Context, vendorID string) ([]Order, error) {
	var out []Order
	for _, o := range m.orders {
		if o.VendorID == vendorID {
			out = append(out, *o)
		}
	}
	return out, nil
}

type mockCartRepo struct {
	carts map[string]*cart.Cart
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{carts: make(map[string]*cart.Cart)}
}

func (m *mockCartRepo) Get(_ context.Context, userID string) (*cart.Cart, error) {
	if c, ok := m.carts[userID]; ok {
		return c, nil
	}
	return cart.New(userID), nil
}

func (m *mockCartRepo) Mutate(ctx context.Context, userID string, fn func(*cart.Cart) error) (*cart.Cart, error) {
	c, _ := m.Get(ctx, userID)
	if err := fn(c); err != nil {
		return nil, err
	}
	m.carts[userID] = c
	return c, nil
}

type mockNotifier struct {
	pushed []*Order
}

func (m *mockNotifier) OrderUpdated(_ context.Context, o *Order) {
	m.pushed = append(m.pushed, o)
}

// --- Helpers ---

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func fixture(t *testing.T) (*Service, *mockOrderRepo, *mockCartRepo, *mockNotifier) {
	t.Helper()
	carts := newMockCartRepo()
	orders := newMockOrderRepo(carts)
	notifier := &mockNotifier{}
	svc := NewService(orders, carts, notifier, nil)
	svc.now = func() time.Time {
		return time.Date(2025, time.March, 14, 9, 26, 53, 0, time.UTC)
	}
	return svc, orders, carts, notifier
}

func seedCart(t *testing.T, carts *mockCartRepo, userID string, items ...cart.Item) {
	t.Helper()
	_, err := carts.Mutate(context.Background(), userID, func(c *cart.Cart) error {
		for _, it := range items {
			if err := c.Add(it); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func ribeye() cart.Item {
	return cart.Item{
		ItemID:       "item-ribeye",
		VendorID:     "vendor-1",
		Name:         "Ribeye Steak",
		Quantity:     dec("0.5"),
		Unit:         "kg",
		PricePerUnit: dec("300"),
	}
}

func placed(t *testing.T, svc *Service, carts *mockCartRepo) *Order {
	t.Helper()
	seedCart(t, carts, "user-1", ribeye())
	o, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:          "user-1",
		VendorID:        "vendor-1",
		DeliveryAddress: "14 Market Lane",
		DeliveryPhone:   "+91 98200 00000",
	})
	require.NoError(t, err)
	return o
}

// --- Placement ---

func TestPlaceOrder(t *testing.T) {
	svc, repo, carts, notifier := fixture(t)

	o := placed(t, svc, carts)

	assert.Equal(t, "ORD20250314092653", o.OrderNumber)
	assert.Equal(t, StatusPending, o.Status)
	assert.True(t, o.TotalAmount.Equal(dec("150")), "0.5 kg at 300/kg, got %s", o.TotalAmount)
	require.Len(t, o.Items, 1)
	assert.True(t, o.Items[0].Subtotal.Equal(dec("150")))

	// Consumed lines left the cart atomically with the insert.
	c, err := carts.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	_, err = repo.Get(context.Background(), o.OrderNumber)
	require.NoError(t, err)
	require.Len(t, notifier.pushed, 1)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	svc, _, _, _ := fixture(t)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:   "user-1",
		VendorID: "vendor-1",
	})
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestPlaceOrder_WrongVendor(t *testing.T) {
	svc, _, carts, _ := fixture(t)
	seedCart(t, carts, "user-1", ribeye())

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:   "user-1",
		VendorID: "vendor-2",
	})
	require.ErrorIs(t, err, ErrEmptyCart)

	// Cart untouched on failure.
	c, err := carts.Get(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Len(t, c.Items, 1)
}

func TestPlaceOrder_MultiVendorCartRejected(t *testing.T) {
	svc, _, carts, _ := fixture(t)

	// The cart aggregate forbids mixed vendors, so plant the corrupt state
	// directly in the repository to exercise the placement-side re-check.
	other := ribeye()
	other.ItemID = "item-mutton"
	other.VendorID = "vendor-2"
	carts.carts["user-1"] = &cart.Cart{
		UserID: "user-1",
		Items:  []cart.Item{ribeye(), other},
	}

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		UserID:   "user-1",
		VendorID: "vendor-1",
	})
	require.ErrorIs(t, err, ErrMultiVendorCart)
}

func TestPlaceOrder_FreezesPrices(t *testing.T) {
	svc, repo, carts, _ := fixture(t)

	o := placed(t, svc, carts)

	stored, err := repo.Get(context.Background(), o.OrderNumber)
	require.NoError(t, err)
	assert.True(t, stored.Items[0].PricePerUnit.Equal(dec("300")))
	assert.True(t, stored.Items[0].Quantity.Equal(dec("0.5")))
}

// --- Fulfilment transitions ---

func TestUpdateStatus_FullLifecycle(t *testing.T) {
	svc, _, carts, _ := fixture(t)
	o := placed(t, svc, carts)
	ctx := context.Background()

	steps := []Status{StatusConfirmed, StatusCutting, StatusPacked, StatusOutForDelivery, StatusDelivered}
	for _, next := range steps {
		var err error
		o, err = svc.UpdateStatus(ctx, o.OrderNumber, next, "vendor-1")
		require.NoError(t, err, "to %s", next)
		assert.Equal(t, next, o.Status)
	}

	require.NotNil(t, o.ConfirmedAt)
	require.NotNil(t, o.DeliveredAt)
}

func TestUpdateStatus_SkippingStepRejected(t *testing.T) {
	svc, _, carts, _ := fixture(t)
	o := placed(t, svc, carts)

	_, err := svc.UpdateStatus(context.Background(), o.OrderNumber, StatusPacked, "vendor-1")

	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, StatusPending, invalid.From)
	assert.Equal(t, StatusPacked, invalid.To)
}

func TestUpdateStatus_WrongVendor(t *testing.T) {
	svc, _, carts, _ := fixture(t)
	o := placed(t, svc, carts)

	_, err := svc.UpdateStatus(context.Background(), o.OrderNumber, StatusConfirmed, "vendor-2")
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestUpdateStatus_UnknownOrder(t *testing.T) {
	svc, _, _, _ := fixture(t)

	_, err := svc.UpdateStatus(context.Background(), "ORD00000000000000", StatusConfirmed, "vendor-1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatus_NotifiesSubscriber(t *testing.T) {
	svc, _, carts, notifier := fixture(t)
	o := placed(t, svc, carts)

	_, err := svc.UpdateStatus(context.Background(), o.OrderNumber, StatusConfirmed, "vendor-1")
	require.NoError(t, err)

	require.Len(t, notifier.pushed, 2) // placement + transition
	assert.Equal(t, StatusConfirmed, notifier.pushed[1].Status)
}

// --- Cancellation ---

func TestCancel_WhilePending(t *testing.T) {
	svc, _, carts, _ := fixture(t)
	o := placed(t, svc, carts)

	cancelled, err := svc.Cancel(context.Background(), o.OrderNumber, "user-1", "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, "changed my mind", cancelled.CancellationReason)
	require.NotNil(t, cancelled.CancelledAt)
}

func TestCancel_AfterCuttingStartedRejected(t *testing.T) {
	svc, _, carts, _ := fixture(t)
	o := placed(t, svc, carts)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, o.OrderNumber, StatusConfirmed, "vendor-1")
	require.NoError(t, err)
	_, err = svc.UpdateStatus(ctx, o.OrderNumber, StatusCutting, "vendor-1")
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, o.OrderNumber, "user-1", "too late")
	require.ErrorIs(t, err, ErrInvalidOrderStatus)

	// Order unchanged.
	got, err := svc.Get(ctx, o.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, StatusCutting, got.Status)
}

func TestCancel_WrongUser(t *testing.T) {
	svc, _, carts, _ := fixture(t)
	o := placed(t, svc, carts)

	_, err := svc.Cancel(context.Background(), o.OrderNumber, "user-2", "")
	require.ErrorIs(t, err, ErrUnauthorized)
}

// --- Payment confirmation ---

func TestConfirmPayment(t *testing.T) {
	svc, _, carts, _ := fixture(t)
	o := placed(t, svc, carts)

	confirmed, err := svc.ConfirmPayment(context.Background(), o.OrderNumber)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
}

func TestConfirmPayment_Idempotent(t *testing.T) {
	svc, _, carts, _ := fixture(t)
	o := placed(t, svc, carts)
	ctx := context.Background()

	first, err := svc.ConfirmPayment(ctx, o.OrderNumber)
	require.NoError(t, err)
	second, err := svc.ConfirmPayment(ctx, o.OrderNumber)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.ConfirmedAt, second.ConfirmedAt)
}

func TestConfirmPayment_CancelledOrder(t *testing.T) {
	svc, _, carts, _ := fixture(t)
	o := placed(t, svc, carts)
	ctx := context.Background()

	_, err := svc.Cancel(ctx, o.OrderNumber, "user-1", "")
	require.NoError(t, err)

	_, err = svc.ConfirmPayment(ctx, o.OrderNumber)
	require.ErrorIs(t, err, ErrInvalidOrderStatus)
}
