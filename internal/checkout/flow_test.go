package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/freshmart/internal/cart"
	"github.com/example/freshmart/internal/events"
	"github.com/example/freshmart/internal/identity"
	"github.com/example/freshmart/internal/model"
	"github.com/example/freshmart/internal/storage/mocks"
)

type publishedEvent struct {
	EventType string
	Key       string
	Payload   any
}

type recordingPublisher struct {
	mu     sync.Mutex
	Events []publishedEvent
	Err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, eventType, key string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, publishedEvent{EventType: eventType, Key: key, Payload: payload})
	return p.Err
}

type recordingMailer struct {
	Recipients []string
	Orders     []model.Order
	Err        error
}

func (m *recordingMailer) SendOrderConfirmation(to string, order model.Order) error {
	m.Recipients = append(m.Recipients, to)
	m.Orders = append(m.Orders, order)
	return m.Err
}

type checkoutEnv struct {
	flow      *Flow
	cart      *cart.Store
	cartRepo  *mocks.MockCartRepo
	addresses *mocks.MockAddressRepo
	orders    *mocks.MockOrderRepo
	publisher *recordingPublisher
	mailer    *recordingMailer
}

func newCheckoutEnv(t *testing.T) *checkoutEnv {
	t.Helper()

	user := &model.User{ID: "user-1", Email: "shopper@example.com"}
	cartRepo := mocks.NewMockCartRepo()
	provider := identity.NewProvider()
	cartStore := cart.NewStore(cartRepo, provider)
	t.Cleanup(cartStore.Close)
	provider.SetUser(user)

	env := &checkoutEnv{
		cart:      cartStore,
		cartRepo:  cartRepo,
		addresses: mocks.NewMockAddressRepo(),
		orders:    mocks.NewMockOrderRepo(),
		publisher: &recordingPublisher{},
		mailer:    &recordingMailer{},
	}
	env.flow = NewFlow(user, cartStore, env.addresses, env.orders, env.publisher, env.mailer)
	return env
}

func (env *checkoutEnv) fillCart(price string, quantity int, productID string) {
	product := model.Product{
		ID:      productID,
		Name:    "Product " + productID,
		Price:   decimal.RequireFromString(price),
		Unit:    "each",
		InStock: true,
	}
	for i := 0; i < quantity; i++ {
		env.cart.AddToCart(product)
	}
}

func validAddress() model.Address {
	return model.Address{
		Street:     "12 Market Lane",
		City:       "Springfield",
		PostalCode: "12345",
		Phone:      "555-0100",
	}
}

func validCard() CardDetails {
	return CardDetails{Number: "4242424242424242", Expiry: "12/27", CVC: "123"}
}

// readyForPayment fills the cart, enters an address and card, and advances
// the flow to the payment step.
func (env *checkoutEnv) readyForPayment(t *testing.T) {
	t.Helper()
	env.fillCart("2.50", 3, "prod-apples")
	env.fillCart("10.00", 1, "prod-milk")
	env.flow.EnterAddress(validAddress())
	require.NoError(t, env.flow.ContinueToPayment())
	env.flow.EnterCard(validCard())
}

// ============================================
// Step transition tests
// ============================================

func TestContinueToPayment_EmptyCart(t *testing.T) {
	env := newCheckoutEnv(t)
	env.flow.EnterAddress(validAddress())

	err := env.flow.ContinueToPayment()

	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Equal(t, StateAddress, env.flow.State())
}

func TestContinueToPayment_IncompleteAddress(t *testing.T) {
	tests := []struct {
		name string
		addr model.Address
	}{
		{"nothing entered", model.Address{}},
		{"missing street", model.Address{City: "Springfield", PostalCode: "12345", Phone: "555-0100"}},
		{"missing city", model.Address{Street: "12 Market Lane", PostalCode: "12345", Phone: "555-0100"}},
		{"missing postal code", model.Address{Street: "12 Market Lane", City: "Springfield", Phone: "555-0100"}},
		{"missing phone", model.Address{Street: "12 Market Lane", City: "Springfield", PostalCode: "12345"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCheckoutEnv(t)
			env.fillCart("2.50", 1, "prod-apples")
			env.flow.EnterAddress(tt.addr)

			err := env.flow.ContinueToPayment()

			assert.ErrorIs(t, err, ErrAddressIncomplete)
			assert.Equal(t, StateAddress, env.flow.State())
		})
	}
}

func TestSelectAddress_DiscardsFreshEntry(t *testing.T) {
	env := newCheckoutEnv(t)
	env.flow.EnterAddress(validAddress())

	env.flow.SelectAddress("addr-1")

	assert.Nil(t, env.flow.freshAddress)
	assert.Equal(t, "addr-1", env.flow.selectedAddressID)
}

func TestEnterAddress_DiscardsSelection(t *testing.T) {
	env := newCheckoutEnv(t)
	env.flow.SelectAddress("addr-1")

	env.flow.EnterAddress(validAddress())

	assert.Empty(t, env.flow.selectedAddressID)
	assert.NotNil(t, env.flow.freshAddress)
}

func TestBackToAddress_AllowedFromPayment(t *testing.T) {
	env := newCheckoutEnv(t)
	env.readyForPayment(t)

	require.NoError(t, env.flow.BackToAddress())
	assert.Equal(t, StateAddress, env.flow.State())

	// Forward again works without re-entering anything.
	require.NoError(t, env.flow.ContinueToPayment())
	assert.Equal(t, StatePayment, env.flow.State())
}

func TestBackToAddress_RejectedOutsidePayment(t *testing.T) {
	env := newCheckoutEnv(t)

	assert.ErrorIs(t, env.flow.BackToAddress(), ErrInvalidTransition)
}

func TestPlaceOrder_RejectedOutsidePayment(t *testing.T) {
	env := newCheckoutEnv(t)
	env.fillCart("2.50", 1, "prod-apples")

	_, err := env.flow.PlaceOrder(context.Background())

	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPlaceOrder_IncompleteCard(t *testing.T) {
	env := newCheckoutEnv(t)
	env.readyForPayment(t)
	env.flow.EnterCard(CardDetails{Number: "4242424242424242"})

	_, err := env.flow.PlaceOrder(context.Background())

	assert.ErrorIs(t, err, ErrPaymentIncomplete)
	assert.Equal(t, StatePayment, env.flow.State())
}

// ============================================
// Delivery fee tests
// ============================================

func TestDeliveryFee_ThresholdIsStrict(t *testing.T) {
	tests := []struct {
		name     string
		subtotal string
		fee      string
	}{
		{"small basket", "10.00", "4.99"},
		{"exactly at threshold", "35.00", "4.99"},
		{"just over threshold", "35.01", "0"},
		{"large basket", "120.00", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCheckoutEnv(t)
			env.fillCart(tt.subtotal, 1, "prod-1")

			fee := env.flow.DeliveryFee()

			assert.True(t, fee.Equal(decimal.RequireFromString(tt.fee)),
				"subtotal %s: want fee %s, got %s", tt.subtotal, tt.fee, fee)
		})
	}
}

func TestTotal_TracksLiveCart(t *testing.T) {
	env := newCheckoutEnv(t)
	env.fillCart("30.00", 1, "prod-1")
	assert.True(t, env.flow.Total().Equal(decimal.RequireFromString("34.99")))

	// Crossing the threshold flips the fee off on the next read.
	env.fillCart("30.00", 1, "prod-2")
	assert.True(t, env.flow.Total().Equal(decimal.RequireFromString("60.00")))
}

// ============================================
// PlaceOrder saga tests
// ============================================

func TestPlaceOrder_FullScenario(t *testing.T) {
	env := newCheckoutEnv(t)
	env.readyForPayment(t)

	order, err := env.flow.PlaceOrder(context.Background())
	require.NoError(t, err)

	assert.True(t, order.Subtotal.Equal(decimal.RequireFromString("17.50")))
	assert.True(t, order.DeliveryFee.Equal(decimal.RequireFromString("4.99")))
	assert.True(t, order.Total.Equal(decimal.RequireFromString("22.49")))
	assert.Equal(t, model.OrderStatusConfirmed, order.Status)
	assert.Equal(t, "45-60 min", order.EstimatedDelivery)
	assert.Equal(t, "555-0100", order.Phone)
	assert.Equal(t, StatePlaced, env.flow.State())

	// First address for the user becomes the default.
	require.Len(t, env.addresses.Addresses, 1)
	assert.True(t, env.addresses.Addresses[0].IsDefault)
	assert.Equal(t, env.addresses.Addresses[0].ID, order.AddressID)

	require.Len(t, env.orders.Orders, 1)
	items := env.orders.ItemsForOrder(order.ID)
	require.Len(t, items, 2)
	itemsTotal := decimal.Zero
	for _, item := range items {
		itemsTotal = itemsTotal.Add(item.LineTotal())
	}
	assert.True(t, itemsTotal.Equal(decimal.RequireFromString("17.50")))

	// The cart is empty in memory and durably.
	assert.Empty(t, env.cart.Lines())
	assert.Equal(t, 0, env.cartRepo.Quantity("user-1", "prod-apples"))

	require.Len(t, env.publisher.Events, 1)
	assert.Equal(t, events.TypeOrderPlaced, env.publisher.Events[0].EventType)
	assert.Equal(t, order.ID, env.publisher.Events[0].Key)

	require.Len(t, env.mailer.Recipients, 1)
	assert.Equal(t, "shopper@example.com", env.mailer.Recipients[0])
}

func TestPlaceOrder_FreshAddressNotDefaultWhenOthersExist(t *testing.T) {
	env := newCheckoutEnv(t)
	env.addresses.Addresses = append(env.addresses.Addresses, model.Address{
		ID: "addr-existing", UserID: "user-1", Street: "1 Old Road",
		City: "Springfield", PostalCode: "12345", Phone: "555-0199", IsDefault: true,
	})
	env.readyForPayment(t)

	_, err := env.flow.PlaceOrder(context.Background())
	require.NoError(t, err)

	require.Len(t, env.addresses.Addresses, 2)
	assert.False(t, env.addresses.Addresses[1].IsDefault)
}

func TestPlaceOrder_WithSelectedAddress(t *testing.T) {
	env := newCheckoutEnv(t)
	env.addresses.Addresses = append(env.addresses.Addresses, model.Address{
		ID: "addr-1", UserID: "user-1", Street: "1 Old Road",
		City: "Springfield", PostalCode: "12345", Phone: "555-0199",
	})
	env.fillCart("2.50", 1, "prod-apples")
	env.flow.SelectAddress("addr-1")
	require.NoError(t, env.flow.ContinueToPayment())
	env.flow.EnterCard(validCard())

	order, err := env.flow.PlaceOrder(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "addr-1", order.AddressID)
	assert.Equal(t, "555-0199", order.Phone)
	assert.Len(t, env.addresses.Addresses, 1, "no new address inserted")
}

func TestPlaceOrder_AddressStepFailure(t *testing.T) {
	env := newCheckoutEnv(t)
	env.readyForPayment(t)
	env.addresses.InsertErr = errors.New("storage down")

	_, err := env.flow.PlaceOrder(context.Background())

	var placeErr *PlaceOrderError
	require.ErrorAs(t, err, &placeErr)
	assert.Equal(t, StepAddress, placeErr.Step)

	assert.Empty(t, env.orders.Orders)
	assert.Equal(t, StatePayment, env.flow.State())
	assert.NotEmpty(t, env.cart.Lines())
}

func TestPlaceOrder_OrderStepFailure(t *testing.T) {
	env := newCheckoutEnv(t)
	env.readyForPayment(t)
	env.orders.InsertOrderErr = errors.New("storage down")

	_, err := env.flow.PlaceOrder(context.Background())

	var placeErr *PlaceOrderError
	require.ErrorAs(t, err, &placeErr)
	assert.Equal(t, StepOrder, placeErr.Step)

	assert.Empty(t, env.orders.Items)
	assert.Equal(t, StatePayment, env.flow.State())
	assert.NotEmpty(t, env.cart.Lines())
	assert.Empty(t, env.publisher.Events)
}

func TestPlaceOrder_ItemsStepFailurePublishesReconciliation(t *testing.T) {
	env := newCheckoutEnv(t)
	env.readyForPayment(t)
	env.orders.InsertItemsErr = errors.New("storage down")

	_, err := env.flow.PlaceOrder(context.Background())

	var placeErr *PlaceOrderError
	require.ErrorAs(t, err, &placeErr)
	assert.Equal(t, StepItems, placeErr.Step)

	// The order row committed but the cart is untouched and the flow stays
	// in Payment so the shopper can retry.
	require.Len(t, env.orders.Orders, 1)
	assert.Equal(t, 4, env.cart.TotalItems())
	assert.Equal(t, StatePayment, env.flow.State())

	require.Len(t, env.publisher.Events, 1)
	assert.Equal(t, events.TypeReconciliationNeeded, env.publisher.Events[0].EventType)
	assert.Equal(t, env.orders.Orders[0].ID, env.publisher.Events[0].Key)
	assert.Empty(t, env.mailer.Recipients)
}

func TestPlaceOrder_RetryAfterFailureSucceeds(t *testing.T) {
	env := newCheckoutEnv(t)
	env.readyForPayment(t)
	env.orders.InsertOrderErr = errors.New("storage down")

	_, err := env.flow.PlaceOrder(context.Background())
	require.Error(t, err)

	env.orders.InsertOrderErr = nil
	order, err := env.flow.PlaceOrder(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StatePlaced, env.flow.State())
	assert.True(t, order.Total.Equal(decimal.RequireFromString("22.49")))
}

func TestPlaceOrder_PublishFailureDoesNotFailCheckout(t *testing.T) {
	env := newCheckoutEnv(t)
	env.readyForPayment(t)
	env.publisher.Err = errors.New("broker unreachable")
	env.mailer.Err = errors.New("smtp unreachable")

	order, err := env.flow.PlaceOrder(context.Background())

	require.NoError(t, err)
	assert.Equal(t, StatePlaced, env.flow.State())
	assert.NotNil(t, order)
}
