package checkout

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/example/freshmart/internal/cart"
	"github.com/example/freshmart/internal/events"
	"github.com/example/freshmart/internal/model"
	"github.com/example/freshmart/internal/storage"
)

// State of the checkout flow. Payment may go back to Address; Placed is
// terminal.
type State string

const (
	StateAddress State = "address"
	StatePayment State = "payment"
	StatePlaced  State = "placed"
)

const estimatedDelivery = "45-60 min"

var (
	freeDeliveryThreshold = decimal.RequireFromString("35.00")
	standardDeliveryFee   = decimal.RequireFromString("4.99")
)

// EventPublisher is satisfied by events.Producer.
type EventPublisher interface {
	Publish(ctx context.Context, eventType, key string, payload any) error
}

// ConfirmationMailer sends the post-checkout confirmation. Implemented by the
// email service; tests substitute a recorder.
type ConfirmationMailer interface {
	SendOrderConfirmation(to string, order model.Order) error
}

// CardDetails is a presence-checked stand-in for a payment gateway call.
// Nothing here is stored.
type CardDetails struct {
	Number string
	Expiry string
	CVC    string
}

// Flow walks one authenticated session through address entry, payment and
// order placement. It owns no durable state of its own: the cart is the
// source of truth for amounts, and every money figure is recomputed from the
// live cart on read, never cached across steps.
type Flow struct {
	mu sync.Mutex

	state      State
	submitting bool

	user *model.User
	cart *cart.Store

	selectedAddressID string
	freshAddress      *model.Address
	card              CardDetails

	addresses storage.AddressRepository
	orders    storage.OrderRepository
	publisher EventPublisher
	mailer    ConfirmationMailer
}

func NewFlow(user *model.User, cartStore *cart.Store, addresses storage.AddressRepository, orders storage.OrderRepository, publisher EventPublisher, mailer ConfirmationMailer) *Flow {
	return &Flow{
		state:     StateAddress,
		user:      user,
		cart:      cartStore,
		addresses: addresses,
		orders:    orders,
		publisher: publisher,
		mailer:    mailer,
	}
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// SelectAddress picks a saved address by id and discards any fresh address
// entered earlier. Selection and fresh entry are mutually exclusive.
func (f *Flow) SelectAddress(addressID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.selectedAddressID = addressID
	f.freshAddress = nil
}

// EnterAddress takes a fresh address and discards any prior selection.
func (f *Flow) EnterAddress(addr model.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.freshAddress = &addr
	f.selectedAddressID = ""
}

// ContinueToPayment validates the address step and advances. An empty cart
// never advances.
func (f *Flow) ContinueToPayment() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StateAddress {
		return ErrInvalidTransition
	}
	if f.cart.TotalItems() == 0 {
		return ErrEmptyCart
	}
	if !f.addressReady() {
		return ErrAddressIncomplete
	}
	f.state = StatePayment
	return nil
}

// BackToAddress returns from the payment step. Entered details survive.
func (f *Flow) BackToAddress() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.state != StatePayment {
		return ErrInvalidTransition
	}
	f.state = StateAddress
	return nil
}

func (f *Flow) EnterCard(card CardDetails) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.card = card
}

// DeliveryFee is zero once the live subtotal strictly exceeds the free
// delivery threshold, otherwise the flat fee.
func (f *Flow) DeliveryFee() decimal.Decimal {
	return deliveryFeeFor(f.cart.Subtotal())
}

// Total is the live subtotal plus the delivery fee.
func (f *Flow) Total() decimal.Decimal {
	subtotal := f.cart.Subtotal()
	return subtotal.Add(deliveryFeeFor(subtotal))
}

func deliveryFeeFor(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThan(freeDeliveryThreshold) {
		return decimal.Zero
	}
	return standardDeliveryFee
}

func (f *Flow) addressReady() bool {
	if f.selectedAddressID != "" {
		return true
	}
	a := f.freshAddress
	return a != nil && a.Street != "" && a.City != "" && a.PostalCode != "" && a.Phone != ""
}

// PlaceOrder runs the placement saga: persist a fresh address if one was
// entered, insert the order row, insert its items, then clear the cart.
// Steps run strictly in that order and the saga aborts on the first failure,
// returning a PlaceOrderError tagged with the failed step. The cart is
// cleared only after the items are durably written, so a failed placement
// leaves the cart intact and the flow in Payment for a retry.
func (f *Flow) PlaceOrder(ctx context.Context) (*model.Order, error) {
	f.mu.Lock()
	if f.state != StatePayment {
		f.mu.Unlock()
		return nil, ErrInvalidTransition
	}
	if f.submitting {
		f.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	if f.card.Number == "" || f.card.Expiry == "" || f.card.CVC == "" {
		f.mu.Unlock()
		return nil, ErrPaymentIncomplete
	}
	f.submitting = true
	f.mu.Unlock()

	order, err := f.placeOrder(ctx)

	f.mu.Lock()
	f.submitting = false
	if err == nil {
		f.state = StatePlaced
	}
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return order, nil
}

func (f *Flow) placeOrder(ctx context.Context) (*model.Order, error) {
	lines := f.cart.Lines()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	addressID, phone, err := f.resolveAddress(ctx)
	if err != nil {
		return nil, &PlaceOrderError{Step: StepAddress, Err: err}
	}

	// Amounts are captured once here, at submit time.
	subtotal := f.cart.Subtotal()
	fee := deliveryFeeFor(subtotal)

	order := model.Order{
		ID:                uuid.New().String(),
		UserID:            f.user.ID,
		AddressID:         addressID,
		Subtotal:          subtotal,
		DeliveryFee:       fee,
		Total:             subtotal.Add(fee),
		Phone:             phone,
		Status:            model.OrderStatusConfirmed,
		EstimatedDelivery: estimatedDelivery,
		CreatedAt:         time.Now(),
	}
	orderID, err := f.orders.InsertOrder(ctx, order)
	if err != nil {
		return nil, &PlaceOrderError{Step: StepOrder, Err: err}
	}
	order.ID = orderID

	items := make([]model.OrderItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, model.OrderItem{
			ID:        uuid.New().String(),
			OrderID:   order.ID,
			ProductID: line.Product.ID,
			Quantity:  line.Quantity,
			UnitPrice: line.Product.Price,
		})
	}
	if err := f.orders.InsertOrderItems(ctx, items); err != nil {
		// The order row exists without items. Flag it for operators instead
		// of trying to roll back a committed row.
		log.Printf("[Checkout] order %s committed without items, reconciliation needed: %v", order.ID, err)
		f.publishReconciliation(order, err)
		return nil, &PlaceOrderError{Step: StepItems, Err: err}
	}
	order.Items = items

	// Clearing the cart is the commit signal. It is awaited, not queued.
	if err := f.cart.Clear(ctx); err != nil {
		log.Printf("[Checkout] order %s placed but cart clear failed: %v", order.ID, err)
	}

	f.publishPlaced(order)
	if f.mailer != nil {
		if err := f.mailer.SendOrderConfirmation(f.user.Email, order); err != nil {
			log.Printf("[Checkout] failed to send confirmation for order %s: %v", order.ID, err)
		}
	}
	return &order, nil
}

// resolveAddress returns the address id and contact phone for the order.
// A fresh address is inserted first and becomes the default only when the
// user had no addresses at all.
func (f *Flow) resolveAddress(ctx context.Context) (string, string, error) {
	f.mu.Lock()
	selectedID := f.selectedAddressID
	fresh := f.freshAddress
	f.mu.Unlock()

	if fresh == nil {
		if selectedID == "" {
			return "", "", ErrAddressIncomplete
		}
		existing, err := f.addresses.ListAddresses(ctx, f.user.ID)
		if err != nil {
			return "", "", err
		}
		for _, a := range existing {
			if a.ID == selectedID {
				return a.ID, a.Phone, nil
			}
		}
		return "", "", ErrAddressIncomplete
	}

	existing, err := f.addresses.ListAddresses(ctx, f.user.ID)
	if err != nil {
		return "", "", err
	}
	addr := *fresh
	addr.UserID = f.user.ID
	addr.IsDefault = len(existing) == 0
	id, err := f.addresses.InsertAddress(ctx, addr)
	if err != nil {
		return "", "", err
	}
	return id, addr.Phone, nil
}

func (f *Flow) publishPlaced(order model.Order) {
	if f.publisher == nil {
		return
	}
	err := f.publisher.Publish(context.Background(), events.TypeOrderPlaced, order.ID, events.OrderPlaced{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Total:     order.Total.StringFixed(2),
		ItemCount: len(order.Items),
	})
	if err != nil {
		log.Printf("[Checkout] failed to publish order.placed for %s: %v", order.ID, err)
	}
}

func (f *Flow) publishReconciliation(order model.Order, cause error) {
	if f.publisher == nil {
		return
	}
	err := f.publisher.Publish(context.Background(), events.TypeReconciliationNeeded, order.ID, events.ReconciliationNeeded{
		OrderID: order.ID,
		UserID:  order.UserID,
		Reason:  cause.Error(),
	})
	if err != nil {
		log.Printf("[Checkout] failed to publish reconciliation event for %s: %v", order.ID, err)
	}
}
