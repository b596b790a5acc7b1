package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/freshmart/internal/api/middleware"
	"github.com/example/freshmart/internal/cart"
	"github.com/example/freshmart/internal/catalog"
	"github.com/example/freshmart/internal/checkout"
	"github.com/example/freshmart/internal/model"
	"github.com/example/freshmart/internal/orders"
	"github.com/example/freshmart/internal/storage"
)

type Handlers struct {
	catalog  *catalog.Service
	history  *orders.History
	sessions *SessionManager

	users     storage.UserRepository
	addresses storage.AddressRepository
	orderRepo storage.OrderRepository

	publisher checkout.EventPublisher
	mailer    checkout.ConfirmationMailer

	checkoutTimeout time.Duration
}

func NewHandlers(
	catalogSvc *catalog.Service,
	history *orders.History,
	sessions *SessionManager,
	users storage.UserRepository,
	addresses storage.AddressRepository,
	orderRepo storage.OrderRepository,
	publisher checkout.EventPublisher,
	mailer checkout.ConfirmationMailer,
	checkoutTimeout time.Duration,
) *Handlers {
	return &Handlers{
		catalog:         catalogSvc,
		history:         history,
		sessions:        sessions,
		users:           users,
		addresses:       addresses,
		orderRepo:       orderRepo,
		publisher:       publisher,
		mailer:          mailer,
		checkoutTimeout: checkoutTimeout,
	}
}

// session resolves the request's session and aligns its identity provider
// with the validated token: present claims sign the session in, absent
// claims sign it out. The provider no-ops when nothing changed.
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) *Session {
	session := h.sessions.Attach(w, r)

	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		session.Provider.Clear()
		return session
	}

	current := session.Provider.CurrentUser()
	if current != nil && current.ID == claims.UserID {
		return session
	}
	user, err := h.users.GetUserByID(r.Context(), claims.UserID)
	if err != nil {
		session.Provider.Clear()
		return session
	}
	session.Provider.SetUser(user)
	return session
}

// Product Handlers

func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	search := r.URL.Query().Get("search")

	products, err := h.catalog.List(r.Context(), category, search)
	if err != nil {
		respondJSONError(w, "failed to load products", http.StatusInternalServerError)
		return
	}
	if products == nil {
		products = []model.Product{}
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := extractPathParam(r.URL.Path, "/products/")
	product, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			respondJSONError(w, "Product not found", http.StatusNotFound)
			return
		}
		respondJSONError(w, "failed to load product", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, product)
}

func (h *Handlers) GetCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		respondJSONError(w, "failed to load categories", http.StatusInternalServerError)
		return
	}
	if categories == nil {
		categories = []string{}
	}
	respondJSON(w, http.StatusOK, categories)
}

// Cart Handlers

type cartResponse struct {
	Items      []model.CartLine `json:"items"`
	TotalItems int              `json:"total_items"`
	Subtotal   decimal.Decimal  `json:"subtotal"`
}

func cartView(store *cart.Store) cartResponse {
	lines := store.Lines()
	if lines == nil {
		lines = []model.CartLine{}
	}
	return cartResponse{
		Items:      lines,
		TotalItems: store.TotalItems(),
		Subtotal:   store.Subtotal(),
	}
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	respondJSON(w, http.StatusOK, cartView(session.Cart))
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)

	var req struct {
		ProductID string `json:"product_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	product, err := h.catalog.Get(r.Context(), req.ProductID)
	if err != nil {
		if errors.Is(err, storage.ErrProductNotFound) {
			respondJSONError(w, "Product not found", http.StatusNotFound)
			return
		}
		respondJSONError(w, "failed to load product", http.StatusInternalServerError)
		return
	}

	session.Cart.AddToCart(*product)
	respondJSON(w, http.StatusOK, cartView(session.Cart))
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	productID := extractPathParam(r.URL.Path, "/cart/items/")

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session.Cart.UpdateQuantity(productID, req.Quantity)
	respondJSON(w, http.StatusOK, cartView(session.Cart))
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	productID := extractPathParam(r.URL.Path, "/cart/items/")

	session.Cart.RemoveFromCart(productID)
	respondJSON(w, http.StatusOK, cartView(session.Cart))
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)

	if err := session.Cart.Clear(r.Context()); err != nil {
		respondJSONError(w, "failed to clear cart", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, cartView(session.Cart))
}

// Checkout Handlers

type checkoutResponse struct {
	State       checkout.State  `json:"state"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	Total       decimal.Decimal `json:"total"`
	Addresses   []model.Address `json:"addresses"`
}

// flow returns the session's checkout flow, starting one when needed.
// Requires a signed-in user.
func (h *Handlers) flow(session *Session) (*checkout.Flow, *model.User) {
	user := session.Provider.CurrentUser()
	if user == nil {
		return nil, nil
	}
	if flow := session.Flow(); flow != nil {
		return flow, user
	}
	flow := checkout.NewFlow(user, session.Cart, h.addresses, h.orderRepo, h.publisher, h.mailer)
	session.StartFlow(flow)
	return flow, user
}

func (h *Handlers) checkoutView(ctx context.Context, flow *checkout.Flow, user *model.User) checkoutResponse {
	addresses, err := h.addresses.ListAddresses(ctx, user.ID)
	if err != nil {
		addresses = nil
	}
	if addresses == nil {
		addresses = []model.Address{}
	}
	subtotal := flow.Total().Sub(flow.DeliveryFee())
	return checkoutResponse{
		State:       flow.State(),
		Subtotal:    subtotal,
		DeliveryFee: flow.DeliveryFee(),
		Total:       flow.Total(),
		Addresses:   addresses,
	}
}

func (h *Handlers) GetCheckout(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	flow, user := h.flow(session)
	if flow == nil {
		respondJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	respondJSON(w, http.StatusOK, h.checkoutView(r.Context(), flow, user))
}

func (h *Handlers) SetCheckoutAddress(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	flow, user := h.flow(session)
	if flow == nil {
		respondJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		AddressID  string `json:"address_id"`
		Street     string `json:"street"`
		City       string `json:"city"`
		PostalCode string `json:"postal_code"`
		Phone      string `json:"phone"`
		Label      string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.AddressID != "" {
		flow.SelectAddress(req.AddressID)
	} else {
		flow.EnterAddress(model.Address{
			Street:     req.Street,
			City:       req.City,
			PostalCode: req.PostalCode,
			Phone:      req.Phone,
			Label:      req.Label,
		})
	}
	respondJSON(w, http.StatusOK, h.checkoutView(r.Context(), flow, user))
}

func (h *Handlers) ContinueToPayment(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	flow, user := h.flow(session)
	if flow == nil {
		respondJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := flow.ContinueToPayment(); err != nil {
		respondCheckoutError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.checkoutView(r.Context(), flow, user))
}

func (h *Handlers) BackToAddress(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	flow, user := h.flow(session)
	if flow == nil {
		respondJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := flow.BackToAddress(); err != nil {
		respondCheckoutError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.checkoutView(r.Context(), flow, user))
}

func (h *Handlers) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	flow, _ := h.flow(session)
	if flow == nil {
		respondJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		CardNumber string `json:"card_number"`
		Expiry     string `json:"expiry"`
		CVC        string `json:"cvc"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	flow.EnterCard(checkout.CardDetails{Number: req.CardNumber, Expiry: req.Expiry, CVC: req.CVC})

	ctx, cancel := context.WithTimeout(r.Context(), h.checkoutTimeout)
	defer cancel()

	order, err := flow.PlaceOrder(ctx)
	if err != nil {
		respondCheckoutError(w, err)
		return
	}

	session.EndFlow()
	respondJSON(w, http.StatusCreated, order)
}

func respondCheckoutError(w http.ResponseWriter, err error) {
	var placeErr *checkout.PlaceOrderError
	switch {
	case errors.As(err, &placeErr):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": "order could not be placed",
			"step":  string(placeErr.Step),
		})
	case errors.Is(err, checkout.ErrEmptyCart),
		errors.Is(err, checkout.ErrAddressIncomplete),
		errors.Is(err, checkout.ErrPaymentIncomplete):
		respondJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, checkout.ErrInvalidTransition),
		errors.Is(err, checkout.ErrSubmissionInFlight):
		respondJSONError(w, err.Error(), http.StatusConflict)
	default:
		respondJSONError(w, "checkout failed", http.StatusInternalServerError)
	}
}

// Order Handlers

func (h *Handlers) GetOrders(w http.ResponseWriter, r *http.Request) {
	session := h.session(w, r)
	user := session.Provider.CurrentUser()
	if user == nil {
		respondJSONError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	views, err := h.history.List(r.Context(), user.ID)
	if err != nil {
		respondJSONError(w, "failed to load orders", http.StatusInternalServerError)
		return
	}
	if views == nil {
		views = []orders.OrderView{}
	}
	respondJSON(w, http.StatusOK, views)
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func extractPathParam(path, prefix string) string {
	return strings.TrimPrefix(path, prefix)
}
