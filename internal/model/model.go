package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a catalog entry. The cart treats products as read-only
// references; only the catalog owns them.
type Product struct {
	ID            string           `json:"id"`
	Name          string           `json:"name"`
	Price         decimal.Decimal  `json:"price"`
	OriginalPrice *decimal.Decimal `json:"original_price,omitempty"`
	Image         string           `json:"image,omitempty"`
	Unit          string           `json:"unit"`
	Category      string           `json:"category"`
	Description   string           `json:"description,omitempty"`
	InStock       bool             `json:"in_stock"`
	Rating        float64          `json:"rating"`
}

// CartLine pairs a product with a quantity. Quantity is always >= 1;
// a line that would drop to zero is removed instead.
type CartLine struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// Address belongs to exactly one user. At most one address per user
// carries IsDefault.
type Address struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Street     string    `json:"street"`
	City       string    `json:"city"`
	PostalCode string    `json:"postal_code"`
	Phone      string    `json:"phone"`
	Label      string    `json:"label,omitempty"`
	IsDefault  bool      `json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
}

// Order statuses. Written once at checkout (confirmed); later transitions
// belong to the fulfillment process, which only ever updates this column.
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusDelivering = "delivering"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// Order is immutable after creation except for status. AddressID is
// captured at order time; later address edits never alter it.
type Order struct {
	ID                string          `json:"id"`
	UserID            string          `json:"user_id"`
	AddressID         string          `json:"address_id"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	DeliveryFee       decimal.Decimal `json:"delivery_fee"`
	Total             decimal.Decimal `json:"total"`
	Phone             string          `json:"phone"`
	Status            string          `json:"status"`
	EstimatedDelivery string          `json:"estimated_delivery"`
	CreatedAt         time.Time       `json:"created_at"`
	Items             []OrderItem     `json:"items,omitempty"`
}

// OrderItem freezes quantity and unit price as of order time. Product is
// joined for display only and may be nil if the catalog entry was deleted.
type OrderItem struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Product   *Product        `json:"product,omitempty"`
}

// LineTotal is quantity times the frozen unit price.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// User is the authenticated identity.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// PasswordReset backs the forgot-password flow. The raw token is only ever
// sent by email; the row stores its hash.
type PasswordReset struct {
	TokenHash string    `json:"-"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"created_at"`
}
