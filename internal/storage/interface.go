package storage

import (
	"context"
	"errors"

	"github.com/example/freshmart/internal/model"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrOrderNotFound   = errors.New("order not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailTaken      = errors.New("email already registered")
	ErrResetNotFound   = errors.New("password reset not found")
)

// ProductRepository is the read-only catalog contract.
type ProductRepository interface {
	// ListProducts returns in-stock products sorted by name ascending,
	// optionally filtered by category.
	ListProducts(ctx context.Context, category string) ([]model.Product, error)
	GetProduct(ctx context.Context, id string) (*model.Product, error)
	// ListCategories returns the distinct categories of in-stock products,
	// sorted ascending.
	ListCategories(ctx context.Context) ([]string, error)
}

// CartLineRepository is the durable mirror of per-user cart state, keyed
// by (user id, product id).
type CartLineRepository interface {
	UpsertLine(ctx context.Context, userID, productID string, quantity int) error
	DeleteLine(ctx context.Context, userID, productID string) error
	DeleteAllLines(ctx context.Context, userID string) error
	// ListLines returns the persisted cart joined with products, silently
	// omitting rows whose product no longer exists.
	ListLines(ctx context.Context, userID string) ([]model.CartLine, error)
}

type AddressRepository interface {
	ListAddresses(ctx context.Context, userID string) ([]model.Address, error)
	InsertAddress(ctx context.Context, addr model.Address) (string, error)
}

// OrderRepository persists the order aggregate. InsertOrder and
// InsertOrderItems are separate calls on purpose: the aggregate write is a
// sequential chain, not a transaction, and the caller owns the ordering.
type OrderRepository interface {
	InsertOrder(ctx context.Context, order model.Order) (string, error)
	InsertOrderItems(ctx context.Context, items []model.OrderItem) error
	// ListOrders returns a user's orders newest-first, each joined with its
	// items and each item's product snapshot. Items whose product was
	// deleted come back with a nil Product rather than failing the fetch.
	ListOrders(ctx context.Context, userID string) ([]model.Order, error)
	// UpdateOrderStatus moves an order to a new fulfillment status. It is
	// the only mutation allowed after an order is created.
	UpdateOrderStatus(ctx context.Context, orderID, status string) error
}

type UserRepository interface {
	InsertUser(ctx context.Context, user model.User) error
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	InsertPasswordReset(ctx context.Context, reset model.PasswordReset) error
	GetPasswordReset(ctx context.Context, tokenHash string) (*model.PasswordReset, error)
	MarkPasswordResetUsed(ctx context.Context, tokenHash string) error
}
