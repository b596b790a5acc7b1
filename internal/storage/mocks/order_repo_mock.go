package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/example/freshmart/internal/model"
	"github.com/example/freshmart/internal/storage"
)

// MockOrderRepo is an in-memory OrderRepository recording inserts for tests.
type MockOrderRepo struct {
	mu sync.Mutex

	Orders []model.Order
	Items  []model.OrderItem

	// Products joins ListOrders item snapshots; absent products yield a
	// nil Product on the item, like the real LEFT JOIN.
	Products map[string]model.Product

	InsertOrderErr  error
	InsertItemsErr  error
	ListErr         error
	UpdateStatusErr error
}

func NewMockOrderRepo() *MockOrderRepo {
	return &MockOrderRepo{Products: make(map[string]model.Product)}
}

func (m *MockOrderRepo) InsertOrder(ctx context.Context, order model.Order) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InsertOrderErr != nil {
		return "", m.InsertOrderErr
	}
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	m.Orders = append(m.Orders, order)
	return order.ID, nil
}

func (m *MockOrderRepo) InsertOrderItems(ctx context.Context, items []model.OrderItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.InsertItemsErr != nil {
		return m.InsertItemsErr
	}
	for _, item := range items {
		if item.ID == "" {
			item.ID = uuid.New().String()
		}
		m.Items = append(m.Items, item)
	}
	return nil
}

func (m *MockOrderRepo) UpdateOrderStatus(ctx context.Context, orderID, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.UpdateStatusErr != nil {
		return m.UpdateStatusErr
	}
	for i := range m.Orders {
		if m.Orders[i].ID == orderID {
			m.Orders[i].Status = status
			return nil
		}
	}
	return storage.ErrOrderNotFound
}

func (m *MockOrderRepo) ListOrders(ctx context.Context, userID string) ([]model.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}

	var orders []model.Order
	for _, o := range m.Orders {
		if o.UserID != userID {
			continue
		}
		order := o
		order.Items = nil
		for _, item := range m.Items {
			if item.OrderID != order.ID {
				continue
			}
			if product, ok := m.Products[item.ProductID]; ok {
				p := product
				item.Product = &p
			}
			order.Items = append(order.Items, item)
		}
		orders = append(orders, order)
	}

	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

// ItemsForOrder returns the stored items for an order.
func (m *MockOrderRepo) ItemsForOrder(orderID string) []model.OrderItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	var items []model.OrderItem
	for _, item := range m.Items {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}
	return items
}
