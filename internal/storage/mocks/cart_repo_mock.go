package mocks

import (
	"context"
	"sync"

	"github.com/example/freshmart/internal/model"
)

// CartOp records one durable-mirror call for assertions in tests.
type CartOp struct {
	Kind      string // "upsert", "delete", "clear"
	UserID    string
	ProductID string
	Quantity  int
}

// MockCartRepo is an in-memory CartLineRepository that records every call
// in order, so tests can assert on the mirror stream without real storage.
type MockCartRepo struct {
	mu sync.Mutex

	// Products is the catalog used to join ListLines results. Lines whose
	// product is absent here are omitted, like the real repository.
	Products map[string]model.Product

	quantities map[string]map[string]int // userID -> productID -> quantity
	lineOrder  map[string][]string       // userID -> productIDs, insertion order

	Ops []CartOp

	UpsertErr    error
	DeleteErr    error
	DeleteAllErr error
	ListErr      error
}

func NewMockCartRepo() *MockCartRepo {
	return &MockCartRepo{
		Products:   make(map[string]model.Product),
		quantities: make(map[string]map[string]int),
		lineOrder:  make(map[string][]string),
	}
}

func (m *MockCartRepo) UpsertLine(ctx context.Context, userID, productID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Ops = append(m.Ops, CartOp{Kind: "upsert", UserID: userID, ProductID: productID, Quantity: quantity})
	if m.UpsertErr != nil {
		return m.UpsertErr
	}

	if m.quantities[userID] == nil {
		m.quantities[userID] = make(map[string]int)
	}
	if _, exists := m.quantities[userID][productID]; !exists {
		m.lineOrder[userID] = append(m.lineOrder[userID], productID)
	}
	m.quantities[userID][productID] = quantity
	return nil
}

func (m *MockCartRepo) DeleteLine(ctx context.Context, userID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Ops = append(m.Ops, CartOp{Kind: "delete", UserID: userID, ProductID: productID})
	if m.DeleteErr != nil {
		return m.DeleteErr
	}

	delete(m.quantities[userID], productID)
	ids := m.lineOrder[userID]
	for i, id := range ids {
		if id == productID {
			m.lineOrder[userID] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MockCartRepo) DeleteAllLines(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Ops = append(m.Ops, CartOp{Kind: "clear", UserID: userID})
	if m.DeleteAllErr != nil {
		return m.DeleteAllErr
	}

	delete(m.quantities, userID)
	delete(m.lineOrder, userID)
	return nil
}

func (m *MockCartRepo) ListLines(ctx context.Context, userID string) ([]model.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}

	var lines []model.CartLine
	for _, productID := range m.lineOrder[userID] {
		product, ok := m.Products[productID]
		if !ok {
			continue
		}
		lines = append(lines, model.CartLine{
			Product:  product,
			Quantity: m.quantities[userID][productID],
		})
	}
	return lines, nil
}

// Quantity returns the stored quantity for (userID, productID), or 0.
func (m *MockCartRepo) Quantity(userID, productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quantities[userID][productID]
}

// OpsSnapshot returns a copy of the recorded ops.
func (m *MockCartRepo) OpsSnapshot() []CartOp {
	m.mu.Lock()
	defer m.mu.Unlock()
	ops := make([]CartOp, len(m.Ops))
	copy(ops, m.Ops)
	return ops
}
