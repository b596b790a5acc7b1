package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/example/freshmart/internal/model"
	"github.com/example/freshmart/internal/storage"
)

// MockProductRepo is an in-memory ProductRepository.
type MockProductRepo struct {
	mu sync.RWMutex

	Products []model.Product

	ListErr error
	GetErr  error
}

func NewMockProductRepo(products ...model.Product) *MockProductRepo {
	return &MockProductRepo{Products: products}
}

func (m *MockProductRepo) ListProducts(ctx context.Context, category string) ([]model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var products []model.Product
	for _, p := range m.Products {
		if !p.InStock {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].Name < products[j].Name
	})
	return products, nil
}

func (m *MockProductRepo) ListCategories(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	seen := make(map[string]bool)
	var categories []string
	for _, p := range m.Products {
		if !p.InStock || seen[p.Category] {
			continue
		}
		seen[p.Category] = true
		categories = append(categories, p.Category)
	}
	sort.Strings(categories)
	return categories, nil
}

func (m *MockProductRepo) GetProduct(ctx context.Context, id string) (*model.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}
	for _, p := range m.Products {
		if p.ID == id {
			product := p
			return &product, nil
		}
	}
	return nil, storage.ErrProductNotFound
}
