package catalog

import (
	"context"
	"strings"

	"github.com/example/freshmart/internal/model"
	"github.com/example/freshmart/internal/storage"
)

// Service is the read side of the product catalog. It owns no state and
// performs no writes; the cart and orders only ever hold product snapshots
// obtained through here.
type Service struct {
	repo storage.ProductRepository
}

func NewService(repo storage.ProductRepository) *Service {
	return &Service{repo: repo}
}

// List returns in-stock products sorted by name, optionally filtered by
// category and by a case-insensitive name search.
func (s *Service) List(ctx context.Context, category, search string) ([]model.Product, error) {
	products, err := s.repo.ListProducts(ctx, category)
	if err != nil {
		return nil, err
	}
	if search == "" {
		return products, nil
	}

	needle := strings.ToLower(search)
	filtered := products[:0]
	for _, p := range products {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			filtered = append(filtered, p)
		}
	}
	return filtered, nil
}

// Get returns a single product. storage.ErrProductNotFound passes through
// untouched so the API can render it as a not-found response.
func (s *Service) Get(ctx context.Context, id string) (*model.Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// Categories lists the distinct categories currently shoppable.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.repo.ListCategories(ctx)
}
