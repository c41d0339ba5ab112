package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"coopmarket/internal/product/models"
	"coopmarket/pkg/domain"
	"coopmarket/pkg/platform/sentinel"
)

// InMemory keeps the catalog in a map, backing development mode and unit
// tests.
type InMemory struct {
	mu       sync.RWMutex
	products map[domain.ProductID]*models.Product
}

func NewInMemory() *InMemory {
	return &InMemory{products: make(map[domain.ProductID]*models.Product)}
}

func (s *InMemory) Create(_ context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.ID]; ok {
		return sentinel.ErrConflict
	}
	s.products[product.ID] = cloneProduct(product)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.ProductID) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if product, ok := s.products[id]; ok {
		return cloneProduct(product), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) Update(_ context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.ID]; !ok {
		return sentinel.ErrNotFound
	}
	s.products[product.ID] = cloneProduct(product)
	return nil
}

func (s *InMemory) Delete(_ context.Context, id domain.ProductID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *InMemory) List(_ context.Context, filter ListFilter) ([]*models.Product, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Product
	for _, product := range s.products {
		if !matches(product, filter) {
			continue
		}
		matched = append(matched, cloneProduct(product))
	}

	sortProducts(matched, filter)

	total := len(matched)
	start, end := pageBounds(filter.Page, filter.Limit, total)
	return matched[start:end], total, nil
}

func (s *InMemory) CategoryStats(_ context.Context) ([]models.CategoryStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type key struct {
		category    models.Category
		subcategory string
	}
	counts := make(map[key]int)
	for _, product := range s.products {
		if !product.IsActive {
			continue
		}
		counts[key{product.Category, product.Subcategory}]++
	}

	stats := make([]models.CategoryStat, 0, len(counts))
	for k, count := range counts {
		stats = append(stats, models.CategoryStat{
			Category:    k.category,
			Subcategory: k.subcategory,
			Count:       count,
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Category != stats[j].Category {
			return stats[i].Category < stats[j].Category
		}
		return stats[i].Subcategory < stats[j].Subcategory
	})
	return stats, nil
}

func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products), nil
}

func matches(product *models.Product, filter ListFilter) bool {
	if filter.ActiveOnly && !product.IsActive {
		return false
	}
	if filter.Category != "" && product.Category != filter.Category {
		return false
	}
	if filter.Subcategory != "" && !strings.EqualFold(product.Subcategory, filter.Subcategory) {
		return false
	}
	if !filter.SellerID.IsZero() && product.SellerID != filter.SellerID {
		return false
	}
	if filter.MinPrice != nil && product.Price < *filter.MinPrice {
		return false
	}
	if filter.MaxPrice != nil && product.Price > *filter.MaxPrice {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(product.Name), needle) &&
			!strings.Contains(strings.ToLower(product.Description), needle) {
			return false
		}
	}
	return true
}

func sortProducts(products []*models.Product, filter ListFilter) {
	field, desc := filter.SortField, filter.SortDesc
	if field == "" {
		// Newest first is the default ordering.
		field, desc = SortCreatedAt, true
	}

	var less func(i, j int) bool
	switch field {
	case SortPrice:
		less = func(i, j int) bool { return products[i].Price < products[j].Price }
	case SortName:
		less = func(i, j int) bool { return products[i].Name < products[j].Name }
	default:
		less = func(i, j int) bool { return products[i].CreatedAt.Before(products[j].CreatedAt) }
	}
	if desc {
		inner := less
		less = func(i, j int) bool { return inner(j, i) }
	}
	sort.Slice(products, less)
}

func cloneProduct(product *models.Product) *models.Product {
	clone := *product
	clone.Images = append([]string(nil), product.Images...)
	return &clone
}

// pageBounds clamps a page/limit pair onto a slice of length total.
func pageBounds(page, limit, total int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return start, end
}
