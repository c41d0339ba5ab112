package store

import (
	"context"

	"coopmarket/internal/product/models"
	"coopmarket/pkg/domain"
)

// Sort fields accepted by ListFilter. Anything else falls back to creation
// time.
const (
	SortCreatedAt = "createdAt"
	SortPrice     = "price"
	SortName      = "name"
)

// ListFilter narrows and pages catalog listings.
type ListFilter struct {
	Category    models.Category
	Subcategory string
	Search      string
	MinPrice    *float64
	MaxPrice    *float64
	SellerID    domain.UserID
	ActiveOnly  bool
	SortField   string
	SortDesc    bool
	Page        int
	Limit       int
}

// Store is the product catalog. Implementations return sentinel.ErrNotFound
// for missing records.
type Store interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id domain.ProductID) (*models.Product, error)
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id domain.ProductID) error
	List(ctx context.Context, filter ListFilter) ([]*models.Product, int, error)
	CategoryStats(ctx context.Context) ([]models.CategoryStat, error)
	Count(ctx context.Context) (int, error)
}
