package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/sync/errgroup"

	"coopmarket/internal/audit"
	"coopmarket/internal/identity"
	"coopmarket/internal/platform/metrics"
	"coopmarket/internal/product/models"
	"coopmarket/internal/product/store"
	usermodels "coopmarket/internal/user/models"
	"coopmarket/pkg/domain"
	dErrors "coopmarket/pkg/domain-errors"
	"coopmarket/pkg/platform/sentinel"
	"coopmarket/pkg/requestcontext"
)

// Sellers resolves the directory records embedded as seller summaries.
type Sellers interface {
	FindByID(ctx context.Context, id domain.UserID) (*usermodels.User, error)
}

// Service owns catalog rules: who may create, who may change, what a listing
// looks like on the wire.
type Service struct {
	products store.Store
	sellers  Sellers
	auditor  *audit.Publisher
	metrics  *metrics.Metrics
}

func New(products store.Store, sellers Sellers, auditor *audit.Publisher, m *metrics.Metrics) *Service {
	return &Service{products: products, sellers: sellers, auditor: auditor, metrics: m}
}

func (s *Service) Create(ctx context.Context, principal identity.Principal, req models.CreateRequest) (*models.WithSeller, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	product := &models.Product{
		ID:          domain.NewProductID(),
		SellerID:    principal.InternalID,
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Category:    req.Category,
		Subcategory: strings.TrimSpace(req.Subcategory),
		Price:       req.Price,
		Quantity:    req.Quantity,
		Unit:        req.Unit,
		Images:      req.Images,
		IsActive:    true,
		IsFeatured:  req.IsFeatured,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if product.Images == nil {
		product.Images = []string{}
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create product")
	}

	s.auditor.Publish(ctx, audit.Event{
		Category:  audit.CategoryOperations,
		UserID:    principal.InternalID,
		Action:    audit.ActionProductCreated,
		Subject:   product.ID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	if s.metrics != nil {
		s.metrics.ProductsCreated.Inc()
	}

	return s.withSeller(ctx, product), nil
}

func (s *Service) Get(ctx context.Context, id domain.ProductID) (*models.WithSeller, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "Product not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load product")
	}
	return s.withSeller(ctx, product), nil
}

// List pages the catalog and resolves seller summaries in parallel.
func (s *Service) List(ctx context.Context, filter store.ListFilter) (*models.Page, error) {
	products, total, err := s.products.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list products")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 10
	}

	items := make([]models.WithSeller, len(products))
	g, gctx := errgroup.WithContext(ctx)
	for i, product := range products {
		g.Go(func() error {
			items[i] = *s.withSeller(gctx, product)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list products")
	}

	return &models.Page{
		Products:   items,
		Pagination: domain.NewPagination(page, limit, total),
	}, nil
}

func (s *Service) Update(ctx context.Context, principal identity.Principal, id domain.ProductID, req models.UpdateRequest) (*models.WithSeller, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "Product not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load product")
	}
	if err := identity.RequireOwnership(principal, product.SellerID); err != nil {
		return nil, err
	}
	if err := applyUpdate(product, req); err != nil {
		return nil, err
	}

	product.UpdatedAt = requestcontext.Now(ctx)
	if err := s.products.Update(ctx, product); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update product")
	}

	s.auditor.Publish(ctx, audit.Event{
		Category:  audit.CategoryOperations,
		UserID:    principal.InternalID,
		Action:    audit.ActionProductUpdated,
		Subject:   product.ID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})

	return s.withSeller(ctx, product), nil
}

func (s *Service) Delete(ctx context.Context, principal identity.Principal, id domain.ProductID) error {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "Product not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load product")
	}
	if err := identity.RequireOwnership(principal, product.SellerID); err != nil {
		return err
	}

	if err := s.products.Delete(ctx, id); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete product")
	}

	s.auditor.Publish(ctx, audit.Event{
		Category:  audit.CategoryOperations,
		UserID:    principal.InternalID,
		Action:    audit.ActionProductDeleted,
		Subject:   id.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	return nil
}

func (s *Service) CategoryStats(ctx context.Context) ([]models.CategoryStat, error) {
	stats, err := s.products.CategoryStats(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load category stats")
	}
	return stats, nil
}

// withSeller attaches the seller summary when the directory still has the
// record; a vanished seller leaves the summary empty rather than failing the
// listing.
func (s *Service) withSeller(ctx context.Context, product *models.Product) *models.WithSeller {
	item := &models.WithSeller{Product: *product}
	seller, err := s.sellers.FindByID(ctx, product.SellerID)
	if err == nil {
		summary := seller.Summarize()
		item.Seller = &summary
	}
	return item
}

func validateCreate(req models.CreateRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "product name is required")
	}
	if !req.Category.Valid() {
		return dErrors.New(dErrors.CodeBadRequest, "invalid product category")
	}
	if !req.Unit.Valid() {
		return dErrors.New(dErrors.CodeBadRequest, "invalid product unit")
	}
	if req.Price <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "price must be positive")
	}
	if req.Quantity < 0 {
		return dErrors.New(dErrors.CodeBadRequest, "quantity must not be negative")
	}
	return nil
}

func applyUpdate(product *models.Product, req models.UpdateRequest) error {
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return dErrors.New(dErrors.CodeBadRequest, "product name is required")
		}
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		product.Description = strings.TrimSpace(*req.Description)
	}
	if req.Category != nil {
		if !req.Category.Valid() {
			return dErrors.New(dErrors.CodeBadRequest, "invalid product category")
		}
		product.Category = *req.Category
	}
	if req.Subcategory != nil {
		product.Subcategory = strings.TrimSpace(*req.Subcategory)
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return dErrors.New(dErrors.CodeBadRequest, "price must be positive")
		}
		product.Price = *req.Price
	}
	if req.Quantity != nil {
		if *req.Quantity < 0 {
			return dErrors.New(dErrors.CodeBadRequest, "quantity must not be negative")
		}
		product.Quantity = *req.Quantity
	}
	if req.Unit != nil {
		if !req.Unit.Valid() {
			return dErrors.New(dErrors.CodeBadRequest, "invalid product unit")
		}
		product.Unit = *req.Unit
	}
	if req.Images != nil {
		product.Images = *req.Images
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	if req.IsFeatured != nil {
		product.IsFeatured = *req.IsFeatured
	}
	return nil
}
