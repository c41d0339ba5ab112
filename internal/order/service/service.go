package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"coopmarket/internal/audit"
	"coopmarket/internal/identity"
	"coopmarket/internal/order/models"
	"coopmarket/internal/order/store"
	"coopmarket/internal/platform/metrics"
	productmodels "coopmarket/internal/product/models"
	usermodels "coopmarket/internal/user/models"
	"coopmarket/pkg/domain"
	dErrors "coopmarket/pkg/domain-errors"
	"coopmarket/pkg/platform/sentinel"
	"coopmarket/pkg/requestcontext"
)

// Products resolves the catalog records orders are placed against.
type Products interface {
	FindByID(ctx context.Context, id domain.ProductID) (*productmodels.Product, error)
}

// Parties resolves the directory records embedded as buyer/seller summaries.
type Parties interface {
	FindByID(ctx context.Context, id domain.UserID) (*usermodels.User, error)
}

// createOrderRetries bounds how often Create re-rolls the order number after
// a uniqueness collision.
const createOrderRetries = 3

// Service owns order rules: who may see an order, who may move its status,
// and which moves the fulfilment flow allows.
type Service struct {
	orders   store.Store
	products Products
	parties  Parties
	auditor  *audit.Publisher
	metrics  *metrics.Metrics
}

func New(orders store.Store, products Products, parties Parties, auditor *audit.Publisher, m *metrics.Metrics) *Service {
	return &Service{orders: orders, products: products, parties: parties, auditor: auditor, metrics: m}
}

// Create places an order for the authenticated buyer. Totals are recorded as
// submitted but must add up; money handling beyond that is out of scope.
func (s *Service) Create(ctx context.Context, principal identity.Principal, req models.CreateRequest) (*models.WithParties, error) {
	productID, err := domain.ParseProductID(req.ProductID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid product id")
	}
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "Product not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load product")
	}
	if product.SellerID == principal.InternalID {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Cannot order your own product")
	}

	var auctionID *domain.AuctionID
	if req.AuctionID != "" {
		parsed, err := domain.ParseAuctionID(req.AuctionID)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeBadRequest, "invalid auction id")
		}
		auctionID = &parsed
	}

	now := requestcontext.Now(ctx)
	var order *models.Order
	for attempt := 0; ; attempt++ {
		orderID := domain.NewOrderID()
		order = &models.Order{
			ID:          orderID,
			OrderNumber: fmt.Sprintf("ORD-%d-%s", now.Unix(), order8(orderID)),
			BuyerID:     principal.InternalID,
			SellerID:    product.SellerID,
			ProductID:   productID,
			AuctionID:   auctionID,
			Status:      models.StatusPending,
			Quantity:    req.Quantity,
			Subtotal:    req.Subtotal,
			Tax:         req.Tax,
			Shipping:    req.Shipping,
			Total:       req.Total,
			Notes:       req.Notes,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		err := s.orders.Create(ctx, order)
		if err == nil {
			break
		}
		// An order-number collision; a fresh id carries a fresh suffix.
		if errors.Is(err, sentinel.ErrConflict) && attempt+1 < createOrderRetries {
			continue
		}
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "Could not allocate an order number, try again")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create order")
	}

	s.auditor.Publish(ctx, audit.Event{
		Category:  audit.CategoryOperations,
		UserID:    principal.InternalID,
		Action:    audit.ActionOrderCreated,
		Subject:   order.ID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	if s.metrics != nil {
		s.metrics.OrdersCreated.Inc()
	}

	return s.withParties(ctx, order), nil
}

// Get returns an order to one of its participants or an admin.
func (s *Service) Get(ctx context.Context, principal identity.Principal, id domain.OrderID) (*models.WithParties, error) {
	order, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.participant(principal, order) {
		return nil, dErrors.New(dErrors.CodeForbidden, "Not authorized to view this order")
	}
	return s.withParties(ctx, order), nil
}

// List pages the authenticated user's orders on the requested side.
func (s *Service) List(ctx context.Context, filter store.ListFilter) (*models.Page, error) {
	orders, total, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list orders")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 10
	}

	items := make([]models.WithParties, len(orders))
	for i, order := range orders {
		items[i] = *s.withParties(ctx, order)
	}
	return &models.Page{
		Orders:     items,
		Pagination: domain.NewPagination(page, limit, total),
	}, nil
}

// UpdateStatus advances the fulfilment state. Only the seller (or an admin)
// drives the flow; the transition table decides what is legal.
func (s *Service) UpdateStatus(ctx context.Context, principal identity.Principal, id domain.OrderID, next models.Status) (*models.WithParties, error) {
	if !next.Valid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid order status")
	}

	order, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.SellerID != principal.InternalID && !principal.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "Not authorized to modify this resource")
	}
	if !order.Status.CanTransitionTo(next) {
		return nil, dErrors.New(dErrors.CodeInvalidState,
			fmt.Sprintf("Cannot change order status from %s to %s", order.Status, next))
	}

	prev := order.Status
	order.Status = next
	order.UpdatedAt = requestcontext.Now(ctx)
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update order")
	}

	s.auditor.Publish(ctx, audit.Event{
		Category:  audit.CategoryOperations,
		UserID:    principal.InternalID,
		Action:    audit.ActionOrderStatusChanged,
		Subject:   order.ID.String(),
		Reason:    fmt.Sprintf("%s -> %s", prev, next),
		RequestID: requestcontext.RequestID(ctx),
	})
	return s.withParties(ctx, order), nil
}

// Cancel aborts an order: the buyer before shipment, an admin any time the
// transition table still allows it.
func (s *Service) Cancel(ctx context.Context, principal identity.Principal, id domain.OrderID) (*models.WithParties, error) {
	order, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != principal.InternalID && !principal.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "Not authorized to modify this resource")
	}
	if order.Status.Shipped() && !principal.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeInvalidState, "Order cannot be cancelled after shipment")
	}
	if !order.Status.CanTransitionTo(models.StatusCancelled) {
		return nil, dErrors.New(dErrors.CodeInvalidState, "Order cannot be cancelled in its current state")
	}

	prev := order.Status
	order.Status = models.StatusCancelled
	order.UpdatedAt = requestcontext.Now(ctx)
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to cancel order")
	}

	s.auditor.Publish(ctx, audit.Event{
		Category:  audit.CategoryOperations,
		UserID:    principal.InternalID,
		Action:    audit.ActionOrderStatusChanged,
		Subject:   order.ID.String(),
		Reason:    fmt.Sprintf("%s -> %s", prev, models.StatusCancelled),
		RequestID: requestcontext.RequestID(ctx),
	})
	return s.withParties(ctx, order), nil
}

func (s *Service) find(ctx context.Context, id domain.OrderID) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "Order not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load order")
	}
	return order, nil
}

func (s *Service) participant(principal identity.Principal, order *models.Order) bool {
	return principal.IsAdmin() ||
		order.BuyerID == principal.InternalID ||
		order.SellerID == principal.InternalID
}

func (s *Service) withParties(ctx context.Context, order *models.Order) *models.WithParties {
	item := &models.WithParties{Order: *order}
	if buyer, err := s.parties.FindByID(ctx, order.BuyerID); err == nil {
		summary := buyer.Summarize()
		item.Buyer = &summary
	}
	if seller, err := s.parties.FindByID(ctx, order.SellerID); err == nil {
		summary := seller.Summarize()
		item.Seller = &summary
	}
	return item
}

func validateCreate(req models.CreateRequest) error {
	if req.Quantity < 1 {
		return dErrors.New(dErrors.CodeBadRequest, "quantity must be at least 1")
	}
	if req.Subtotal < 0 || req.Tax < 0 || req.Shipping < 0 {
		return dErrors.New(dErrors.CodeBadRequest, "amounts must not be negative")
	}
	if math.Abs(req.Subtotal+req.Tax+req.Shipping-req.Total) > 0.01 {
		return dErrors.New(dErrors.CodeBadRequest, "total does not match subtotal, tax and shipping")
	}
	return nil
}

// order8 derives a short human-readable suffix from a fresh id.
func order8(id domain.OrderID) string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
