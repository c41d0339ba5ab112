package store

import (
	"context"

	"coopmarket/internal/order/models"
	"coopmarket/pkg/domain"
)

// Side selects which party of the order the listing is for.
type Side string

const (
	SideBuyer  Side = "buyer"
	SideSeller Side = "seller"
)

// ListFilter narrows and pages a user's orders.
type ListFilter struct {
	UserID domain.UserID
	Side   Side
	Status models.Status
	Page   int
	Limit  int
}

// Store persists orders. Implementations return sentinel.ErrNotFound for
// missing records.
type Store interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id domain.OrderID) (*models.Order, error)
	Update(ctx context.Context, order *models.Order) error
	List(ctx context.Context, filter ListFilter) ([]*models.Order, int, error)
	Count(ctx context.Context) (int, error)
}
