package store

import (
	"context"
	"sort"
	"sync"

	"coopmarket/internal/order/models"
	"coopmarket/pkg/domain"
	"coopmarket/pkg/platform/sentinel"
)

// InMemory keeps orders in a map, backing development mode and unit tests.
type InMemory struct {
	mu     sync.RWMutex
	orders map[domain.OrderID]*models.Order
}

func NewInMemory() *InMemory {
	return &InMemory{orders: make(map[domain.OrderID]*models.Order)}
}

func (s *InMemory) Create(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.ID]; ok {
		return sentinel.ErrConflict
	}
	clone := *order
	s.orders[order.ID] = &clone
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.OrderID) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if order, ok := s.orders[id]; ok {
		clone := *order
		return &clone, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) Update(_ context.Context, order *models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[order.ID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *order
	s.orders[order.ID] = &clone
	return nil
}

func (s *InMemory) List(_ context.Context, filter ListFilter) ([]*models.Order, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Order
	for _, order := range s.orders {
		switch filter.Side {
		case SideBuyer:
			if order.BuyerID != filter.UserID {
				continue
			}
		case SideSeller:
			if order.SellerID != filter.UserID {
				continue
			}
		default:
			if order.BuyerID != filter.UserID && order.SellerID != filter.UserID {
				continue
			}
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		clone := *order
		matched = append(matched, &clone)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start, end := pageBounds(filter.Page, filter.Limit, total)
	return matched[start:end], total, nil
}

func (s *InMemory) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.orders), nil
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
