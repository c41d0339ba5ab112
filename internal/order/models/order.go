package models

import (
	"time"

	usermodels "coopmarket/internal/user/models"
	"coopmarket/pkg/domain"
)

// Status is the order fulfilment state.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
	StatusRefunded   Status = "REFUNDED"
	StatusCompleted  Status = "COMPLETED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped,
		StatusDelivered, StatusCancelled, StatusRefunded, StatusCompleted:
		return true
	}
	return false
}

// transitions is the fulfilment state machine. Cancellation policy (who may
// cancel, and only before shipment) is layered on top in the service.
var transitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipped, StatusCancelled},
	StatusShipped:    {StatusDelivered},
	StatusDelivered:  {StatusCompleted, StatusRefunded},
	StatusCompleted:  {StatusRefunded},
}

// CanTransitionTo reports whether the fulfilment flow allows moving to next.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Shipped reports whether the order has left the seller.
func (s Status) Shipped() bool {
	switch s {
	case StatusShipped, StatusDelivered, StatusCompleted, StatusRefunded:
		return true
	}
	return false
}

// Order is one purchase between a buyer and a seller.
type Order struct {
	ID          domain.OrderID    `json:"id"`
	OrderNumber string            `json:"orderNumber"`
	BuyerID     domain.UserID     `json:"buyerId"`
	SellerID    domain.UserID     `json:"sellerId"`
	ProductID   domain.ProductID  `json:"productId"`
	AuctionID   *domain.AuctionID `json:"auctionId,omitempty"`
	Status      Status            `json:"status"`
	Quantity    int               `json:"quantity"`
	Subtotal    float64           `json:"subtotal"`
	Tax         float64           `json:"tax"`
	Shipping    float64           `json:"shipping"`
	Total       float64           `json:"total"`
	Notes       string            `json:"notes,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	UpdatedAt   time.Time         `json:"updatedAt"`
}

// WithParties is the API shape: the order plus buyer and seller summaries.
type WithParties struct {
	Order
	Buyer  *usermodels.Summary `json:"buyer,omitempty"`
	Seller *usermodels.Summary `json:"seller,omitempty"`
}

// Page is the paginated order listing envelope.
type Page struct {
	Orders     []WithParties     `json:"orders"`
	Pagination domain.Pagination `json:"pagination"`
}

// CreateRequest places an order for the authenticated buyer.
type CreateRequest struct {
	ProductID string  `json:"productId"`
	AuctionID string  `json:"auctionId,omitempty"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
	Tax       float64 `json:"tax"`
	Shipping  float64 `json:"shipping"`
	Total     float64 `json:"total"`
	Notes     string  `json:"notes,omitempty"`
}

// UpdateStatusRequest advances the fulfilment state.
type UpdateStatusRequest struct {
	Status Status `json:"status"`
}
