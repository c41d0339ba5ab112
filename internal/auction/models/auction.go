package models

import (
	"time"

	usermodels "coopmarket/internal/user/models"
	"coopmarket/pkg/domain"
)

// Status is the auction lifecycle state. Transitions are validated in the
// service; stores only ever see legal states.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusActive    Status = "ACTIVE"
	StatusEnded     Status = "ENDED"
	StatusCancelled Status = "CANCELLED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusActive, StatusEnded, StatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows moving to next.
// SCHEDULED may activate or cancel; ACTIVE may end or cancel; the terminal
// states allow nothing.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusScheduled:
		return next == StatusActive || next == StatusCancelled
	case StatusActive:
		return next == StatusEnded || next == StatusCancelled
	}
	return false
}

// Auction is one timed sale of a product.
type Auction struct {
	ID              domain.AuctionID `json:"id"`
	ProductID       domain.ProductID `json:"productId"`
	SellerID        domain.UserID    `json:"sellerId"`
	Title           string           `json:"title"`
	Description     string           `json:"description"`
	StartingPrice   float64          `json:"startingPrice"`
	CurrentPrice    float64          `json:"currentPrice"`
	ReservePrice    float64          `json:"reservePrice,omitempty"`
	MinBidIncrement float64          `json:"minBidIncrement"`
	StartTime       time.Time        `json:"startTime"`
	EndTime         time.Time        `json:"endTime"`
	Status          Status           `json:"status"`
	WinnerID        *domain.UserID   `json:"winnerId,omitempty"`
	TotalBids       int              `json:"totalBids"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// ReserveMet reports whether the current price satisfies the reserve. A zero
// reserve always passes.
func (a *Auction) ReserveMet() bool {
	return a.ReservePrice == 0 || a.CurrentPrice >= a.ReservePrice
}

// Bid is one accepted offer on an auction.
type Bid struct {
	ID        domain.BidID     `json:"id"`
	AuctionID domain.AuctionID `json:"auctionId"`
	BidderID  domain.UserID    `json:"bidderId"`
	Amount    float64          `json:"amount"`
	CreatedAt time.Time        `json:"createdAt"`
}

// BidWithBidder is the API shape for bid listings.
type BidWithBidder struct {
	Bid
	Bidder *usermodels.Summary `json:"bidder,omitempty"`
}

// Page is the paginated auction listing envelope.
type Page struct {
	Auctions   []*Auction        `json:"auctions"`
	Pagination domain.Pagination `json:"pagination"`
}

// CreateRequest schedules a new auction for the authenticated seller.
type CreateRequest struct {
	ProductID       string    `json:"productId"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	StartingPrice   float64   `json:"startingPrice"`
	ReservePrice    float64   `json:"reservePrice,omitempty"`
	MinBidIncrement float64   `json:"minBidIncrement,omitempty"`
	StartTime       time.Time `json:"startTime"`
	EndTime         time.Time `json:"endTime"`
}

// PlaceBidRequest offers an amount on an auction.
type PlaceBidRequest struct {
	Amount float64 `json:"amount"`
}
