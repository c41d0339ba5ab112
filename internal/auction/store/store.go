package store

import (
	"context"
	"time"

	"coopmarket/internal/auction/models"
	"coopmarket/pkg/domain"
)

// ListFilter narrows and pages auction listings.
type ListFilter struct {
	Status   models.Status
	SellerID domain.UserID
	Page     int
	Limit    int
}

// Store persists auctions and their bids. PlaceBid is the only compound
// operation: implementations must persist the bid, raise the current price
// and bump the bid counter atomically per auction, returning
// sentinel.ErrConflict when the expected current price no longer matches
// (a concurrent bid won the race) and sentinel.ErrInvalidState when the
// auction is no longer ACTIVE (it closed between the caller's read and the
// commit).
type Store interface {
	Create(ctx context.Context, auction *models.Auction) error
	FindByID(ctx context.Context, id domain.AuctionID) (*models.Auction, error)
	Update(ctx context.Context, auction *models.Auction) error
	List(ctx context.Context, filter ListFilter) ([]*models.Auction, int, error)
	ListDue(ctx context.Context, now time.Time) (toActivate, toEnd []*models.Auction, err error)
	CountByStatus(ctx context.Context) (map[models.Status]int, error)

	PlaceBid(ctx context.Context, bid *models.Bid, expectedPrice float64) error
	ListBids(ctx context.Context, auctionID domain.AuctionID) ([]*models.Bid, error)
	HighestBid(ctx context.Context, auctionID domain.AuctionID) (*models.Bid, error)
	ListBidsByBidder(ctx context.Context, bidderID domain.UserID) ([]*models.Bid, error)
}
