package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"coopmarket/internal/auction/models"
	"coopmarket/pkg/domain"
	"coopmarket/pkg/platform/sentinel"
)

// InMemory keeps auctions and bids in maps. One mutex guards both: the CAS in
// PlaceBid must see a consistent status, price and bid list.
type InMemory struct {
	mu       sync.RWMutex
	auctions map[domain.AuctionID]*models.Auction
	bids     map[domain.AuctionID][]*models.Bid
}

func NewInMemory() *InMemory {
	return &InMemory{
		auctions: make(map[domain.AuctionID]*models.Auction),
		bids:     make(map[domain.AuctionID][]*models.Bid),
	}
}

func (s *InMemory) Create(_ context.Context, auction *models.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.auctions[auction.ID]; ok {
		return sentinel.ErrConflict
	}
	clone := *auction
	s.auctions[auction.ID] = &clone
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.AuctionID) (*models.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if auction, ok := s.auctions[id]; ok {
		clone := *auction
		return &clone, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) Update(_ context.Context, auction *models.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.auctions[auction.ID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *auction
	s.auctions[auction.ID] = &clone
	return nil
}

func (s *InMemory) List(_ context.Context, filter ListFilter) ([]*models.Auction, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Auction
	for _, auction := range s.auctions {
		if filter.Status != "" && auction.Status != filter.Status {
			continue
		}
		if !filter.SellerID.IsZero() && auction.SellerID != filter.SellerID {
			continue
		}
		clone := *auction
		matched = append(matched, &clone)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].EndTime.Before(matched[j].EndTime)
	})

	total := len(matched)
	start, end := pageBounds(filter.Page, filter.Limit, total)
	return matched[start:end], total, nil
}

func (s *InMemory) ListDue(_ context.Context, now time.Time) ([]*models.Auction, []*models.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var toActivate, toEnd []*models.Auction
	for _, auction := range s.auctions {
		clone := *auction
		switch {
		case auction.Status == models.StatusScheduled && !auction.StartTime.After(now):
			toActivate = append(toActivate, &clone)
		case auction.Status == models.StatusActive && !auction.EndTime.After(now):
			toEnd = append(toEnd, &clone)
		}
	}
	return toActivate, toEnd, nil
}

func (s *InMemory) CountByStatus(_ context.Context) (map[models.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.Status]int)
	for _, auction := range s.auctions {
		counts[auction.Status]++
	}
	return counts, nil
}

func (s *InMemory) PlaceBid(_ context.Context, bid *models.Bid, expectedPrice float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	auction, ok := s.auctions[bid.AuctionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if auction.Status != models.StatusActive {
		return sentinel.ErrInvalidState
	}
	if auction.CurrentPrice != expectedPrice {
		return sentinel.ErrConflict
	}

	auction.CurrentPrice = bid.Amount
	auction.TotalBids++
	auction.UpdatedAt = bid.CreatedAt

	clone := *bid
	s.bids[bid.AuctionID] = append(s.bids[bid.AuctionID], &clone)
	return nil
}

func (s *InMemory) ListBids(_ context.Context, auctionID domain.AuctionID) ([]*models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bids := make([]*models.Bid, 0, len(s.bids[auctionID]))
	for _, bid := range s.bids[auctionID] {
		clone := *bid
		bids = append(bids, &clone)
	}
	sort.Slice(bids, func(i, j int) bool {
		return bids[i].Amount > bids[j].Amount
	})
	return bids, nil
}

func (s *InMemory) HighestBid(_ context.Context, auctionID domain.AuctionID) (*models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var highest *models.Bid
	for _, bid := range s.bids[auctionID] {
		if highest == nil || bid.Amount > highest.Amount {
			highest = bid
		}
	}
	if highest == nil {
		return nil, sentinel.ErrNotFound
	}
	clone := *highest
	return &clone, nil
}

func (s *InMemory) ListBidsByBidder(_ context.Context, bidderID domain.UserID) ([]*models.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Bid
	for _, bids := range s.bids {
		for _, bid := range bids {
			if bid.BidderID == bidderID {
				clone := *bid
				matched = append(matched, &clone)
			}
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched, nil
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
