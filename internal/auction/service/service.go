package service

import (
	"context"
	"errors"
	"strings"

	"coopmarket/internal/audit"
	"coopmarket/internal/auction/models"
	"coopmarket/internal/auction/store"
	"coopmarket/internal/identity"
	"coopmarket/internal/platform/metrics"
	productmodels "coopmarket/internal/product/models"
	usermodels "coopmarket/internal/user/models"
	"coopmarket/pkg/domain"
	dErrors "coopmarket/pkg/domain-errors"
	"coopmarket/pkg/platform/sentinel"
	"coopmarket/pkg/requestcontext"
)

// placeBidRetries bounds the CAS loop under concurrent bidding.
const placeBidRetries = 3

// Products resolves the catalog records auctions are created against.
type Products interface {
	FindByID(ctx context.Context, id domain.ProductID) (*productmodels.Product, error)
}

// Bidders resolves the directory records embedded in bid listings.
type Bidders interface {
	FindByID(ctx context.Context, id domain.UserID) (*usermodels.User, error)
}

// Events receives auction lifecycle notifications; the realtime relay
// implements it. All methods must be non-blocking.
type Events interface {
	AuctionUpdated(auction *models.Auction, bid *models.Bid)
	AuctionEnded(auction *models.Auction)
}

type noopEvents struct{}

func (noopEvents) AuctionUpdated(*models.Auction, *models.Bid) {}
func (noopEvents) AuctionEnded(*models.Auction)                {}

// Service owns the auction state machine. Every transition and every bid is
// decided here; clients and the relay only carry intents.
type Service struct {
	auctions store.Store
	products Products
	bidders  Bidders
	events   Events
	auditor  *audit.Publisher
	metrics  *metrics.Metrics
}

func New(auctions store.Store, products Products, bidders Bidders, auditor *audit.Publisher, m *metrics.Metrics) *Service {
	return &Service{
		auctions: auctions,
		products: products,
		bidders:  bidders,
		events:   noopEvents{},
		auditor:  auditor,
		metrics:  m,
	}
}

// SetEvents installs the relay sink. Called once during wiring, before the
// server starts accepting requests.
func (s *Service) SetEvents(events Events) {
	if events != nil {
		s.events = events
	}
}

func (s *Service) Create(ctx context.Context, principal identity.Principal, req models.CreateRequest) (*models.Auction, error) {
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
	if product.SellerID != principal.InternalID && !principal.IsAdmin() {
		return nil, dErrors.New(dErrors.CodeForbidden, "Not authorized to auction this product")
	}

	now := requestcontext.Now(ctx)
	increment := req.MinBidIncrement
	if increment <= 0 {
		increment = 1
	}
	auction := &models.Auction{
		ID:              domain.NewAuctionID(),
		ProductID:       productID,
		SellerID:        product.SellerID,
		Title:           strings.TrimSpace(req.Title),
		Description:     strings.TrimSpace(req.Description),
		StartingPrice:   req.StartingPrice,
		CurrentPrice:    req.StartingPrice,
		ReservePrice:    req.ReservePrice,
		MinBidIncrement: increment,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		Status:          models.StatusScheduled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if !auction.StartTime.After(now) {
		auction.Status = models.StatusActive
	}

	if err := s.auctions.Create(ctx, auction); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create auction")
	}

	s.auditor.Publish(ctx, audit.Event{
		Category:  audit.CategoryOperations,
		UserID:    principal.InternalID,
		Action:    audit.ActionAuctionCreated,
		Subject:   auction.ID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	return auction, nil
}

func (s *Service) Get(ctx context.Context, id domain.AuctionID) (*models.Auction, error) {
	auction, err := s.auctions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "Auction not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load auction")
	}
	return auction, nil
}

func (s *Service) List(ctx context.Context, filter store.ListFilter) (*models.Page, error) {
	auctions, total, err := s.auctions.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list auctions")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 10
	}
	if auctions == nil {
		auctions = []*models.Auction{}
	}
	return &models.Page{
		Auctions:   auctions,
		Pagination: domain.NewPagination(page, limit, total),
	}, nil
}

// Cancel moves a SCHEDULED or ACTIVE auction to CANCELLED. Only the seller or
// an admin may cancel.
func (s *Service) Cancel(ctx context.Context, principal identity.Principal, id domain.AuctionID) (*models.Auction, error) {
	auction, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := identity.RequireOwnership(principal, auction.SellerID); err != nil {
		return nil, err
	}
	if !auction.Status.CanTransitionTo(models.StatusCancelled) {
		return nil, dErrors.New(dErrors.CodeInvalidState, "Auction cannot be cancelled in its current state")
	}

	auction.Status = models.StatusCancelled
	auction.UpdatedAt = requestcontext.Now(ctx)
	if err := s.auctions.Update(ctx, auction); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to cancel auction")
	}

	s.auditor.Publish(ctx, audit.Event{
		Category:  audit.CategoryOperations,
		UserID:    principal.InternalID,
		Action:    audit.ActionAuctionCancelled,
		Subject:   auction.ID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	s.events.AuctionEnded(auction)
	return auction, nil
}

// End closes an ACTIVE auction and records the winner from the highest bid.
// Called by the lifecycle worker when the window lapses and by admins closing
// early.
func (s *Service) End(ctx context.Context, auction *models.Auction) (*models.Auction, error) {
	if !auction.Status.CanTransitionTo(models.StatusEnded) {
		return nil, dErrors.New(dErrors.CodeInvalidState, "Auction cannot be ended in its current state")
	}

	auction.Status = models.StatusEnded
	auction.UpdatedAt = requestcontext.Now(ctx)
	if auction.ReserveMet() {
		if highest, err := s.auctions.HighestBid(ctx, auction.ID); err == nil {
			auction.WinnerID = &highest.BidderID
		}
	}

	if err := s.auctions.Update(ctx, auction); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to end auction")
	}

	s.auditor.Publish(ctx, audit.Event{
		Category:  audit.CategoryOperations,
		UserID:    auction.SellerID,
		Action:    audit.ActionAuctionEnded,
		Subject:   auction.ID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	s.events.AuctionEnded(auction)
	return auction, nil
}

// Activate moves a due SCHEDULED auction to ACTIVE.
func (s *Service) Activate(ctx context.Context, auction *models.Auction) error {
	if !auction.Status.CanTransitionTo(models.StatusActive) {
		return dErrors.New(dErrors.CodeInvalidState, "Auction cannot be activated in its current state")
	}
	auction.Status = models.StatusActive
	auction.UpdatedAt = requestcontext.Now(ctx)
	if err := s.auctions.Update(ctx, auction); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to activate auction")
	}
	s.events.AuctionUpdated(auction, nil)
	return nil
}

// PlaceBid applies the bidding rules and commits the bid atomically. A CAS
// conflict means another bid landed first; the rules are re-checked against
// the fresh price a bounded number of times.
func (s *Service) PlaceBid(ctx context.Context, principal identity.Principal, auctionID domain.AuctionID, amount float64) (*models.Bid, *models.Auction, error) {
	for attempt := 0; attempt < placeBidRetries; attempt++ {
		auction, err := s.Get(ctx, auctionID)
		if err != nil {
			return nil, nil, err
		}

		if err := s.checkBid(ctx, principal, auction, amount); err != nil {
			s.rejectBid(ctx, principal, auctionID, err)
			return nil, nil, err
		}

		bid := &models.Bid{
			ID:        domain.NewBidID(),
			AuctionID: auctionID,
			BidderID:  principal.InternalID,
			Amount:    amount,
			CreatedAt: requestcontext.Now(ctx),
		}
		err = s.auctions.PlaceBid(ctx, bid, auction.CurrentPrice)
		if errors.Is(err, sentinel.ErrConflict) {
			continue
		}
		if errors.Is(err, sentinel.ErrInvalidState) {
			// The auction closed between the rule check and the commit.
			err = dErrors.New(dErrors.CodeInvalidState, "Auction is not active")
			s.rejectBid(ctx, principal, auctionID, err)
			return nil, nil, err
		}
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeNotFound, "Auction not found")
		}
		if err != nil {
			return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to place bid")
		}

		auction.CurrentPrice = bid.Amount
		auction.TotalBids++

		s.auditor.Publish(ctx, audit.Event{
			Category:  audit.CategoryOperations,
			UserID:    principal.InternalID,
			Action:    audit.ActionBidPlaced,
			Subject:   auctionID.String(),
			RequestID: requestcontext.RequestID(ctx),
		})
		if s.metrics != nil {
			s.metrics.BidsPlaced.Inc()
		}
		s.events.AuctionUpdated(auction, bid)
		return bid, auction, nil
	}

	err := dErrors.New(dErrors.CodeConflict, "Bid lost a concurrent update, try again")
	s.rejectBid(ctx, principal, auctionID, err)
	return nil, nil, err
}

func (s *Service) checkBid(ctx context.Context, principal identity.Principal, auction *models.Auction, amount float64) error {
	now := requestcontext.Now(ctx)
	if auction.Status != models.StatusActive {
		return dErrors.New(dErrors.CodeInvalidState, "Auction is not active")
	}
	if now.Before(auction.StartTime) || !now.Before(auction.EndTime) {
		return dErrors.New(dErrors.CodeInvalidState, "Auction is outside its bidding window")
	}
	if principal.InternalID == auction.SellerID {
		return dErrors.New(dErrors.CodeForbidden, "Sellers cannot bid on their own auction")
	}
	if amount < auction.CurrentPrice+auction.MinBidIncrement {
		return dErrors.New(dErrors.CodeBadRequest, "Bid must be at least the current price plus the minimum increment")
	}
	return nil
}

func (s *Service) rejectBid(ctx context.Context, principal identity.Principal, auctionID domain.AuctionID, cause error) {
	s.auditor.Publish(ctx, audit.Event{
		Category:  audit.CategoryOperations,
		UserID:    principal.InternalID,
		Action:    audit.ActionBidRejected,
		Subject:   auctionID.String(),
		Reason:    dErrors.MessageOf(cause),
		RequestID: requestcontext.RequestID(ctx),
	})
	if s.metrics != nil {
		s.metrics.BidsRejected.Inc()
	}
}

// ListBids returns an auction's bids, highest first, with bidder summaries.
func (s *Service) ListBids(ctx context.Context, auctionID domain.AuctionID) ([]models.BidWithBidder, error) {
	if _, err := s.Get(ctx, auctionID); err != nil {
		return nil, err
	}
	bids, err := s.auctions.ListBids(ctx, auctionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list bids")
	}
	return s.withBidders(ctx, bids), nil
}

// HighestBid returns the current top bid, or not-found when nobody has bid.
func (s *Service) HighestBid(ctx context.Context, auctionID domain.AuctionID) (*models.BidWithBidder, error) {
	if _, err := s.Get(ctx, auctionID); err != nil {
		return nil, err
	}
	bid, err := s.auctions.HighestBid(ctx, auctionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "No bids placed yet")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load highest bid")
	}
	withBidder := s.withBidders(ctx, []*models.Bid{bid})
	return &withBidder[0], nil
}

// ListUserBids returns every bid the user has placed, newest first.
func (s *Service) ListUserBids(ctx context.Context, bidderID domain.UserID) ([]models.BidWithBidder, error) {
	bids, err := s.auctions.ListBidsByBidder(ctx, bidderID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list bids")
	}
	return s.withBidders(ctx, bids), nil
}

func (s *Service) withBidders(ctx context.Context, bids []*models.Bid) []models.BidWithBidder {
	items := make([]models.BidWithBidder, len(bids))
	for i, bid := range bids {
		items[i] = models.BidWithBidder{Bid: *bid}
		if bidder, err := s.bidders.FindByID(ctx, bid.BidderID); err == nil {
			summary := bidder.Summarize()
			items[i].Bidder = &summary
		}
	}
	return items
}

func validateCreate(req models.CreateRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "auction title is required")
	}
	if req.StartingPrice <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, "starting price must be positive")
	}
	if req.ReservePrice < 0 {
		return dErrors.New(dErrors.CodeBadRequest, "reserve price must not be negative")
	}
	if req.StartTime.IsZero() || req.EndTime.IsZero() {
		return dErrors.New(dErrors.CodeBadRequest, "start and end times are required")
	}
	if !req.EndTime.After(req.StartTime) {
		return dErrors.New(dErrors.CodeBadRequest, "end time must be after start time")
	}
	return nil
}
