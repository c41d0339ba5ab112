package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"coopmarket/internal/auction/models"
	"coopmarket/internal/auction/store"
	"coopmarket/internal/identity"
	"coopmarket/internal/transport/http/shared"
	"coopmarket/pkg/domain"
	dErrors "coopmarket/pkg/domain-errors"
	"coopmarket/pkg/requestcontext"
)

// Service defines the auction operations the HTTP layer needs.
type Service interface {
	Create(ctx context.Context, principal identity.Principal, req models.CreateRequest) (*models.Auction, error)
	Get(ctx context.Context, id domain.AuctionID) (*models.Auction, error)
	List(ctx context.Context, filter store.ListFilter) (*models.Page, error)
	Cancel(ctx context.Context, principal identity.Principal, id domain.AuctionID) (*models.Auction, error)
	PlaceBid(ctx context.Context, principal identity.Principal, auctionID domain.AuctionID, amount float64) (*models.Bid, *models.Auction, error)
	ListBids(ctx context.Context, auctionID domain.AuctionID) ([]models.BidWithBidder, error)
	HighestBid(ctx context.Context, auctionID domain.AuctionID) (*models.BidWithBidder, error)
	ListUserBids(ctx context.Context, bidderID domain.UserID) ([]models.BidWithBidder, error)
}

// Handler serves the auction and bid endpoints. Reads are public; creating,
// cancelling and bidding require an authenticated, verified principal.
type Handler struct {
	auctions Service
	resolver *identity.Resolver
	logger   *slog.Logger
}

func New(auctions Service, resolver *identity.Resolver, logger *slog.Logger) *Handler {
	return &Handler{auctions: auctions, resolver: resolver, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/auctions", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Get("/{id}/bids", h.handleListBids)
		r.Get("/{id}/bids/highest", h.handleHighestBid)

		r.Group(func(r chi.Router) {
			r.Use(h.resolver.Middleware())
			r.Use(identity.RequireVerified)
			r.Post("/", h.handleCreate)
			r.Post("/{id}/cancel", h.handleCancel)
			r.Post("/{id}/bids", h.handlePlaceBid)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(h.resolver.Middleware())
		r.Get("/bids/me", h.handleMyBids)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.ListFilter{
		Page:  parseIntDefault(q.Get("page"), 1),
		Limit: parseIntDefault(q.Get("limit"), 10),
	}
	if raw := q.Get("status"); raw != "" {
		status := models.Status(raw)
		if !status.Valid() {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid status"))
			return
		}
		filter.Status = status
	}
	if raw := q.Get("sellerId"); raw != "" {
		sellerID, err := domain.ParseUserID(raw)
		if err != nil {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid sellerId"))
			return
		}
		filter.SellerID = sellerID
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}

	page, err := h.auctions.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to list auctions")
		return
	}
	shared.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := parseAuctionID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	auction, err := h.auctions.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to load auction")
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"auction": auction})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Authentication required"))
		return
	}

	var req models.CreateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	auction, err := h.auctions.Create(r.Context(), principal, req)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to create auction")
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Auction created successfully",
		"auction": auction,
	})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Authentication required"))
		return
	}
	id, err := parseAuctionID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	auction, err := h.auctions.Cancel(r.Context(), principal, id)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to cancel auction")
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Auction cancelled successfully",
		"auction": auction,
	})
}

func (h *Handler) handlePlaceBid(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Authentication required"))
		return
	}
	id, err := parseAuctionID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req models.PlaceBidRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if req.Amount <= 0 {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "bid amount must be positive"))
		return
	}

	bid, auction, err := h.auctions.PlaceBid(r.Context(), principal, id, req.Amount)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to place bid")
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Bid placed successfully",
		"bid":     bid,
		"auction": auction,
	})
}

func (h *Handler) handleListBids(w http.ResponseWriter, r *http.Request) {
	id, err := parseAuctionID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	bids, err := h.auctions.ListBids(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to list bids")
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"bids": bids})
}

func (h *Handler) handleHighestBid(w http.ResponseWriter, r *http.Request) {
	id, err := parseAuctionID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	bid, err := h.auctions.HighestBid(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to load highest bid")
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"bid": bid})
}

func (h *Handler) handleMyBids(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Authentication required"))
		return
	}
	bids, err := h.auctions.ListUserBids(r.Context(), principal.InternalID)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to list bids")
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"bids": bids})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	ctx := r.Context()
	if dErrors.HasCode(err, dErrors.CodeInternal) || dErrors.HasCode(err, dErrors.CodeUnavailable) {
		h.logger.ErrorContext(ctx, logMsg,
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	shared.WriteError(w, err)
}

func parseAuctionID(r *http.Request) (domain.AuctionID, error) {
	id, err := domain.ParseAuctionID(chi.URLParam(r, "id"))
	if err != nil {
		return domain.AuctionID{}, dErrors.New(dErrors.CodeBadRequest, "invalid auction id")
	}
	return id, nil
}

func parseIntDefault(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 1 {
		return fallback
	}
	return value
}
