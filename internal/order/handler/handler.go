package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"coopmarket/internal/identity"
	"coopmarket/internal/order/models"
	"coopmarket/internal/order/store"
	"coopmarket/internal/transport/http/shared"
	"coopmarket/pkg/domain"
	dErrors "coopmarket/pkg/domain-errors"
	"coopmarket/pkg/requestcontext"
)

// Service defines the order operations the HTTP layer needs.
type Service interface {
	Create(ctx context.Context, principal identity.Principal, req models.CreateRequest) (*models.WithParties, error)
	Get(ctx context.Context, principal identity.Principal, id domain.OrderID) (*models.WithParties, error)
	List(ctx context.Context, filter store.ListFilter) (*models.Page, error)
	UpdateStatus(ctx context.Context, principal identity.Principal, id domain.OrderID, next models.Status) (*models.WithParties, error)
	Cancel(ctx context.Context, principal identity.Principal, id domain.OrderID) (*models.WithParties, error)
}

// Handler serves the order endpoints. Everything requires an authenticated
// principal.
type Handler struct {
	orders   Service
	resolver *identity.Resolver
	logger   *slog.Logger
}

func New(orders Service, resolver *identity.Resolver, logger *slog.Logger) *Handler {
	return &Handler{orders: orders, resolver: resolver, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(h.resolver.Middleware())
		r.Post("/", h.handleCreate)
		r.Get("/", h.handleList)
		r.Get("/{id}", h.handleGet)
		r.Put("/{id}/status", h.handleUpdateStatus)
		r.Post("/{id}/cancel", h.handleCancel)
	})
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

	order, err := h.orders.Create(r.Context(), principal, req)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to create order")
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Order created successfully",
		"order":   order,
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Authentication required"))
		return
	}

	q := r.URL.Query()
	filter := store.ListFilter{
		UserID: principal.InternalID,
		Page:   parseIntDefault(q.Get("page"), 1),
		Limit:  parseIntDefault(q.Get("limit"), 10),
	}
	switch q.Get("side") {
	case "":
	case string(store.SideBuyer):
		filter.Side = store.SideBuyer
	case string(store.SideSeller):
		filter.Side = store.SideSeller
	default:
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid side"))
		return
	}
	if raw := q.Get("status"); raw != "" {
		status := models.Status(raw)
		if !status.Valid() {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid status"))
			return
		}
		filter.Status = status
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}

	page, err := h.orders.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to list orders")
		return
	}
	shared.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Authentication required"))
		return
	}
	id, err := parseOrderID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	order, err := h.orders.Get(r.Context(), principal, id)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to load order")
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"order": order})
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Authentication required"))
		return
	}
	id, err := parseOrderID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	var req models.UpdateStatusRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	order, err := h.orders.UpdateStatus(r.Context(), principal, id, req.Status)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to update order status")
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Order status updated successfully",
		"order":   order,
	})
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Authentication required"))
		return
	}
	id, err := parseOrderID(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	order, err := h.orders.Cancel(r.Context(), principal, id)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to cancel order")
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Order cancelled successfully",
		"order":   order,
	})
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

func parseOrderID(r *http.Request) (domain.OrderID, error) {
	id, err := domain.ParseOrderID(chi.URLParam(r, "id"))
	if err != nil {
		return domain.OrderID{}, dErrors.New(dErrors.CodeBadRequest, "invalid order id")
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
