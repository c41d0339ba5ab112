package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"coopmarket/internal/identity"
	"coopmarket/internal/product/models"
	"coopmarket/internal/product/store"
	"coopmarket/internal/transport/http/shared"
	"coopmarket/pkg/domain"
	dErrors "coopmarket/pkg/domain-errors"
	"coopmarket/pkg/requestcontext"
)

// Service defines the catalog operations the HTTP layer needs.
type Service interface {
	Create(ctx context.Context, principal identity.Principal, req models.CreateRequest) (*models.WithSeller, error)
	Get(ctx context.Context, id domain.ProductID) (*models.WithSeller, error)
	List(ctx context.Context, filter store.ListFilter) (*models.Page, error)
	Update(ctx context.Context, principal identity.Principal, id domain.ProductID, req models.UpdateRequest) (*models.WithSeller, error)
	Delete(ctx context.Context, principal identity.Principal, id domain.ProductID) error
	CategoryStats(ctx context.Context) ([]models.CategoryStat, error)
}

// Handler serves the catalog endpoints. Reads are public; mutations sit
// behind the resolver and the verification gate.
type Handler struct {
	products Service
	resolver *identity.Resolver
	logger   *slog.Logger
}

func New(products Service, resolver *identity.Resolver, logger *slog.Logger) *Handler {
	return &Handler{products: products, resolver: resolver, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.handleList)
		r.Get("/categories/stats", h.handleCategoryStats)
		r.Get("/{id}", h.handleGet)

		r.Group(func(r chi.Router) {
			r.Use(h.resolver.Middleware())
			r.Use(identity.RequireVerified)
			r.Post("/", h.handleCreate)
			r.Put("/{id}", h.handleUpdate)
			r.Delete("/{id}", h.handleDelete)
		})
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseListFilter(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}

	page, err := h.products.List(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to list products")
		return
	}
	shared.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseProductID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid product id"))
		return
	}

	product, err := h.products.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to load product")
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"product": product})
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

	product, err := h.products.Create(r.Context(), principal, req)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to create product")
		return
	}
	shared.WriteJSON(w, http.StatusCreated, map[string]any{
		"message": "Product created successfully",
		"product": product,
	})
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Authentication required"))
		return
	}
	id, err := domain.ParseProductID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid product id"))
		return
	}

	var req models.UpdateRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	product, err := h.products.Update(r.Context(), principal, id, req)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to update product")
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Product updated successfully",
		"product": product,
	})
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Authentication required"))
		return
	}
	id, err := domain.ParseProductID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid product id"))
		return
	}

	if err := h.products.Delete(r.Context(), principal, id); err != nil {
		h.writeServiceError(w, r, err, "failed to delete product")
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Product deleted successfully",
	})
}

func (h *Handler) handleCategoryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.products.CategoryStats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "failed to load category stats")
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"categories": stats})
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

func parseListFilter(r *http.Request) (store.ListFilter, error) {
	q := r.URL.Query()
	filter := store.ListFilter{
		Subcategory: q.Get("subcategory"),
		Search:      q.Get("search"),
		ActiveOnly:  true,
		Page:        parseIntDefault(q.Get("page"), 1),
		Limit:       parseIntDefault(q.Get("limit"), 10),
	}

	if raw := q.Get("category"); raw != "" {
		category := models.Category(raw)
		if !category.Valid() {
			return store.ListFilter{}, dErrors.New(dErrors.CodeBadRequest, "invalid category")
		}
		filter.Category = category
	}
	if raw := q.Get("minPrice"); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return store.ListFilter{}, dErrors.New(dErrors.CodeBadRequest, "invalid minPrice")
		}
		filter.MinPrice = &value
	}
	if raw := q.Get("maxPrice"); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return store.ListFilter{}, dErrors.New(dErrors.CodeBadRequest, "invalid maxPrice")
		}
		filter.MaxPrice = &value
	}
	if raw := q.Get("sellerId"); raw != "" {
		sellerID, err := domain.ParseUserID(raw)
		if err != nil {
			return store.ListFilter{}, dErrors.New(dErrors.CodeBadRequest, "invalid sellerId")
		}
		filter.SellerID = sellerID
	}

	switch q.Get("sortBy") {
	case "", store.SortCreatedAt:
		filter.SortField = store.SortCreatedAt
	case store.SortPrice:
		filter.SortField = store.SortPrice
	case store.SortName:
		filter.SortField = store.SortName
	default:
		return store.ListFilter{}, dErrors.New(dErrors.CodeBadRequest, "invalid sortBy")
	}
	filter.SortDesc = q.Get("sortOrder") != "asc"

	if filter.Limit > 100 {
		filter.Limit = 100
	}
	return filter, nil
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
