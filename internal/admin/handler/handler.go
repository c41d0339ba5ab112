package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"coopmarket/internal/admin/service"
	"coopmarket/internal/identity"
	"coopmarket/internal/transport/http/shared"
	userstore "coopmarket/internal/user/store"
	"coopmarket/pkg/domain"
	dErrors "coopmarket/pkg/domain-errors"
	"coopmarket/pkg/requestcontext"
)

// Handler serves the admin console endpoints, all behind the ADMIN role gate.
type Handler struct {
	admin    *service.Service
	resolver *identity.Resolver
	logger   *slog.Logger
}

func New(admin *service.Service, resolver *identity.Resolver, logger *slog.Logger) *Handler {
	return &Handler{admin: admin, resolver: resolver, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(h.resolver.Middleware())
		r.Use(identity.RequireRole(domain.RoleAdmin))
		r.Get("/dashboard", h.handleDashboard)
		r.Get("/analytics", h.handleDashboard)
		r.Get("/users", h.handleListUsers)
		r.Put("/users/{id}/role", h.handleUpdateRole)
		r.Put("/users/{id}/ban", h.handleBan)
		r.Put("/users/{id}/unban", h.handleUnban)
		r.Get("/logs", h.handleLogs)
	})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.admin.Dashboard(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err, "failed to build dashboard")
		return
	}
	shared.WriteJSON(w, http.StatusOK, dashboard)
}

func (h *Handler) handleListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := userstore.ListFilter{
		Search: q.Get("search"),
		Page:   parseIntDefault(q.Get("page"), 1),
		Limit:  parseIntDefault(q.Get("limit"), 10),
	}
	if raw := q.Get("role"); raw != "" {
		role := domain.Role(raw)
		if !role.Valid() {
			shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid role"))
			return
		}
		filter.Role = role
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}

	page, err := h.admin.ListUsers(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to list users")
		return
	}
	shared.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleUpdateRole(w http.ResponseWriter, r *http.Request) {
	principal, id, ok := h.adminTarget(w, r)
	if !ok {
		return
	}

	var req struct {
		Role domain.Role `json:"role"`
	}
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}

	user, err := h.admin.UpdateRole(r.Context(), principal, id, req.Role)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to update role")
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Role updated successfully",
		"user":    user,
	})
}

func (h *Handler) handleBan(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false, "User banned successfully")
}

func (h *Handler) handleUnban(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true, "User unbanned successfully")
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request, active bool, message string) {
	principal, id, ok := h.adminTarget(w, r)
	if !ok {
		return
	}

	user, err := h.admin.SetActive(r.Context(), principal, id, active)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to update user")
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"message": message,
		"user":    user,
	})
}

func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 100)
	events, err := h.admin.Logs(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to load audit log")
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"logs": events})
}

// adminTarget pulls the acting principal and the target user id from the
// request, writing the failure response itself when either is missing.
func (h *Handler) adminTarget(w http.ResponseWriter, r *http.Request) (identity.Principal, domain.UserID, bool) {
	principal, ok := identity.FromContext(r.Context())
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Authentication required"))
		return identity.Principal{}, domain.UserID{}, false
	}
	id, err := domain.ParseUserID(chi.URLParam(r, "id"))
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid user id"))
		return identity.Principal{}, domain.UserID{}, false
	}
	return principal, id, true
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
