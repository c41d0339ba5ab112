package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"coopmarket/internal/identity"
	"coopmarket/internal/transport/http/shared"
	"coopmarket/internal/user/models"
	"coopmarket/pkg/domain"
	dErrors "coopmarket/pkg/domain-errors"
	"coopmarket/pkg/requestcontext"
)

// Service defines the user operations the HTTP layer needs.
type Service interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.SessionResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.SessionResponse, error)
	Refresh(ctx context.Context, rawToken string) (*models.SessionResponse, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, rawToken, newPassword string) error
	VerifyEmail(ctx context.Context, rawToken string) error
	Get(ctx context.Context, id domain.UserID) (*models.User, error)
	UpdateProfile(ctx context.Context, id domain.UserID, req models.UpdateProfileRequest) (*models.User, error)
}

// Handler serves the auth and profile endpoints.
type Handler struct {
	users    Service
	resolver *identity.Resolver
	logger   *slog.Logger
}

func New(users Service, resolver *identity.Resolver, logger *slog.Logger) *Handler {
	return &Handler{users: users, resolver: resolver, logger: logger}
}

// Register mounts the public auth routes and the authenticated profile
// routes. Refresh and the profile endpoints resolve self-issued tokens first:
// that is the variant this service minted for them.
func (h *Handler) Register(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
	r.Post("/auth/logout", h.handleLogout)
	r.Post("/auth/forgot-password", h.handleForgotPassword)
	r.Post("/auth/reset-password", h.handleResetPassword)
	r.Post("/auth/verify-email", h.handleVerifyEmail)
	r.Post("/auth/refresh", h.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(h.resolver.Middleware())
		r.Get("/auth/me", h.handleMe)
		r.Get("/users/me", h.handleMe)
		r.Put("/users/me", h.handleUpdateProfile)
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.RegisterRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := validateRegisterRequest(req); err != nil {
		h.logger.WarnContext(ctx, "invalid register request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	resp, err := h.users.Register(ctx, req)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to register user")
		return
	}
	shared.WriteJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.LoginRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := validateLoginRequest(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	resp, err := h.users.Login(ctx, req)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to log in")
		return
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

// handleLogout acknowledges the logout. Session tokens are stateless; the
// client discards its copy.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Logout successful",
	})
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.RefreshRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if req.Token == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "token is required"))
		return
	}

	resp, err := h.users.Refresh(ctx, req.Token)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to refresh token")
		return
	}
	shared.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.ForgotPasswordRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if !govalidator.IsEmail(req.Email) {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "valid email is required"))
		return
	}

	// The token would normally leave through an email sender. The response is
	// identical either way so the endpoint cannot be used to probe accounts.
	if _, err := h.users.ForgotPassword(ctx, req.Email); err != nil {
		h.logger.ErrorContext(ctx, "forgot password flow failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "If the email exists, a reset link has been sent",
	})
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.ResetPasswordRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if req.Token == "" || !govalidator.StringLength(req.NewPassword, "8", "128") {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "token and a password of at least 8 characters are required"))
		return
	}

	if err := h.users.ResetPassword(ctx, req.Token, req.NewPassword); err != nil {
		h.writeServiceError(w, r, err, "failed to reset password")
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Password reset successful",
	})
}

func (h *Handler) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.VerifyEmailRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if req.Token == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "token is required"))
		return
	}

	if err := h.users.VerifyEmail(ctx, req.Token); err != nil {
		h.writeServiceError(w, r, err, "failed to verify email")
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Email verified successfully",
	})
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := identity.FromContext(ctx)
	if !ok {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Authentication required"))
		return
	}
	if principal.InternalID.IsZero() {
		// Development bypass principal: there is no directory record behind it.
		shared.WriteJSON(w, http.StatusOK, map[string]any{
			"user": map[string]any{
				"email": principal.Email,
				"role":  principal.Role,
			},
		})
		return
	}

	user, err := h.users.Get(ctx, principal.InternalID)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to load user")
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (h *Handler) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	principal, ok := identity.FromContext(ctx)
	if !ok || principal.InternalID.IsZero() {
		shared.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Authentication required"))
		return
	}

	var req models.UpdateProfileRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := validateUpdateProfileRequest(req); err != nil {
		shared.WriteError(w, err)
		return
	}

	user, err := h.users.UpdateProfile(ctx, principal.InternalID, req)
	if err != nil {
		h.writeServiceError(w, r, err, "failed to update profile")
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"user":    user,
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

func validateRegisterRequest(req models.RegisterRequest) error {
	if !govalidator.StringLength(req.Email, "1", "255") || !govalidator.IsEmail(req.Email) {
		return dErrors.New(dErrors.CodeBadRequest, "valid email is required")
	}
	if req.Password == "" && req.ExternalID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "password or external identity required")
	}
	if req.Password != "" && !govalidator.StringLength(req.Password, "8", "128") {
		return dErrors.New(dErrors.CodeBadRequest, "password must be between 8 and 128 characters")
	}
	if !govalidator.StringLength(req.FirstName, "1", "100") {
		return dErrors.New(dErrors.CodeBadRequest, "first name is required")
	}
	if !govalidator.StringLength(req.LastName, "1", "100") {
		return dErrors.New(dErrors.CodeBadRequest, "last name is required")
	}
	return nil
}

func validateLoginRequest(req models.LoginRequest) error {
	if !govalidator.IsEmail(req.Email) && req.ExternalID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "valid email or external identity is required")
	}
	return nil
}

func validateUpdateProfileRequest(req models.UpdateProfileRequest) error {
	if req.FirstName != nil && !govalidator.StringLength(*req.FirstName, "1", "100") {
		return dErrors.New(dErrors.CodeBadRequest, "first name must not be empty")
	}
	if req.LastName != nil && !govalidator.StringLength(*req.LastName, "1", "100") {
		return dErrors.New(dErrors.CodeBadRequest, "last name must not be empty")
	}
	return nil
}
