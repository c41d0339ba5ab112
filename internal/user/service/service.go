package service

import (
	"context"
	"errors"
	"strings"

	"coopmarket/internal/audit"
	"coopmarket/internal/jwttoken"
	"coopmarket/internal/platform/metrics"
	"coopmarket/internal/user/models"
	"coopmarket/internal/user/password"
	pkgstore "coopmarket/internal/user/store"
	"coopmarket/pkg/domain"
	dErrors "coopmarket/pkg/domain-errors"
	"coopmarket/pkg/platform/sentinel"
	"coopmarket/pkg/requestcontext"
)

// Service orchestrates directory records and the self-issued token flows.
type Service struct {
	users   pkgstore.Store
	tokens  *jwttoken.Service
	auditor *audit.Publisher
	metrics *metrics.Metrics
}

func New(users pkgstore.Store, tokens *jwttoken.Service, auditor *audit.Publisher, m *metrics.Metrics) *Service {
	return &Service{users: users, tokens: tokens, auditor: auditor, metrics: m}
}

// Register creates a directory record and mints a session token. Users
// arriving from the identity provider (ExternalID set) are pre-verified; the
// provider has already confirmed their email.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.SessionResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	role := domain.RoleBuyer
	if req.Role != "" {
		role = domain.Role(req.Role)
		if !role.Valid() || role == domain.RoleAdmin {
			return nil, dErrors.New(dErrors.CodeBadRequest, "invalid role")
		}
	}

	now := requestcontext.Now(ctx)
	user := &models.User{
		ID:         domain.NewUserID(),
		Email:      email,
		Username:   usernameFromEmail(email),
		FirstName:  strings.TrimSpace(req.FirstName),
		LastName:   strings.TrimSpace(req.LastName),
		Phone:      strings.TrimSpace(req.Phone),
		ExternalID: req.ExternalID,
		Role:       role,
		IsVerified: req.ExternalID != "",
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if req.Password != "" {
		hash, err := password.Hash(req.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	} else if req.ExternalID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "password or external identity required")
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "User already exists with this email or external identity")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to register user")
	}

	token, err := s.tokens.GenerateSessionToken(user.ID, user.Email)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}

	s.auditor.Publish(ctx, audit.Event{
		Category:  audit.CategoryOperations,
		UserID:    user.ID,
		Action:    audit.ActionUserRegistered,
		RequestID: requestcontext.RequestID(ctx),
	})
	if s.metrics != nil {
		s.metrics.UsersRegistered.Inc()
	}

	return &models.SessionResponse{
		Message: "User registered successfully",
		User:    user,
		Token:   token,
	}, nil
}

// Login authenticates by password or by external identity and mints a fresh
// session token. The directory's last-seen timestamp is updated; this is the
// only directory mutation in any resolution-adjacent flow.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.SessionResponse, error) {
	user, err := s.findForLogin(ctx, req)
	if err != nil {
		s.auditFailure(ctx, "unknown user")
		return nil, err
	}

	if req.ExternalID != "" {
		if user.ExternalID != req.ExternalID {
			s.auditFailure(ctx, "external identity mismatch")
			return nil, dErrors.New(dErrors.CodeUnauthorized, "Invalid credentials")
		}
	} else {
		if user.PasswordHash == "" || req.Password == "" {
			s.auditFailure(ctx, "missing password")
			return nil, dErrors.New(dErrors.CodeUnauthorized, "Invalid credentials")
		}
		if err := password.Verify(req.Password, user.PasswordHash); err != nil {
			s.auditFailure(ctx, "bad password")
			return nil, dErrors.New(dErrors.CodeUnauthorized, "Invalid credentials")
		}
	}

	if !user.IsActive {
		s.auditFailure(ctx, "inactive user")
		return nil, dErrors.New(dErrors.CodeForbidden, "Forbidden: User is not active")
	}

	token, err := s.tokens.GenerateSessionToken(user.ID, user.Email)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}

	user.UpdatedAt = requestcontext.Now(ctx)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update user")
	}

	s.auditor.Publish(ctx, audit.Event{
		Category:  audit.CategoryOperations,
		UserID:    user.ID,
		Action:    audit.ActionLoginSucceeded,
		RequestID: requestcontext.RequestID(ctx),
	})

	return &models.SessionResponse{
		Message: "Login successful",
		User:    user,
		Token:   token,
	}, nil
}

func (s *Service) findForLogin(ctx context.Context, req models.LoginRequest) (*models.User, error) {
	if req.ExternalID != "" {
		user, err := s.users.FindByExternalID(ctx, req.ExternalID)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
		}
	}
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "Invalid credentials")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
	return user, nil
}

// Refresh exchanges a still-valid session token for a new one.
func (s *Service) Refresh(ctx context.Context, rawToken string) (*models.SessionResponse, error) {
	userID, err := s.tokens.ExtractUserID(rawToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized: User not found in database")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
	if !user.IsActive {
		return nil, dErrors.New(dErrors.CodeForbidden, "Forbidden: User is not active")
	}

	token, err := s.tokens.GenerateSessionToken(user.ID, user.Email)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}

	return &models.SessionResponse{
		Message: "Token refreshed successfully",
		User:    user,
		Token:   token,
	}, nil
}

// ForgotPassword mints a short-lived reset token. The response never reveals
// whether the account exists.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", nil
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
	return s.tokens.GeneratePasswordResetToken(user.ID, user.Email)
}

// ResetPassword consumes a reset token and replaces the stored hash.
func (s *Service) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	claims, err := s.tokens.ValidatePasswordResetToken(rawToken)
	if err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "Invalid or expired token")
	}
	userID, err := domain.ParseUserID(claims.UserID)
	if err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "Invalid or expired token")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "Invalid or expired token")
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.UpdatedAt = requestcontext.Now(ctx)
	if err := s.users.Update(ctx, user); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update password")
	}

	s.auditor.Publish(ctx, audit.Event{
		Category:  audit.CategorySecurity,
		UserID:    user.ID,
		Action:    audit.ActionPasswordReset,
		RequestID: requestcontext.RequestID(ctx),
	})
	return nil
}

// VerifyEmail marks the token's subject as verified.
func (s *Service) VerifyEmail(ctx context.Context, rawToken string) error {
	userID, err := s.tokens.ExtractUserID(rawToken)
	if err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "Invalid or expired token")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "Invalid or expired token")
	}

	user.IsVerified = true
	user.UpdatedAt = requestcontext.Now(ctx)
	if err := s.users.Update(ctx, user); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify email")
	}

	s.auditor.Publish(ctx, audit.Event{
		Category:  audit.CategoryOperations,
		UserID:    user.ID,
		Action:    audit.ActionEmailVerified,
		RequestID: requestcontext.RequestID(ctx),
	})
	return nil
}

// Get fetches one directory record.
func (s *Service) Get(ctx context.Context, id domain.UserID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "User not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up user")
	}
	return user, nil
}

// UpdateProfile applies partial profile changes for the given user.
func (s *Service) UpdateProfile(ctx context.Context, id domain.UserID, req models.UpdateProfileRequest) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.FirstName != nil {
		user.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		user.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.Phone != nil {
		user.Phone = strings.TrimSpace(*req.Phone)
	}
	user.UpdatedAt = requestcontext.Now(ctx)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update profile")
	}
	return user, nil
}

func (s *Service) auditFailure(ctx context.Context, reason string) {
	s.auditor.Publish(ctx, audit.Event{
		Category:  audit.CategorySecurity,
		Action:    audit.ActionAuthFailed,
		Reason:    reason,
		RequestID: requestcontext.RequestID(ctx),
	})
	s.metrics.IncrementAuthFailure("unauthenticated")
}

func usernameFromEmail(email string) string {
	if at := strings.IndexByte(email, '@'); at > 0 {
		return email[:at]
	}
	return email
}
