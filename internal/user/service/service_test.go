package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"coopmarket/internal/audit"
	"coopmarket/internal/jwttoken"
	"coopmarket/internal/user/models"
	"coopmarket/internal/user/store"
	"coopmarket/pkg/domain"
	dErrors "coopmarket/pkg/domain-errors"
)

type UserServiceSuite struct {
	suite.Suite
	users   *store.InMemory
	tokens  *jwttoken.Service
	auditor *audit.Publisher
	service *Service
}

func TestUserServiceSuite(t *testing.T) {
	suite.Run(t, new(UserServiceSuite))
}

func (s *UserServiceSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.users = store.NewInMemory()
	s.tokens = jwttoken.NewService("test-key", "coopmarket", time.Hour, 15*time.Minute)
	s.auditor = audit.NewPublisher(64, logger)
	s.service = New(s.users, s.tokens, s.auditor, nil)
}

// drainAudit empties the publisher inbox and returns the captured events.
func (s *UserServiceSuite) drainAudit() []audit.Event {
	var events []audit.Event
	for {
		select {
		case event := <-s.auditor.Inbox():
			events = append(events, event)
		default:
			return events
		}
	}
}

func (s *UserServiceSuite) register(email, pass string) *models.SessionResponse {
	resp, err := s.service.Register(context.Background(), models.RegisterRequest{
		Email:     email,
		Password:  pass,
		FirstName: "Test",
		LastName:  "User",
	})
	s.Require().NoError(err)
	return resp
}

func (s *UserServiceSuite) TestRegister() {
	ctx := context.Background()

	s.Run("password registration defaults to buyer", func() {
		resp := s.register("alice@example.com", "hunter2hunter2")
		s.Equal(domain.RoleBuyer, resp.User.Role)
		s.Equal("alice", resp.User.Username)
		s.False(resp.User.IsVerified)
		s.True(resp.User.IsActive)
		s.NotEmpty(resp.Token)
		s.NotEqual("hunter2hunter2", resp.User.PasswordHash)
	})

	s.Run("session token is immediately valid", func() {
		resp := s.register("token@example.com", "hunter2hunter2")
		userID, err := s.tokens.ExtractUserID(resp.Token)
		s.NoError(err)
		s.Equal(resp.User.ID, userID)
	})

	s.Run("provider registration starts verified", func() {
		resp, err := s.service.Register(ctx, models.RegisterRequest{
			Email:      "provider@example.com",
			ExternalID: "ext-42",
			FirstName:  "Pro",
			LastName:   "Vider",
			Role:       string(domain.RoleSeller),
		})
		s.Require().NoError(err)
		s.True(resp.User.IsVerified)
		s.Equal(domain.RoleSeller, resp.User.Role)
	})

	s.Run("admin cannot be self-assigned", func() {
		_, err := s.service.Register(ctx, models.RegisterRequest{
			Email:     "evil@example.com",
			Password:  "hunter2hunter2",
			FirstName: "E",
			LastName:  "Vil",
			Role:      string(domain.RoleAdmin),
		})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("duplicate email conflicts", func() {
		s.register("dup@example.com", "hunter2hunter2")
		_, err := s.service.Register(ctx, models.RegisterRequest{
			Email:     "dup@example.com",
			Password:  "hunter2hunter2",
			FirstName: "D",
			LastName:  "Up",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Equal("User already exists with this email or external identity", dErrors.MessageOf(err))
	})

	s.Run("neither password nor external identity", func() {
		_, err := s.service.Register(ctx, models.RegisterRequest{
			Email:     "empty@example.com",
			FirstName: "E",
			LastName:  "Mpty",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("registration is audited", func() {
		events := s.drainAudit()
		var found bool
		for _, event := range events {
			if event.Action == audit.ActionUserRegistered {
				found = true
			}
		}
		s.True(found)
	})
}

func (s *UserServiceSuite) TestLogin() {
	ctx := context.Background()
	s.register("alice@example.com", "hunter2hunter2")

	s.Run("correct password succeeds", func() {
		resp, err := s.service.Login(ctx, models.LoginRequest{
			Email:    "alice@example.com",
			Password: "hunter2hunter2",
		})
		s.Require().NoError(err)
		s.NotEmpty(resp.Token)
		s.Equal("Login successful", resp.Message)
	})

	s.Run("wrong password fails without detail", func() {
		_, err := s.service.Login(ctx, models.LoginRequest{
			Email:    "alice@example.com",
			Password: "wrong",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal("Invalid credentials", dErrors.MessageOf(err))
	})

	s.Run("unknown email fails with the same message", func() {
		_, err := s.service.Login(ctx, models.LoginRequest{
			Email:    "ghost@example.com",
			Password: "hunter2hunter2",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
		s.Equal("Invalid credentials", dErrors.MessageOf(err))
	})

	s.Run("external identity login", func() {
		_, err := s.service.Register(ctx, models.RegisterRequest{
			Email:      "ext@example.com",
			ExternalID: "ext-7",
			FirstName:  "Ex",
			LastName:   "Ternal",
		})
		s.Require().NoError(err)

		resp, err := s.service.Login(ctx, models.LoginRequest{ExternalID: "ext-7"})
		s.Require().NoError(err)
		s.Equal("ext@example.com", resp.User.Email)
	})

	s.Run("inactive user is forbidden", func() {
		resp := s.register("banned@example.com", "hunter2hunter2")
		user, err := s.users.FindByID(ctx, resp.User.ID)
		s.Require().NoError(err)
		user.IsActive = false
		s.Require().NoError(s.users.Update(ctx, user))

		_, err = s.service.Login(ctx, models.LoginRequest{
			Email:    "banned@example.com",
			Password: "hunter2hunter2",
		})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Equal("Forbidden: User is not active", dErrors.MessageOf(err))
	})
}

func (s *UserServiceSuite) TestRefresh() {
	ctx := context.Background()
	resp := s.register("alice@example.com", "hunter2hunter2")

	s.Run("valid token refreshes", func() {
		refreshed, err := s.service.Refresh(ctx, resp.Token)
		s.Require().NoError(err)
		s.NotEmpty(refreshed.Token)
		s.Equal(resp.User.ID, refreshed.User.ID)
	})

	s.Run("garbage token rejected", func() {
		_, err := s.service.Refresh(ctx, "garbage")
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	s.Run("banned user cannot refresh", func() {
		user, err := s.users.FindByID(ctx, resp.User.ID)
		s.Require().NoError(err)
		user.IsActive = false
		s.Require().NoError(s.users.Update(ctx, user))

		_, err = s.service.Refresh(ctx, resp.Token)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *UserServiceSuite) TestPasswordResetFlow() {
	ctx := context.Background()
	resp := s.register("alice@example.com", "OriginalPass1")

	s.Run("forgot password mints a reset token", func() {
		token, err := s.service.ForgotPassword(ctx, "alice@example.com")
		s.Require().NoError(err)
		s.Require().NotEmpty(token)

		s.Require().NoError(s.service.ResetPassword(ctx, token, "BrandNewPass1"))

		_, err = s.service.Login(ctx, models.LoginRequest{Email: "alice@example.com", Password: "OriginalPass1"})
		s.Error(err)
		_, err = s.service.Login(ctx, models.LoginRequest{Email: "alice@example.com", Password: "BrandNewPass1"})
		s.NoError(err)
	})

	s.Run("unknown email yields no token and no error", func() {
		token, err := s.service.ForgotPassword(ctx, "ghost@example.com")
		s.NoError(err)
		s.Empty(token)
	})

	s.Run("session token cannot reset a password", func() {
		err := s.service.ResetPassword(ctx, resp.Token, "SneakyPass1")
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

func (s *UserServiceSuite) TestVerifyEmail() {
	ctx := context.Background()
	resp := s.register("alice@example.com", "hunter2hunter2")
	s.False(resp.User.IsVerified)

	s.Require().NoError(s.service.VerifyEmail(ctx, resp.Token))

	user, err := s.service.Get(ctx, resp.User.ID)
	s.Require().NoError(err)
	s.True(user.IsVerified)
}

func (s *UserServiceSuite) TestUpdateProfile() {
	ctx := context.Background()
	resp := s.register("alice@example.com", "hunter2hunter2")

	first := "Alicia"
	phone := "+15551234567"
	user, err := s.service.UpdateProfile(ctx, resp.User.ID, models.UpdateProfileRequest{
		FirstName: &first,
		Phone:     &phone,
	})
	s.Require().NoError(err)
	s.Equal("Alicia", user.FirstName)
	s.Equal("User", user.LastName)
	s.Equal("+15551234567", user.Phone)

	_, err = s.service.UpdateProfile(ctx, domain.NewUserID(), models.UpdateProfileRequest{})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
