package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"coopmarket/internal/audit"
	"coopmarket/internal/identity"
	"coopmarket/internal/jwttoken"
	"coopmarket/internal/user/adapters"
	"coopmarket/internal/user/service"
	"coopmarket/internal/user/store"
)

func newAuthRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := store.NewInMemory()
	tokens := jwttoken.NewService("test-key", "coopmarket", time.Hour, 15*time.Minute)
	auditor := audit.NewPublisher(64, logger)
	svc := service.New(users, tokens, auditor, nil)

	directory := adapters.NewDirectory(users)
	resolver := identity.NewResolver(
		[]identity.Strategy{identity.NewSelfIssuedStrategy(tokens, directory)},
		false, logger, nil,
	)

	r := chi.NewRouter()
	New(svc, resolver, logger).Register(r)
	return r
}

func postJSON(t *testing.T, router http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("failed to marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func registerUser(t *testing.T, router http.Handler, email string) string {
	t.Helper()
	rec := postJSON(t, router, "/auth/register", map[string]string{
		"email":     email,
		"password":  "hunter2hunter2",
		"firstName": "Test",
		"lastName":  "User",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 registering, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode register response: %v", err)
	}
	if resp.Token == "" {
		t.Fatalf("expected a session token in the register response")
	}
	return resp.Token
}

func TestRegisterValidation(t *testing.T) {
	router := newAuthRouter(t)

	rec := postJSON(t, router, "/auth/register", map[string]string{
		"email":     "not-an-email",
		"password":  "hunter2hunter2",
		"firstName": "Test",
		"lastName":  "User",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid email, got %d", rec.Code)
	}

	rec = postJSON(t, router, "/auth/register", map[string]string{
		"email":     "short@example.com",
		"password":  "short",
		"firstName": "Test",
		"lastName":  "User",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short password, got %d", rec.Code)
	}
}

func TestRegisterConflict(t *testing.T) {
	router := newAuthRouter(t)
	registerUser(t, router, "alice@example.com")

	rec := postJSON(t, router, "/auth/register", map[string]string{
		"email":     "alice@example.com",
		"password":  "hunter2hunter2",
		"firstName": "Test",
		"lastName":  "User",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", rec.Code)
	}
}

func TestLoginAndMe(t *testing.T) {
	router := newAuthRouter(t)
	registerUser(t, router, "alice@example.com")

	rec := postJSON(t, router, "/auth/login", map[string]string{
		"email":    "alice@example.com",
		"password": "hunter2hunter2",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 logging in, got %d: %s", rec.Code, rec.Body.String())
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&login); err != nil {
		t.Fatalf("failed to decode login response: %v", err)
	}

	meReq := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	meReq.Header.Set("Authorization", "Bearer "+login.Token)
	meRec := httptest.NewRecorder()
	router.ServeHTTP(meRec, meReq)
	if meRec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /auth/me, got %d: %s", meRec.Code, meRec.Body.String())
	}
	var me struct {
		User struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	if err := json.NewDecoder(meRec.Body).Decode(&me); err != nil {
		t.Fatalf("failed to decode me response: %v", err)
	}
	if me.User.Email != "alice@example.com" {
		t.Fatalf("expected resolved user email, got %q", me.User.Email)
	}
}

func TestMeWithoutToken(t *testing.T) {
	router := newAuthRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	var body struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	if body.Message != "Unauthorized: No token provided" {
		t.Fatalf("unexpected error message %q", body.Message)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	router := newAuthRouter(t)
	token := registerUser(t, router, "alice@example.com")

	rec := postJSON(t, router, "/auth/refresh", map[string]string{"token": token})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 refreshing, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = postJSON(t, router, "/auth/refresh", map[string]string{"token": "garbage"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rec.Code)
	}
}

func TestForgotPasswordNeverRevealsAccounts(t *testing.T) {
	router := newAuthRouter(t)
	registerUser(t, router, "alice@example.com")

	for _, email := range []string{"alice@example.com", "ghost@example.com"} {
		rec := postJSON(t, router, "/auth/forgot-password", map[string]string{"email": email})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 for %s, got %d", email, rec.Code)
		}
		var body struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if body.Message != "If the email exists, a reset link has been sent" {
			t.Fatalf("response must not depend on account existence, got %q", body.Message)
		}
	}
}

func TestUpdateProfileEndpoint(t *testing.T) {
	router := newAuthRouter(t)
	token := registerUser(t, router, "alice@example.com")

	body, _ := json.Marshal(map[string]string{"firstName": "Alicia"})
	req := httptest.NewRequest(http.MethodPut, "/users/me", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 updating profile, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		User struct {
			FirstName string `json:"firstName"`
		} `json:"user"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.User.FirstName != "Alicia" {
		t.Fatalf("expected updated first name, got %q", resp.User.FirstName)
	}
}
