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
	"coopmarket/internal/product/service"
	"coopmarket/internal/product/store"
	"coopmarket/internal/user/adapters"
	usermodels "coopmarket/internal/user/models"
	userstore "coopmarket/internal/user/store"
	"coopmarket/pkg/domain"
)

type catalogFixture struct {
	router http.Handler
	users  *userstore.InMemory
	tokens *jwttoken.Service
}

func newCatalogFixture(t *testing.T) *catalogFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := userstore.NewInMemory()
	products := store.NewInMemory()
	tokens := jwttoken.NewService("test-key", "coopmarket", time.Hour, time.Hour)
	svc := service.New(products, users, audit.NewPublisher(64, logger), nil)

	resolver := identity.NewResolver(
		[]identity.Strategy{identity.NewSelfIssuedStrategy(tokens, adapters.NewDirectory(users))},
		false, logger, nil,
	)

	r := chi.NewRouter()
	New(svc, resolver, logger).Register(r)
	return &catalogFixture{router: r, users: users, tokens: tokens}
}

func (f *catalogFixture) seedUser(t *testing.T, email string, role domain.Role, verified bool) string {
	t.Helper()
	now := time.Now()
	user := &usermodels.User{
		ID:         domain.NewUserID(),
		Email:      email,
		Username:   email,
		Role:       role,
		IsActive:   true,
		IsVerified: verified,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := f.users.Create(t.Context(), user); err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	token, err := f.tokens.GenerateSessionToken(user.ID, user.Email)
	if err != nil {
		t.Fatalf("failed to mint token: %v", err)
	}
	return token
}

func (f *catalogFixture) createProduct(t *testing.T, token, name string) string {
	t.Helper()
	body, _ := json.Marshal(map[string]any{
		"name":     name,
		"category": "CHICKEN",
		"price":    25.0,
		"quantity": 5,
		"unit":     "PIECE",
	})
	req := httptest.NewRequest(http.MethodPost, "/products", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 creating product, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Product struct {
			ID string `json:"id"`
		} `json:"product"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode create response: %v", err)
	}
	return resp.Product.ID
}

func TestListProductsIsPublic(t *testing.T) {
	f := newCatalogFixture(t)
	token := f.seedUser(t, "seller@example.com", domain.RoleSeller, true)
	f.createProduct(t, token, "Rhode Island Red")

	req := httptest.NewRequest(http.MethodGet, "/products?category=CHICKEN", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 listing products, got %d", rec.Code)
	}
	var page struct {
		Products   []json.RawMessage `json:"products"`
		Pagination struct {
			Total int `json:"total"`
		} `json:"pagination"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("failed to decode page: %v", err)
	}
	if page.Pagination.Total != 1 || len(page.Products) != 1 {
		t.Fatalf("expected one product, got total=%d len=%d", page.Pagination.Total, len(page.Products))
	}
}

func TestListProductsRejectsBadFilter(t *testing.T) {
	f := newCatalogFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/products?category=GOAT", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown category, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/products?sortBy=height", nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown sort, got %d", rec.Code)
	}
}

func TestCreateProductRequiresAuth(t *testing.T) {
	f := newCatalogFixture(t)

	body, _ := json.Marshal(map[string]any{"name": "X", "category": "CHICKEN", "price": 1.0, "unit": "PIECE"})
	req := httptest.NewRequest(http.MethodPost, "/products", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
}

func TestCreateProductRequiresVerifiedUser(t *testing.T) {
	f := newCatalogFixture(t)
	token := f.seedUser(t, "unverified@example.com", domain.RoleSeller, false)

	body, _ := json.Marshal(map[string]any{"name": "X", "category": "CHICKEN", "price": 1.0, "unit": "PIECE"})
	req := httptest.NewRequest(http.MethodPost, "/products", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for unverified user, got %d", rec.Code)
	}
}

func TestGetProduct(t *testing.T) {
	f := newCatalogFixture(t)
	token := f.seedUser(t, "seller@example.com", domain.RoleSeller, true)
	id := f.createProduct(t, token, "Rhode Island Red")

	req := httptest.NewRequest(http.MethodGet, "/products/"+id, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 fetching product, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/products/"+domain.NewProductID().String(), nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown product, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/products/not-a-uuid", nil)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", rec.Code)
	}
}

func TestDeleteProductOwnership(t *testing.T) {
	f := newCatalogFixture(t)
	owner := f.seedUser(t, "owner@example.com", domain.RoleSeller, true)
	stranger := f.seedUser(t, "stranger@example.com", domain.RoleSeller, true)
	id := f.createProduct(t, owner, "Rhode Island Red")

	req := httptest.NewRequest(http.MethodDelete, "/products/"+id, nil)
	req.Header.Set("Authorization", "Bearer "+stranger)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for stranger delete, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/products/"+id, nil)
	req.Header.Set("Authorization", "Bearer "+owner)
	rec = httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for owner delete, got %d", rec.Code)
	}
}
