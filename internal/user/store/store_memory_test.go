package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coopmarket/internal/user/models"
	"coopmarket/pkg/domain"
	"coopmarket/pkg/platform/sentinel"
)

func newUser(email string, role domain.Role) *models.User {
	now := time.Now()
	return &models.User{
		ID:        domain.NewUserID(),
		Email:     email,
		Username:  email,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestInMemoryCreateAndFind(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	user := newUser("alice@example.com", domain.RoleBuyer)
	user.ExternalID = "ext-123"
	require.NoError(t, s.Create(ctx, user))

	byID, err := s.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, byID.Email)

	byEmail, err := s.FindByEmail(ctx, "ALICE@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byExternal, err := s.FindByExternalID(ctx, "ext-123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byExternal.ID)

	_, err = s.FindByID(ctx, domain.NewUserID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
	_, err = s.FindByExternalID(ctx, "")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestInMemoryUniqueness(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	first := newUser("alice@example.com", domain.RoleBuyer)
	first.ExternalID = "ext-123"
	require.NoError(t, s.Create(ctx, first))

	dupEmail := newUser("Alice@Example.com", domain.RoleSeller)
	assert.ErrorIs(t, s.Create(ctx, dupEmail), sentinel.ErrConflict)

	dupExternal := newUser("other@example.com", domain.RoleSeller)
	dupExternal.ExternalID = "ext-123"
	assert.ErrorIs(t, s.Create(ctx, dupExternal), sentinel.ErrConflict)
}

func TestInMemoryUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	user := newUser("alice@example.com", domain.RoleBuyer)
	require.NoError(t, s.Create(ctx, user))

	user.FirstName = "Alice"
	require.NoError(t, s.Update(ctx, user))

	got, err := s.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got.FirstName)

	missing := newUser("ghost@example.com", domain.RoleBuyer)
	assert.ErrorIs(t, s.Update(ctx, missing), sentinel.ErrNotFound)
}

func TestInMemoryCloneOnRead(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	user := newUser("alice@example.com", domain.RoleBuyer)
	require.NoError(t, s.Create(ctx, user))

	got, err := s.FindByID(ctx, user.ID)
	require.NoError(t, err)
	got.Email = "mutated@example.com"

	again, err := s.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", again.Email)
}

func TestInMemoryList(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	for i, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		user := newUser(email, domain.RoleBuyer)
		user.CreatedAt = time.Now().Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Create(ctx, user))
	}
	seller := newUser("seller@example.com", domain.RoleSeller)
	seller.FirstName = "Sally"
	require.NoError(t, s.Create(ctx, seller))

	users, total, err := s.List(ctx, ListFilter{Role: domain.RoleBuyer})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, users, 3)
	// Newest first.
	assert.Equal(t, "c@example.com", users[0].Email)

	users, total, err = s.List(ctx, ListFilter{Search: "sally"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "seller@example.com", users[0].Email)

	users, total, err = s.List(ctx, ListFilter{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, users, 1)
}

func TestInMemoryCountByRole(t *testing.T) {
	ctx := context.Background()
	s := NewInMemory()

	require.NoError(t, s.Create(ctx, newUser("a@example.com", domain.RoleBuyer)))
	require.NoError(t, s.Create(ctx, newUser("b@example.com", domain.RoleBuyer)))
	require.NoError(t, s.Create(ctx, newUser("c@example.com", domain.RoleAdmin)))

	counts, err := s.CountByRole(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.RoleBuyer])
	assert.Equal(t, 1, counts[domain.RoleAdmin])
	assert.Equal(t, 0, counts[domain.RoleSeller])
}
