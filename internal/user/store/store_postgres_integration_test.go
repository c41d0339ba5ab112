//go:build integration

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coopmarket/internal/user/models"
	"coopmarket/pkg/domain"
	"coopmarket/pkg/platform/sentinel"
	"coopmarket/pkg/testutil/containers"
)

func seedPgUser(t *testing.T, store *Postgres, email string, role domain.Role) *models.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	user := &models.User{
		ID:        domain.NewUserID(),
		Email:     email,
		Username:  email,
		FirstName: "Pg",
		LastName:  "User",
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.Create(context.Background(), user))
	return user
}

func TestPostgresUserStore(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := NewPostgres(pg.DB)
	ctx := context.Background()

	t.Run("create and find", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx, "users"))
		created := seedPgUser(t, store, "alice@example.com", domain.RoleBuyer)

		byID, err := store.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.Email, byID.Email)
		assert.Equal(t, domain.RoleBuyer, byID.Role)

		byEmail, err := store.FindByEmail(ctx, "ALICE@Example.COM")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byEmail.ID)

		_, err = store.FindByID(ctx, domain.NewUserID())
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("email uniqueness is case-insensitive", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx, "users"))
		seedPgUser(t, store, "bob@example.com", domain.RoleBuyer)

		dup := &models.User{
			ID:        domain.NewUserID(),
			Email:     "BOB@example.com",
			Username:  "bob2",
			Role:      domain.RoleBuyer,
			IsActive:  true,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}
		assert.ErrorIs(t, store.Create(ctx, dup), sentinel.ErrConflict)
	})

	t.Run("external identity", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx, "users"))
		user := seedPgUser(t, store, "carol@example.com", domain.RoleSeller)
		user.ExternalID = "provider-uid-42"
		require.NoError(t, store.Update(ctx, user))

		found, err := store.FindByExternalID(ctx, "provider-uid-42")
		require.NoError(t, err)
		assert.Equal(t, user.ID, found.ID)

		_, err = store.FindByExternalID(ctx, "")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("update missing user", func(t *testing.T) {
		ghost := &models.User{
			ID:        domain.NewUserID(),
			Email:     "ghost@example.com",
			Username:  "ghost",
			Role:      domain.RoleBuyer,
			UpdatedAt: time.Now(),
		}
		assert.ErrorIs(t, store.Update(ctx, ghost), sentinel.ErrNotFound)
	})

	t.Run("list and count", func(t *testing.T) {
		require.NoError(t, pg.Truncate(ctx, "users"))
		for i := 0; i < 3; i++ {
			seedPgUser(t, store, fmt.Sprintf("buyer%d@example.com", i), domain.RoleBuyer)
		}
		seedPgUser(t, store, "seller@example.com", domain.RoleSeller)

		sellers, total, err := store.List(ctx, ListFilter{Role: domain.RoleSeller, Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, sellers, 1)
		assert.Equal(t, "seller@example.com", sellers[0].Email)

		matched, total, err := store.List(ctx, ListFilter{Search: "buyer1", Page: 1, Limit: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, matched, 1)

		paged, total, err := store.List(ctx, ListFilter{Page: 2, Limit: 3})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		assert.Len(t, paged, 1)

		counts, err := store.CountByRole(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, counts[domain.RoleBuyer])
		assert.Equal(t, 1, counts[domain.RoleSeller])
	})
}
