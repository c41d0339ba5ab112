// Package adapters bridges the user store into the narrow interfaces other
// features consume, keeping those features free of user-package types.
package adapters

import (
	"context"

	"coopmarket/internal/identity"
	"coopmarket/internal/user/models"
	"coopmarket/internal/user/store"
	"coopmarket/pkg/domain"
)

// Directory adapts the user store to the identity resolver's view.
type Directory struct {
	users store.Store
}

func NewDirectory(users store.Store) *Directory {
	return &Directory{users: users}
}

func (d *Directory) FindByExternalID(ctx context.Context, externalID string) (*identity.Principal, error) {
	user, err := d.users.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	return toPrincipal(user), nil
}

func (d *Directory) FindByInternalID(ctx context.Context, id domain.UserID) (*identity.Principal, error) {
	user, err := d.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toPrincipal(user), nil
}

func toPrincipal(user *models.User) *identity.Principal {
	return &identity.Principal{
		InternalID: user.ID,
		ExternalID: user.ExternalID,
		Email:      user.Email,
		Role:       user.Role,
		IsActive:   user.IsActive,
		IsVerified: user.IsVerified,
	}
}
