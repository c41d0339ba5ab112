package store

import (
	"context"

	"coopmarket/internal/user/models"
	"coopmarket/pkg/domain"
)

// ListFilter narrows and pages directory listings (admin use).
type ListFilter struct {
	Role   domain.Role
	Page   int
	Limit  int
	Search string
}

// Store is the user directory. Implementations return sentinel.ErrNotFound
// for missing records and sentinel.ErrConflict for uniqueness violations.
type Store interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id domain.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context, filter ListFilter) ([]*models.User, int, error)
	CountByRole(ctx context.Context) (map[domain.Role]int, error)
}
