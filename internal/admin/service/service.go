package service

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"coopmarket/internal/audit"
	auctionmodels "coopmarket/internal/auction/models"
	"coopmarket/internal/identity"
	usermodels "coopmarket/internal/user/models"
	userstore "coopmarket/internal/user/store"
	"coopmarket/pkg/domain"
	dErrors "coopmarket/pkg/domain-errors"
	"coopmarket/pkg/platform/sentinel"
	"coopmarket/pkg/requestcontext"
)

// Counters are the narrow read views the dashboard gathers from each domain.
type Counters struct {
	Users    interface{ CountByRole(ctx context.Context) (map[domain.Role]int, error) }
	Products interface{ Count(ctx context.Context) (int, error) }
	Auctions interface {
		CountByStatus(ctx context.Context) (map[auctionmodels.Status]int, error)
	}
	Orders interface{ Count(ctx context.Context) (int, error) }
}

// Dashboard is the analytics snapshot the admin console renders.
type Dashboard struct {
	UsersByRole      map[domain.Role]int          `json:"usersByRole"`
	TotalProducts    int                          `json:"totalProducts"`
	AuctionsByStatus map[auctionmodels.Status]int `json:"auctionsByStatus"`
	TotalOrders      int                          `json:"totalOrders"`
}

// UsersPage is the admin user listing envelope.
type UsersPage struct {
	Users      []*usermodels.User `json:"users"`
	Pagination domain.Pagination  `json:"pagination"`
}

// Service implements the admin console operations.
type Service struct {
	users    userstore.Store
	counters Counters
	audits   audit.Store
	auditor  *audit.Publisher
}

func New(users userstore.Store, counters Counters, audits audit.Store, auditor *audit.Publisher) *Service {
	return &Service{users: users, counters: counters, audits: audits, auditor: auditor}
}

// Dashboard gathers the counts in parallel; one failing source fails the
// snapshot.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	var dashboard Dashboard

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := s.counters.Users.CountByRole(gctx)
		dashboard.UsersByRole = counts
		return err
	})
	g.Go(func() error {
		count, err := s.counters.Products.Count(gctx)
		dashboard.TotalProducts = count
		return err
	})
	g.Go(func() error {
		counts, err := s.counters.Auctions.CountByStatus(gctx)
		dashboard.AuctionsByStatus = counts
		return err
	})
	g.Go(func() error {
		count, err := s.counters.Orders.Count(gctx)
		dashboard.TotalOrders = count
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to gather dashboard counts")
	}
	return &dashboard, nil
}

// ListUsers pages the directory for the admin console.
func (s *Service) ListUsers(ctx context.Context, filter userstore.ListFilter) (*UsersPage, error) {
	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 10
	}
	if users == nil {
		users = []*usermodels.User{}
	}
	return &UsersPage{
		Users:      users,
		Pagination: domain.NewPagination(page, limit, total),
	}, nil
}

// UpdateRole changes a user's role.
func (s *Service) UpdateRole(ctx context.Context, principal identity.Principal, id domain.UserID, role domain.Role) (*usermodels.User, error) {
	if !role.Valid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid role")
	}

	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	user.Role = role
	user.UpdatedAt = requestcontext.Now(ctx)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update role")
	}

	s.auditor.Publish(ctx, audit.Event{
		Category:  audit.CategorySecurity,
		UserID:    principal.InternalID,
		Action:    audit.ActionRoleChanged,
		Subject:   id.String(),
		Reason:    string(role),
		RequestID: requestcontext.RequestID(ctx),
	})
	return user, nil
}

// SetActive bans or unbans a user. A banned user fails resolution with
// forbidden on the next request; no session revocation is needed because the
// directory is consulted on every request.
func (s *Service) SetActive(ctx context.Context, principal identity.Principal, id domain.UserID, active bool) (*usermodels.User, error) {
	if principal.InternalID == id {
		return nil, dErrors.New(dErrors.CodeBadRequest, "Cannot change your own active status")
	}

	user, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	user.IsActive = active
	user.UpdatedAt = requestcontext.Now(ctx)
	if err := s.users.Update(ctx, user); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update user")
	}

	action := audit.ActionUserBanned
	if active {
		action = audit.ActionUserUnbanned
	}
	s.auditor.Publish(ctx, audit.Event{
		Category:  audit.CategorySecurity,
		UserID:    principal.InternalID,
		Action:    action,
		Subject:   id.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	return user, nil
}

// Logs returns the most recent audit events.
func (s *Service) Logs(ctx context.Context, limit int) ([]audit.Event, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	events, err := s.audits.ListRecent(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit log")
	}
	if events == nil {
		events = []audit.Event{}
	}
	return events, nil
}

func (s *Service) find(ctx context.Context, id domain.UserID) (*usermodels.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "User not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}
	return user, nil
}
