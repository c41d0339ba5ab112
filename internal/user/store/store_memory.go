package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"coopmarket/internal/user/models"
	"coopmarket/pkg/domain"
	"coopmarket/pkg/platform/sentinel"
)

// InMemory keeps the directory in a map. It favors clarity over performance
// and backs development mode and unit tests.
type InMemory struct {
	mu    sync.RWMutex
	users map[domain.UserID]*models.User
}

func NewInMemory() *InMemory {
	return &InMemory{users: make(map[domain.UserID]*models.User)}
}

func (s *InMemory) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return sentinel.ErrConflict
		}
		if user.ExternalID != "" && existing.ExternalID == user.ExternalID {
			return sentinel.ErrConflict
		}
	}
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[id]; ok {
		clone := *user
		return &clone, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			clone := *user
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindByExternalID(_ context.Context, externalID string) (*models.User, error) {
	if externalID == "" {
		return nil, sentinel.ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, user := range s.users {
		if user.ExternalID == externalID {
			clone := *user
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) Update(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return sentinel.ErrNotFound
	}
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *InMemory) List(_ context.Context, filter ListFilter) ([]*models.User, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.User
	for _, user := range s.users {
		if filter.Role != "" && user.Role != filter.Role {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(user.Email), needle) &&
				!strings.Contains(strings.ToLower(user.FirstName), needle) &&
				!strings.Contains(strings.ToLower(user.LastName), needle) {
				continue
			}
		}
		clone := *user
		matched = append(matched, &clone)
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start, end := pageBounds(filter.Page, filter.Limit, total)
	return matched[start:end], total, nil
}

func (s *InMemory) CountByRole(_ context.Context) (map[domain.Role]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[domain.Role]int)
	for _, user := range s.users {
		counts[user.Role]++
	}
	return counts, nil
}

// pageBounds clamps a page/limit pair onto a slice of length total.
func pageBounds(page, limit, total int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return start, end
}
