package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"familytree-backend/internal/domain"
	"familytree-backend/internal/identity"
	"familytree-backend/internal/logger"
)

// directoryService projects admin and publisher roles out of user metadata.
// The admin list is cached for ttl; SetRole invalidates it.
type directoryService struct {
	provider identity.Provider
	ttl      time.Duration
	now      Clock

	mu       sync.Mutex
	admins   []domain.User
	cachedAt time.Time
}

func NewDirectoryService(provider identity.Provider, ttl time.Duration, clock Clock) DirectoryService {
	if clock == nil {
		clock = systemClock
	}
	return &directoryService{provider: provider, ttl: ttl, now: clock}
}

func (s *directoryService) lookup(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, nil
	}
	u, err := s.provider.GetUser(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, &domain.DirectoryError{Err: err}
	}
	return u, nil
}

// IsAdmin is true only when the flag is explicitly set; unknown users are not admins.
func (s *directoryService) IsAdmin(ctx context.Context, userID string) (bool, error) {
	u, err := s.lookup(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.IsAdmin(), nil
}

func (s *directoryService) IsPublisher(ctx context.Context, userID string) (bool, error) {
	u, err := s.lookup(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.IsPublisher(), nil
}

func (s *directoryService) CanModerate(ctx context.Context, userID string) (bool, error) {
	u, err := s.lookup(ctx, userID)
	if err != nil {
		return false, err
	}
	return u.IsAdmin() || u.IsPublisher(), nil
}

func (s *directoryService) ListAdmins(ctx context.Context) ([]domain.User, error) {
	s.mu.Lock()
	if s.admins != nil && s.ttl > 0 && s.now().Sub(s.cachedAt) < s.ttl {
		admins := append([]domain.User(nil), s.admins...)
		s.mu.Unlock()
		return admins, nil
	}
	s.mu.Unlock()

	users, err := s.provider.ListUsers(ctx)
	if err != nil {
		return nil, &domain.DirectoryError{Err: err}
	}
	admins := make([]domain.User, 0)
	for i := range users {
		if users[i].IsAdmin() {
			admins = append(admins, users[i])
		}
	}

	s.mu.Lock()
	s.admins = admins
	s.cachedAt = s.now()
	s.mu.Unlock()

	return append([]domain.User(nil), admins...), nil
}

func (s *directoryService) ListAdminIDs(ctx context.Context) ([]string, error) {
	admins, err := s.ListAdmins(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(admins))
	for i, a := range admins {
		ids[i] = a.ID
	}
	return ids, nil
}

// SetRole changes only the flags present in update; other metadata survives.
func (s *directoryService) SetRole(ctx context.Context, userID string, update domain.RoleUpdate) error {
	patch := update.Patch()
	if len(patch) == 0 {
		return &domain.ValidationError{Field: "roles", Reason: "at least one of is_admin or is_publisher is required"}
	}

	logger.Info("Updating user roles", "userID", userID, "patch", patch)
	if err := s.provider.UpdateUserMetadata(ctx, userID, patch); err != nil {
		return err
	}

	s.mu.Lock()
	s.admins = nil
	s.mu.Unlock()
	return nil
}
