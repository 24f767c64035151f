package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"propmarket/models"
	"propmarket/storage"
)

// UserService keeps the local user records behind issued tokens
type UserService struct {
	store storage.Store
}

func NewUserService(store storage.Store) *UserService {
	return &UserService{store: store}
}

// Ensure returns the user for an authenticated caller, creating the record on
// first sight. The token's role wins over the stored one.
func (s *UserService) Ensure(ctx context.Context, actor Actor) (*models.User, error) {
	u, err := s.store.GetUser(ctx, actor.UserID)
	if errors.Is(err, models.ErrNotFound) {
		u = &models.User{
			ID:        actor.UserID,
			Role:      actor.Role,
			Status:    models.UserStatusActive,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.store.CreateUser(ctx, u); err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		return s.store.GetUser(ctx, actor.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if actor.Role != "" && u.Role != actor.Role {
		u.Role = actor.Role
		if err := s.store.UpdateUser(ctx, u); err != nil {
			return nil, fmt.Errorf("update role: %w", err)
		}
	}
	return u, nil
}

// RequireActive is Ensure plus a check that the user is not suspended
func (s *UserService) RequireActive(ctx context.Context, actor Actor) (*models.User, error) {
	u, err := s.Ensure(ctx, actor)
	if err != nil {
		return nil, err
	}
	if u.Status == models.UserStatusSuspended {
		return nil, fmt.Errorf("user %s is suspended: %w", u.ID, models.ErrForbidden)
	}
	return u, nil
}

func (s *UserService) List(ctx context.Context) ([]models.User, error) {
	return s.store.ListUsers(ctx)
}

func (s *UserService) Verify(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.update(ctx, id, func(u *models.User) {
		u.Verified = true
		if u.Status == models.UserStatusPending {
			u.Status = models.UserStatusActive
		}
	})
}

func (s *UserService) Suspend(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.update(ctx, id, func(u *models.User) {
		u.Status = models.UserStatusSuspended
	})
}

func (s *UserService) update(ctx context.Context, id uuid.UUID, fn func(u *models.User)) (*models.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	fn(u)
	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}
