package users

import (
	"context"
	"fmt"

	"github.com/gridscape/gridscape/internal/authz"
)

// Store is the narrow persistence contract the service needs.
type Store interface {
	GetUser(ctx context.Context, id int64) (*User, error)
	ListUsers(ctx context.Context) ([]User, error)
	GroupIDsForUser(ctx context.Context, userID int64) ([]int64, error)
}

// Service assembles principal snapshots for the authorization core.
type Service struct {
	store Store
}

// NewService constructs a users service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Get fetches a user account.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.store.GetUser(ctx, id)
}

// List returns all user accounts.
func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.store.ListUsers(ctx)
}

// Principal implements authz.PrincipalSource: one user row plus the
// user's group memberships, read fresh on every call. Inactive accounts
// resolve to a principal with no role, which grants nothing.
func (s *Service) Principal(ctx context.Context, id int64) (authz.Principal, error) {
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return authz.Principal{}, fmt.Errorf("load principal: %w", err)
	}
	principal := authz.Principal{ID: user.ID}
	if !user.IsActive {
		return principal, nil
	}
	principal.Role = user.Role
	principal.DirectPermissions = user.DirectPermissions

	groupIDs, err := s.store.GroupIDsForUser(ctx, id)
	if err != nil {
		return authz.Principal{}, fmt.Errorf("load principal groups: %w", err)
	}
	principal.GroupIDs = groupIDs
	return principal, nil
}
