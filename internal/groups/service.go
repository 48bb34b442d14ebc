package groups

import (
	"context"
	"errors"
	"fmt"

	"github.com/gridscape/gridscape/internal/authz"
)

// ErrInvalidPattern signals a malformed permission pattern on a group.
var ErrInvalidPattern = errors.New("invalid permission pattern")

// Store is the persistence contract the service needs.
type Store interface {
	Get(ctx context.Context, id int64) (*Group, error)
	GetByIDs(ctx context.Context, ids []int64) ([]Group, error)
	List(ctx context.Context) ([]Group, error)
	Create(ctx context.Context, g Group) (int64, error)
	Update(ctx context.Context, g Group) error
	AddMember(ctx context.Context, groupID, userID int64, isManager bool) error
	RemoveMember(ctx context.Context, groupID, userID int64) error
	SetMembers(ctx context.Context, groupID int64, memberIDs, managerIDs []int64) error
}

// Invalidator is bumped after every permission-affecting mutation so
// cached effective sets cannot outlive a group change.
type Invalidator interface {
	Bump(ctx context.Context) error
}

// Service manages permission groups and implements authz.GroupLookup.
type Service struct {
	store Store
	cache Invalidator
}

// NewService constructs a groups service. cache may be nil.
func NewService(store Store, cache Invalidator) *Service {
	return &Service{store: store, cache: cache}
}

// GroupsByIDs implements authz.GroupLookup.
func (s *Service) GroupsByIDs(ctx context.Context, ids []int64) ([]authz.Group, error) {
	stored, err := s.store.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]authz.Group, 0, len(stored))
	for i := range stored {
		out = append(out, stored[i].Snapshot())
	}
	return out, nil
}

// Get fetches a group.
func (s *Service) Get(ctx context.Context, id int64) (*Group, error) {
	return s.store.Get(ctx, id)
}

// List returns all groups.
func (s *Service) List(ctx context.Context) ([]Group, error) {
	return s.store.List(ctx)
}

// Create validates the permission patterns and stores a new group.
// Groups start active.
func (s *Service) Create(ctx context.Context, req CreateGroupRequest) (*Group, error) {
	if err := validatePatterns(req.Permissions); err != nil {
		return nil, err
	}
	group := Group{
		Name:            req.Name,
		Description:     req.Description,
		Permissions:     req.Permissions,
		AssignedRegions: req.AssignedRegions,
		IsActive:        true,
	}
	id, err := s.store.Create(ctx, group)
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	s.invalidate(ctx)
	return s.store.Get(ctx, id)
}

// Update applies partial changes. Any change here can alter members'
// effective sets, so the cache version is bumped unconditionally.
func (s *Service) Update(ctx context.Context, id int64, req UpdateGroupRequest) (*Group, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.Description != nil {
		existing.Description = *req.Description
	}
	if req.Permissions != nil {
		if err := validatePatterns(*req.Permissions); err != nil {
			return nil, err
		}
		existing.Permissions = *req.Permissions
	}
	if req.AssignedRegions != nil {
		existing.AssignedRegions = *req.AssignedRegions
	}
	if req.IsActive != nil {
		existing.IsActive = *req.IsActive
	}
	if err := s.store.Update(ctx, *existing); err != nil {
		return nil, fmt.Errorf("update group: %w", err)
	}
	s.invalidate(ctx)
	return s.store.Get(ctx, id)
}

// AddMember adds a user to the group.
func (s *Service) AddMember(ctx context.Context, groupID, userID int64, isManager bool) error {
	if _, err := s.store.Get(ctx, groupID); err != nil {
		return err
	}
	if err := s.store.AddMember(ctx, groupID, userID, isManager); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	s.invalidate(ctx)
	return nil
}

// SetMembers replaces a group's membership in one step.
func (s *Service) SetMembers(ctx context.Context, groupID int64, req SetMembersRequest) error {
	if err := s.store.SetMembers(ctx, groupID, req.MemberIDs, req.ManagerIDs); err != nil {
		return fmt.Errorf("set members: %w", err)
	}
	s.invalidate(ctx)
	return nil
}

// RemoveMember removes a user from the group.
func (s *Service) RemoveMember(ctx context.Context, groupID, userID int64) error {
	if err := s.store.RemoveMember(ctx, groupID, userID); err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Bump(ctx)
	}
}

func validatePatterns(patterns []string) error {
	for _, p := range patterns {
		if !authz.IsValidPattern(p) {
			return fmt.Errorf("%w: %q", ErrInvalidPattern, p)
		}
	}
	return nil
}
