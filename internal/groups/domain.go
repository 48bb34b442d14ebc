package groups

import (
	"time"

	"github.com/gridscape/gridscape/internal/authz"
)

// Group is a permission grouping with optional region assignments.
// Deactivating a group withdraws everything it contributes to its
// members without touching membership.
type Group struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description,omitempty"`
	Permissions     []string  `json:"permissions"`
	AssignedRegions []string  `json:"assigned_regions"`
	MemberIDs       []int64   `json:"member_ids"`
	ManagerIDs      []int64   `json:"manager_ids"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Snapshot converts a stored group into the resolver's view of it.
func (g *Group) Snapshot() authz.Group {
	return authz.Group{
		ID:              g.ID,
		Name:            g.Name,
		Permissions:     g.Permissions,
		AssignedRegions: g.AssignedRegions,
		MemberIDs:       g.MemberIDs,
		ManagerIDs:      g.ManagerIDs,
		IsActive:        g.IsActive,
	}
}

// CreateGroupRequest carries the inputs of a group creation.
type CreateGroupRequest struct {
	Name            string   `json:"name" validate:"required,max=200"`
	Description     string   `json:"description" validate:"max=500"`
	Permissions     []string `json:"permissions"`
	AssignedRegions []string `json:"assigned_regions"`
}

// SetMembersRequest replaces the full membership of a group.
type SetMembersRequest struct {
	MemberIDs  []int64 `json:"member_ids" validate:"required"`
	ManagerIDs []int64 `json:"manager_ids"`
}

// UpdateGroupRequest carries partial group updates.
type UpdateGroupRequest struct {
	Name            *string   `json:"name,omitempty" validate:"omitempty,max=200"`
	Description     *string   `json:"description,omitempty" validate:"omitempty,max=500"`
	Permissions     *[]string `json:"permissions,omitempty"`
	AssignedRegions *[]string `json:"assigned_regions,omitempty"`
	IsActive        *bool     `json:"is_active,omitempty"`
}
