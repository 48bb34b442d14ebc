package authz

import (
	"context"
	"fmt"
)

// Resolver computes effective permission sets. It owns no mutable
// state; every method is a pure function of its inputs and the
// injected lookups, safe for concurrent use.
type Resolver struct {
	groups  GroupLookup
	regions RegionLookup
}

// NewResolver constructs a Resolver. regions may be nil when no
// regional ledger is wired; CanAccessRegion then only sees group
// assigned regions.
func NewResolver(groups GroupLookup, regions RegionLookup) *Resolver {
	return &Resolver{groups: groups, regions: regions}
}

// Resolve computes the effective permission set for a principal: role
// defaults, plus direct grants, plus the permissions of every active
// group the principal belongs to. Admin short-circuits to the universal
// wildcard regardless of direct or group grants.
func (r *Resolver) Resolve(ctx context.Context, principal Principal) (PermissionSet, error) {
	if principal.Role == RoleAdmin {
		return NewPermissionSet(PermissionAll), nil
	}

	set := NewPermissionSet(RoleDefaults(principal.Role)...)
	set.AddAll(principal.DirectPermissions)

	if len(principal.GroupIDs) > 0 && r.groups != nil {
		groups, err := r.groups.GroupsByIDs(ctx, principal.GroupIDs)
		if err != nil {
			return nil, fmt.Errorf("authz: load groups: %w", err)
		}
		for _, g := range groups {
			if !g.IsActive {
				continue
			}
			set.AddAll(g.Permissions)
		}
	}
	return set, nil
}

// HasPermission reports whether the principal's effective set covers
// the concrete permission target.
func (r *Resolver) HasPermission(ctx context.Context, principal Principal, target string) (bool, error) {
	set, err := r.Resolve(ctx, principal)
	if err != nil {
		return false, err
	}
	return Match(target, set), nil
}

// HasAllPermissions reports whether every target is covered.
func (r *Resolver) HasAllPermissions(ctx context.Context, principal Principal, targets []string) (bool, error) {
	set, err := r.Resolve(ctx, principal)
	if err != nil {
		return false, err
	}
	return MatchAll(targets, set), nil
}

// HasAnyPermission reports whether at least one target is covered.
func (r *Resolver) HasAnyPermission(ctx context.Context, principal Principal, targets []string) (bool, error) {
	set, err := r.Resolve(ctx, principal)
	if err != nil {
		return false, err
	}
	return MatchAny(targets, set), nil
}

// CanAccessRegion reports whether the principal may operate in the
// named region right now: admins always, members of an active group
// that has the region assigned, or holders of an active temporary
// grant from the regional ledger.
func (r *Resolver) CanAccessRegion(ctx context.Context, principal Principal, region string) (bool, error) {
	if region == "" {
		return false, nil
	}
	if principal.Role == RoleAdmin {
		return true, nil
	}

	if len(principal.GroupIDs) > 0 && r.groups != nil {
		groups, err := r.groups.GroupsByIDs(ctx, principal.GroupIDs)
		if err != nil {
			return false, fmt.Errorf("authz: load groups: %w", err)
		}
		for _, g := range groups {
			if !g.IsActive {
				continue
			}
			for _, assigned := range g.AssignedRegions {
				if assigned == region {
					return true, nil
				}
			}
		}
	}

	if r.regions != nil {
		regions, err := r.regions.ActiveRegions(ctx, principal.ID)
		if err != nil {
			return false, fmt.Errorf("authz: load active regions: %w", err)
		}
		for _, granted := range regions {
			if granted == region {
				return true, nil
			}
		}
	}
	return false, nil
}
