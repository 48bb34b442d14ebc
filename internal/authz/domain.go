package authz

import "context"

// Principal describes the authenticated actor whose permissions are
// being evaluated. It is a read-only snapshot assembled by the user
// store; the resolver never mutates it.
type Principal struct {
	ID                int64
	Role              Role
	DirectPermissions []string
	GroupIDs          []int64
}

// Group is the snapshot of a permission group as seen by the resolver.
// An inactive group contributes no permissions and no regions.
type Group struct {
	ID              int64
	Name            string
	Permissions     []string
	AssignedRegions []string
	MemberIDs       []int64
	ManagerIDs      []int64
	IsActive        bool
}

// GroupLookup loads group snapshots for resolution. The resolver takes
// it as an explicit collaborator so resolution stays deterministic and
// testable in isolation.
type GroupLookup interface {
	GroupsByIDs(ctx context.Context, ids []int64) ([]Group, error)
}

// RegionLookup answers which regions a principal currently holds
// time-boxed grants for. Implemented by the regional grant ledger.
type RegionLookup interface {
	ActiveRegions(ctx context.Context, userID int64) ([]string, error)
}

// PrincipalSource loads principal snapshots by id. Implemented by the
// user store; handlers and middleware depend on this, not on storage.
type PrincipalSource interface {
	Principal(ctx context.Context, id int64) (Principal, error)
}

// PermissionSet is a flat set of permission patterns. Membership
// queries for concrete permissions go through Match so wildcard
// patterns are honored.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from the given patterns.
func NewPermissionSet(patterns ...string) PermissionSet {
	set := make(PermissionSet, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		set[p] = struct{}{}
	}
	return set
}

// Add inserts a pattern.
func (s PermissionSet) Add(pattern string) {
	if pattern == "" {
		return
	}
	s[pattern] = struct{}{}
}

// AddAll inserts every pattern from patterns.
func (s PermissionSet) AddAll(patterns []string) {
	for _, p := range patterns {
		s.Add(p)
	}
}

// ContainsLiteral reports verbatim membership, wildcards not expanded.
func (s PermissionSet) ContainsLiteral(pattern string) bool {
	_, ok := s[pattern]
	return ok
}

// Has reports whether the concrete permission target is covered by the
// set, honoring trailing wildcards.
func (s PermissionSet) Has(target string) bool {
	return Match(target, s)
}

// Patterns returns the set's members as a slice in unspecified order.
func (s PermissionSet) Patterns() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	return out
}
