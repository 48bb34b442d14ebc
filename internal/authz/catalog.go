package authz

// Role is the coarse-grained position a user holds. Role defaults are
// the baseline of every effective permission set; Admin short-circuits
// resolution entirely.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleManager    Role = "manager"
	RoleTechnician Role = "technician"
	RoleUser       Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleTechnician, RoleUser:
		return true
	}
	return false
}

// PermissionAll is the universal wildcard grant.
const PermissionAll = "*"

// GIS tool permissions.
const (
	PermGISDistanceUse = "gis.distance.use"
	PermGISPolygonUse  = "gis.polygon.use"
	PermGISMarkerUse   = "gis.marker.use"
	PermGISExportUse   = "gis.export.use"
)

// Map surface permissions.
const (
	PermMapLayersView   = "map.layers.view"
	PermMapLayersManage = "map.layers.manage"
	PermMapOverlaysView = "map.overlays.view"
)

// Data record permissions, ownership scoped.
const (
	PermDataViewOwn   = "data.view.own"
	PermDataViewAny   = "data.view.any"
	PermDataEditOwn   = "data.edit.own"
	PermDataEditAny   = "data.edit.any"
	PermDataDeleteOwn = "data.delete.own"
	PermDataDeleteAny = "data.delete.any"
)

// Platform management permissions.
const (
	PermUsersView   = "users.accounts.view"
	PermUsersManage = "users.accounts.manage"

	PermGroupsView   = "groups.membership.view"
	PermGroupsManage = "groups.membership.manage"

	PermRegionsGrant  = "regions.access.grant"
	PermRegionsRevoke = "regions.access.revoke"
	PermRegionsView   = "regions.access.view"
)

// GISScopes lists all GIS tool permissions.
func GISScopes() []string {
	return []string{
		PermGISDistanceUse,
		PermGISPolygonUse,
		PermGISMarkerUse,
		PermGISExportUse,
	}
}

// MapScopes lists all map surface permissions.
func MapScopes() []string {
	return []string{
		PermMapLayersView,
		PermMapLayersManage,
		PermMapOverlaysView,
	}
}

// DataScopes lists all data record permissions.
func DataScopes() []string {
	return []string{
		PermDataViewOwn,
		PermDataViewAny,
		PermDataEditOwn,
		PermDataEditAny,
		PermDataDeleteOwn,
		PermDataDeleteAny,
	}
}

// PlatformScopes lists all management permissions.
func PlatformScopes() []string {
	return []string{
		PermUsersView,
		PermUsersManage,
		PermGroupsView,
		PermGroupsManage,
		PermRegionsGrant,
		PermRegionsRevoke,
		PermRegionsView,
	}
}

// AllScopes returns the full catalog of concrete permissions. Used as
// the universe for wildcard expansion.
func AllScopes() []string {
	var all []string
	all = append(all, GISScopes()...)
	all = append(all, MapScopes()...)
	all = append(all, DataScopes()...)
	all = append(all, PlatformScopes()...)
	return all
}

var roleDefaults = map[Role][]string{
	RoleAdmin: {PermissionAll},
	RoleManager: {
		"gis.*",
		"map.*",
		PermDataViewAny,
		PermDataEditAny,
		PermUsersView,
		PermGroupsView,
		PermRegionsView,
	},
	RoleTechnician: {
		PermGISDistanceUse,
		PermGISMarkerUse,
		PermMapLayersView,
		PermMapOverlaysView,
		PermDataViewOwn,
		PermDataEditOwn,
	},
	RoleUser: {
		PermMapLayersView,
		PermDataViewOwn,
	},
}

// RoleDefaults returns the default permission patterns for a role. The
// returned slice is a copy; callers may mutate it freely. Unknown roles
// get nothing.
func RoleDefaults(role Role) []string {
	defaults, ok := roleDefaults[role]
	if !ok {
		return nil
	}
	out := make([]string, len(defaults))
	copy(out, defaults)
	return out
}

// IsValidPermissionID reports whether id is a well-formed concrete
// permission identifier: the universal wildcard, or at least two dot
// separated segments of [A-Za-z0-9_].
func IsValidPermissionID(id string) bool {
	if id == PermissionAll {
		return true
	}
	segments, ok := splitSegments(id)
	return ok && len(segments) >= 2
}

// IsValidPattern reports whether pattern is a grantable permission
// pattern: a valid permission id, or a prefix of one followed by a
// trailing ".*". Partial-segment wildcards like "gis.dist*" are plain
// literals and fail here.
func IsValidPattern(pattern string) bool {
	if IsValidPermissionID(pattern) {
		return true
	}
	const suffix = ".*"
	if len(pattern) <= len(suffix) || pattern[len(pattern)-len(suffix):] != suffix {
		return false
	}
	segments, ok := splitSegments(pattern[:len(pattern)-len(suffix)])
	return ok && len(segments) >= 1
}

func splitSegments(id string) ([]string, bool) {
	if id == "" {
		return nil, false
	}
	var segments []string
	start := 0
	for i := 0; i <= len(id); i++ {
		if i == len(id) || id[i] == '.' {
			if i == start {
				return nil, false
			}
			segments = append(segments, id[start:i])
			start = i + 1
			continue
		}
		if !isIdentChar(id[i]) {
			return nil, false
		}
	}
	return segments, true
}

func isIdentChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '_':
		return true
	}
	return false
}
