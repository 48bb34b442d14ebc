package authz

import "strings"

// Match reports whether the concrete permission target is covered by
// the granted pattern set. Coverage means: the universal wildcard, a
// verbatim grant, or a trailing-wildcard grant on any dot-boundary
// prefix of the target. Mid-pattern wildcards ("gis.*.use") are not
// supported; such patterns are inert literals.
func Match(target string, granted PermissionSet) bool {
	if len(granted) == 0 || target == "" {
		return false
	}
	if granted.ContainsLiteral(PermissionAll) {
		return true
	}
	if granted.ContainsLiteral(target) {
		return true
	}
	// Walk the proper prefixes: for a.b.c try "a.*" then "a.b.*".
	for i := 0; i < len(target); i++ {
		if target[i] == '.' {
			if granted.ContainsLiteral(target[:i+1] + "*") {
				return true
			}
		}
	}
	return false
}

// MatchAll reports whether every target is covered by granted.
func MatchAll(targets []string, granted PermissionSet) bool {
	for _, t := range targets {
		if !Match(t, granted) {
			return false
		}
	}
	return true
}

// MatchAny reports whether at least one target is covered by granted.
// An empty target list matches nothing.
func MatchAny(targets []string, granted PermissionSet) bool {
	for _, t := range targets {
		if Match(t, granted) {
			return true
		}
	}
	return false
}

// ExpandWildcard returns every concrete permission in universe covered
// by pattern. "*" yields the whole universe; "a.b.*" yields permissions
// whose dot-boundary prefix is "a.b"; anything else yields its exact
// occurrences in universe.
func ExpandWildcard(pattern string, universe []string) []string {
	if pattern == PermissionAll {
		out := make([]string, len(universe))
		copy(out, universe)
		return out
	}
	var matched []string
	if strings.HasSuffix(pattern, ".*") {
		prefix := pattern[:len(pattern)-1] // keep the trailing dot
		for _, p := range universe {
			if strings.HasPrefix(p, prefix) {
				matched = append(matched, p)
			}
		}
		return matched
	}
	for _, p := range universe {
		if p == pattern {
			matched = append(matched, p)
		}
	}
	return matched
}
