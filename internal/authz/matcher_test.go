package authz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchExactPermission(t *testing.T) {
	granted := NewPermissionSet("gis.distance.use", "map.layers.view")

	assert.True(t, Match("gis.distance.use", granted))
	assert.True(t, Match("map.layers.view", granted))
	assert.False(t, Match("gis.polygon.use", granted))
}

func TestMatchTrailingWildcard(t *testing.T) {
	granted := NewPermissionSet("a.*")

	assert.True(t, Match("a.b.c", granted))
	assert.True(t, Match("a.b", granted))
	assert.False(t, Match("b.c", granted))

	// A plain segment grant is not a prefix grant.
	granted = NewPermissionSet("a.b")
	assert.False(t, Match("a.b.c", granted))
}

func TestMatchNestedWildcardBoundaries(t *testing.T) {
	granted := NewPermissionSet("gis.distance.*")

	assert.True(t, Match("gis.distance.use", granted))
	assert.False(t, Match("gis.distancexport.use", granted))
	assert.False(t, Match("gis.polygon.use", granted))
}

func TestMatchUniversalWildcard(t *testing.T) {
	granted := NewPermissionSet(PermissionAll)

	assert.True(t, Match("gis.distance.use", granted))
	assert.True(t, Match("anything.at.all", granted))
}

func TestMatchMidPatternWildcardIsInert(t *testing.T) {
	granted := NewPermissionSet("gis.*.use")

	assert.False(t, Match("gis.distance.use", granted))
	// It still matches itself as a literal.
	assert.True(t, Match("gis.*.use", granted))
}

func TestMatchEmptyInputs(t *testing.T) {
	assert.False(t, Match("gis.distance.use", NewPermissionSet()))
	assert.False(t, Match("", NewPermissionSet("gis.*")))
}

func TestMatchAll(t *testing.T) {
	granted := NewPermissionSet("gis.*", "map.layers.view")

	assert.True(t, MatchAll([]string{"gis.distance.use", "map.layers.view"}, granted))
	assert.False(t, MatchAll([]string{"gis.distance.use", "map.layers.manage"}, granted))
	assert.True(t, MatchAll(nil, granted))
}

func TestMatchAnyEmptyTargetsMatchNothing(t *testing.T) {
	granted := NewPermissionSet(PermissionAll)

	assert.False(t, MatchAny(nil, granted))
	assert.True(t, MatchAny([]string{"nope", "gis.distance.use"}, granted))
}

func TestExpandWildcard(t *testing.T) {
	universe := []string{"gis.distance.use", "gis.polygon.use", "map.layers.view"}

	assert.ElementsMatch(t, universe, ExpandWildcard("*", universe))
	assert.ElementsMatch(t, []string{"gis.distance.use", "gis.polygon.use"}, ExpandWildcard("gis.*", universe))
	assert.ElementsMatch(t, []string{"map.layers.view"}, ExpandWildcard("map.layers.view", universe))
	assert.Empty(t, ExpandWildcard("data.*", universe))
}

func TestExpandWildcardDoesNotCrossSegments(t *testing.T) {
	universe := []string{"gis.distance.use", "gisx.other.use"}

	assert.ElementsMatch(t, []string{"gis.distance.use"}, ExpandWildcard("gis.*", universe))
}
