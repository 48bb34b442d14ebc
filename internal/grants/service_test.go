package grants

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridscape/gridscape/internal/audit"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	mu     sync.Mutex
	grants map[uuid.UUID]Grant

	insertError error
	getError    error
	listError   error
}

func newMockRepository() *mockRepository {
	return &mockRepository{grants: make(map[uuid.UUID]Grant)}
}

func (m *mockRepository) Insert(ctx context.Context, g Grant) error {
	if m.insertError != nil {
		return m.insertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grants[g.ID] = g
	return nil
}

func (m *mockRepository) Get(ctx context.Context, id uuid.UUID) (*Grant, error) {
	if m.getError != nil {
		return nil, m.getError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := g
	return &copy, nil
}

func (m *mockRepository) ListByUser(ctx context.Context, userID int64) ([]Grant, error) {
	if m.listError != nil {
		return nil, m.listError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Grant
	for _, g := range m.grants {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (m *mockRepository) Revoke(ctx context.Context, id uuid.UUID, at time.Time, by int64, reason *string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[id]
	if !ok || !g.IsActive(at) {
		return false, nil
	}
	g.RevokedAt = &at
	g.RevokedBy = &by
	g.RevokedReason = reason
	m.grants[id] = g
	return true, nil
}

func (m *mockRepository) Extend(ctx context.Context, id uuid.UUID, newExpiresAt, oldExpiresAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, ok := m.grants[id]
	if !ok || g.RevokedAt != nil || !g.ExpiresAt.Equal(oldExpiresAt) {
		return false, nil
	}
	g.ExpiresAt = newExpiresAt
	m.grants[id] = g
	return true, nil
}

func (m *mockRepository) ActiveUserIDs(ctx context.Context, now time.Time) ([]int64, error) {
	if m.listError != nil {
		return nil, m.listError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[int64]struct{})
	var out []int64
	for _, g := range m.grants {
		if g.IsActive(now) {
			if _, dup := seen[g.UserID]; !dup {
				seen[g.UserID] = struct{}{}
				out = append(out, g.UserID)
			}
		}
	}
	return out, nil
}

type captureEmitter struct {
	events []audit.Event
}

func (c *captureEmitter) Emit(ctx context.Context, ev audit.Event) {
	c.events = append(c.events, ev)
}

// fakeClock advances only when told to; no test here sleeps.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService() (*Service, *mockRepository, *captureEmitter, *fakeClock) {
	repo := newMockRepository()
	emitter := &captureEmitter{}
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewService(repo, emitter, clock.Now), repo, emitter, clock
}

// ============================================================================
// LIFECYCLE
// ============================================================================

func TestCreateGrant(t *testing.T) {
	svc, _, emitter, clock := newTestService()
	ctx := context.Background()

	req := CreateGrantRequest{
		UserID:    7,
		Region:    "Maharashtra",
		ExpiresAt: clock.Now().Add(24 * time.Hour),
		Reason:    "storm damage survey",
	}

	grant, err := svc.Create(ctx, req, 100)
	require.NoError(t, err)
	require.NotNil(t, grant)

	assert.NotEqual(t, uuid.Nil, grant.ID)
	assert.Equal(t, int64(7), grant.UserID)
	assert.Equal(t, "Maharashtra", grant.Region)
	assert.Equal(t, int64(100), grant.GrantedBy)
	assert.True(t, grant.IsActive(clock.Now()))
	assert.Equal(t, StatusActive, grant.Status(clock.Now()))

	require.Len(t, emitter.events, 1)
	assert.Equal(t, "grants.region.create", emitter.events[0].Action)
	assert.Equal(t, int64(100), emitter.events[0].Actor)
}

func TestCreateGrantExpiryInPast(t *testing.T) {
	svc, _, emitter, clock := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateGrantRequest{
		UserID:    7,
		Region:    "Maharashtra",
		ExpiresAt: clock.Now().Add(-time.Second),
		Reason:    "late",
	}, 100)
	assert.ErrorIs(t, err, ErrExpiryInPast)

	_, err = svc.Create(ctx, CreateGrantRequest{
		UserID:    7,
		Region:    "Maharashtra",
		ExpiresAt: clock.Now(),
		Reason:    "boundary",
	}, 100)
	assert.ErrorIs(t, err, ErrExpiryInPast, "expiry equal to now is not in the future")

	assert.Empty(t, emitter.events)
}

func TestGrantExpiresExactlyAtBoundary(t *testing.T) {
	svc, _, _, clock := newTestService()
	ctx := context.Background()

	grant, err := svc.Create(ctx, CreateGrantRequest{
		UserID:    7,
		Region:    "Maharashtra",
		ExpiresAt: clock.Now().Add(time.Second),
		Reason:    "one second window",
	}, 100)
	require.NoError(t, err)

	assert.True(t, grant.IsActive(clock.Now()))

	clock.Advance(time.Second)
	assert.False(t, grant.IsActive(clock.Now()), "expiry instant itself is expired")
	assert.Equal(t, StatusExpired, grant.Status(clock.Now()))

	regions, err := svc.ListActiveRegionsFor(ctx, 7, clock.Now())
	require.NoError(t, err)
	assert.Empty(t, regions)
}

func TestRevokeGrant(t *testing.T) {
	svc, _, emitter, clock := newTestService()
	ctx := context.Background()

	grant, err := svc.Create(ctx, CreateGrantRequest{
		UserID:    7,
		Region:    "Maharashtra",
		ExpiresAt: clock.Now().Add(24 * time.Hour),
		Reason:    "survey",
	}, 100)
	require.NoError(t, err)

	revoked, err := svc.Revoke(ctx, grant.ID, 101, "access abuse")
	require.NoError(t, err)
	require.NotNil(t, revoked.RevokedAt)
	assert.Equal(t, int64(101), *revoked.RevokedBy)
	assert.Equal(t, "access abuse", *revoked.RevokedReason)
	assert.Equal(t, StatusRevoked, revoked.Status(clock.Now()))

	require.Len(t, emitter.events, 2)
	assert.Equal(t, "grants.region.revoke", emitter.events[1].Action)
	assert.Equal(t, audit.SeverityWarning, emitter.events[1].Severity)
}

func TestRevokeIsTerminal(t *testing.T) {
	svc, _, _, clock := newTestService()
	ctx := context.Background()

	grant, err := svc.Create(ctx, CreateGrantRequest{
		UserID:    7,
		Region:    "Maharashtra",
		ExpiresAt: clock.Now().Add(24 * time.Hour),
		Reason:    "survey",
	}, 100)
	require.NoError(t, err)

	_, err = svc.Revoke(ctx, grant.ID, 101, "")
	require.NoError(t, err)

	_, err = svc.Revoke(ctx, grant.ID, 101, "again")
	assert.ErrorIs(t, err, ErrNotActive)

	_, err = svc.Extend(ctx, grant.ID, clock.Now().Add(48*time.Hour), 101)
	assert.ErrorIs(t, err, ErrNotActive, "revoked grants cannot be extended")
}

func TestRevokeExpiredGrant(t *testing.T) {
	svc, _, _, clock := newTestService()
	ctx := context.Background()

	grant, err := svc.Create(ctx, CreateGrantRequest{
		UserID:    7,
		Region:    "Maharashtra",
		ExpiresAt: clock.Now().Add(time.Hour),
		Reason:    "survey",
	}, 100)
	require.NoError(t, err)

	clock.Advance(2 * time.Hour)

	_, err = svc.Revoke(ctx, grant.ID, 101, "")
	assert.ErrorIs(t, err, ErrNotActive)
	assert.Contains(t, err.Error(), "expired")
}

func TestRevokeMissingGrant(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.Revoke(context.Background(), uuid.New(), 101, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestExtendGrant(t *testing.T) {
	svc, _, emitter, clock := newTestService()
	ctx := context.Background()

	grant, err := svc.Create(ctx, CreateGrantRequest{
		UserID:    7,
		Region:    "Maharashtra",
		ExpiresAt: clock.Now().Add(time.Hour),
		Reason:    "survey",
	}, 100)
	require.NoError(t, err)

	newExpiry := clock.Now().Add(48 * time.Hour)
	extended, err := svc.Extend(ctx, grant.ID, newExpiry, 100)
	require.NoError(t, err)
	assert.True(t, extended.ExpiresAt.Equal(newExpiry))

	require.Len(t, emitter.events, 2)
	assert.Equal(t, "grants.region.extend", emitter.events[1].Action)
}

func TestExtendMustMoveForward(t *testing.T) {
	svc, _, _, clock := newTestService()
	ctx := context.Background()

	grant, err := svc.Create(ctx, CreateGrantRequest{
		UserID:    7,
		Region:    "Maharashtra",
		ExpiresAt: clock.Now().Add(time.Hour),
		Reason:    "survey",
	}, 100)
	require.NoError(t, err)

	_, err = svc.Extend(ctx, grant.ID, grant.ExpiresAt.Add(-time.Minute), 100)
	assert.ErrorIs(t, err, ErrExtendNotLater)

	_, err = svc.Extend(ctx, grant.ID, grant.ExpiresAt, 100)
	assert.ErrorIs(t, err, ErrExtendNotLater, "same expiry is not an extension")
}

func TestExtendConcurrentConflict(t *testing.T) {
	svc, repo, _, clock := newTestService()
	ctx := context.Background()

	grant, err := svc.Create(ctx, CreateGrantRequest{
		UserID:    7,
		Region:    "Maharashtra",
		ExpiresAt: clock.Now().Add(time.Hour),
		Reason:    "survey",
	}, 100)
	require.NoError(t, err)

	// Another writer moves the expiry between our read and our update.
	stored := repo.grants[grant.ID]
	stored.ExpiresAt = stored.ExpiresAt.Add(30 * time.Minute)
	repo.grants[grant.ID] = stored

	_, err = svc.Extend(ctx, grant.ID, clock.Now().Add(45*time.Minute), 100)
	assert.ErrorIs(t, err, ErrConflict)
}

// ============================================================================
// REGION QUERIES
// ============================================================================

func TestListActiveRegionsDedupesAndSorts(t *testing.T) {
	svc, _, _, clock := newTestService()
	ctx := context.Background()

	for _, region := range []string{"Kerala", "Maharashtra", "Kerala"} {
		_, err := svc.Create(ctx, CreateGrantRequest{
			UserID:    7,
			Region:    region,
			ExpiresAt: clock.Now().Add(time.Hour),
			Reason:    "survey",
		}, 100)
		require.NoError(t, err)
	}

	regions, err := svc.ListActiveRegionsFor(ctx, 7, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"Kerala", "Maharashtra"}, regions)
}

func TestActiveRegionsExcludeRevokedAndExpired(t *testing.T) {
	svc, _, _, clock := newTestService()
	ctx := context.Background()

	keep, err := svc.Create(ctx, CreateGrantRequest{
		UserID:    7,
		Region:    "Kerala",
		ExpiresAt: clock.Now().Add(48 * time.Hour),
		Reason:    "survey",
	}, 100)
	require.NoError(t, err)

	revoke, err := svc.Create(ctx, CreateGrantRequest{
		UserID:    7,
		Region:    "Karnataka",
		ExpiresAt: clock.Now().Add(48 * time.Hour),
		Reason:    "survey",
	}, 100)
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateGrantRequest{
		UserID:    7,
		Region:    "Maharashtra",
		ExpiresAt: clock.Now().Add(time.Hour),
		Reason:    "survey",
	}, 100)
	require.NoError(t, err)

	_, err = svc.Revoke(ctx, revoke.ID, 100, "")
	require.NoError(t, err)
	clock.Advance(2 * time.Hour)

	regions, err := svc.ActiveRegions(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"Kerala"}, regions)
	assert.True(t, keep.IsActive(clock.Now()))
}

func TestActiveUserIDs(t *testing.T) {
	svc, _, _, clock := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, CreateGrantRequest{
		UserID:    7,
		Region:    "Kerala",
		ExpiresAt: clock.Now().Add(time.Hour),
		Reason:    "survey",
	}, 100)
	require.NoError(t, err)

	_, err = svc.Create(ctx, CreateGrantRequest{
		UserID:    8,
		Region:    "Kerala",
		ExpiresAt: clock.Now().Add(10 * time.Minute),
		Reason:    "survey",
	}, 100)
	require.NoError(t, err)

	ids, err := svc.ActiveUserIDs(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{7, 8}, ids)

	clock.Advance(30 * time.Minute)
	ids, err = svc.ActiveUserIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, ids)
}
