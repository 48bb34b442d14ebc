package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLedger is an in-memory grant ledger the tests mutate directly.
type fakeLedger struct {
	mu      sync.Mutex
	regions map[int64][]string

	principalsErr error
	regionsErr    map[int64]error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{regions: make(map[int64][]string), regionsErr: make(map[int64]error)}
}

func (f *fakeLedger) set(userID int64, regions ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(regions) == 0 {
		delete(f.regions, userID)
		return
	}
	f.regions[userID] = regions
}

func (f *fakeLedger) ActiveUserIDs(ctx context.Context, now time.Time) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.principalsErr != nil {
		return nil, f.principalsErr
	}
	var ids []int64
	for id := range f.regions {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeLedger) ListActiveRegionsFor(ctx context.Context, userID int64, now time.Time) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.regionsErr[userID]; err != nil {
		return nil, err
	}
	return append([]string(nil), f.regions[userID]...), nil
}

type captureSubscriber struct {
	mu      sync.Mutex
	changes []Change
}

func (c *captureSubscriber) RegionAccessChanged(ctx context.Context, change Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = append(c.changes, change)
}

func (c *captureSubscriber) all() []Change {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Change(nil), c.changes...)
}

func newTestReconciler(ledger *fakeLedger) (*Reconciler, *captureSubscriber) {
	rec := New(Config{Regions: ledger, Principals: ledger})
	sub := &captureSubscriber{}
	rec.Subscribe(sub)
	return rec, sub
}

func TestTickColdStartReportsCurrentAccessAsAdded(t *testing.T) {
	ledger := newFakeLedger()
	ledger.set(1, "Maharashtra", "Kerala")
	rec, sub := newTestReconciler(ledger)

	require.NoError(t, rec.Tick(context.Background()))

	changes := sub.all()
	require.Len(t, changes, 1)
	assert.Equal(t, int64(1), changes[0].PrincipalID)
	assert.ElementsMatch(t, []string{"Kerala", "Maharashtra"}, changes[0].Added)
	assert.Empty(t, changes[0].Removed)
}

func TestTickIsIdempotentWithoutMutations(t *testing.T) {
	ledger := newFakeLedger()
	ledger.set(1, "Maharashtra")
	rec, sub := newTestReconciler(ledger)

	require.NoError(t, rec.Tick(context.Background()))
	require.Len(t, sub.all(), 1)

	require.NoError(t, rec.Tick(context.Background()))
	require.NoError(t, rec.Tick(context.Background()))
	assert.Len(t, sub.all(), 1, "unchanged state must produce zero events")
}

func TestTickEmitsExactlyOneRemovedOnExpiry(t *testing.T) {
	ledger := newFakeLedger()
	ledger.set(1, "Maharashtra")
	rec, sub := newTestReconciler(ledger)

	require.NoError(t, rec.Tick(context.Background()))

	// The grant expires: the principal vanishes from the active list
	// entirely, but the snapshot must still yield one removed event.
	ledger.set(1)

	require.NoError(t, rec.Tick(context.Background()))
	changes := sub.all()
	require.Len(t, changes, 2)
	assert.Empty(t, changes[1].Added)
	assert.Equal(t, []string{"Maharashtra"}, changes[1].Removed)

	require.NoError(t, rec.Tick(context.Background()))
	assert.Len(t, sub.all(), 2, "the removal is reported once, not every tick")
}

func TestTickReportsAddedAndRemovedTogether(t *testing.T) {
	ledger := newFakeLedger()
	ledger.set(1, "Kerala", "Maharashtra")
	rec, sub := newTestReconciler(ledger)

	require.NoError(t, rec.Tick(context.Background()))

	ledger.set(1, "Karnataka", "Kerala")

	require.NoError(t, rec.Tick(context.Background()))
	changes := sub.all()
	require.Len(t, changes, 2)
	assert.Equal(t, []string{"Karnataka"}, changes[1].Added)
	assert.Equal(t, []string{"Maharashtra"}, changes[1].Removed)
}

func TestTickFailedPrincipalListingSkipsSweep(t *testing.T) {
	ledger := newFakeLedger()
	ledger.set(1, "Maharashtra")
	rec, sub := newTestReconciler(ledger)

	ledger.principalsErr = errors.New("db down")
	require.Error(t, rec.Tick(context.Background()))
	assert.Empty(t, sub.all(), "failed sweep must not emit")

	// Recovery: the next tick reports the full state once.
	ledger.principalsErr = nil
	require.NoError(t, rec.Tick(context.Background()))
	changes := sub.all()
	require.Len(t, changes, 1)
	assert.Equal(t, []string{"Maharashtra"}, changes[0].Added)
}

func TestTickFailedRegionReadKeepsSnapshot(t *testing.T) {
	ledger := newFakeLedger()
	ledger.set(1, "Maharashtra")
	ledger.set(2, "Kerala")
	rec, sub := newTestReconciler(ledger)

	require.NoError(t, rec.Tick(context.Background()))
	require.Len(t, sub.all(), 2)

	// Principal 1's read fails while their access actually changed.
	// No event may fire until the read succeeds again.
	ledger.set(1, "Maharashtra", "Karnataka")
	ledger.regionsErr[1] = errors.New("timeout")

	require.NoError(t, rec.Tick(context.Background()))
	assert.Len(t, sub.all(), 2)

	delete(ledger.regionsErr, 1)
	require.NoError(t, rec.Tick(context.Background()))
	changes := sub.all()
	require.Len(t, changes, 3)
	assert.Equal(t, []string{"Karnataka"}, changes[2].Added)
}

func TestSubscribersAllReceiveEachChange(t *testing.T) {
	ledger := newFakeLedger()
	ledger.set(1, "Maharashtra")
	rec, first := newTestReconciler(ledger)

	second := &captureSubscriber{}
	rec.Subscribe(second)
	rec.Subscribe(nil)

	require.NoError(t, rec.Tick(context.Background()))
	assert.Len(t, first.all(), 1)
	assert.Len(t, second.all(), 1)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ledger := newFakeLedger()
	rec := New(Config{Regions: ledger, Principals: ledger, Interval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
