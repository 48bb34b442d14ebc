// Package reconcile detects expired or revoked regional access without
// requiring the principal to re-authenticate. A periodic sweep re-reads
// each principal's currently valid region set from the ledger, diffs it
// against the previous sweep, and notifies subscribers of the change.
package reconcile

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// RegionSource yields the regions a principal currently holds valid
// grants for. Implemented by the grant ledger.
type RegionSource interface {
	ListActiveRegionsFor(ctx context.Context, userID int64, now time.Time) ([]string, error)
}

// PrincipalSource yields the principals that currently hold at least
// one active grant. The reconciler extends this set with principals it
// still has snapshots for, so a final expiry is not missed.
type PrincipalSource interface {
	ActiveUserIDs(ctx context.Context, now time.Time) ([]int64, error)
}

// Change reports a principal's region access delta between two sweeps.
type Change struct {
	PrincipalID int64    `json:"principal_id"`
	Added       []string `json:"added"`
	Removed     []string `json:"removed"`
}

// Subscriber consumes change events. Implementations must be fast or
// hand off; they run on the reconciler's tick.
type Subscriber interface {
	RegionAccessChanged(ctx context.Context, change Change)
}

// SubscriberFunc adapts a function to the Subscriber interface.
type SubscriberFunc func(ctx context.Context, change Change)

// RegionAccessChanged implements Subscriber.
func (f SubscriberFunc) RegionAccessChanged(ctx context.Context, change Change) {
	f(ctx, change)
}

// Reconciler holds one mutable thing: the per-principal snapshot of the
// previous sweep. Everything else is re-read fresh each tick, so a
// restart re-seeds from the first sweep and reports every currently
// active region as "added" once. Subscribers must treat the events as
// idempotent.
type Reconciler struct {
	regions    RegionSource
	principals PrincipalSource
	clock      func() time.Time
	interval   time.Duration
	logger     *slog.Logger

	mu       sync.Mutex
	previous map[int64][]string
	subs     []Subscriber
}

// Config collects the reconciler's dependencies.
type Config struct {
	Regions    RegionSource
	Principals PrincipalSource
	// Clock defaults to time.Now. Tests inject a fake.
	Clock func() time.Time
	// Interval is the poll period for Run. Defaults to 30s.
	Interval time.Duration
	Logger   *slog.Logger
}

// New constructs a Reconciler.
func New(cfg Config) *Reconciler {
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		regions:    cfg.Regions,
		principals: cfg.Principals,
		clock:      clock,
		interval:   interval,
		logger:     logger,
		previous:   make(map[int64][]string),
	}
}

// Subscribe registers a consumer of change events.
func (r *Reconciler) Subscribe(sub Subscriber) {
	if sub == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, sub)
}

// Tick performs one sweep. A failing principal listing skips the whole
// sweep; a failing per-principal read leaves that principal's snapshot
// untouched. Stale-but-consistent beats flapping access.
func (r *Reconciler) Tick(ctx context.Context) error {
	now := r.clock().UTC()
	active, err := r.principals.ActiveUserIDs(ctx, now)
	if err != nil {
		r.logger.Warn("reconcile: list principals, retrying next tick", slog.Any("error", err))
		return err
	}

	for _, id := range r.sweepSet(active) {
		current, err := r.regions.ListActiveRegionsFor(ctx, id, now)
		if err != nil {
			r.logger.Warn("reconcile: read regions, keeping previous snapshot",
				slog.Int64("principal", id), slog.Any("error", err))
			continue
		}
		sort.Strings(current)
		r.evaluate(ctx, id, current)
	}
	return nil
}

// Run polls until ctx is cancelled. In-flight ticks are cheap bounded
// computations and run to completion; cancellation only halts future
// ticks.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = r.Tick(ctx)
		}
	}
}

// sweepSet is the union of currently granted principals and principals
// with a prior snapshot, ordered for deterministic sweeps.
func (r *Reconciler) sweepSet(active []int64) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	union := make(map[int64]struct{}, len(active)+len(r.previous))
	for _, id := range active {
		union[id] = struct{}{}
	}
	for id := range r.previous {
		union[id] = struct{}{}
	}
	ids := make([]int64, 0, len(union))
	for id := range union {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Reconciler) evaluate(ctx context.Context, id int64, current []string) {
	r.mu.Lock()
	previous := r.previous[id]
	added := difference(current, previous)
	removed := difference(previous, current)
	if len(added) == 0 && len(removed) == 0 {
		r.mu.Unlock()
		return
	}
	if len(current) == 0 {
		delete(r.previous, id)
	} else {
		r.previous[id] = current
	}
	subs := make([]Subscriber, len(r.subs))
	copy(subs, r.subs)
	r.mu.Unlock()

	change := Change{PrincipalID: id, Added: added, Removed: removed}
	r.logger.Info("reconcile: region access changed",
		slog.Int64("principal", id),
		slog.Any("added", added),
		slog.Any("removed", removed))
	for _, sub := range subs {
		sub.RegionAccessChanged(ctx, change)
	}
}

// difference returns the members of a not present in b. Both inputs are
// sorted and deduplicated region lists.
func difference(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, s := range b {
		inB[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := inB[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}
