package grants

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/gridscape/gridscape/internal/audit"
)

var (
	// ErrExpiryInPast rejects grants whose expiry is not in the future.
	ErrExpiryInPast = errors.New("grants: expiry must be in the future")
	// ErrExtendNotLater rejects extensions that do not move the expiry
	// forward.
	ErrExtendNotLater = errors.New("grants: extension must move expiry later")
)

// Service is the regional grant ledger. All mutations emit audit
// events; reads are plain re-reads of current state, so repeating a
// read without a mutation in between yields the same result apart from
// the passage of time across an expiry.
type Service struct {
	repo    Repository
	emitter audit.Emitter
	clock   func() time.Time
}

// NewService constructs the ledger. clock defaults to time.Now when
// nil; tests inject a fake to advance time deterministically.
func NewService(repo Repository, emitter audit.Emitter, clock func() time.Time) *Service {
	if emitter == nil {
		emitter = audit.Nop{}
	}
	if clock == nil {
		clock = time.Now
	}
	return &Service{repo: repo, emitter: emitter, clock: clock}
}

// Create issues a new active grant. The expiry must be strictly in the
// future.
func (s *Service) Create(ctx context.Context, req CreateGrantRequest, grantedBy int64) (*Grant, error) {
	now := s.clock().UTC()
	if !req.ExpiresAt.After(now) {
		return nil, ErrExpiryInPast
	}
	grant := Grant{
		ID:        uuid.New(),
		UserID:    req.UserID,
		Region:    req.Region,
		GrantedBy: grantedBy,
		GrantedAt: now,
		ExpiresAt: req.ExpiresAt.UTC(),
		Reason:    req.Reason,
	}
	if err := s.repo.Insert(ctx, grant); err != nil {
		return nil, fmt.Errorf("create grant: %w", err)
	}
	s.emitter.Emit(ctx, audit.Event{
		Actor:    grantedBy,
		Action:   "grants.region.create",
		Target:   grant.ID.String(),
		Severity: audit.SeverityInfo,
		Success:  true,
		Metadata: map[string]any{
			"user_id":    grant.UserID,
			"region":     grant.Region,
			"expires_at": grant.ExpiresAt,
			"reason":     grant.Reason,
		},
		Timestamp: now,
	})
	return &grant, nil
}

// Revoke permanently deactivates an active grant. Revoking a grant
// that is already revoked or expired is a state-conflict error, not a
// silent no-op.
func (s *Service) Revoke(ctx context.Context, id uuid.UUID, revokedBy int64, reason string) (*Grant, error) {
	now := s.clock().UTC()
	var reasonPtr *string
	if reason != "" {
		reasonPtr = &reason
	}
	ok, err := s.repo.Revoke(ctx, id, now, revokedBy, reasonPtr)
	if err != nil {
		return nil, fmt.Errorf("revoke grant: %w", err)
	}
	if !ok {
		// Distinguish a missing grant from one in a terminal state.
		grant, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: grant is %s", ErrNotActive, grant.Status(now))
	}
	grant, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.emitter.Emit(ctx, audit.Event{
		Actor:    revokedBy,
		Action:   "grants.region.revoke",
		Target:   id.String(),
		Severity: audit.SeverityWarning,
		Success:  true,
		Metadata: map[string]any{
			"user_id": grant.UserID,
			"region":  grant.Region,
			"reason":  reason,
		},
		Timestamp: now,
	})
	return grant, nil
}

// Extend moves an active grant's expiry later. The update is optimistic
// against the expiry read here; a concurrent writer surfaces as
// ErrConflict rather than a lost update.
func (s *Service) Extend(ctx context.Context, id uuid.UUID, newExpiresAt time.Time, extendedBy int64) (*Grant, error) {
	now := s.clock().UTC()
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.IsActive(now) {
		return nil, fmt.Errorf("%w: grant is %s", ErrNotActive, current.Status(now))
	}
	newExpiresAt = newExpiresAt.UTC()
	if !newExpiresAt.After(current.ExpiresAt) {
		return nil, ErrExtendNotLater
	}
	ok, err := s.repo.Extend(ctx, id, newExpiresAt, current.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("extend grant: %w", err)
	}
	if !ok {
		return nil, ErrConflict
	}
	s.emitter.Emit(ctx, audit.Event{
		Actor:    extendedBy,
		Action:   "grants.region.extend",
		Target:   id.String(),
		Severity: audit.SeverityInfo,
		Success:  true,
		Metadata: map[string]any{
			"user_id":     current.UserID,
			"region":      current.Region,
			"old_expires": current.ExpiresAt,
			"new_expires": newExpiresAt,
		},
		Timestamp: now,
	})
	extended := *current
	extended.ExpiresAt = newExpiresAt
	return &extended, nil
}

// Get fetches a single grant.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Grant, error) {
	return s.repo.Get(ctx, id)
}

// ListByUser returns every grant for a user, regardless of state.
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]Grant, error) {
	return s.repo.ListByUser(ctx, userID)
}

// ListActiveRegionsFor returns the distinct regions the user holds an
// active grant for at "now", sorted for stable comparison.
func (s *Service) ListActiveRegionsFor(ctx context.Context, userID int64, now time.Time) ([]string, error) {
	all, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var regions []string
	for i := range all {
		if !all[i].IsActive(now) {
			continue
		}
		if _, dup := seen[all[i].Region]; dup {
			continue
		}
		seen[all[i].Region] = struct{}{}
		regions = append(regions, all[i].Region)
	}
	sort.Strings(regions)
	return regions, nil
}

// ActiveRegions implements authz.RegionLookup against the ledger clock.
func (s *Service) ActiveRegions(ctx context.Context, userID int64) ([]string, error) {
	return s.ListActiveRegionsFor(ctx, userID, s.clock().UTC())
}

// ActiveUserIDs lists users currently holding at least one active
// grant. The reconciler depends on this.
func (s *Service) ActiveUserIDs(ctx context.Context) ([]int64, error) {
	return s.repo.ActiveUserIDs(ctx, s.clock().UTC())
}

// Now exposes the ledger clock so collaborators evaluating grants use
// the same time source.
func (s *Service) Now() time.Time {
	return s.clock().UTC()
}
