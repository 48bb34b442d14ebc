package authz

import (
	"context"
	"time"

	"github.com/gridscape/gridscape/internal/audit"
)

// ServiceConfig tunes the authorization service.
type ServiceConfig struct {
	// AllowTeamOwnership enables the team fallback on ownership checks
	// for callers that pass team member lists. Off by default.
	AllowTeamOwnership bool
}

// Service is the outward-facing authorization surface: it loads
// principal snapshots, resolves effective sets (through the cache when
// one is wired) and answers permission, ownership, and region checks.
type Service struct {
	source   PrincipalSource
	resolver *Resolver
	cache    *Cache
	emitter  audit.Emitter
	cfg      ServiceConfig
	observe  func(operation string, allowed bool)
}

// NewService constructs a Service. cache may be nil; emitter may be nil
// in which case denials are simply not audited.
func NewService(source PrincipalSource, resolver *Resolver, cache *Cache, emitter audit.Emitter, cfg ServiceConfig) *Service {
	if emitter == nil {
		emitter = audit.Nop{}
	}
	return &Service{source: source, resolver: resolver, cache: cache, emitter: emitter, cfg: cfg}
}

// SetObserver installs a decision observer, typically a metrics hook.
func (s *Service) SetObserver(fn func(operation string, allowed bool)) {
	s.observe = fn
}

func (s *Service) observeDecision(operation string, allowed bool) {
	if s.observe != nil {
		s.observe(operation, allowed)
	}
}

// EffectivePermissions returns the resolved pattern set for a user.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) (PermissionSet, error) {
	principal, err := s.source.Principal(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.resolveCached(ctx, principal)
}

// HasPermission reports whether the user's effective set covers target.
func (s *Service) HasPermission(ctx context.Context, userID int64, target string) (bool, error) {
	set, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	allowed := Match(target, set)
	s.observeDecision("authz.check", allowed)
	if !allowed {
		s.auditDenial(ctx, userID, "authz.check", target)
	}
	return allowed, nil
}

// HasAllPermissions reports whether every target is covered.
func (s *Service) HasAllPermissions(ctx context.Context, userID int64, targets []string) (bool, error) {
	set, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, t := range targets {
		if !Match(t, set) {
			s.observeDecision("authz.check_all", false)
			s.auditDenial(ctx, userID, "authz.check_all", t)
			return false, nil
		}
	}
	s.observeDecision("authz.check_all", true)
	return true, nil
}

// HasAnyPermission reports whether at least one target is covered.
func (s *Service) HasAnyPermission(ctx context.Context, userID int64, targets []string) (bool, error) {
	set, err := s.EffectivePermissions(ctx, userID)
	if err != nil {
		return false, err
	}
	if MatchAny(targets, set) {
		s.observeDecision("authz.check_any", true)
		return true, nil
	}
	s.observeDecision("authz.check_any", false)
	if len(targets) > 0 {
		s.auditDenial(ctx, userID, "authz.check_any", targets[0])
	}
	return false, nil
}

// Authorize performs the ownership-aware check for a user. The team
// fallback only applies when enabled in configuration and the caller
// supplied team member ids.
func (s *Service) Authorize(ctx context.Context, userID int64, basePermission string, ownerID int64, teamMemberIDs []int64) (CheckResult, error) {
	principal, err := s.source.Principal(ctx, userID)
	if err != nil {
		return CheckResult{}, err
	}
	opts := Options{}
	if s.cfg.AllowTeamOwnership && len(teamMemberIDs) > 0 {
		opts.AllowTeam = true
		opts.TeamMemberIDs = teamMemberIDs
	}
	result, err := s.resolver.Authorize(ctx, principal, basePermission, ownerID, opts)
	if err != nil {
		return CheckResult{}, err
	}
	s.observeDecision("authz.authorize", result.Allowed)
	if !result.Allowed {
		s.auditDenial(ctx, userID, "authz.authorize", result.MissingPermission)
	}
	return result, nil
}

// CanAccessRegion reports whether the user may operate in region now.
func (s *Service) CanAccessRegion(ctx context.Context, userID int64, region string) (bool, error) {
	principal, err := s.source.Principal(ctx, userID)
	if err != nil {
		return false, err
	}
	allowed, err := s.resolver.CanAccessRegion(ctx, principal, region)
	if err != nil {
		return false, err
	}
	s.observeDecision("authz.region", allowed)
	if !allowed {
		s.auditDenial(ctx, userID, "authz.region", region)
	}
	return allowed, nil
}

// InvalidateCache orphans every cached permission set. Called by the
// group and user stores after any permission-affecting mutation.
func (s *Service) InvalidateCache(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

func (s *Service) resolveCached(ctx context.Context, principal Principal) (PermissionSet, error) {
	loader := func(ctx context.Context) (PermissionSet, error) {
		return s.resolver.Resolve(ctx, principal)
	}
	if s.cache == nil {
		return loader(ctx)
	}
	return s.cache.Resolve(ctx, principal.ID, loader)
}

func (s *Service) auditDenial(ctx context.Context, userID int64, action, target string) {
	s.emitter.Emit(ctx, audit.Event{
		Actor:     userID,
		Action:    action,
		Target:    target,
		Severity:  audit.SeverityWarning,
		Success:   false,
		Timestamp: time.Now().UTC(),
	})
}
