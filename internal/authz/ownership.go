package authz

import "context"

// Denial reasons surfaced on CheckResult. Denials are normal results,
// never errors; callers branch on Allowed.
const (
	ReasonMissingPermission = "missing permission"
	ReasonOwnershipRequired = "ownership required"
)

// CheckResult is the outcome of an ownership-aware authorization check.
type CheckResult struct {
	Allowed           bool   `json:"allowed"`
	Reason            string `json:"reason,omitempty"`
	MissingPermission string `json:"missing_permission,omitempty"`
}

// Options tunes an ownership check. AllowTeam extends the ".own" tier
// to resources owned by listed team members; it is off unless the
// deployment enables it.
type Options struct {
	AllowTeam     bool
	TeamMemberIDs []int64
}

// Authorize resolves "<base>.own" versus "<base>.any" semantics. The
// ".any" tier is checked first and independently: a principal holding
// both tiers is never denied because ownership fails. ownerID zero
// means the resource does not exist yet (creation), which the ".own"
// tier always permits.
func (r *Resolver) Authorize(ctx context.Context, principal Principal, basePermission string, ownerID int64, opts Options) (CheckResult, error) {
	set, err := r.Resolve(ctx, principal)
	if err != nil {
		return CheckResult{}, err
	}

	anyPerm := basePermission + ".any"
	if Match(anyPerm, set) {
		return CheckResult{Allowed: true}, nil
	}

	if Match(basePermission+".own", set) {
		switch {
		case ownerID == 0:
			return CheckResult{Allowed: true}, nil
		case ownerID == principal.ID:
			return CheckResult{Allowed: true}, nil
		case opts.AllowTeam && containsID(opts.TeamMemberIDs, ownerID):
			return CheckResult{Allowed: true}, nil
		}
		return CheckResult{
			Reason:            ReasonOwnershipRequired,
			MissingPermission: anyPerm,
		}, nil
	}

	return CheckResult{
		Reason:            ReasonMissingPermission,
		MissingPermission: anyPerm,
	}, nil
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
