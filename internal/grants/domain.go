package grants

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle position of a grant. Active is the only
// state with outgoing transitions; Expired and Revoked are terminal.
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// Grant is a temporary, revocable authorization for a user to operate
// within a named geographic region.
type Grant struct {
	ID            uuid.UUID  `json:"id"`
	UserID        int64      `json:"user_id"`
	Region        string     `json:"region"`
	GrantedBy     int64      `json:"granted_by"`
	GrantedAt     time.Time  `json:"granted_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	Reason        string     `json:"reason,omitempty"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	RevokedBy     *int64     `json:"revoked_by,omitempty"`
	RevokedReason *string    `json:"revoked_reason,omitempty"`
}

// Status derives the lifecycle state at the given instant.
func (g *Grant) Status(now time.Time) Status {
	if g.RevokedAt != nil {
		return StatusRevoked
	}
	if !now.Before(g.ExpiresAt) {
		return StatusExpired
	}
	return StatusActive
}

// IsActive reports whether the grant confers access at the given
// instant: not revoked and not yet expired.
func (g *Grant) IsActive(now time.Time) bool {
	return g.Status(now) == StatusActive
}

// CreateGrantRequest carries the inputs of a grant creation.
type CreateGrantRequest struct {
	UserID    int64     `json:"user_id" validate:"required,gt=0"`
	Region    string    `json:"region" validate:"required,max=200"`
	ExpiresAt time.Time `json:"expires_at" validate:"required"`
	Reason    string    `json:"reason" validate:"required,max=500"`
}

// ExtendGrantRequest carries the inputs of a grant extension.
type ExtendGrantRequest struct {
	NewExpiresAt time.Time `json:"new_expires_at" validate:"required"`
}

// RevokeGrantRequest carries the inputs of a grant revocation.
type RevokeGrantRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}
