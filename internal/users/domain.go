package users

import (
	"time"

	"github.com/gridscape/gridscape/internal/authz"
)

// User represents a user account snapshot as read from storage. The
// authorization core never writes these; account management lives in a
// separate collaborator.
type User struct {
	ID                int64      `json:"id"`
	Email             string     `json:"email"`
	Name              string     `json:"name"`
	Role              authz.Role `json:"role"`
	DirectPermissions []string   `json:"direct_permissions"`
	IsActive          bool       `json:"is_active"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}
