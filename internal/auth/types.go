package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tutela.org/internal/jurisdiction"
)

// Role separates plain officers from supervisors. Only supervisors may
// perform scope-gated administrative actions or manage assignments.
type Role string

const (
	RoleOfficer    Role = "officer"
	RoleSupervisor Role = "supervisor"
)

// Valid reports whether the role is one of the two recognized values.
func (r Role) Valid() bool {
	return r == RoleOfficer || r == RoleSupervisor
}

// Label returns the human-readable role name used in login responses.
func (r Role) Label() string {
	switch r {
	case RoleSupervisor:
		return "Supervisor"
	case RoleOfficer:
		return "Officer"
	default:
		return string(r)
	}
}

// Officer lifecycle statuses. Officers are never hard-deleted; deletion is a
// status transition so assignment history stays intact.
const (
	StatusActive  = "active"
	StatusDeleted = "deleted"
)

// Officer is the authenticated actor of the system.
type Officer struct {
	ID                  string             `json:"id"`
	IdentityNumber      string             `json:"identity_number"`
	FullName            string             `json:"full_name"`
	Role                Role               `json:"role"`
	Level               jurisdiction.Level `json:"level"`
	Scope               jurisdiction.Scope `json:"scope"`
	PasswordHash        string             `json:"-"`
	HasActiveAssignment bool               `json:"has_active_assignment"`
	Status              string             `json:"status"`
	CreatedAt           time.Time          `json:"created_at"`
	UpdatedAt           time.Time          `json:"updated_at"`
}

// Principal is the caller identity resolved from a verified session token.
type Principal struct {
	OfficerID      string             `json:"officer_id"`
	IdentityNumber string             `json:"identity_number"`
	FullName       string             `json:"full_name"`
	Role           Role               `json:"role"`
	Level          jurisdiction.Level `json:"level"`
	Scope          jurisdiction.Scope `json:"scope"`
}

// Claims are the signed access token contents.
type Claims struct {
	Role  Role               `json:"role"`
	Level jurisdiction.Level `json:"level"`
	jwt.RegisteredClaims
}

// TokenPair is the credential set handed out at login and refresh. The
// refresh token travels in its encrypted transport form.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_token_expires_at"`
}

// RefreshToken is the single persisted refresh credential per officer.
// Storing a new row for an officer supersedes any previous value; old
// secrets become unusable by absence, not by explicit revocation.
type RefreshToken struct {
	OfficerID string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
}
