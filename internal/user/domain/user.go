package domain

import (
	"errors"
	"time"
)

var (
	// ErrEmailTaken is returned by Create when (tenant_id, email) already exists.
	ErrEmailTaken = errors.New("email already registered in tenant")
	// ErrUnknownTenant is returned by Create when the tenant does not exist.
	ErrUnknownTenant = errors.New("unknown tenant")
)

// Role is a position on the access ladder USER < CLIENT < CLIENT_ADMIN < ADMIN.
type Role string

const (
	RoleUser        Role = "USER"
	RoleClient      Role = "CLIENT"
	RoleClientAdmin Role = "CLIENT_ADMIN"
	RoleAdmin       Role = "ADMIN"
)

var roleRank = map[Role]int{
	RoleUser:        1,
	RoleClient:      2,
	RoleClientAdmin: 3,
	RoleAdmin:       4,
}

// ParseRole returns the role named s and whether it is known.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	_, ok := roleRank[r]
	return r, ok
}

// Satisfies reports whether r is at least required. Unknown roles satisfy nothing.
// This is the only role comparison in the codebase.
func (r Role) Satisfies(required Role) bool {
	have, ok := roleRank[r]
	if !ok {
		return false
	}
	return have >= roleRank[required]
}

// IsClient reports whether r is one of the organization-side roles.
func (r Role) IsClient() bool {
	return r == RoleClient || r == RoleClientAdmin
}

// User is the identity record. PasswordHash is nil for externally provisioned accounts.
type User struct {
	ID             string
	TenantID       string
	Email          string
	PasswordHash   *string
	Role           Role
	EmailVerified  bool
	Language       string
	OrganizationID *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Profile holds display data created alongside the user.
type Profile struct {
	UserID    string
	FirstName string
	LastName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate validates the user for persistence. Returns an error describing the first validation failure.
func (u *User) Validate() error {
	if u.TenantID == "" {
		return errors.New("tenant id is required")
	}
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if _, ok := roleRank[u.Role]; !ok {
		return errors.New("unknown role")
	}
	if u.Language == "" {
		u.Language = "en"
	}
	return nil
}
