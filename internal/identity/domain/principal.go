package domain

import userdomain "github.com/jfkeci/job-board-sub000/internal/user/domain"

// Principal is the verified caller of a protected request.
type Principal struct {
	UserID    string
	Email     string
	Role      userdomain.Role
	TenantID  string
	SessionID string
	// ImpersonatedBy is the admin id when the session was created by impersonation.
	ImpersonatedBy string
}

// IsImpersonated reports whether an admin is acting as this user.
func (p Principal) IsImpersonated() bool {
	return p.ImpersonatedBy != ""
}
