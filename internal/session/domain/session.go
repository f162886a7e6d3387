package domain

import (
	"time"

	devicedomain "github.com/jfkeci/job-board-sub000/internal/device/domain"
)

// Session is the server-side record of one authenticated device or browser and the unit
// of revocation. ExpiresAt is absolute; LastActivityAt is advisory.
type Session struct {
	ID         string
	UserID     string
	UserAgent  *string
	IPAddress  *string
	DeviceType *devicedomain.Type
	// ImpersonatedBy is the admin user id for sessions minted by impersonation.
	ImpersonatedBy *string
	LastActivityAt time.Time
	ExpiresAt      time.Time
	CreatedAt      time.Time
}

// IsExpired reports whether the session is past its absolute expiry at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// IsImpersonated reports whether an admin minted this session.
func (s *Session) IsImpersonated() bool {
	return s.ImpersonatedBy != nil && *s.ImpersonatedBy != ""
}
