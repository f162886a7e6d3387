package handler

import (
	"time"

	"github.com/jfkeci/job-board-sub000/internal/identity/service"
	sessiondomain "github.com/jfkeci/job-board-sub000/internal/session/domain"
	userdomain "github.com/jfkeci/job-board-sub000/internal/user/domain"
)

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	TenantID  string `json:"tenantId"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	TenantID string `json:"tenantId"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// TokenPairResponse is the wire form of a token pair.
type TokenPairResponse struct {
	AccessToken           string    `json:"accessToken"`
	RefreshToken          string    `json:"refreshToken"`
	TokenType             string    `json:"tokenType"`
	ExpiresIn             int64     `json:"expiresIn"`
	AccessTokenExpiresAt  time.Time `json:"accessTokenExpiresAt"`
	RefreshTokenExpiresAt time.Time `json:"refreshTokenExpiresAt"`
	SessionID             string    `json:"sessionId"`
}

// UserResponse is the public view of a user and profile. The password hash never leaves the service.
type UserResponse struct {
	ID             string    `json:"id"`
	TenantID       string    `json:"tenantId"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	EmailVerified  bool      `json:"emailVerified"`
	Language       string    `json:"language"`
	OrganizationID *string   `json:"organizationId"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	CreatedAt      time.Time `json:"createdAt"`
}

type authResponse struct {
	TokenPairResponse
	User UserResponse `json:"user"`
}

type meResponse struct {
	UserResponse
	ImpersonatedBy string `json:"impersonatedBy,omitempty"`
}

// SessionResponse is the public view of a session. Current marks the caller's own session.
type SessionResponse struct {
	ID             string    `json:"id"`
	UserAgent      *string   `json:"userAgent"`
	IPAddress      *string   `json:"ipAddress"`
	DeviceType     *string   `json:"deviceType"`
	ImpersonatedBy *string   `json:"impersonatedBy,omitempty"`
	Current        bool      `json:"current"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NewTokenPairResponse converts a service token pair.
func NewTokenPairResponse(p service.TokenPair) TokenPairResponse {
	return TokenPairResponse{
		AccessToken:           p.AccessToken,
		RefreshToken:          p.RefreshToken,
		TokenType:             p.TokenType,
		ExpiresIn:             p.ExpiresIn,
		AccessTokenExpiresAt:  p.AccessTokenExpiresAt,
		RefreshTokenExpiresAt: p.RefreshTokenExpiresAt,
		SessionID:             p.SessionID,
	}
}

// NewUserResponse converts a user and its optional profile.
func NewUserResponse(u *userdomain.User, p *userdomain.Profile) UserResponse {
	out := UserResponse{
		ID:             u.ID,
		TenantID:       u.TenantID,
		Email:          u.Email,
		Role:           string(u.Role),
		EmailVerified:  u.EmailVerified,
		Language:       u.Language,
		OrganizationID: u.OrganizationID,
		CreatedAt:      u.CreatedAt,
	}
	if p != nil {
		out.FirstName = p.FirstName
		out.LastName = p.LastName
	}
	return out
}

// NewSessionResponses converts sessions; currentID may be empty.
func NewSessionResponses(list []*sessiondomain.Session, currentID string) []SessionResponse {
	out := make([]SessionResponse, 0, len(list))
	for _, s := range list {
		r := SessionResponse{
			ID:             s.ID,
			UserAgent:      s.UserAgent,
			IPAddress:      s.IPAddress,
			ImpersonatedBy: s.ImpersonatedBy,
			Current:        s.ID == currentID,
			LastActivityAt: s.LastActivityAt,
			ExpiresAt:      s.ExpiresAt,
			CreatedAt:      s.CreatedAt,
		}
		if s.DeviceType != nil {
			dt := string(*s.DeviceType)
			r.DeviceType = &dt
		}
		out = append(out, r)
	}
	return out
}
