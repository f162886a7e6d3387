package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, has a bad signature or wrong iss/aud.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned when a well-formed token is past its exp.
	ErrTokenExpired = errors.New("token expired")
)

// AccessClaims holds JWT claims for the access token.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email          string `json:"email"`
	Role           string `json:"role"`
	TenantID       string `json:"tenantId"`
	SessionID      string `json:"sessionId"`
	ImpersonatedBy string `json:"impersonatedBy,omitempty"`
}

// Subject is the identity embedded in an access token at issue time.
type Subject struct {
	UserID   string
	Email    string
	Role     string
	TenantID string
}

// IssueOption adjusts a single access token.
type IssueOption func(*issueOptions)

type issueOptions struct {
	impersonatedBy string
	notAfter       time.Time
}

// WithImpersonator tags the token with the acting admin's user id.
func WithImpersonator(adminID string) IssueOption {
	return func(o *issueOptions) { o.impersonatedBy = adminID }
}

// WithNotAfter caps the token expiry at t (e.g. the owning session's absolute expiry).
func WithNotAfter(t time.Time) IssueOption {
	return func(o *issueOptions) { o.notAfter = t }
}

// TokenIssuer issues and verifies HS256 access tokens. The secret is read-only after construction.
type TokenIssuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	now      func() time.Time
}

// NewTokenIssuer returns a TokenIssuer signing with secret. issuer and audience are set on
// every token and enforced on Verify.
func NewTokenIssuer(secret []byte, issuer, audience string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		now:      time.Now,
	}
}

// TTL returns the configured access token lifetime.
func (p *TokenIssuer) TTL() time.Duration { return p.ttl }

// Issue signs an access token for sub bound to sessionID. Returns the token and its expiry.
func (p *TokenIssuer) Issue(sub Subject, sessionID string, opts ...IssueOption) (string, time.Time, error) {
	var o issueOptions
	for _, opt := range opts {
		opt(&o)
	}
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := p.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(p.ttl)
	if !o.notAfter.IsZero() && o.notAfter.Before(expiresAt) {
		expiresAt = o.notAfter.UTC().Truncate(time.Second)
	}
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   sub.UserID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:          sub.Email,
		Role:           sub.Role,
		TenantID:       sub.TenantID,
		SessionID:      sessionID,
		ImpersonatedBy: o.impersonatedBy,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Verify checks signature, exp, iss and aud. It never touches storage; callers that need
// revocation must also check the referenced session.
func (p *TokenIssuer) Verify(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return p.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.Subject == "" || claims.SessionID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
