package service

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jfkeci/job-board-sub000/internal/audit"
	auditdomain "github.com/jfkeci/job-board-sub000/internal/audit/domain"
	devicedomain "github.com/jfkeci/job-board-sub000/internal/device/domain"
	"github.com/jfkeci/job-board-sub000/internal/identity/domain"
	"github.com/jfkeci/job-board-sub000/internal/security"
	sessionservice "github.com/jfkeci/job-board-sub000/internal/session/service"
	"github.com/jfkeci/job-board-sub000/internal/telemetry"
	userdomain "github.com/jfkeci/job-board-sub000/internal/user/domain"
)

// RedirectTargets are where the caller should send the browser after impersonating a user.
type RedirectTargets struct {
	// ClientDashboard is used for CLIENT and CLIENT_ADMIN users.
	ClientDashboard string
	// PublicSite is used for every other role.
	PublicSite string
}

// ImpersonationResult is the token pair minted for the target user.
type ImpersonationResult struct {
	Tokens         TokenPair
	User           *userdomain.User
	ImpersonatedBy string
	RedirectURL    string
}

// ImpersonationService lets an ADMIN obtain a short-lived session as another user.
type ImpersonationService struct {
	users     UserRepo
	sessions  SessionManager
	refresh   RefreshStore
	tokens    *security.TokenIssuer
	ttl       time.Duration
	redirects RedirectTargets

	audit   audit.Recorder
	metrics *telemetry.AuthMetrics
	tracer  trace.Tracer
	now     func() time.Time
}

// NewImpersonationService returns an ImpersonationService. ttl bounds the session and both tokens.
func NewImpersonationService(
	users UserRepo,
	sessions SessionManager,
	refresh RefreshStore,
	tokens *security.TokenIssuer,
	ttl time.Duration,
	redirects RedirectTargets,
	opts ...Option,
) *ImpersonationService {
	o := buildOptions(opts)
	return &ImpersonationService{
		users:     users,
		sessions:  sessions,
		refresh:   refresh,
		tokens:    tokens,
		ttl:       ttl,
		redirects: redirects,
		audit:     o.audit,
		metrics:   o.metrics,
		tracer:    otel.Tracer("jobboard.identity"),
		now:       time.Now,
	}
}

// Impersonate creates a session for targetUserID on behalf of admin without a password check.
// The session is tagged with device class "admin" and the admin id; the access token carries
// impersonatedBy and neither token outlives the session.
func (s *ImpersonationService) Impersonate(ctx context.Context, admin domain.Principal, targetUserID string, device devicedomain.Info) (res *ImpersonationResult, err error) {
	ctx, span := s.tracer.Start(ctx, "ImpersonationService.Impersonate",
		trace.WithAttributes(attribute.String("target.user_id", targetUserID)))
	defer func() { endSpan(span, err) }()

	if !admin.Role.Satisfies(userdomain.RoleAdmin) || admin.IsImpersonated() {
		return nil, domain.ErrForbidden
	}
	target, err := s.users.GetByID(ctx, targetUserID)
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("load user: %w", err))
	}
	if target == nil {
		return nil, domain.ErrUserNotFound
	}

	adminType := devicedomain.TypeAdmin
	ua := fmt.Sprintf("admin-impersonation by %s <%s>", admin.UserID, admin.Email)
	if orig := deref(device.UserAgent); orig != "" {
		ua += "; " + orig
	}
	adminID := admin.UserID
	sess, err := s.sessions.Create(ctx, sessionservice.CreateParams{
		UserID:         target.ID,
		Device:         devicedomain.Info{UserAgent: &ua, IPAddress: device.IPAddress, DeviceType: &adminType},
		ImpersonatedBy: &adminID,
		TTL:            s.ttl,
	})
	if err != nil {
		return nil, domain.Internal(err)
	}
	access, accessExp, err := s.tokens.Issue(subjectOf(target), sess.ID,
		security.WithImpersonator(adminID), security.WithNotAfter(sess.ExpiresAt))
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("issue access token: %w", err))
	}
	issued, err := s.refresh.Issue(ctx, sess.ID, sess.ExpiresAt.Sub(s.now()))
	if err != nil {
		return nil, domain.Internal(err)
	}

	s.metrics.Impersonation(ctx)
	s.metrics.SessionCreated(ctx, "impersonate")
	s.audit.Record(ctx, auditdomain.Event{
		TenantID:  target.TenantID,
		UserID:    target.ID,
		SessionID: sess.ID,
		Action:    auditdomain.ActionImpersonate,
		IP:        deref(device.IPAddress),
		Metadata:  map[string]string{"impersonated_by": adminID, "admin_email": admin.Email},
	})

	now := s.now()
	return &ImpersonationResult{
		Tokens: TokenPair{
			AccessToken:           access,
			RefreshToken:          issued.RawToken,
			TokenType:             tokenTypeBearer,
			ExpiresIn:             int64(accessExp.Sub(now).Round(time.Second) / time.Second),
			AccessTokenExpiresAt:  accessExp,
			RefreshTokenExpiresAt: issued.ExpiresAt,
			SessionID:             sess.ID,
		},
		User:           target,
		ImpersonatedBy: adminID,
		RedirectURL:    s.redirectFor(target.Role),
	}, nil
}

func (s *ImpersonationService) redirectFor(role userdomain.Role) string {
	if role.IsClient() {
		return s.redirects.ClientDashboard
	}
	return s.redirects.PublicSite
}
