// Package service implements registration, login, token refresh, logout, session self-service
// and admin impersonation on top of the user, session and refresh-token stores.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jfkeci/job-board-sub000/internal/audit"
	auditdomain "github.com/jfkeci/job-board-sub000/internal/audit/domain"
	devicedomain "github.com/jfkeci/job-board-sub000/internal/device/domain"
	"github.com/jfkeci/job-board-sub000/internal/identity/domain"
	rtdomain "github.com/jfkeci/job-board-sub000/internal/refreshtoken/domain"
	"github.com/jfkeci/job-board-sub000/internal/security"
	sessiondomain "github.com/jfkeci/job-board-sub000/internal/session/domain"
	sessionservice "github.com/jfkeci/job-board-sub000/internal/session/service"
	"github.com/jfkeci/job-board-sub000/internal/telemetry"
	userdomain "github.com/jfkeci/job-board-sub000/internal/user/domain"
)

const (
	minPasswordLength = 8
	maxPasswordLength = 128
	maxNameLength     = 100
	tokenTypeBearer   = "Bearer"
)

// UserRepo is the minimal user repository needed by the auth services.
type UserRepo interface {
	GetByID(ctx context.Context, id string) (*userdomain.User, error)
	GetByEmailAndTenant(ctx context.Context, email, tenantID string) (*userdomain.User, error)
	Create(ctx context.Context, u *userdomain.User, p *userdomain.Profile) error
	GetProfile(ctx context.Context, userID string) (*userdomain.Profile, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

// SessionManager is the session lifecycle the auth services drive.
type SessionManager interface {
	Create(ctx context.Context, p sessionservice.CreateParams) (*sessiondomain.Session, error)
	Get(ctx context.Context, id string) (*sessiondomain.Session, error)
	Validate(ctx context.Context, id string) (*sessiondomain.Session, error)
	Touch(ctx context.Context, id string)
	Delete(ctx context.Context, id string) error
	DeleteAllForUser(ctx context.Context, userID string) ([]string, error)
	ListForUser(ctx context.Context, userID string) ([]*sessiondomain.Session, error)
}

// RefreshStore issues, validates and rotates opaque refresh tokens.
type RefreshStore interface {
	Issue(ctx context.Context, sessionID string, ttl time.Duration) (rtdomain.Result, error)
	Validate(ctx context.Context, raw string) (rtdomain.Result, error)
	Rotate(ctx context.Context, sessionID, oldRaw string, ttl time.Duration) (rtdomain.Result, error)
}

// RegisterInput is the registration request.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	TenantID  string
}

// LoginInput is the login request.
type LoginInput struct {
	Email    string
	Password string
	TenantID string
}

// TokenPair is an access token and refresh token bound to one session.
type TokenPair struct {
	AccessToken           string
	RefreshToken          string
	TokenType             string
	ExpiresIn             int64
	AccessTokenExpiresAt  time.Time
	RefreshTokenExpiresAt time.Time
	SessionID             string
}

// AuthResult is returned by Register and Login. Refresh returns a bare TokenPair.
type AuthResult struct {
	Tokens  TokenPair
	User    *userdomain.User
	Profile *userdomain.Profile
}

// CurrentUser is the caller's user and profile. Profile may be nil for provisioned accounts.
type CurrentUser struct {
	User    *userdomain.User
	Profile *userdomain.Profile
}

// AuthService implements password register, login, refresh, logout and session self-service.
type AuthService struct {
	users      UserRepo
	sessions   SessionManager
	refresh    RefreshStore
	tokens     *security.TokenIssuer
	hasher     *security.Hasher
	refreshTTL time.Duration

	audit   audit.Recorder
	metrics *telemetry.AuthMetrics
	tracer  trace.Tracer
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures the auth services.
type Option func(*options)

type options struct {
	audit   audit.Recorder
	metrics *telemetry.AuthMetrics
	logger  *slog.Logger
}

// WithAudit sets the audit recorder. Defaults to discarding events.
func WithAudit(r audit.Recorder) Option {
	return func(o *options) { o.audit = r }
}

// WithMetrics sets the metric counters. Defaults to no-op counters.
func WithMetrics(m *telemetry.AuthMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the logger for best-effort failures.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{
		audit:  audit.Nop{},
		logger: slog.Default().With("module", "identity"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.metrics == nil {
		o.metrics = telemetry.NoopAuthMetrics()
	}
	return o
}

// NewAuthService returns an AuthService. refreshTTL is the lifetime of refresh tokens for normal sessions.
func NewAuthService(
	users UserRepo,
	sessions SessionManager,
	refresh RefreshStore,
	tokens *security.TokenIssuer,
	hasher *security.Hasher,
	refreshTTL time.Duration,
	opts ...Option,
) *AuthService {
	o := buildOptions(opts)
	return &AuthService{
		users:      users,
		sessions:   sessions,
		refresh:    refresh,
		tokens:     tokens,
		hasher:     hasher,
		refreshTTL: refreshTTL,
		audit:      o.audit,
		metrics:    o.metrics,
		tracer:     otel.Tracer("jobboard.identity"),
		logger:     o.logger,
		now:        time.Now,
	}
}

// Register creates a user and profile in the tenant and starts a session.
// Returns ErrAlreadyExists when the email is taken within the tenant.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, device devicedomain.Info) (res *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Register")
	defer func() { endSpan(span, err) }()

	in.Email = normalizeEmail(in.Email)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.TenantID = strings.TrimSpace(in.TenantID)
	if fields := validateRegister(in); len(fields) > 0 {
		return nil, domain.Validation(fields)
	}

	existing, err := s.users.GetByEmailAndTenant(ctx, in.Email, in.TenantID)
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("lookup user: %w", err))
	}
	if existing != nil {
		return nil, domain.ErrAlreadyExists
	}

	hashed, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("hash password: %w", err))
	}
	now := s.now().UTC()
	user := &userdomain.User{
		ID:           uuid.NewString(),
		TenantID:     in.TenantID,
		Email:        in.Email,
		PasswordHash: &hashed,
		Role:         userdomain.RoleUser,
		Language:     "en",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := user.Validate(); err != nil {
		return nil, domain.Internal(err)
	}
	profile := &userdomain.Profile{
		UserID:    user.ID,
		FirstName: in.FirstName,
		LastName:  in.LastName,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.users.Create(ctx, user, profile); err != nil {
		switch {
		case errors.Is(err, userdomain.ErrEmailTaken):
			return nil, domain.ErrAlreadyExists
		case errors.Is(err, userdomain.ErrUnknownTenant):
			return nil, domain.Validation(map[string]string{"tenantId": "unknown tenant"})
		default:
			return nil, domain.Internal(fmt.Errorf("create user: %w", err))
		}
	}

	pair, sess, err := s.startSession(ctx, user, device)
	if err != nil {
		return nil, err
	}
	s.metrics.SessionCreated(ctx, "register")
	s.audit.Record(ctx, eventFor(auditdomain.ActionRegister, user, sess.ID, device))
	return &AuthResult{Tokens: *pair, User: user, Profile: profile}, nil
}

// Login authenticates email and password within the tenant and starts a new session.
// Unknown email, missing password hash and wrong password all return ErrInvalidCredentials;
// the first two still pay for one hash verification.
func (s *AuthService) Login(ctx context.Context, in LoginInput, device devicedomain.Info) (res *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Login")
	defer func() { endSpan(span, err) }()

	in.Email = normalizeEmail(in.Email)
	in.TenantID = strings.TrimSpace(in.TenantID)
	if fields := validateLogin(in); len(fields) > 0 {
		return nil, domain.Validation(fields)
	}

	user, err := s.users.GetByEmailAndTenant(ctx, in.Email, in.TenantID)
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("lookup user: %w", err))
	}
	var reason string
	switch {
	case user == nil:
		s.hasher.VerifyDummy(ctx, in.Password)
		reason = "unknown_email"
	case user.PasswordHash == nil || *user.PasswordHash == "":
		s.hasher.VerifyDummy(ctx, in.Password)
		reason = "no_password"
	case !s.hasher.Verify(ctx, *user.PasswordHash, in.Password):
		reason = "bad_password"
	}
	if reason != "" {
		if ctx.Err() != nil {
			return nil, domain.Internal(ctx.Err())
		}
		s.metrics.Login(ctx, string(domain.KindInvalidCredentials))
		ev := auditdomain.Event{
			TenantID: in.TenantID,
			Action:   auditdomain.ActionLoginFailure,
			Outcome:  auditdomain.OutcomeFailure,
			IP:       deref(device.IPAddress),
			Metadata: map[string]string{"reason": reason},
		}
		if user != nil {
			ev.UserID = user.ID
		}
		s.audit.Record(ctx, ev)
		return nil, domain.ErrInvalidCredentials
	}

	if s.hasher.NeedsRehash(*user.PasswordHash) {
		s.upgradeHash(ctx, user.ID, in.Password)
	}

	pair, sess, err := s.startSession(ctx, user, device)
	if err != nil {
		return nil, err
	}
	profile, err := s.users.GetProfile(ctx, user.ID)
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("load profile: %w", err))
	}
	s.metrics.Login(ctx, "success")
	s.metrics.SessionCreated(ctx, "login")
	s.audit.Record(ctx, eventFor(auditdomain.ActionLoginSuccess, user, sess.ID, device))
	return &AuthResult{Tokens: *pair, User: user, Profile: profile}, nil
}

// Refresh exchanges a refresh token for a new token pair on the same session. The presented
// token is consumed; a token that loses a concurrent rotation gets ErrRefreshTokenInvalid.
// Impersonated sessions keep impersonatedBy and never outlive the session's absolute expiry.
func (s *AuthService) Refresh(ctx context.Context, rawRefreshToken string) (pair *TokenPair, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Refresh")
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = string(domain.KindOf(err))
			s.audit.Record(ctx, auditdomain.Event{
				Action:   auditdomain.ActionRefreshFailure,
				Outcome:  auditdomain.OutcomeFailure,
				Metadata: map[string]string{"reason": outcome},
			})
		}
		s.metrics.Refresh(ctx, outcome)
		endSpan(span, err)
	}()

	found, err := s.refresh.Validate(ctx, strings.TrimSpace(rawRefreshToken))
	if err != nil {
		return nil, domain.Internal(err)
	}
	switch found.Kind {
	case rtdomain.KindValid:
	case rtdomain.KindInvalid:
		return nil, domain.ErrRefreshTokenInvalid
	case rtdomain.KindExpired:
		return nil, domain.ErrRefreshTokenExpired
	case rtdomain.KindIssued, rtdomain.KindRotated:
		return nil, domain.Internal(fmt.Errorf("refresh validate returned %s", found.Kind))
	default:
		return nil, domain.Internal(fmt.Errorf("unknown refresh result kind %d", found.Kind))
	}
	span.SetAttributes(attribute.String("session.id", found.SessionID))

	sess, err := s.sessions.Validate(ctx, found.SessionID)
	if err != nil {
		if errors.Is(err, sessiondomain.ErrNotFound) || errors.Is(err, sessiondomain.ErrExpired) {
			return nil, domain.ErrSessionExpired
		}
		return nil, domain.Internal(err)
	}
	user, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("load user: %w", err))
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}

	ttl := s.refreshTTL
	var opts []security.IssueOption
	if sess.IsImpersonated() {
		if remaining := sess.ExpiresAt.Sub(s.now()); remaining < ttl {
			ttl = remaining
		}
		if ttl <= 0 {
			return nil, domain.ErrSessionExpired
		}
		opts = append(opts, security.WithImpersonator(*sess.ImpersonatedBy), security.WithNotAfter(sess.ExpiresAt))
	}

	rotated, err := s.refresh.Rotate(ctx, sess.ID, strings.TrimSpace(rawRefreshToken), ttl)
	if err != nil {
		return nil, domain.Internal(err)
	}
	switch rotated.Kind {
	case rtdomain.KindRotated:
	case rtdomain.KindInvalid:
		s.metrics.RotationConflict(ctx)
		return nil, domain.ErrRefreshTokenInvalid
	case rtdomain.KindIssued, rtdomain.KindValid, rtdomain.KindExpired:
		return nil, domain.Internal(fmt.Errorf("refresh rotate returned %s", rotated.Kind))
	default:
		return nil, domain.Internal(fmt.Errorf("unknown refresh result kind %d", rotated.Kind))
	}

	access, accessExp, err := s.tokens.Issue(subjectOf(user), sess.ID, opts...)
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("issue access token: %w", err))
	}
	s.sessions.Touch(ctx, sess.ID)
	s.audit.Record(ctx, auditdomain.Event{
		TenantID:  user.TenantID,
		UserID:    user.ID,
		SessionID: sess.ID,
		Action:    auditdomain.ActionRefresh,
	})
	out := s.pair(access, accessExp, rotated, sess.ID)
	return &out, nil
}

// Logout deletes the caller's session and with it the refresh token. Deleting an
// already-removed session succeeds.
func (s *AuthService) Logout(ctx context.Context, p domain.Principal) (err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Logout")
	defer func() { endSpan(span, err) }()

	if err := s.sessions.Delete(ctx, p.SessionID); err != nil {
		return domain.Internal(err)
	}
	s.audit.Record(ctx, auditdomain.Event{
		TenantID:  p.TenantID,
		UserID:    p.UserID,
		SessionID: p.SessionID,
		Action:    auditdomain.ActionLogout,
	})
	return nil
}

// GetCurrentUser re-reads the caller's user and profile. Returns ErrUserNotFound if the
// user was deleted after the session started.
func (s *AuthService) GetCurrentUser(ctx context.Context, userID string) (*CurrentUser, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("load user: %w", err))
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	profile, err := s.users.GetProfile(ctx, userID)
	if err != nil {
		return nil, domain.Internal(fmt.Errorf("load profile: %w", err))
	}
	return &CurrentUser{User: user, Profile: profile}, nil
}

// ListSessions returns the user's sessions, newest first.
func (s *AuthService) ListSessions(ctx context.Context, userID string) ([]*sessiondomain.Session, error) {
	list, err := s.sessions.ListForUser(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err)
	}
	return list, nil
}

// RevokeSession deletes one of the caller's own sessions. A session of another user is
// reported as ErrSessionNotFound.
func (s *AuthService) RevokeSession(ctx context.Context, p domain.Principal, sessionID string) error {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return domain.Internal(err)
	}
	if sess == nil || sess.UserID != p.UserID {
		return domain.ErrSessionNotFound
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return domain.Internal(err)
	}
	s.audit.Record(ctx, auditdomain.Event{
		TenantID:  p.TenantID,
		UserID:    p.UserID,
		SessionID: p.SessionID,
		Action:    auditdomain.ActionSessionsRevoked,
		Metadata:  map[string]string{"revoked_session_id": sessionID},
	})
	return nil
}

// RevokeAllSessions deletes every session of targetUserID, including the caller's own when
// acting on itself. Returns the number of sessions removed.
func (s *AuthService) RevokeAllSessions(ctx context.Context, actor domain.Principal, targetUserID string) (int, error) {
	if actor.UserID != targetUserID {
		target, err := s.users.GetByID(ctx, targetUserID)
		if err != nil {
			return 0, domain.Internal(fmt.Errorf("load user: %w", err))
		}
		if target == nil {
			return 0, domain.ErrUserNotFound
		}
	}
	ids, err := s.sessions.DeleteAllForUser(ctx, targetUserID)
	if err != nil {
		return 0, domain.Internal(err)
	}
	s.audit.Record(ctx, auditdomain.Event{
		TenantID:  actor.TenantID,
		UserID:    targetUserID,
		SessionID: actor.SessionID,
		Action:    auditdomain.ActionSessionsRevoked,
		Metadata: map[string]string{
			"revoked_count": fmt.Sprint(len(ids)),
			"actor_id":      actor.UserID,
		},
	})
	return len(ids), nil
}

// startSession creates a session for user and issues its first token pair.
func (s *AuthService) startSession(ctx context.Context, user *userdomain.User, device devicedomain.Info) (*TokenPair, *sessiondomain.Session, error) {
	sess, err := s.sessions.Create(ctx, sessionservice.CreateParams{UserID: user.ID, Device: device})
	if err != nil {
		return nil, nil, domain.Internal(err)
	}
	access, accessExp, err := s.tokens.Issue(subjectOf(user), sess.ID)
	if err != nil {
		return nil, nil, domain.Internal(fmt.Errorf("issue access token: %w", err))
	}
	issued, err := s.refresh.Issue(ctx, sess.ID, s.refreshTTL)
	if err != nil {
		return nil, nil, domain.Internal(err)
	}
	pair := s.pair(access, accessExp, issued, sess.ID)
	return &pair, sess, nil
}

func (s *AuthService) pair(access string, accessExp time.Time, refresh rtdomain.Result, sessionID string) TokenPair {
	return TokenPair{
		AccessToken:           access,
		RefreshToken:          refresh.RawToken,
		TokenType:             tokenTypeBearer,
		ExpiresIn:             int64(accessExp.Sub(s.now()).Round(time.Second) / time.Second),
		AccessTokenExpiresAt:  accessExp,
		RefreshTokenExpiresAt: refresh.ExpiresAt,
		SessionID:             sessionID,
	}
}

// upgradeHash re-hashes a legacy or under-cost password after a successful login. Failures are logged.
func (s *AuthService) upgradeHash(ctx context.Context, userID, password string) {
	hashed, err := s.hasher.Hash(ctx, password)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, userID, hashed)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "password rehash failed", "user_id", userID, "error", err)
	}
}

func subjectOf(u *userdomain.User) security.Subject {
	return security.Subject{UserID: u.ID, Email: u.Email, Role: string(u.Role), TenantID: u.TenantID}
}

func eventFor(action auditdomain.Action, u *userdomain.User, sessionID string, device devicedomain.Info) auditdomain.Event {
	ev := auditdomain.Event{
		TenantID:  u.TenantID,
		UserID:    u.ID,
		SessionID: sessionID,
		Action:    action,
		IP:        deref(device.IPAddress),
	}
	if device.DeviceType != nil {
		ev.Metadata = map[string]string{"device_type": string(*device.DeviceType)}
	}
	return ev
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(domain.KindOf(err)))
	}
	span.End()
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func validateRegister(in RegisterInput) map[string]string {
	fields := map[string]string{}
	if msg := validateEmail(in.Email); msg != "" {
		fields["email"] = msg
	}
	if msg := validatePassword(in.Password); msg != "" {
		fields["password"] = msg
	}
	if in.FirstName == "" {
		fields["firstName"] = "first name is required"
	} else if len(in.FirstName) > maxNameLength {
		fields["firstName"] = "first name is too long"
	}
	if in.LastName == "" {
		fields["lastName"] = "last name is required"
	} else if len(in.LastName) > maxNameLength {
		fields["lastName"] = "last name is too long"
	}
	if msg := validateTenantID(in.TenantID); msg != "" {
		fields["tenantId"] = msg
	}
	return fields
}

func validateLogin(in LoginInput) map[string]string {
	fields := map[string]string{}
	if in.Email == "" {
		fields["email"] = "email is required"
	}
	if in.Password == "" {
		fields["password"] = "password is required"
	}
	if msg := validateTenantID(in.TenantID); msg != "" {
		fields["tenantId"] = msg
	}
	return fields
}

func validateEmail(email string) string {
	if email == "" {
		return "email is required"
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return "invalid email format"
	}
	return ""
}

func validatePassword(password string) string {
	if len(password) < minPasswordLength {
		return fmt.Sprintf("password must be at least %d characters", minPasswordLength)
	}
	if len(password) > maxPasswordLength {
		return fmt.Sprintf("password must be at most %d characters", maxPasswordLength)
	}
	var hasUpper, hasLower, hasNumber bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasNumber = true
		}
	}
	if !hasUpper {
		return "password must contain at least one uppercase letter"
	}
	if !hasLower {
		return "password must contain at least one lowercase letter"
	}
	if !hasNumber {
		return "password must contain at least one number"
	}
	return ""
}

func validateTenantID(id string) string {
	if id == "" {
		return "tenant id is required"
	}
	if _, err := uuid.Parse(id); err != nil {
		return "tenant id must be a UUID"
	}
	return ""
}
