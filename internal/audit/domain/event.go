package domain

import "time"

// Action names an authentication event.
type Action string

const (
	ActionRegister        Action = "auth.register"
	ActionLoginSuccess    Action = "auth.login.success"
	ActionLoginFailure    Action = "auth.login.failure"
	ActionRefresh         Action = "auth.refresh"
	ActionRefreshFailure  Action = "auth.refresh.failure"
	ActionLogout          Action = "auth.logout"
	ActionSessionsRevoked Action = "auth.sessions.revoked"
	ActionImpersonate     Action = "auth.impersonate"
)

// Outcome is success or failure of the audited action.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// Event is one audit record. Empty ids mean the actor was not (yet) known, e.g. a failed login.
type Event struct {
	ID        string            `json:"id"`
	TenantID  string            `json:"tenantId,omitempty"`
	UserID    string            `json:"userId,omitempty"`
	SessionID string            `json:"sessionId,omitempty"`
	Action    Action            `json:"action"`
	Outcome   Outcome           `json:"outcome"`
	IP        string            `json:"ip,omitempty"`
	RequestID string            `json:"requestId,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
