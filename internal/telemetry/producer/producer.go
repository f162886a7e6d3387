// Package producer defines the interface for shipping audit events to a stream (Kafka).
package producer

import (
	"context"

	auditdomain "github.com/jfkeci/job-board-sub000/internal/audit/domain"
)

// Producer emits audit events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	// Emit sends a single audit event. Implementations may block briefly; call from a goroutine if needed.
	Emit(ctx context.Context, event *auditdomain.Event) error
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}
