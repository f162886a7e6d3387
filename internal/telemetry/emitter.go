// Package telemetry carries audit events to out-of-process sinks (OTel logs, Kafka) and
// records authentication metrics.
package telemetry

import (
	"context"

	auditdomain "github.com/jfkeci/job-board-sub000/internal/audit/domain"
)

// EventEmitter ships an audit event to one sink. Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *auditdomain.Event) error
}
