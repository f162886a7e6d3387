package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	auditdomain "github.com/jfkeci/job-board-sub000/internal/audit/domain"
	"github.com/jfkeci/job-board-sub000/internal/telemetry"
)

// RecordEmitter is the part of otellog.Logger the emitter needs.
type RecordEmitter interface {
	Emit(ctx context.Context, record otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends audit events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: provider.Logger("jobboard.audit")}
}

// NewEventEmitterWithLogger returns an EventEmitter writing to logger directly.
func NewEventEmitterWithLogger(logger RecordEmitter) telemetry.EventEmitter {
	return &otelEmitter{logger: logger}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *auditdomain.Event) error { return nil }

type otelEmitter struct {
	logger RecordEmitter
}

// Emit converts the audit event to an OTel log record and emits it.
func (e *otelEmitter) Emit(ctx context.Context, event *auditdomain.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	if !event.CreatedAt.IsZero() {
		rec.SetTimestamp(event.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	rec.SetEventName(string(event.Action))
	rec.SetBody(otellog.StringValue(string(event.Action)))
	if event.Outcome == auditdomain.OutcomeFailure {
		rec.SetSeverity(otellog.SeverityWarn)
	} else {
		rec.SetSeverity(otellog.SeverityInfo)
	}
	rec.AddAttributes(otellog.String("outcome", string(event.Outcome)))
	optional := []struct{ key, val string }{
		{"audit_id", event.ID},
		{"tenant_id", event.TenantID},
		{"user_id", event.UserID},
		{"session_id", event.SessionID},
		{"client_ip", event.IP},
		{"request_id", event.RequestID},
	}
	for _, kv := range optional {
		if kv.val != "" {
			rec.AddAttributes(otellog.String(kv.key, kv.val))
		}
	}
	for k, v := range event.Metadata {
		rec.AddAttributes(otellog.String("meta."+k, v))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
