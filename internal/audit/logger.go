// Package audit records authentication events. Recording is best-effort: a failing sink is
// logged and never fails the audited operation.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jfkeci/job-board-sub000/internal/audit/domain"
	auditrepo "github.com/jfkeci/job-board-sub000/internal/audit/repository"
	"github.com/jfkeci/job-board-sub000/internal/platform/reqctx"
	"github.com/jfkeci/job-board-sub000/internal/telemetry"
)

// Recorder writes one audit event. Used by the auth and impersonation services.
type Recorder interface {
	Record(ctx context.Context, e domain.Event)
}

// Logger implements Recorder. The event is persisted synchronously to the repository (when set)
// and shipped to every emitter through the dispatcher.
type Logger struct {
	repo       auditrepo.Repository
	dispatcher *telemetry.Dispatcher
	emitters   []telemetry.EventEmitter
	logger     *slog.Logger
	now        func() time.Time
}

// NewLogger returns a Logger. repo and dispatcher may be nil; nil emitters are skipped.
func NewLogger(repo auditrepo.Repository, dispatcher *telemetry.Dispatcher, emitters ...telemetry.EventEmitter) *Logger {
	l := &Logger{
		repo:       repo,
		dispatcher: dispatcher,
		logger:     slog.Default().With("module", "audit"),
		now:        time.Now,
	}
	for _, em := range emitters {
		if em != nil {
			l.emitters = append(l.emitters, em)
		}
	}
	return l
}

// Record fills ID, CreatedAt and RequestID when missing, then fans the event out.
func (l *Logger) Record(ctx context.Context, e domain.Event) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = l.now().UTC()
	}
	if e.RequestID == "" {
		e.RequestID = reqctx.RequestID(ctx)
	}
	if e.Outcome == "" {
		e.Outcome = domain.OutcomeSuccess
	}
	if l.repo != nil {
		if err := l.repo.Create(ctx, &e); err != nil {
			l.logger.ErrorContext(ctx, "failed to persist audit event",
				"action", e.Action, "request_id", e.RequestID, "error", err)
		}
	}
	if l.dispatcher == nil {
		return
	}
	for _, em := range l.emitters {
		ev := e
		l.dispatcher.EmitAsync(ctx, em, &ev)
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) Record(context.Context, domain.Event) {}
