package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	auditdomain "github.com/jfkeci/job-board-sub000/internal/audit/domain"
)

// emitTimeout is the max time allowed for a single async emit. Used by Dispatcher and by ShutdownDrainDuration.
const emitTimeout = 5 * time.Second

// ShutdownDrainDuration bounds how long shutdown waits for in-flight emits before closing
// the OTel providers and the Kafka writer. Must be >= emitTimeout.
const ShutdownDrainDuration = emitTimeout

// Dispatcher runs emits in goroutines so request handlers are not blocked, and tracks them
// so shutdown can drain.
type Dispatcher struct {
	timeout time.Duration
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher returns a Dispatcher using emitTimeout per emit.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		timeout: emitTimeout,
		logger:  slog.Default().With("module", "telemetry"),
	}
}

// EmitAsync runs emitter.Emit in a goroutine. The emit is detached from ctx cancellation
// (values such as the trace span are kept) and bounded by the dispatcher timeout; errors are logged.
// emitter and event may be nil; EmitAsync then returns without starting a goroutine.
func (d *Dispatcher) EmitAsync(ctx context.Context, emitter EventEmitter, event *auditdomain.Event) {
	if emitter == nil || event == nil {
		return
	}
	bg := context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		emitCtx, cancel := context.WithTimeout(bg, d.timeout)
		defer cancel()
		if err := emitter.Emit(emitCtx, event); err != nil {
			d.logger.WarnContext(emitCtx, "async emit failed", "action", event.Action, "error", err)
		}
	}()
}

// Drain waits for in-flight emits or until ctx is done.
func (d *Dispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
