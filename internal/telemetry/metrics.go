package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "jobboard.auth"

// AuthMetrics holds the authentication counters. The zero value is not usable; use NewAuthMetrics or NoopAuthMetrics.
type AuthMetrics struct {
	logins            metric.Int64Counter
	refreshes         metric.Int64Counter
	sessionsCreated   metric.Int64Counter
	impersonations    metric.Int64Counter
	rotationConflicts metric.Int64Counter
}

// NewAuthMetrics registers the counters on provider's meter.
func NewAuthMetrics(provider metric.MeterProvider) (*AuthMetrics, error) {
	m := provider.Meter(meterName)
	var (
		am  AuthMetrics
		err error
	)
	if am.logins, err = m.Int64Counter("auth.logins",
		metric.WithDescription("Login attempts by outcome")); err != nil {
		return nil, err
	}
	if am.refreshes, err = m.Int64Counter("auth.refreshes",
		metric.WithDescription("Refresh attempts by outcome")); err != nil {
		return nil, err
	}
	if am.sessionsCreated, err = m.Int64Counter("auth.sessions.created",
		metric.WithDescription("Sessions created by origin")); err != nil {
		return nil, err
	}
	if am.impersonations, err = m.Int64Counter("auth.impersonations",
		metric.WithDescription("Admin impersonation sessions issued")); err != nil {
		return nil, err
	}
	if am.rotationConflicts, err = m.Int64Counter("auth.refresh.rotation_conflicts",
		metric.WithDescription("Refresh rotations that lost a race for the same token")); err != nil {
		return nil, err
	}
	return &am, nil
}

// NoopAuthMetrics returns counters that record nothing. Used by tests and when telemetry is off.
func NoopAuthMetrics() *AuthMetrics {
	am, _ := NewAuthMetrics(noop.NewMeterProvider())
	return am
}

// Login counts a login attempt; outcome is "success" or a failure kind.
func (m *AuthMetrics) Login(ctx context.Context, outcome string) {
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// Refresh counts a refresh attempt; outcome is "success" or a failure kind.
func (m *AuthMetrics) Refresh(ctx context.Context, outcome string) {
	m.refreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// SessionCreated counts a new session; origin is register, login or impersonate.
func (m *AuthMetrics) SessionCreated(ctx context.Context, origin string) {
	m.sessionsCreated.Add(ctx, 1, metric.WithAttributes(attribute.String("origin", origin)))
}

func (m *AuthMetrics) Impersonation(ctx context.Context) {
	m.impersonations.Add(ctx, 1)
}

func (m *AuthMetrics) RotationConflict(ctx context.Context) {
	m.rotationConflicts.Add(ctx, 1)
}
