// Package telemetry exposes session counters through the OpenTelemetry
// metric API. Without a configured SDK the instruments are no-ops, so every
// call site can record unconditionally.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const scope = "github.com/talentscout/sessiond"

// Metrics holds the daemon's instrument handles.
type Metrics struct {
	sessionsStarted    metric.Int64Counter
	sessionsEnded      metric.Int64Counter
	sessionsTerminated metric.Int64Counter
	violations         metric.Int64Counter
	reconnects         metric.Int64Counter
	recordsSaved       metric.Int64Counter
}

// New builds the instruments from the global meter provider.
func New() (*Metrics, error) {
	meter := otel.Meter(scope)
	m := &Metrics{}

	var err error
	if m.sessionsStarted, err = meter.Int64Counter("sessiond.sessions.started",
		metric.WithDescription("Interview sessions started")); err != nil {
		return nil, fmt.Errorf("create counter: %w", err)
	}
	if m.sessionsEnded, err = meter.Int64Counter("sessiond.sessions.ended",
		metric.WithDescription("Interview sessions ended normally")); err != nil {
		return nil, fmt.Errorf("create counter: %w", err)
	}
	if m.sessionsTerminated, err = meter.Int64Counter("sessiond.sessions.terminated",
		metric.WithDescription("Interview sessions terminated by proctoring or absence")); err != nil {
		return nil, fmt.Errorf("create counter: %w", err)
	}
	if m.violations, err = meter.Int64Counter("sessiond.proctor.violations",
		metric.WithDescription("Focus and visibility violations")); err != nil {
		return nil, fmt.Errorf("create counter: %w", err)
	}
	if m.reconnects, err = meter.Int64Counter("sessiond.stream.reconnects",
		metric.WithDescription("Interview stream reconnect attempts")); err != nil {
		return nil, fmt.Errorf("create counter: %w", err)
	}
	if m.recordsSaved, err = meter.Int64Counter("sessiond.records.saved",
		metric.WithDescription("Interview records persisted")); err != nil {
		return nil, fmt.Errorf("create counter: %w", err)
	}
	return m, nil
}

// SessionStarted records a session start for the given interview type.
func (m *Metrics) SessionStarted(ctx context.Context, interviewType string) {
	m.sessionsStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("type", interviewType)))
}

// SessionEnded records a normal session end.
func (m *Metrics) SessionEnded(ctx context.Context) {
	m.sessionsEnded.Add(ctx, 1)
}

// SessionTerminated records a forced termination with its reason.
func (m *Metrics) SessionTerminated(ctx context.Context, reason string) {
	m.sessionsTerminated.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// Violation records a proctoring violation.
func (m *Metrics) Violation(ctx context.Context) {
	m.violations.Add(ctx, 1)
}

// Reconnect records a stream reconnect attempt.
func (m *Metrics) Reconnect(ctx context.Context) {
	m.reconnects.Add(ctx, 1)
}

// RecordSaved records a persisted interview record.
func (m *Metrics) RecordSaved(ctx context.Context) {
	m.recordsSaved.Add(ctx, 1)
}
