// Package otel provides OpenTelemetry instrumentation for the relay.
package otel

import (
	"context"
	"log/slog"
)

// ShutdownFunc is called to flush and shut down the trace provider.
type ShutdownFunc func(ctx context.Context) error

// InitTracer returns a no-op shutdown function. Exporter wiring is
// left to the deployment; without a configured provider the spans and
// instruments above are no-ops.
func InitTracer(serviceName string) ShutdownFunc {
	slog.Info("otel: tracer initialized without exporter", "service", serviceName)
	return func(_ context.Context) error {
		return nil
	}
}
