package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "bitrixassistant"

// StartEventSpan starts a span for routing one portal event.
func StartEventSpan(ctx context.Context, eventType, memberID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "event",
		trace.WithAttributes(
			attribute.String("event.type", eventType),
			attribute.String("portal.member_id", memberID),
		),
	)
}

// StartDeliverySpan starts a span for delivery to a single chat.
func StartDeliverySpan(ctx context.Context, eventType string, chatID int64) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "delivery",
		trace.WithAttributes(
			attribute.String("event.type", eventType),
			attribute.Int64("chat.id", chatID),
		),
	)
}
