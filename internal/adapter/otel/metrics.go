package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "bitrixassistant"

// Metrics holds the relay's metric instruments.
type Metrics struct {
	EventsReceived   metric.Int64Counter
	EventsDelivered  metric.Int64Counter
	EventsSkipped    metric.Int64Counter
	DeliveryFailures metric.Int64Counter
	DeliveryDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.EventsReceived, err = meter.Int64Counter("bitrixassistant.events.received",
		metric.WithDescription("Number of portal events received"))
	if err != nil {
		return nil, err
	}

	m.EventsDelivered, err = meter.Int64Counter("bitrixassistant.events.delivered",
		metric.WithDescription("Number of event notifications delivered to chats"))
	if err != nil {
		return nil, err
	}

	m.EventsSkipped, err = meter.Int64Counter("bitrixassistant.events.skipped",
		metric.WithDescription("Number of notifications skipped by preferences or visibility"))
	if err != nil {
		return nil, err
	}

	m.DeliveryFailures, err = meter.Int64Counter("bitrixassistant.events.failed",
		metric.WithDescription("Number of notification deliveries that failed"))
	if err != nil {
		return nil, err
	}

	m.DeliveryDuration, err = meter.Float64Histogram("bitrixassistant.delivery.duration_seconds",
		metric.WithDescription("Event fan-out duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
