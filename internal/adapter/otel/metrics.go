// Package otel records dispatcher outcomes as OpenTelemetry metrics. The
// global meter provider is used, so metrics are no-ops until the embedding
// process installs one.
package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "specnotify"

// Metrics holds all specnotify metric instruments.
type Metrics struct {
	SpecsFailed      metric.Int64Counter
	DeliveriesSent   metric.Int64Counter
	DeliveriesFailed metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	return newMetrics(otel.Meter(meterName))
}

func newMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.SpecsFailed, err = meter.Int64Counter("specnotify.specs.failed",
		metric.WithDescription("Number of finished specs with failures"))
	if err != nil {
		return nil, err
	}

	m.DeliveriesSent, err = meter.Int64Counter("specnotify.deliveries.sent",
		metric.WithDescription("Number of messages the chat service accepted"))
	if err != nil {
		return nil, err
	}

	m.DeliveriesFailed, err = meter.Int64Counter("specnotify.deliveries.failed",
		metric.WithDescription("Number of delivery attempts that were not sent"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// SpecFailed counts a failed spec.
func (m *Metrics) SpecFailed(ctx context.Context, _ string) {
	m.SpecsFailed.Add(ctx, 1)
}

// DeliverySent counts an accepted message.
func (m *Metrics) DeliverySent(ctx context.Context, channel string) {
	m.DeliveriesSent.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", channel)))
}

// DeliveryFailed counts a delivery that was not sent.
func (m *Metrics) DeliveryFailed(ctx context.Context, channel string) {
	m.DeliveriesFailed.Add(ctx, 1, metric.WithAttributes(attribute.String("channel", channel)))
}
