package service

import "context"

// Metrics counts dispatcher outcomes.
type Metrics interface {
	SpecFailed(ctx context.Context, specPath string)
	DeliverySent(ctx context.Context, channel string)
	DeliveryFailed(ctx context.Context, channel string)
}

type nopMetrics struct{}

func (nopMetrics) SpecFailed(context.Context, string)     {}
func (nopMetrics) DeliverySent(context.Context, string)   {}
func (nopMetrics) DeliveryFailed(context.Context, string) {}
