package orders

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the engine's counters. A nil *Metrics disables
// recording, which keeps tests free of a meter provider.
type Metrics struct {
	ordersCreated   metric.Int64Counter
	ordersConfirmed metric.Int64Counter
	ordersCanceled  metric.Int64Counter
}

// NewMetrics registers the engine counters on the given meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	created, err := meter.Int64Counter("orders_created_total",
		metric.WithDescription("Orders successfully created"))
	if err != nil {
		return nil, err
	}
	confirmed, err := meter.Int64Counter("orders_confirmed_total",
		metric.WithDescription("Order confirmations, fresh and replayed"))
	if err != nil {
		return nil, err
	}
	canceled, err := meter.Int64Counter("orders_canceled_total",
		metric.WithDescription("Orders canceled"))
	if err != nil {
		return nil, err
	}
	return &Metrics{
		ordersCreated:   created,
		ordersConfirmed: confirmed,
		ordersCanceled:  canceled,
	}, nil
}

func (m *Metrics) recordCreated(ctx context.Context) {
	if m == nil {
		return
	}
	m.ordersCreated.Add(ctx, 1)
}

func (m *Metrics) recordConfirmed(ctx context.Context, replayed bool) {
	if m == nil {
		return
	}
	m.ordersConfirmed.Add(ctx, 1, metric.WithAttributes(
		attribute.Bool("replayed", replayed)))
}

func (m *Metrics) recordCanceled(ctx context.Context) {
	if m == nil {
		return
	}
	m.ordersCanceled.Add(ctx, 1)
}
