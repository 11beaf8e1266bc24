package bus

import (
	"context"
	"time"
)

// MetricsRecorder records bus publish outcomes.
type MetricsRecorder interface {
	RecordBusPublish(topic string, latency time.Duration, err error)
}

// InstrumentedBus wraps a Bus and records publish metrics.
type InstrumentedBus struct {
	inner   Bus
	metrics MetricsRecorder
}

// NewInstrumentedBus creates a new instrumented bus.
func NewInstrumentedBus(inner Bus, metrics MetricsRecorder) *InstrumentedBus {
	return &InstrumentedBus{inner: inner, metrics: metrics}
}

// Publish publishes an event to a topic and records metrics.
func (b *InstrumentedBus) Publish(ctx context.Context, topic string, event Event) error {
	start := time.Now()
	err := b.inner.Publish(ctx, topic, event)

	if b.metrics != nil {
		b.metrics.RecordBusPublish(topic, time.Since(start), err)
	}

	return err
}

// Subscribe subscribes to events on a topic.
func (b *InstrumentedBus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	return b.inner.Subscribe(ctx, topic, handler)
}

// Close closes the underlying bus.
func (b *InstrumentedBus) Close() error {
	return b.inner.Close()
}
