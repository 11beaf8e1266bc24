package bus

import (
	"context"

	"github.com/crsarena/arena-eval/internal/pkg/logger"
)

// LoggedBus journals every published event to disk before delegating.
type LoggedBus struct {
	inner   Bus
	journal *Journal
	log     *logger.Logger
}

// NewLoggedBus creates a bus that journals events published through inner.
func NewLoggedBus(inner Bus, journal *Journal, log *logger.Logger) *LoggedBus {
	if log == nil {
		log = logger.Default()
	}
	return &LoggedBus{inner: inner, journal: journal, log: log}
}

// Publish journals the event and then delegates to the inner bus.
func (b *LoggedBus) Publish(ctx context.Context, topic string, event Event) error {
	if err := b.journal.Append(topic, event); err != nil {
		b.log.Warn("Failed to journal event", "topic", topic, "error", err)
	}
	return b.inner.Publish(ctx, topic, event)
}

// Subscribe delegates to the inner bus.
func (b *LoggedBus) Subscribe(ctx context.Context, topic string, handler Handler) error {
	return b.inner.Subscribe(ctx, topic, handler)
}

// Close closes the journal and the inner bus.
func (b *LoggedBus) Close() error {
	if err := b.journal.Close(); err != nil {
		b.log.Warn("Failed to close event journal", "error", err)
	}
	return b.inner.Close()
}
