package bus

import (
	"context"
	"sync"
	"time"

	"github.com/crsarena/arena-eval/internal/pkg/errors"
	"github.com/crsarena/arena-eval/internal/pkg/logger"
)

// MemoryBus is an in-memory event bus. Handlers run on their own goroutines.
type MemoryBus struct {
	mu         sync.RWMutex
	handlers   map[string][]Handler
	closed     bool
	log        *logger.Logger
	inflightWg sync.WaitGroup
}

// NewMemoryBus creates a new in-memory event bus.
func NewMemoryBus(log *logger.Logger) *MemoryBus {
	if log == nil {
		log = logger.Discard()
	}
	return &MemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Publish publishes an event to all subscribers of a topic.
func (b *MemoryBus) Publish(ctx context.Context, topic string, event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	handlers, ok := b.handlers[topic]
	if !ok || len(handlers) == 0 {
		return nil // No subscribers, not an error
	}

	// Handlers outlive the publishing request.
	hctx := context.WithoutCancel(ctx)
	for _, handler := range handlers {
		b.inflightWg.Add(1)
		go func(h Handler) {
			defer b.inflightWg.Done()
			if err := h(hctx, event); err != nil {
				b.log.Warn("Event handler failed", "topic", topic, "event_id", event.ID, "error", err)
			}
		}(handler)
	}

	return nil
}

// Subscribe registers a handler for events on a topic.
func (b *MemoryBus) Subscribe(_ context.Context, topic string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errors.New(errors.CodeUnavailable, "bus is closed")
	}

	b.handlers[topic] = append(b.handlers[topic], handler)
	return nil
}

// Close closes the bus, waiting for in-flight handlers to complete.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if !b.DrainTimeout(10 * time.Second) {
		b.log.Warn("Event drain timeout reached, some handlers may not have completed")
	}

	b.mu.Lock()
	b.handlers = nil
	b.mu.Unlock()

	return nil
}

// DrainTimeout waits for in-flight handlers to complete.
func (b *MemoryBus) DrainTimeout(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		b.inflightWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
