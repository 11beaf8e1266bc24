// Package bus publishes evaluation lifecycle events to in-process or Kafka
// subscribers.
package bus

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Handler is a function that handles events.
type Handler func(ctx context.Context, event Event) error

// Bus defines the interface for event bus implementations.
type Bus interface {
	// Publish publishes an event to a topic.
	Publish(ctx context.Context, topic string, event Event) error

	// Subscribe subscribes to events on a topic.
	Subscribe(ctx context.Context, topic string, handler Handler) error

	// Close closes the bus and releases resources.
	Close() error
}

// Event represents a bus event.
type Event struct {
	// ID is the unique event identifier.
	ID string `json:"id"`

	// Type is the event type, usually the topic it was published on.
	Type string `json:"type"`

	// Source is the component that generated the event.
	Source string `json:"source"`

	// Timestamp is when the event was created (unix millis).
	Timestamp int64 `json:"timestamp"`

	// CorrelationID links related events, e.g. a request id.
	CorrelationID string `json:"correlation_id,omitempty"`

	// Payload contains the event data.
	Payload any `json:"payload"`
}

// NewEvent creates an event with a fresh id and the current time.
func NewEvent(eventType, source string, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UnixMilli(),
		Payload:   payload,
	}
}

// Evaluation topics.
const (
	TopicEvaluationCompleted = "evaluation.completed"
	TopicEvaluationFailed    = "evaluation.failed"
)
