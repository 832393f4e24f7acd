// Package pubsub provides a generic publish/subscribe event system.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// BufferEditedEvent fires after a buffer mutation.
	BufferEditedEvent EventType = "buffer-edited"
	// WrapUpdatedEvent fires when a background rewrap lands its exact
	// result, superseding an interpolated snapshot.
	WrapUpdatedEvent EventType = "wrap-updated"
	// DisplayInvalidatedEvent fires when the display map's current
	// snapshot no longer reflects its inputs.
	DisplayInvalidatedEvent EventType = "display-invalidated"
	// ConfigChangedEvent fires when the settings file changes on disk.
	ConfigChangedEvent EventType = "config-changed"
	// LogLineEvent carries structured log lines to live observers.
	LogLineEvent EventType = "log-line"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
