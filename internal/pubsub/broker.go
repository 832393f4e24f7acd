package pubsub

import (
	"context"
	"sync"
	"time"
)

const defaultChanSize = 64

// Broker fans events out to any number of subscribers. Publishing never
// blocks: a subscriber that stops draining its channel loses events
// rather than stalling the publisher. That suits display invalidation
// and log fan-out, where only the latest state matters.
type Broker[T any] struct {
	mu       sync.RWMutex
	subs     map[chan Event[T]]struct{}
	done     chan struct{}
	chanSize int
}

// NewBroker creates a broker with the default channel capacity.
func NewBroker[T any]() *Broker[T] {
	return NewBrokerWithBuffer[T](defaultChanSize)
}

// NewBrokerWithBuffer creates a broker whose subscriber channels hold
// size events before publishes start dropping.
func NewBrokerWithBuffer[T any](size int) *Broker[T] {
	return &Broker[T]{
		subs:     make(map[chan Event[T]]struct{}),
		done:     make(chan struct{}),
		chanSize: size,
	}
}

// Subscribe returns a channel of events. The subscription ends, and the
// channel closes, when ctx is cancelled or the broker is closed. A
// subscription against an already-closed broker gets a closed channel.
func (b *Broker[T]) Subscribe(ctx context.Context) <-chan Event[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		ch := make(chan Event[T])
		close(ch)
		return ch
	default:
	}

	sub := make(chan Event[T], b.chanSize)
	b.subs[sub] = struct{}{}

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		defer b.mu.Unlock()

		select {
		case <-b.done:
			return
		default:
		}

		delete(b.subs, sub)
		close(sub)
	}()

	return sub
}

// Publish delivers an event to every subscriber with room in its
// channel and silently drops it for the rest.
func (b *Broker[T]) Publish(eventType EventType, payload T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	select {
	case <-b.done:
		return
	default:
	}

	event := Event[T]{Type: eventType, Payload: payload, Timestamp: time.Now()}
	for sub := range b.subs {
		select {
		case sub <- event:
		default:
		}
	}
}

// Close shuts down the broker and closes all subscriber channels.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	select {
	case <-b.done:
		return
	default:
	}

	close(b.done)
	for sub := range b.subs {
		close(sub)
	}
	b.subs = nil
}

// SubscriberCount returns the number of active subscribers.
func (b *Broker[T]) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
