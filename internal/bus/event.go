package bus

import (
	"context"
	"sync/atomic"

	"hwstrat/internal/schema"
)

// Event is one audit record handed from the scheduler to background sinks.
type Event struct {
	Header  schema.EventHeader
	Payload []byte
}

// EventQueue is a bounded, non-blocking, goroutine-safe event queue.
type EventQueue struct {
	ch     chan Event
	closed uint32
}

// NewEventQueue allocates a queue with the given capacity.
func NewEventQueue(capacity int) *EventQueue {
	if capacity <= 0 {
		capacity = 1
	}
	return &EventQueue{ch: make(chan Event, capacity)}
}

// TryPublish enqueues an event without blocking.
func (q *EventQueue) TryPublish(e Event) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the queue from accepting new events.
func (q *EventQueue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Run consumes events until the context is done or the queue is closed
// and drained.
func (q *EventQueue) Run(ctx context.Context, handler func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			handler(e)
		}
	}
}
