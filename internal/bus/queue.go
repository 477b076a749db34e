package bus

import "github.com/yanun0323/errors"

var (
	ErrQueueFull   = errors.New("queue full")
	ErrQueueClosed = errors.New("queue closed")
)

// Queue is a bounded FIFO between two pipeline stages. It is owned by the
// single scheduler goroutine and never blocks: a full queue rejects the
// push and the producer retries on a later step.
type Queue[T any] struct {
	name   string
	buf    []T
	head   int
	size   int
	closed bool
}

// NewQueue allocates a queue with the given capacity.
func NewQueue[T any](name string, capacity int) *Queue[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue[T]{name: name, buf: make([]T, capacity)}
}

func (q *Queue[T]) Name() string { return q.name }
func (q *Queue[T]) Len() int     { return q.size }
func (q *Queue[T]) Cap() int     { return len(q.buf) }
func (q *Queue[T]) Empty() bool  { return q.size == 0 }
func (q *Queue[T]) Full() bool   { return q.size == len(q.buf) }

// Space returns the number of free slots.
func (q *Queue[T]) Space() int { return len(q.buf) - q.size }

// TryPush appends v without blocking.
func (q *Queue[T]) TryPush(v T) error {
	if q.closed {
		return ErrQueueClosed
	}
	if q.size == len(q.buf) {
		return ErrQueueFull
	}
	q.buf[(q.head+q.size)%len(q.buf)] = v
	q.size++
	return nil
}

// TryPop removes the front element.
func (q *Queue[T]) TryPop() (T, bool) {
	var zero T
	if q.size == 0 {
		return zero, false
	}
	v := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return v, true
}

// Peek returns the front element without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	if q.size == 0 {
		var zero T
		return zero, false
	}
	return q.buf[q.head], true
}

// Close stops the queue from accepting new elements. Queued elements can
// still be popped.
func (q *Queue[T]) Close() { q.closed = true }

func (q *Queue[T]) Closed() bool { return q.closed }

// Drained reports whether the queue is closed and empty.
func (q *Queue[T]) Drained() bool { return q.closed && q.size == 0 }
