package event

import "sync"

// Queue is a double-buffered, order-preserving event queue. Producers Push
// into the back buffer from any goroutine; the consumer Drains, which swaps
// the buffers and hands the filled one to a callback. Push never blocks and
// never drops: HighWater only signals that the consumer should drain early.
type Queue[T any] struct {
	mu        sync.Mutex
	back      []T
	spare     []T
	highWater int
}

// NewQueue creates a queue. highWater <= 0 disables the Full signal.
func NewQueue[T any](highWater int) *Queue[T] {
	capHint := 64
	if highWater > 0 && highWater < capHint {
		capHint = highWater
	}
	return &Queue[T]{
		back:      make([]T, 0, capHint),
		spare:     make([]T, 0, capHint),
		highWater: highWater,
	}
}

// Push appends an event to the back buffer.
func (q *Queue[T]) Push(ev T) {
	q.mu.Lock()
	q.back = append(q.back, ev)
	q.mu.Unlock()
}

// Len returns the number of undrained events.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.back)
}

// Full reports whether the undrained backlog reached the high-water mark.
func (q *Queue[T]) Full() bool {
	if q.highWater <= 0 {
		return false
	}
	return q.Len() >= q.highWater
}

// HighWater returns the configured high-water mark.
func (q *Queue[T]) HighWater() int { return q.highWater }

// Drain swaps the buffers and passes every queued event, in push order, to
// fn. Events pushed while fn runs land in the fresh back buffer and are
// delivered by the next Drain. It returns the number of events delivered.
func (q *Queue[T]) Drain(fn func([]T)) int {
	q.mu.Lock()
	front := q.back
	q.back = q.spare[:0]
	q.spare = nil
	q.mu.Unlock()

	n := len(front)
	if n > 0 {
		fn(front)
	}

	var zero T
	for i := range front {
		front[i] = zero
	}
	q.mu.Lock()
	q.spare = front[:0]
	q.mu.Unlock()
	return n
}

// Discard drops every queued event and returns how many were dropped.
func (q *Queue[T]) Discard() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.back)
	var zero T
	for i := range q.back {
		q.back[i] = zero
	}
	q.back = q.back[:0]
	return n
}
