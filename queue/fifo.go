package queue

import "sync"

// compactThreshold is the number of consumed slots after which the
// backing slice is compacted.
const compactThreshold = 64

// FIFO is an unbounded first-in first-out queue safe for concurrent use
// by any number of producers and consumers. Push never blocks; TryPop
// never blocks and reports an empty queue through its second return value.
//
// Consumers that find the queue empty can wait on Ready, which is signalled
// whenever an element becomes available.
type FIFO[T any] struct {
	mu    sync.Mutex
	items []T
	head  int
	ready chan struct{}
}

// NewFIFO creates an empty FIFO.
func NewFIFO[T any]() *FIFO[T] {
	return &FIFO[T]{ready: make(chan struct{}, 1)}
}

// Push appends v to the back of the queue.
func (q *FIFO[T]) Push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.signal()
}

// PushAll appends vs to the back of the queue in order. The batch is
// appended atomically: no other Push interleaves with it.
func (q *FIFO[T]) PushAll(vs ...T) {
	if len(vs) == 0 {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, vs...)
	q.mu.Unlock()
	q.signal()
}

// TryPop removes and returns the element at the front of the queue.
// It returns false if the queue is empty.
func (q *FIFO[T]) TryPop() (T, bool) {
	var zero T

	q.mu.Lock()
	if q.head >= len(q.items) {
		q.mu.Unlock()
		return zero, false
	}

	v := q.items[q.head]
	q.items[q.head] = zero
	q.head++

	remaining := len(q.items) - q.head
	if remaining == 0 {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head >= compactThreshold && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
	q.mu.Unlock()

	// Pass the wake-up on so other idle consumers see the rest.
	if remaining > 0 {
		q.signal()
	}
	return v, true
}

// Len returns the number of elements currently queued.
func (q *FIFO[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// Ready returns a channel that receives a value after an element has been
// pushed. A receive is a hint, not a reservation: another consumer may
// win the following TryPop.
func (q *FIFO[T]) Ready() <-chan struct{} {
	return q.ready
}

func (q *FIFO[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
