package mq

import (
	"context"
	"sync"
)

type node[T any] struct {
	item T
	next *node[T]
}

// waiter is a parked popper. Push hands an item to it directly through ch,
// which has capacity 1 so the hand-off never blocks.
type waiter[T any] struct {
	ch     chan T
	next   *waiter[T]
	prev   *waiter[T]
	parked bool
}

// Queue is an unbounded, concurrency-safe FIFO with a blocking Pop.
//
// Items are held in an owned singly linked list. When poppers are parked, a
// pushed item bypasses the list and is handed to the longest-waiting popper,
// so exactly one popper wakes per push and no item is delivered twice.
type Queue[T any] struct {
	mu   sync.Mutex
	head *node[T]
	tail *node[T]
	size int

	// parked poppers, oldest first
	wHead *waiter[T]
	wTail *waiter[T]
}

// NewQueue creates an empty queue.
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends item to the back of the queue. It never blocks.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if w := q.wHead; w != nil {
		q.unpark(w)
		w.ch <- item
		return
	}

	n := &node[T]{item: item}
	if q.tail == nil {
		q.head = n
	} else {
		q.tail.next = n
	}
	q.tail = n
	q.size++
}

// Pop removes and returns the item at the front of the queue, blocking until
// one is available.
func (q *Queue[T]) Pop() T {
	item, _ := q.PopContext(context.Background())
	return item
}

// PopContext is like Pop but gives up when ctx is done. An item that was
// handed over while ctx was being cancelled is still returned with a nil
// error.
func (q *Queue[T]) PopContext(ctx context.Context) (T, error) {
	q.mu.Lock()
	if item, ok := q.take(); ok {
		q.mu.Unlock()
		return item, nil
	}

	w := &waiter[T]{ch: make(chan T, 1)}
	q.park(w)
	q.mu.Unlock()

	select {
	case item := <-w.ch:
		return item, nil
	case <-ctx.Done():
	}

	q.mu.Lock()
	parked := w.parked
	if parked {
		q.unpark(w)
	}
	q.mu.Unlock()

	if !parked {
		// Push already removed us, so the item is in flight.
		return <-w.ch, nil
	}

	var zero T
	return zero, ctx.Err()
}

// Len returns the number of buffered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Drain removes every buffered item and returns them in FIFO order.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	items := make([]T, 0, q.size)
	for {
		item, ok := q.take()
		if !ok {
			return items
		}
		items = append(items, item)
	}
}

// take pops the list head. Caller holds q.mu.
func (q *Queue[T]) take() (T, bool) {
	n := q.head
	if n == nil {
		var zero T
		return zero, false
	}

	q.head = n.next
	if q.head == nil {
		q.tail = nil
	}
	q.size--

	item := n.item
	n.next = nil
	return item, true
}

func (q *Queue[T]) park(w *waiter[T]) {
	w.parked = true
	w.prev = q.wTail
	if q.wTail == nil {
		q.wHead = w
	} else {
		q.wTail.next = w
	}
	q.wTail = w
}

func (q *Queue[T]) unpark(w *waiter[T]) {
	if w.prev == nil {
		q.wHead = w.next
	} else {
		w.prev.next = w.next
	}
	if w.next == nil {
		q.wTail = w.prev
	} else {
		w.next.prev = w.prev
	}
	w.next = nil
	w.prev = nil
	w.parked = false
}
