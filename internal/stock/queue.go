package stock

import "sync"

// queue is an unbounded FIFO whose ring doubles once it is 70% full, so
// Submit never blocks on slow workers.
type queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   []T
	head   int
	tail   int
	count  int
	closed bool

	enqueued int64
	dequeued int64
	resizes  int
}

func newQueue[T any](initial int) *queue[T] {
	if initial < 1 {
		initial = 1
	}
	q := &queue[T]{ring: make([]T, initial)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends an item. It returns false once the queue is closed.
func (q *queue[T]) push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	threshold := len(q.ring) * 70 / 100
	if threshold < 1 {
		threshold = 1
	}
	if q.count+1 >= threshold {
		q.grow()
	}

	q.ring[q.tail] = item
	q.tail = (q.tail + 1) % len(q.ring)
	q.count++
	q.enqueued++

	q.cond.Signal()
	return true
}

// pop blocks until an item is available. After close it drains what is
// left, then returns false.
func (q *queue[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}

	var zero T
	if q.count == 0 {
		return zero, false
	}

	item := q.ring[q.head]
	q.ring[q.head] = zero
	q.head = (q.head + 1) % len(q.ring)
	q.count--
	q.dequeued++
	return item, true
}

func (q *queue[T]) close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// QueueStats describes the request queue.
type QueueStats struct {
	Pending  int
	Capacity int
	Enqueued int64
	Dequeued int64
	Resizes  int
}

func (q *queue[T]) stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Pending:  q.count,
		Capacity: len(q.ring),
		Enqueued: q.enqueued,
		Dequeued: q.dequeued,
		Resizes:  q.resizes,
	}
}

// grow doubles the ring. Must be called with mu held.
func (q *queue[T]) grow() {
	ring := make([]T, len(q.ring)*2)
	if q.count > 0 {
		if q.head < q.tail {
			copy(ring, q.ring[q.head:q.tail])
		} else {
			n := copy(ring, q.ring[q.head:])
			copy(ring[n:], q.ring[:q.tail])
		}
	}
	q.ring = ring
	q.head = 0
	q.tail = q.count
	q.resizes++
}
