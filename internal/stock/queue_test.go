package stock

import (
	"sync"
	"testing"
	"time"
)

func TestQueue_FIFO(t *testing.T) {
	q := newQueue[int](4)
	for i := 0; i < 3; i++ {
		if !q.push(i) {
			t.Fatalf("push(%d) returned false", i)
		}
	}
	for i := 0; i < 3; i++ {
		v, ok := q.pop()
		if !ok || v != i {
			t.Errorf("pop() = %d, %v; want %d, true", v, ok, i)
		}
	}
}

func TestQueue_GrowsPreservingOrder(t *testing.T) {
	q := newQueue[int](4)

	// Wrap the ring before growing.
	q.push(-1)
	q.push(-2)
	q.pop()
	q.pop()

	for i := 0; i < 100; i++ {
		q.push(i)
	}
	st := q.stats()
	if st.Pending != 100 {
		t.Errorf("Pending = %d, want 100", st.Pending)
	}
	if st.Resizes == 0 {
		t.Error("Resizes = 0, want growth")
	}
	for i := 0; i < 100; i++ {
		if v, _ := q.pop(); v != i {
			t.Fatalf("pop() = %d, want %d", v, i)
		}
	}
}

func TestQueue_CloseDrainsThenStops(t *testing.T) {
	q := newQueue[int](4)
	q.push(1)
	q.close()

	if q.push(2) {
		t.Error("push after close returned true")
	}
	if v, ok := q.pop(); !ok || v != 1 {
		t.Errorf("pop() = %d, %v; want 1, true", v, ok)
	}
	if _, ok := q.pop(); ok {
		t.Error("pop() on closed empty queue returned true")
	}
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := newQueue[int](1)

	var wg sync.WaitGroup
	wg.Add(1)
	var got int
	go func() {
		defer wg.Done()
		got, _ = q.pop()
	}()

	time.Sleep(10 * time.Millisecond)
	q.push(42)
	wg.Wait()

	if got != 42 {
		t.Errorf("pop() = %d, want 42", got)
	}
}
