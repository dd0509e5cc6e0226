package waitz

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestQueue_FIFOOrder(t *testing.T) {
	q := NewQueue[int](0)
	for i := 0; i < 3; i++ {
		if err := q.TryPut(i); err != nil {
			t.Fatalf("unexpected error on put: %v", err)
		}
	}
	for i := 0; i < 3; i++ {
		item, err := q.TryGet()
		if err != nil {
			t.Fatalf("unexpected error on get: %v", err)
		}
		if item != i {
			t.Fatalf("expected FIFO order, got %d at position %d", item, i)
		}
	}
}

func TestQueue_LifoOrder(t *testing.T) {
	q := NewLifoQueue[int](0)
	for i := 0; i < 3; i++ {
		if err := q.TryPut(i); err != nil {
			t.Fatalf("unexpected error on put: %v", err)
		}
	}
	for i := 2; i >= 0; i-- {
		item, err := q.TryGet()
		if err != nil {
			t.Fatalf("unexpected error on get: %v", err)
		}
		if item != i {
			t.Fatalf("expected LIFO order, got %d, wanted %d", item, i)
		}
	}
}

func TestQueue_PriorityOrder(t *testing.T) {
	q := NewPriorityQueue[int](0, func(a, b int) bool { return a < b })
	for _, v := range []int{5, 1, 3, 2, 4} {
		if err := q.TryPut(v); err != nil {
			t.Fatalf("unexpected error on put: %v", err)
		}
	}
	for want := 1; want <= 5; want++ {
		item, err := q.TryGet()
		if err != nil {
			t.Fatalf("unexpected error on get: %v", err)
		}
		if item != want {
			t.Fatalf("expected priority order %d, got %d", want, item)
		}
	}
}

func TestQueue_TryPutFullReturnsQueueFull(t *testing.T) {
	q := NewQueue[int](1)
	if err := q.TryPut(1); err != nil {
		t.Fatalf("unexpected error filling a 1-capacity queue: %v", err)
	}
	err := q.TryPut(2)
	var full *QueueFull
	if !errors.As(err, &full) {
		t.Fatalf("expected QueueFull, got %v", err)
	}
}

func TestQueue_TryGetEmptyReturnsQueueEmpty(t *testing.T) {
	q := NewQueue[int](1)
	_, err := q.TryGet()
	var empty *QueueEmpty
	if !errors.As(err, &empty) {
		t.Fatalf("expected QueueEmpty, got %v", err)
	}
}

func TestQueue_BoundedPutBlocksUntilRoom(t *testing.T) {
	q := NewQueue[int](1)
	q.TryPut(1)

	done := make(chan bool, 1)
	go func() { done <- q.GreenPut(2) }()
	time.Sleep(10 * time.Millisecond)

	item, err := q.TryGet()
	if err != nil || item != 1 {
		t.Fatalf("expected to dequeue the first item to make room, got %d, %v", item, err)
	}

	select {
	case ok := <-done:
		if !ok {
			t.Fatal("expected the blocked put to eventually succeed")
		}
	case <-time.After(time.Second):
		t.Fatal("blocked put never woke")
	}
}

func TestQueue_UnboundedNeverBlocksProducers(t *testing.T) {
	q := NewQueue[int](0)
	for i := 0; i < 1000; i++ {
		if !q.GreenPut(i, 0) {
			t.Fatalf("expected an unbounded queue to never block a producer, failed at %d", i)
		}
	}
	if q.QSize() != 1000 {
		t.Fatalf("expected 1000 items queued, got %d", q.QSize())
	}
}

func TestQueue_AsyncGetCancels(t *testing.T) {
	q := NewQueue[int](1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan bool, 1)
	go func() { _, ok := q.AsyncGet(ctx); done <- ok }()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected AsyncGet to report cancelled on an empty, context-cancelled queue")
		}
	case <-time.After(time.Second):
		t.Fatal("AsyncGet never observed the cancellation")
	}
}

func TestSimpleQueue_FIFOAndBlocking(t *testing.T) {
	q := NewSimpleQueue[string]()
	if q.Len() != 0 {
		t.Fatal("expected an empty SimpleQueue")
	}
	done := make(chan string, 1)
	go func() {
		item, ok := q.GreenGet()
		if !ok {
			done <- "FAILED"
			return
		}
		done <- item
	}()
	time.Sleep(10 * time.Millisecond)
	q.Put("hello")
	select {
	case item := <-done:
		if item != "hello" {
			t.Fatalf("expected \"hello\", got %q", item)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked GreenGet never woke")
	}
}

func TestSimpleQueue_TryGetEmpty(t *testing.T) {
	q := NewSimpleQueue[int]()
	_, err := q.TryGet()
	var empty *QueueEmpty
	if !errors.As(err, &empty) {
		t.Fatalf("expected QueueEmpty, got %v", err)
	}
}
