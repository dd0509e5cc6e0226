package waitz

import (
	"sync"
	"testing"
)

func TestCapacityLimiter_BoundsConcurrency(t *testing.T) {
	l := NewCapacityLimiter(2)
	if !l.TryBorrow() {
		t.Fatal("expected first borrow to succeed")
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if !l.TryBorrow() {
			t.Error("expected second borrow, from a different task, to succeed")
		}
		l.Return()
	}()
	<-done
	l.Return()
	if l.Borrowed() != 0 {
		t.Fatalf("expected no outstanding borrows, got %d", l.Borrowed())
	}
}

func TestCapacityLimiter_ReentryPanics(t *testing.T) {
	l := NewCapacityLimiter(2)
	if !l.TryBorrow() {
		t.Fatal("expected first borrow to succeed")
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected a second borrow by the same task to panic")
		}
		l.Return()
	}()
	l.TryBorrow()
}

func TestCapacityLimiter_ReturnWithoutBorrowPanics(t *testing.T) {
	l := NewCapacityLimiter(1)
	defer func() {
		if recover() == nil {
			t.Fatal("expected Return with no matching borrow to panic")
		}
	}()
	l.Return()
}

func TestCapacityLimiter_ZeroTotalNeverBorrows(t *testing.T) {
	l := NewCapacityLimiter(0)
	if l.TryBorrow() {
		t.Fatal("expected a zero-capacity limiter to never grant a borrow")
	}
}

func TestRCapacityLimiter_ReentrantCounting(t *testing.T) {
	l := NewRCapacityLimiter(5)
	if !l.TryBorrow(3) {
		t.Fatal("expected to borrow 3 of 5 tokens")
	}
	if !l.TryBorrow(2) {
		t.Fatal("expected the same task to borrow 2 more, reaching 5")
	}
	if l.Borrowed() != 5 {
		t.Fatalf("expected 5 tokens recorded for this task, got %d", l.Borrowed())
	}
	if l.TryBorrow(1) {
		t.Fatal("expected the limiter to be saturated at 5/5")
	}
	l.Return(5)
	if l.Borrowed() != 0 {
		t.Fatalf("expected 0 tokens held after returning all, got %d", l.Borrowed())
	}
}

func TestRCapacityLimiter_OverReturnPanics(t *testing.T) {
	l := NewRCapacityLimiter(5)
	l.TryBorrow(2)
	defer func() {
		if recover() == nil {
			t.Fatal("expected returning more than held to panic")
		}
	}()
	l.Return(3)
}

func TestRCapacityLimiter_AllOrNothingTryBorrow(t *testing.T) {
	l := NewRCapacityLimiter(3)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if !l.TryBorrow(2) {
			t.Error("expected the other task to take 2 of 3 tokens")
		}
	}()
	<-done
	// Only 1 token remains; asking for 2 must fail and return the partial
	// grant rather than leaving the limiter permanently short a token.
	if l.TryBorrow(2) {
		t.Fatal("expected an all-or-nothing TryBorrow(2) to fail with only 1 token free")
	}
	if !l.TryBorrow(1) {
		t.Fatal("expected the rolled-back token to be available for a smaller borrow")
	}
	l.Return(1)
}

func TestCapacityLimiter_SerializesAcrossManyTasks(t *testing.T) {
	l := NewCapacityLimiter(3)
	var wg sync.WaitGroup
	const n = 20
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if !l.GreenBorrow() {
				t.Error("expected borrow to eventually succeed")
				return
			}
			l.Return()
		}()
	}
	wg.Wait()
	if l.Available() != l.Total() {
		t.Fatalf("expected all tokens returned, got %d/%d available", l.Available(), l.Total())
	}
}
