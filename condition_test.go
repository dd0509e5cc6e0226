package waitz

import (
	"testing"
	"time"
)

func TestCondition_NotifyWakesOneWaiter(t *testing.T) {
	l := NewLock()
	c := NewCondition(l)

	l.GreenAcquire()
	woken := make(chan struct{}, 2)
	for i := 0; i < 2; i++ {
		go func() {
			l.GreenAcquire()
			c.GreenWait()
			woken <- struct{}{}
			l.Release()
		}()
	}
	time.Sleep(10 * time.Millisecond)
	l.Release()
	time.Sleep(10 * time.Millisecond)

	l.GreenAcquire()
	if n := c.Notify(1); n != 1 {
		t.Fatalf("expected Notify(1) to wake exactly 1 waiter, woke %d", n)
	}
	l.Release()

	select {
	case <-woken:
	case <-time.After(time.Second):
		t.Fatal("notified waiter never woke")
	}
	select {
	case <-woken:
		t.Fatal("a second waiter woke from a Notify(1) call")
	case <-time.After(20 * time.Millisecond):
	}

	l.GreenAcquire()
	c.NotifyAll()
	l.Release()
	select {
	case <-woken:
	case <-time.After(time.Second):
		t.Fatal("NotifyAll never woke the remaining waiter")
	}
}

func TestCondition_StaleWaiterNotWokenByEarlierNotify(t *testing.T) {
	l := NewLock()
	c := NewCondition(l)

	l.GreenAcquire()
	deadline := c.currentTicket()
	l.Release()

	// Register a fresh waiter after computing the deadline above; a Notify
	// bounded by that deadline must not wake it.
	done := make(chan bool, 1)
	go func() {
		l.GreenAcquire()
		ok := c.GreenWait((50 * time.Millisecond).Nanoseconds())
		l.Release()
		done <- ok
	}()
	time.Sleep(10 * time.Millisecond)

	l.GreenAcquire()
	n := c.Notify(1, deadline)
	l.Release()
	if n != 0 {
		t.Fatalf("expected a deadline-bounded Notify to skip the later waiter, woke %d", n)
	}

	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected the late-registered waiter to time out, not be notified")
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never returned")
	}
}

func TestCondition_WaitForPredicate(t *testing.T) {
	l := NewLock()
	c := NewCondition(l)
	ready := false

	done := make(chan bool, 1)
	go func() {
		l.GreenAcquire()
		ok := c.GreenWaitFor(func() bool { return ready })
		l.Release()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	l.GreenAcquire()
	ready = true
	c.NotifyAll()
	l.Release()

	select {
	case ok := <-done:
		if !ok {
			t.Fatal("expected GreenWaitFor to observe the predicate flip true")
		}
	case <-time.After(time.Second):
		t.Fatal("GreenWaitFor never returned")
	}
}

func TestCondition_RLockFullyVacatesAcrossWait(t *testing.T) {
	l := NewRLock()
	c := NewCondition(l)

	depthAfter := make(chan int, 1)
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.GreenAcquire()
		l.GreenAcquire() // depth 2, on this goroutine's own task identity
		c.GreenWait((100 * time.Millisecond).Nanoseconds())
		depthAfter <- l.Depth()
		l.Release()
		l.Release()
	}()

	// The wait fully releases the reentrant lock (regardless of depth), so
	// another task must be able to acquire it while the waiter is parked.
	time.Sleep(20 * time.Millisecond)
	otherAcquired := make(chan bool, 1)
	go func() {
		ok := l.TryAcquire()
		if ok {
			l.Release() // released by the task that acquired it, as RLock requires
		}
		otherAcquired <- ok
	}()

	select {
	case ok := <-otherAcquired:
		if !ok {
			t.Fatal("expected the lock to be fully free while the condition wait is parked")
		}
	case <-time.After(time.Second):
		t.Fatal("never observed the lock being free during the wait")
	}

	select {
	case depth := <-depthAfter:
		if depth != 2 {
			t.Fatalf("expected AcquireRestore to bring depth back to 2, got %d", depth)
		}
	case <-time.After(time.Second):
		t.Fatal("the waiting task never resumed")
	}
	<-done
}
