package waitz

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/zoobzio/waitz/aloop"
	wz "github.com/zoobzio/waitz/testing"
)

func TestLock_MutualExclusion(t *testing.T) {
	l := NewLock()
	var counter int64
	var wg sync.WaitGroup
	const n = 50
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if !l.GreenAcquire() {
				t.Error("expected acquire to succeed")
				return
			}
			counter++
			l.Release()
		}()
	}
	wg.Wait()
	if counter != n {
		t.Fatalf("expected %d increments under exclusion, got %d", n, counter)
	}
}

func TestOwnedLock_TracksOwner(t *testing.T) {
	l := NewOwnedLock()
	if l.Locked() {
		t.Fatal("expected a fresh lock to be unlocked")
	}
	if !l.GreenAcquire() {
		t.Fatal("expected acquire to succeed")
	}
	if owner, ok := l.Owner(); !ok || owner != currentTaskID() {
		t.Fatal("expected the acquiring task to be recorded as owner")
	}
	l.Release()
	if l.Locked() {
		t.Fatal("expected the lock to be free after release")
	}
}

func TestOwnedLock_ReleaseByNonOwnerPanics(t *testing.T) {
	l := NewOwnedLock()
	if !l.GreenAcquire() {
		t.Fatal("expected acquire to succeed")
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if recover() == nil {
				t.Error("expected release by a non-owning task to panic")
			}
		}()
		l.Release()
	}()
	<-done
}

func TestRLock_Reentrant(t *testing.T) {
	l := NewRLock()
	if !l.GreenAcquire() {
		t.Fatal("expected first acquire to succeed")
	}
	if !l.GreenAcquire() {
		t.Fatal("expected reentrant acquire by the same task to succeed")
	}
	if l.Depth() != 2 {
		t.Fatalf("expected depth 2, got %d", l.Depth())
	}
	l.Release()
	if l.Depth() != 1 {
		t.Fatalf("expected depth 1 after one release, got %d", l.Depth())
	}
	l.Release()
	if l.Depth() != 0 {
		t.Fatal("expected the lock to be free after matching releases")
	}
}

func TestRLock_ReleaseSaveAcquireRestore(t *testing.T) {
	l := NewRLock()
	l.GreenAcquire()
	l.GreenAcquire()
	state := l.ReleaseSave()
	if l.Depth() != 0 {
		t.Fatal("expected ReleaseSave to fully vacate the lock")
	}
	l.AcquireRestore(state)
	if l.Depth() != 2 {
		t.Fatalf("expected AcquireRestore to restore depth 2, got %d", l.Depth())
	}
	l.Release()
	l.Release()
}

func TestLock_BlockedAcquirerWakesOnRelease(t *testing.T) {
	l := NewLock()
	l.GreenAcquire()
	done := make(chan bool, 1)
	go func() { done <- l.GreenAcquire() }()
	time.Sleep(10 * time.Millisecond)
	l.Release()
	select {
	case ok := <-done:
		if !ok {
			t.Fatal("expected the blocked acquirer to eventually succeed")
		}
	case <-time.After(time.Second):
		t.Fatal("blocked acquirer never woke")
	}
	l.Release()
}

func TestLock_BlockedAcquirerWakesPromptly(t *testing.T) {
	l := NewLock()
	l.GreenAcquire()
	go func() {
		time.Sleep(10 * time.Millisecond)
		l.Release()
	}()
	_, elapsed := wz.MeasureLatencyWithResult(func() bool { return l.GreenAcquire() })
	l.Release()
	if elapsed > 200*time.Millisecond {
		t.Fatalf("expected the acquirer to wake promptly after release, took %s", elapsed)
	}
}

// TestLock_HandoffFromGreenToAsyncLoop constructs the cross-domain handoff
// scenario: a plain goroutine (green) holds the lock, an aloop.Loop task
// (async, its own event-loop identity) blocks trying to acquire it, the
// green side releases, and the async task must observe the acquisition.
func TestLock_HandoffFromGreenToAsyncLoop(t *testing.T) {
	l := NewLock()
	if !l.GreenAcquire() {
		t.Fatal("expected the green side to acquire first")
	}

	loop := aloop.New()
	defer loop.Close()

	asyncAcquired := make(chan bool, 1)
	loop.Go(func(ctx context.Context) {
		asyncAcquired <- l.AsyncAcquire(ctx)
	})

	// Give the async task a chance to enqueue behind the held lock before
	// releasing from the green side.
	wz.AwaitCondition(t, time.Second, time.Millisecond, func() bool { return l.Waiting() == 1 })
	l.Release()

	select {
	case ok := <-asyncAcquired:
		if !ok {
			t.Fatal("expected the async task in the event loop to observe the green release")
		}
	case <-time.After(time.Second):
		t.Fatal("async task never observed the lock becoming free")
	}
	l.Release()
}

func TestBoundedLock_DoubleReleasePanics(t *testing.T) {
	l := NewBoundedLock()
	l.GreenAcquire()
	l.Release()
	defer func() {
		if recover() == nil {
			t.Fatal("expected a second release with no matching acquire to panic")
		}
	}()
	l.Release()
}
