package waitz

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/waitz/aloop"
)

func TestLatch_OpensAfterAllArrivals(t *testing.T) {
	l := NewLatch(3)
	done := make(chan bool, 3)
	for i := 0; i < 3; i++ {
		go func() { done <- l.GreenArrive() }()
	}
	for i := 0; i < 3; i++ {
		if !<-done {
			t.Fatal("expected every arrival to observe the latch open")
		}
	}
	if !l.IsOpen() {
		t.Fatal("expected the latch to be open after 3 arrivals")
	}
	if !l.GreenArrive() {
		t.Fatal("expected an arrival on an already-open latch to return immediately")
	}
}

func TestCyclicBarrier_ReleasesBatchTogether(t *testing.T) {
	var actionRuns int32
	b := NewCyclicBarrier(3, func() { atomic.AddInt32(&actionRuns, 1) })

	indices := make(chan int, 3)
	for i := 0; i < 3; i++ {
		go func() {
			idx, err := b.GreenAwait()
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			indices <- idx
		}()
	}

	seen := map[int]bool{}
	for i := 0; i < 3; i++ {
		select {
		case idx := <-indices:
			seen[idx] = true
		case <-time.After(time.Second):
			t.Fatal("a party never returned from GreenAwait")
		}
	}
	for i := 0; i < 3; i++ {
		if !seen[i] {
			t.Fatalf("expected index %d among the batch's arrival indices, got %v", i, seen)
		}
	}
	if atomic.LoadInt32(&actionRuns) != 1 {
		t.Fatalf("expected the barrier action to run exactly once per generation, ran %d times", actionRuns)
	}
}

// TestCyclicBarrier_ThreeDomainsRendezvous constructs a barrier of 3
// parties where each party genuinely belongs to a distinct domain: one
// plain (green) goroutine, one async task running in event loop L1, and
// one async task running in a separate event loop L2. All three must
// still rendezvous as a single batch regardless of which domain or which
// loop each party arrived from.
func TestCyclicBarrier_ThreeDomainsRendezvous(t *testing.T) {
	var actionRuns int32
	b := NewCyclicBarrier(3, func() { atomic.AddInt32(&actionRuns, 1) })

	l1 := aloop.New()
	defer l1.Close()
	l2 := aloop.New()
	defer l2.Close()

	indices := make(chan int, 3)
	errs := make(chan error, 3)

	go func() {
		idx, err := b.GreenAwait()
		errs <- err
		indices <- idx
	}()
	l1.Go(func(ctx context.Context) {
		idx, err := b.AsyncAwait(ctx)
		errs <- err
		indices <- idx
	})
	l2.Go(func(ctx context.Context) {
		idx, err := b.AsyncAwait(ctx)
		errs <- err
		indices <- idx
	})

	seen := map[int]bool{}
	for i := 0; i < 3; i++ {
		select {
		case err := <-errs:
			if err != nil {
				t.Errorf("unexpected error from a party: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("a party never returned from Await")
		}
		select {
		case idx := <-indices:
			seen[idx] = true
		case <-time.After(time.Second):
			t.Fatal("a party's arrival index never arrived")
		}
	}
	for i := 0; i < 3; i++ {
		if !seen[i] {
			t.Fatalf("expected index %d among the three-domain batch, got %v", i, seen)
		}
	}
	if atomic.LoadInt32(&actionRuns) != 1 {
		t.Fatalf("expected the barrier action to run exactly once across domains, ran %d times", actionRuns)
	}
}

func TestCyclicBarrier_WaitingPeaksAtPartiesMinusOne(t *testing.T) {
	b := NewCyclicBarrier(3, nil)
	release := make(chan struct{})
	go func() {
		<-release
		b.GreenAwait()
	}()
	go func() {
		<-release
		b.GreenAwait()
	}()

	close(release)
	time.Sleep(20 * time.Millisecond)
	if w := b.Waiting(); w != 2 {
		t.Fatalf("expected waiting to peak at parties-1 == 2, got %d", w)
	}

	if _, err := b.GreenAwait(); err != nil {
		t.Fatalf("unexpected error completing the batch: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if w := b.Waiting(); w != 0 {
		t.Fatalf("expected waiting to reset to 0 after the batch released, got %d", w)
	}
}

func TestCyclicBarrier_TimeoutBreaksGeneration(t *testing.T) {
	b := NewCyclicBarrier(2, nil)
	var wg sync.WaitGroup
	wg.Add(1)
	var err error
	go func() {
		defer wg.Done()
		_, err = b.GreenAwait((5 * time.Millisecond).Nanoseconds())
	}()
	wg.Wait()
	if err == nil {
		t.Fatal("expected a timed-out party to receive a BrokenBarrierError")
	}
	if !b.IsBroken() {
		t.Fatal("expected the generation to be marked broken")
	}
}

func TestCyclicBarrier_Reset(t *testing.T) {
	b := NewCyclicBarrier(2, nil)
	done := make(chan error, 1)
	go func() {
		_, err := b.GreenAwait()
		done <- err
	}()
	time.Sleep(10 * time.Millisecond)
	b.Reset()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected Reset to break the pending party with an error")
		}
	case <-time.After(time.Second):
		t.Fatal("Reset never released the waiting party")
	}
}
