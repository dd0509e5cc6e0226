// Package testing provides concurrency stress helpers for waitz-based test
// suites: running many goroutines against one primitive, waiting for an
// eventually-true condition instead of polling by hand, measuring wait
// latency, and generating a chaotic mix of waiters that cancel mid-wait to
// exercise the lost-wakeup / double-wakeup invariants every primitive in
// this package must hold under races.
//
// Example usage:
//
//	func TestSemaphore_NoLostWakeup(t *testing.T) {
//		sem := waitz.NewSemaphore(0)
//		var woken int64
//		go wz.RunConcurrently(8, func(int) {
//			if sem.GreenAcquire() {
//				atomic.AddInt64(&woken, 1)
//			}
//		})
//		sem.Release(8)
//		wz.AwaitCondition(t, time.Second, time.Millisecond, func() bool {
//			return atomic.LoadInt64(&woken) == 8
//		})
//	}
package testing

import (
	"context"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/waitz"
)

// RunConcurrently runs fn on n goroutines and blocks until every one has
// returned. Useful for hammering a single primitive instance from many
// green callers at once (mutual-exclusion and FIFO-fairness properties).
func RunConcurrently(n int, fn func(id int)) {
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(id int) {
			defer wg.Done()
			fn(id)
		}(i)
	}
	wg.Wait()
}

// TestingT is the subset of *testing.T this package depends on, so callers
// can pass a *testing.T, a *testing.B, or a fake in their own tests without
// this package importing the standard testing package under an alias.
type TestingT interface {
	Helper()
	Errorf(format string, args ...any)
}

// AwaitCondition polls cond until it returns true, sleeping poll between
// attempts, and fails t if timeout elapses first. Returns whether cond was
// observed true. Prefer this over a bare time.Sleep anywhere a test needs
// to observe an asynchronous wakeup without racing the scheduler.
func AwaitCondition(t TestingT, timeout, poll time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for {
		if cond() {
			return true
		}
		if time.Now().After(deadline) {
			t.Errorf("condition not met within %s", timeout)
			return false
		}
		time.Sleep(poll)
	}
}

// MeasureLatency measures the wall-clock duration of fn, typically a single
// Green/Async wait call, to assert it returned promptly after a release
// rather than after some unrelated polling interval.
func MeasureLatency(fn func()) time.Duration {
	start := time.Now()
	fn()
	return time.Since(start)
}

// MeasureLatencyWithResult is MeasureLatency for a function that also
// returns a value, most often a primitive's boolean wait outcome.
func MeasureLatencyWithResult[T any](fn func() T) (T, time.Duration) {
	start := time.Now()
	result := fn()
	return result, time.Since(start)
}

// CancelChaosConfig configures CancelChaos's mix of cancelling and
// succeeding waiters.
type CancelChaosConfig struct {
	// Waiters is how many concurrent waits to run.
	Waiters int
	// CancelRate is the fraction (0..1) of waiters whose context is
	// cancelled at a random point instead of being left to resolve
	// naturally. A waiter racing its own cancellation exercises exactly
	// the "wake raced with cancel" ambiguity every Waiter implementation
	// must resolve without a lost or double wakeup.
	CancelRate float64
	// MaxJitter bounds how long a to-be-cancelled waiter waits before its
	// context is cancelled; 0 cancels immediately.
	MaxJitter time.Duration
	// Seed seeds the chaos generator's RNG for reproducible runs. 0 uses a
	// fixed default seed rather than a time-based one, so a failing case
	// reproduces deterministically on rerun.
	Seed int64
}

// CancelChaosResult aggregates what happened across one CancelChaos run.
type CancelChaosResult struct {
	Woken     int64
	Cancelled int64
}

// CancelChaos runs cfg.Waiters concurrent calls to await, a caller-supplied
// closure that performs one Green/AsyncWait-style blocking operation against
// ctx and reports whether it was woken. A CancelRate fraction of the
// goroutines have ctx cancelled after a random jitter instead of running to
// natural completion, racing the primitive's own wake path against external
// cancellation the way a real host runtime's cancellation scope would.
//
// This is a chaos generator, not an assertion: callers inspect
// CancelChaosResult against whatever invariant they are testing (e.g.
// Woken+Cancelled == cfg.Waiters, no primitive-internal panic, no waiter
// left stuck).
func CancelChaos(cfg CancelChaosConfig, await func(ctx context.Context) bool) CancelChaosResult {
	seed := cfg.Seed
	if seed == 0 {
		seed = 1
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic chaos generator, not a security use

	var result CancelChaosResult
	var wg sync.WaitGroup
	wg.Add(cfg.Waiters)
	for i := 0; i < cfg.Waiters; i++ {
		toCancel := rng.Float64() < cfg.CancelRate
		var jitter time.Duration
		if toCancel && cfg.MaxJitter > 0 {
			jitter = time.Duration(rng.Int63n(int64(cfg.MaxJitter)))
		}
		go func(cancel bool, jitter time.Duration) {
			defer wg.Done()
			ctx, cancelFn := context.WithCancel(context.Background())
			defer cancelFn()
			if cancel {
				go func() {
					time.Sleep(jitter)
					cancelFn()
				}()
			}
			if await(ctx) {
				atomic.AddInt64(&result.Woken, 1)
			} else {
				atomic.AddInt64(&result.Cancelled, 1)
			}
		}(toCancel, jitter)
	}
	wg.Wait()
	return result
}

// SpawnCancellingWaiters creates n raw *waitz.Waiter values (shielded
// according to shield), cancels a random subset of them directly via their
// green Wait path with a zero timeout, and returns the waiters that were
// left pending for the caller to Wake or inspect. This drives Waiter
// itself rather than a primitive built on it, for tests of the state
// machine in isolation (pending -> woken xor cancelled, never both).
func SpawnCancellingWaiters(n int, shield bool, cancelRate float64, seed int64) (pending []*waitz.Waiter, cancelled int) {
	if seed == 0 {
		seed = 1
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic chaos generator, not a security use
	for i := 0; i < n; i++ {
		w := waitz.NewWaiter(shield)
		if rng.Float64() < cancelRate {
			// timeout == 0 resolves the pending->cancelled transition
			// synchronously when unshielded; a shielded waiter's Wait(0)
			// instead returns true (cancellation is suppressed), so it is
			// always left pending for the caller.
			if !w.Wait(0) {
				cancelled++
				continue
			}
		}
		pending = append(pending, w)
	}
	return pending, cancelled
}
